package workflow

import (
	"time"

	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// Recorder receives workflow outcomes. metrics.MetricsServer implements it.
type Recorder interface {
	RecordWorkflow(action interfaces.Action, outcome string, elapsed time.Duration)
	RecordStatusCheck(result string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordWorkflow(interfaces.Action, string, time.Duration) {}
func (NopRecorder) RecordStatusCheck(string) {}

// Outcome is the metric label for the result of a workflow run.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return interfaces.KindOf(err).String()
}
