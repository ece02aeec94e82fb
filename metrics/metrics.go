package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// MetricsServer owns a private registry and the HTTP server exporting it.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	workflowRuns     *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	statusChecks     *prometheus.CounterVec
}

// New creates the collectors under namespace. The server listens on
// listenAddr once ListenAndServe is called.
func New(namespace, listenAddr string) (*MetricsServer, error) {
	m := &MetricsServer{
		registry: prometheus.NewRegistry(),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Register and verify runs by outcome.",
		}, []string{"action", "outcome"}),
		workflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Duration of register and verify runs including the confirmation wait.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"action"}),
		statusChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_checks_total",
			Help:      "Registration status checks by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.workflowRuns,
		m.workflowDuration,
		m.statusChecks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.srv = &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsServer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// RecordWorkflow counts one run. Busy rejections carry no duration.
func (m *MetricsServer) RecordWorkflow(action interfaces.Action, outcome string, elapsed time.Duration) {
	m.workflowRuns.WithLabelValues(string(action), outcome).Inc()
	if elapsed > 0 {
		m.workflowDuration.WithLabelValues(string(action)).Observe(elapsed.Seconds())
	}
}

func (m *MetricsServer) RecordStatusCheck(result string) {
	m.statusChecks.WithLabelValues(result).Inc()
}
