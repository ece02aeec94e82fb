package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/networks"
)

// Status check results reported to metrics.
const (
	StatusSkipped      = "skipped"
	StatusRegistered   = "registered"
	StatusUnregistered = "unregistered"
	StatusTransport    = "transport-failure"
	StatusFailed       = "failed"
)

// StatusChecker reads the registration record of the connected account.
type StatusChecker struct {
	Log     *slog.Logger
	Metrics Recorder
}

// Check queries registry for session.Account. It is a no-op when the wallet
// is disconnected or no contract is resolved (registry is nil). Failures never
// surface as errors: an unreachable RPC endpoint yields a warning with a
// network-specific hint, anything else is logged and reported as unregistered.
func (s *StatusChecker) Check(ctx context.Context, session interfaces.Session, registry interfaces.IdentityRegistry) interfaces.StatusReport {
	report := interfaces.StatusReport{RegistrationRecord: interfaces.RegistrationRecord{Account: session.Account}}
	if registry == nil || !connected(session) {
		s.metrics().RecordStatusCheck(StatusSkipped)
		return report
	}

	record, err := readRecord(ctx, session, registry)
	switch {
	case err == nil:
		report.RegistrationRecord = record
		if record.Registered {
			s.metrics().RecordStatusCheck(StatusRegistered)
		} else {
			s.metrics().RecordStatusCheck(StatusUnregistered)
		}
	case interfaces.IsTransportError(err):
		s.log().Debug("RPC unreachable while checking registration", "chainId", session.ChainID, "err", err)
		report.Warning = networks.TransportHint(session.ChainID)
		s.metrics().RecordStatusCheck(StatusTransport)
	default:
		if !errors.Is(err, context.Canceled) {
			s.log().Error("Error checking registration", "account", session.Account, "contract", registry.Address(), "err", err)
		}
		s.metrics().RecordStatusCheck(StatusFailed)
	}
	return report
}

func readRecord(ctx context.Context, session interfaces.Session, registry interfaces.IdentityRegistry) (interfaces.RegistrationRecord, error) {
	record := interfaces.RegistrationRecord{Account: session.Account}

	registered, err := registry.IsRegistered(ctx, session.Account)
	if err != nil {
		return record, err
	}
	if !registered {
		return record, nil
	}

	ts, err := registry.RegistrationTimestamp(ctx, session.Account)
	if err != nil {
		return record, err
	}
	if ts > math.MaxInt64 {
		return record, fmt.Errorf("registration timestamp out of range: %d", ts)
	}

	registeredAt := time.Unix(int64(ts), 0).UTC()
	record.Registered = true
	record.Timestamp = &registeredAt
	return record, nil
}

func (s *StatusChecker) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *StatusChecker) metrics() Recorder {
	if s.Metrics != nil {
		return s.Metrics
	}
	return NopRecorder{}
}

func connected(session interfaces.Session) bool {
	return session.Connected && session.Account != (common.Address{})
}
