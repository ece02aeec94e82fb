package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"go.uber.org/atomic"
)

// ErrRegistrationDisabled is returned when register is triggered for an
// account already known to be registered.
var ErrRegistrationDisabled = errors.New("account is already registered")

// ContractResolver maps a network to the deployed contract. networks.Resolver
// implements it.
type ContractResolver interface {
	Resolve(chainID interfaces.ChainID) (common.Address, bool)
}

// Snapshot is the presentation state of the controller.
type Snapshot struct {
	Action             interfaces.Action        `json:"action,omitempty"`
	State              interfaces.WorkflowState `json:"state"`
	Message            string                   `json:"message,omitempty"`
	Err                error                    `json:"-"`
	ChainID            interfaces.ChainID       `json:"chainId"`
	Account            common.Address           `json:"account"`
	Registered         bool                     `json:"registered"`
	Timestamp          *time.Time               `json:"timestamp,omitempty"`
	Warning            string                   `json:"warning,omitempty"`
	VerificationResult *bool                    `json:"verificationResult,omitempty"`
	InFlight           bool                     `json:"inFlight"`
}

// ControllerConfig wires the collaborators shared by all runs.
type ControllerConfig struct {
	Resolver   ContractResolver
	Registries interfaces.IdentityRegistryFactory
	Encryption interfaces.EncryptionProvider
	Authorizer Authorizer
	Metrics    Recorder
	Log        *slog.Logger

	// ConfirmTimeout bounds a whole run including the confirmation wait.
	// Zero means no bound beyond the caller's context.
	ConfirmTimeout time.Duration
}

// Controller runs at most one workflow at a time for a session and keeps the
// last snapshot. It is safe for concurrent use.
type Controller struct {
	cfg    ControllerConfig
	status *StatusChecker

	inFlight atomic.Bool

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Metrics == nil {
		cfg.Metrics = NopRecorder{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		status: &StatusChecker{Log: cfg.Log, Metrics: cfg.Metrics},
	}
}

// Snapshot returns the current presentation state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.snapshot
	snap.InFlight = c.inFlight.Load()
	return snap
}

// InFlight reports whether a workflow is running.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// RegistryFor resolves the contract of chainID. It returns nil when the
// network is unsupported; no contract call is made in that case.
func (c *Controller) RegistryFor(chainID interfaces.ChainID) interfaces.IdentityRegistry {
	if c.cfg.Resolver == nil || c.cfg.Registries == nil {
		return nil
	}
	address, ok := c.cfg.Resolver.Resolve(chainID)
	if !ok {
		return nil
	}
	registry, err := c.cfg.Registries.RegistryFor(address)
	if err != nil {
		c.cfg.Log.Error("Could not create registry client", "contract", address, "err", err)
		return nil
	}
	return registry
}

// RefreshStatus re-reads the registration record of session and stores it in
// the snapshot.
func (c *Controller) RefreshStatus(ctx context.Context, session interfaces.Session) interfaces.StatusReport {
	report := c.status.Check(ctx, session, c.RegistryFor(session.ChainID))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.adoptSession(session)
	c.applyStatus(report)
	return report
}

// Register runs the register workflow. It returns ErrBusy without side
// effects while another workflow is in flight and ErrRegistrationDisabled when
// the account is already known to be registered.
func (c *Controller) Register(ctx context.Context, session interfaces.Session, signer interfaces.Signer, identity string) (Snapshot, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.cfg.Metrics.RecordWorkflow(interfaces.ActionRegister, "busy", 0)
		return c.Snapshot(), interfaces.ErrBusy
	}
	defer c.inFlight.Store(false)

	c.mu.RLock()
	known := c.snapshot.Account == session.Account && c.snapshot.ChainID == session.ChainID && c.snapshot.Registered
	c.mu.RUnlock()
	if known {
		return c.Snapshot(), ErrRegistrationDisabled
	}

	env := c.begin(interfaces.ActionRegister, session, signer)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := Register(ctx, env, identity)
	c.cfg.Metrics.RecordWorkflow(interfaces.ActionRegister, Outcome(err), time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	if result != nil {
		c.applyStatus(result.Status)
	}
	c.finish(err)
	return c.snapshotLocked(), err
}

// Verify runs the verify workflow. It returns ErrBusy without side effects
// while another workflow is in flight.
func (c *Controller) Verify(ctx context.Context, session interfaces.Session, signer interfaces.Signer, identity string) (Snapshot, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.cfg.Metrics.RecordWorkflow(interfaces.ActionVerify, "busy", 0)
		return c.Snapshot(), interfaces.ErrBusy
	}
	defer c.inFlight.Store(false)

	env := c.begin(interfaces.ActionVerify, session, signer)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := Verify(ctx, env, identity)
	c.cfg.Metrics.RecordWorkflow(interfaces.ActionVerify, Outcome(err), time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	if result != nil {
		match := result.Match
		c.snapshot.VerificationResult = &match
	}
	c.finish(err)
	return c.snapshotLocked(), err
}

// begin resets the snapshot to Idle for action and builds the run environment.
func (c *Controller) begin(action interfaces.Action, session interfaces.Session, signer interfaces.Signer) *Env {
	c.mu.Lock()
	c.adoptSession(session)
	c.snapshot.Action = action
	c.snapshot.State = interfaces.StateIdle
	c.snapshot.Message = ""
	c.snapshot.Err = nil
	if action == interfaces.ActionVerify {
		c.snapshot.VerificationResult = nil
	}
	c.mu.Unlock()

	return &Env{
		Session:    session,
		Registry:   c.RegistryFor(session.ChainID),
		Encryption: c.cfg.Encryption,
		Signer:     signer,
		Authorizer: c.cfg.Authorizer,
		Status:     c.status,
		Log:        c.cfg.Log.With("action", string(action), "account", session.Account),
		OnProgress: c.progress,
	}
}

func (c *Controller) progress(state interfaces.WorkflowState, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.State = state
	c.snapshot.Message = message
}

// finish records the terminal state. The caller holds c.mu.
func (c *Controller) finish(err error) {
	if err == nil {
		c.snapshot.State = interfaces.StateComplete
		return
	}
	c.snapshot.State = interfaces.StateFailed
	c.snapshot.Err = err
	c.cfg.Log.Warn("Workflow failed", "action", string(c.snapshot.Action), "kind", interfaces.KindOf(err).String(), "reason", string(interfaces.ReasonOf(err)), "err", err)
}

// adoptSession clears per-account state when the session changed. The caller holds c.mu.
func (c *Controller) adoptSession(session interfaces.Session) {
	if c.snapshot.Account == session.Account && c.snapshot.ChainID == session.ChainID {
		return
	}
	c.snapshot = Snapshot{Account: session.Account, ChainID: session.ChainID}
}

// applyStatus copies a status report into the snapshot. The caller holds c.mu.
func (c *Controller) applyStatus(report interfaces.StatusReport) {
	c.snapshot.Registered = report.Registered
	c.snapshot.Timestamp = report.Timestamp
	c.snapshot.Warning = report.Warning
}

// snapshotLocked is the snapshot handed back when a run ends. The caller holds c.mu.
func (c *Controller) snapshotLocked() Snapshot {
	snap := c.snapshot
	snap.InFlight = false
	return snap
}

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.ConfirmTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
}
