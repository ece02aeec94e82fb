package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind is the user-facing failure taxonomy. Every kind is recoverable;
// the kind only selects the message.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPreconditionUnmet
	KindUserRejected
	KindInsufficientFunds
	KindTransportFailure
	KindEncryptionServiceFailure
	KindContractStateConflict
)

var errorKindNames = map[ErrorKind]string{
	KindUnknown:                  "unknown",
	KindPreconditionUnmet:        "precondition-unmet",
	KindUserRejected:             "user-rejected",
	KindInsufficientFunds:        "insufficient-funds",
	KindTransportFailure:         "transport-failure",
	KindEncryptionServiceFailure: "encryption-service-failure",
	KindContractStateConflict:    "contract-state-conflict",
}

// String returns the kind name.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unrecognized names decode as KindUnknown.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	*k = KindUnknown
	for kind, name := range errorKindNames {
		if name == string(text) {
			*k = kind
		}
	}
	return nil
}

// Sentinel errors returned by collaborators. Implementations wrap them with %w
// so that callers can classify failures without inspecting message text.
var (
	ErrUserRejected      = errors.New("user rejected the request")
	ErrInsufficientFunds = errors.New("insufficient funds for gas")
	ErrTransport         = errors.New("network transport failure")
	ErrEncryptionService = errors.New("encryption service failure")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")

	// ErrBusy is returned when a workflow is triggered while another one is in flight.
	ErrBusy = errors.New("another workflow is in flight")
	// ErrNoTransactOpts is returned when a transaction is attempted without a signer.
	ErrNoTransactOpts = errors.New("no authorized transactor available")
	// ErrTransactionFailed is returned when a mined transaction has a failed status.
	ErrTransactionFailed = errors.New("transaction failed")
)

// Reason identifies which precondition or conflict stopped a workflow.
type Reason string

const (
	ReasonNone                     Reason = ""
	ReasonMissingInput             Reason = "missing-input"
	ReasonWalletDisconnected       Reason = "wallet-disconnected"
	ReasonContractUnavailable      Reason = "contract-unavailable"
	ReasonEncryptionLoading        Reason = "encryption-loading"
	ReasonEncryptionInitFailed     Reason = "encryption-init-failed"
	ReasonEncryptionNotReady       Reason = "encryption-not-ready"
	ReasonSignerUnavailable        Reason = "signer-unavailable"
	ReasonInvalidIdentity          Reason = "invalid-identity"
	ReasonAlreadyRegistered        Reason = "already-registered"
	ReasonNotRegistered            Reason = "not-registered"
	ReasonAuthorizationUnavailable Reason = "authorization-unavailable"
)

// WorkflowError is what a workflow returns at its boundary.
type WorkflowError struct {
	Action Action
	Kind   ErrorKind
	Reason Reason
	Err    error
}

func (e *WorkflowError) Error() string {
	var b strings.Builder
	if e.Action != "" {
		b.WriteString(string(e.Action))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Reason != ReasonNone {
		b.WriteString(" (")
		b.WriteString(string(e.Reason))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewPreconditionError builds a PreconditionUnmet error for reason.
func NewPreconditionError(action Action, reason Reason, err error) *WorkflowError {
	return &WorkflowError{Action: action, Kind: KindPreconditionUnmet, Reason: reason, Err: err}
}

// NewWorkflowError wraps err with its classified kind and conflict reason.
func NewWorkflowError(action Action, err error) *WorkflowError {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}
	return &WorkflowError{Action: action, Kind: KindOf(err), Reason: conflictReason(err), Err: err}
}

// KindOf returns the taxonomy kind of err. Typed errors are preferred; message
// inspection is only the fallback for errors from libraries outside this module.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}

	switch {
	case errors.Is(err, ErrUserRejected):
		return KindUserRejected
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrTransport):
		return KindTransportFailure
	case errors.Is(err, ErrEncryptionService):
		return KindEncryptionServiceFailure
	case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrNotRegistered):
		return KindContractStateConflict
	}

	// Deadline errors implement net.Error but say nothing about the network.
	if isContextError(err) {
		return KindUnknown
	}
	if IsTransportError(err) {
		return KindTransportFailure
	}

	return ClassifyMessage(err.Error())
}

// ReasonOf returns the precondition or conflict reason carried by err.
func ReasonOf(err error) Reason {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Reason
	}
	return conflictReason(err)
}

func conflictReason(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	switch {
	case errors.Is(err, ErrAlreadyRegistered):
		return ReasonAlreadyRegistered
	case errors.Is(err, ErrNotRegistered):
		return ReasonNotRegistered
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already registered"), strings.Contains(msg, "duplicate"):
		return ReasonAlreadyRegistered
	case strings.Contains(msg, "not registered"):
		return ReasonNotRegistered
	}
	return ReasonNone
}

// ClassifyMessage maps free-form error text from wallets, RPC nodes and the
// relayer SDK to an ErrorKind. Keyword order matters: the first match wins.
func ClassifyMessage(message string) ErrorKind {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, "user rejected", "user denied", "action rejected", "action_rejected"):
		return KindUserRejected
	case containsAny(msg, "insufficient funds", "balance"):
		return KindInsufficientFunds
	case containsAny(msg, "network", "rpc", "connection"):
		return KindTransportFailure
	case containsAny(msg, "encrypt", "decrypt", "fhevm", "relayer"):
		return KindEncryptionServiceFailure
	case containsAny(msg, "already registered", "duplicate", "not registered"):
		return KindContractStateConflict
	}
	return KindUnknown
}

// IsTransportError reports whether err means the RPC endpoint was unreachable.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	if isContextError(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return containsAny(msg,
		"failed to fetch",
		"fetch failed",
		"econnrefused",
		"connection refused",
		"no such host",
		"network_error",
		"dial tcp",
	)
}

// WrapTransport marks err as a transport failure.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
