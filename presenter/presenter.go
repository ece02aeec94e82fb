package presenter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/networks"
	"github.com/ruteri/fhe-identity-auth/workflow"
)

// Tone selects the styling of a Display.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	ToneProgress Tone = "progress"
	ToneSuccess  Tone = "success"
	ToneWarning  Tone = "warning"
	ToneError    Tone = "error"
)

// Icons used by the displays.
const (
	IconSuccess   = "✓"
	IconWarning   = "⚠️"
	IconError     = "❌"
	IconHourglass = "⏳"
	IconLock      = "🔒"
)

// Display is one rendered message.
type Display struct {
	Icon   string `json:"icon,omitempty"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Tone   Tone   `json:"tone"`
}

// String renders the display as a single line of text.
func (d Display) String() string {
	var b strings.Builder
	if d.Icon != "" {
		b.WriteString(d.Icon)
		b.WriteString(" ")
	}
	b.WriteString(d.Title)
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	return b.String()
}

// TroubleshootingTips is appended to register failures.
const TroubleshootingTips = "\n\nTroubleshooting tips:\n• Ensure your wallet is connected\n• Check if Hardhat node is running (npx hardhat node)\n• Verify you have sufficient ETH for gas fees\n• Make sure you're on the correct network"

// Render maps a controller snapshot to its display.
func Render(snap workflow.Snapshot) Display {
	switch snap.State {
	case interfaces.StateFailed:
		return Describe(snap.Err, snap.ChainID)
	case interfaces.StateComplete:
		return renderComplete(snap)
	case interfaces.StateIdle:
		if snap.Message == "" {
			return Display{Title: "Ready", Tone: ToneNeutral}
		}
	}
	return Display{Icon: IconHourglass, Title: stepTitle(snap.State), Detail: snap.Message, Tone: ToneProgress}
}

func renderComplete(snap workflow.Snapshot) Display {
	if snap.Action == interfaces.ActionVerify {
		switch {
		case snap.VerificationResult == nil:
			return Display{Icon: IconWarning, Title: "Verification finished without a result", Detail: snap.Message, Tone: ToneWarning}
		case *snap.VerificationResult:
			return Display{Icon: IconSuccess, Title: "Identity matches", Detail: snap.Message, Tone: ToneSuccess}
		default:
			return Display{Icon: IconError, Title: "Identity does not match", Detail: snap.Message, Tone: ToneError}
		}
	}
	return Display{Icon: IconSuccess, Title: "Registration successful", Detail: snap.Message, Tone: ToneSuccess}
}

func stepTitle(state interfaces.WorkflowState) string {
	switch state {
	case interfaces.StateEncrypting:
		return "Encrypting"
	case interfaces.StateSubmitting:
		return "Submitting"
	case interfaces.StateAwaitingConfirmation:
		return "Waiting for confirmation"
	case interfaces.StateVerifying:
		return "Verifying"
	case interfaces.StateDecrypting:
		return "Decrypting"
	}
	return "Working"
}

// Describe maps a workflow error to its display. The action is taken from the
// error when it is a *interfaces.WorkflowError; chainID selects the transport
// hint. A nil error renders as a neutral display.
func Describe(err error, chainID interfaces.ChainID) Display {
	if isNil(err) {
		return Display{Title: "No error", Tone: ToneNeutral}
	}

	var (
		action interfaces.Action
		reason interfaces.Reason
		cause  error
		kind   interfaces.ErrorKind
	)
	var wfErr *interfaces.WorkflowError
	if safeAs(err, &wfErr) && wfErr != nil {
		action, reason, cause, kind = wfErr.Action, wfErr.Reason, wfErr.Err, wfErr.Kind
	} else {
		kind = safeKind(err)
		reason = safeReason(err)
		cause = err
	}

	switch {
	case safeIs(err, interfaces.ErrBusy):
		return Display{Icon: IconHourglass, Title: "Another operation is in progress", Detail: "Please wait for it to finish.", Tone: ToneWarning}
	case safeIs(err, workflow.ErrRegistrationDisabled):
		return Display{Icon: IconSuccess, Title: "Already registered", Detail: "Your encrypted identity is already stored on-chain. You can verify it below.", Tone: ToneNeutral}
	case kind == interfaces.KindPreconditionUnmet:
		return describePrecondition(reason, cause)
	}

	d := describeFailure(action, kind, reason, cause, chainID)
	if action == interfaces.ActionRegister {
		d.Detail += TroubleshootingTips
	}
	return d
}

func describePrecondition(reason interfaces.Reason, cause error) Display {
	switch reason {
	case interfaces.ReasonMissingInput:
		return warn("Please enter your identity number", "")
	case interfaces.ReasonWalletDisconnected:
		return warn("Please connect your wallet first", "")
	case interfaces.ReasonContractUnavailable:
		return warn("Contract not deployed on this network", "Please switch to the correct network or deploy the contract.")
	case interfaces.ReasonEncryptionLoading:
		return Display{Icon: IconHourglass, Title: "Please wait while the encryption system is loading", Detail: "This may take a few seconds.", Tone: ToneProgress}
	case interfaces.ReasonEncryptionInitFailed:
		return warn("Encryption system initialization failed",
			fmt.Sprintf("%s. Please check your network connection and try refreshing the page.", Stringify(cause)))
	case interfaces.ReasonEncryptionNotReady:
		return warn("Encryption system is not ready", "Please wait a moment for the encryption system to initialize. If this persists, try refreshing the page.")
	case interfaces.ReasonSignerUnavailable:
		return warn("Wallet signer is not available", "Please reconnect your wallet.")
	case interfaces.ReasonInvalidIdentity:
		return warn("Identity must be a positive number", "Enter a whole number between 0 and 4294967295.")
	}
	return warn("Cannot start", Stringify(cause))
}

func describeFailure(action interfaces.Action, kind interfaces.ErrorKind, reason interfaces.Reason, cause error, chainID interfaces.ChainID) Display {
	if kind == interfaces.KindUnknown && safeIs(cause, context.DeadlineExceeded) {
		return fail("Timed out", "Timed out waiting for confirmation. The transaction may still be mined; check your registration status before trying again.")
	}

	switch kind {
	case interfaces.KindUserRejected:
		return fail("Transaction rejected", "You cancelled the transaction. Please try again if you want to proceed.")
	case interfaces.KindInsufficientFunds:
		return fail("Insufficient funds", "You don't have enough funds to pay for the transaction gas fees.")
	case interfaces.KindTransportFailure:
		if chainID.IsLocal() {
			return fail("Network error", "Cannot connect to Hardhat node. Please make sure it's running with: npx hardhat node")
		}
		return fail("Network error", "Failed to connect to the blockchain network. Please check your internet connection and try again.")
	case interfaces.KindEncryptionServiceFailure:
		if action == interfaces.ActionVerify {
			return fail("Encryption/Decryption error", "Failed to encrypt or decrypt your identity. This might be due to network issues with the encryption service. Please try again.")
		}
		return fail("Encryption error", "Failed to encrypt your identity. This might be due to network issues with the encryption service. Please try again.")
	case interfaces.KindContractStateConflict:
		switch reason {
		case interfaces.ReasonAlreadyRegistered:
			return warn("Already registered", "This identity is already registered. You can verify it using the verification section below.")
		case interfaces.ReasonNotRegistered:
			return warn("Identity not registered", "This identity has not been registered yet. Please register it first using the registration section above.")
		}
	}

	if reason == interfaces.ReasonAuthorizationUnavailable {
		return fail("Failed to get decryption signature", Stringify(cause))
	}

	switch action {
	case interfaces.ActionRegister:
		return fail("Registration failed", Stringify(cause))
	case interfaces.ActionVerify:
		return fail("Verification failed", Stringify(cause))
	}
	return fail("Operation failed", Stringify(cause))
}

// RenderUnavailable is the deployment-missing view for a network without a
// contract.
func RenderUnavailable(chainName string, supported []networks.Deployment) Display {
	if chainName == "" {
		chainName = "Chain ID unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The authentication contract is not available on %s.", chainName)
	if len(supported) > 0 {
		b.WriteString("\n\nSupported Networks:")
		for _, d := range supported {
			fmt.Fprintf(&b, "\n• %s (Chain: %d)", d.ChainName, d.ChainID)
		}
	}
	return Display{Icon: IconWarning, Title: "Contract Not Deployed", Detail: b.String(), Tone: ToneError}
}

// RenderStatus renders a registration status report. The transport warning
// takes precedence.
func RenderStatus(report interfaces.StatusReport) Display {
	if report.Warning != "" {
		return TransportBanner(report.Warning)
	}
	if !report.Registered {
		return Display{Title: "Not registered", Detail: "Register your encrypted identity to get started.", Tone: ToneNeutral}
	}
	d := Display{Icon: IconLock, Title: "Registered", Tone: ToneSuccess}
	if report.Timestamp != nil {
		d.Detail = "Registered on " + report.Timestamp.UTC().Format(time.RFC1123)
	}
	return d
}

// TransportBanner is the warning shown while the RPC endpoint is unreachable.
func TransportBanner(hint string) Display {
	return Display{Icon: IconWarning, Title: "RPC connection problem", Detail: hint, Tone: ToneWarning}
}

// Stringify renders any value, including error values whose Error method panics.
func Stringify(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("%T", v)
		}
	}()

	switch x := v.(type) {
	case nil:
		return "unknown error"
	case error:
		if isNil(x) {
			return "unknown error"
		}
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case string:
		return x
	}
	return fmt.Sprintf("%v", v)
}

func warn(title, detail string) Display {
	return Display{Icon: IconWarning, Title: title, Detail: detail, Tone: ToneWarning}
}

func fail(title, detail string) Display {
	return Display{Icon: IconError, Title: title, Detail: detail, Tone: ToneError}
}

func safeKind(err error) (kind interfaces.ErrorKind) {
	defer func() {
		if recover() != nil {
			kind = interfaces.KindUnknown
		}
	}()
	return interfaces.KindOf(err)
}

func safeReason(err error) (reason interfaces.Reason) {
	defer func() {
		if recover() != nil {
			reason = interfaces.ReasonNone
		}
	}()
	return interfaces.ReasonOf(err)
}

func safeIs(err, target error) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return errors.Is(err, target)
}

func safeAs(err error, target any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return errors.As(err, target)
}

// isNil reports whether err is nil or a typed nil pointer.
func isNil(err error) (res bool) {
	if err == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			res = false
		}
	}()
	return reflect.ValueOf(err).Kind() == reflect.Pointer && reflect.ValueOf(err).IsNil()
}
