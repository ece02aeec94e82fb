package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainID identifies an EVM network.
type ChainID uint64

const (
	// HardhatChainID is the local development node.
	HardhatChainID ChainID = 31337
	// SepoliaChainID is the Sepolia public testnet.
	SepoliaChainID ChainID = 11155111
)

// IsLocal reports whether the chain is a local development node.
func (id ChainID) IsLocal() bool {
	return id == HardhatChainID
}

// Session describes the connected wallet. It is owned by the caller and passed
// explicitly into every workflow.
type Session struct {
	Connected bool           `json:"connected"`
	Account   common.Address `json:"account"`
	ChainID   ChainID        `json:"chainId"`
}

// RegistrationRecord is the read-only view of the contract state for an account.
type RegistrationRecord struct {
	Account    common.Address `json:"account"`
	Registered bool           `json:"registered"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
}

// StatusReport is the outcome of a registration status check. Warning is set
// only when the RPC endpoint could not be reached.
type StatusReport struct {
	RegistrationRecord
	Warning string `json:"warning,omitempty"`
}

// Action names a user-triggered workflow.
type Action string

const (
	ActionRegister Action = "register"
	ActionVerify   Action = "verify"
)

// WorkflowState is the position of the active workflow.
type WorkflowState int

const (
	StateIdle WorkflowState = iota
	StateEncrypting
	StateSubmitting
	StateAwaitingConfirmation
	StateVerifying
	StateDecrypting
	StateComplete
	StateFailed
)

var workflowStateNames = map[WorkflowState]string{
	StateIdle:                 "idle",
	StateEncrypting:           "encrypting",
	StateSubmitting:           "submitting",
	StateAwaitingConfirmation: "awaiting-confirmation",
	StateVerifying:            "verifying",
	StateDecrypting:           "decrypting",
	StateComplete:             "complete",
	StateFailed:               "failed",
}

// String returns the state name.
func (s WorkflowState) String() string {
	if name, ok := workflowStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s WorkflowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *WorkflowState) UnmarshalText(text []byte) error {
	for state, name := range workflowStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", text)
}

// Terminal reports whether no further transitions happen in this attempt.
func (s WorkflowState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Handle is an opaque 32-byte reference to a ciphertext held by the coprocessor.
type Handle [32]byte

// NewHandleFromHex parses a 0x-prefixed or bare 64-character hex string.
func NewHandleFromHex(source string) (Handle, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return Handle{}, errors.New("invalid handle length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Handle{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var h Handle
	copy(h[:], raw)
	return h, nil
}

// String returns the 0x-prefixed hex form.
func (h Handle) String() string {
	return hexutil.Encode(h[:])
}

// Preview returns the first 20 hex characters, used in progress messages.
func (h Handle) Preview() string {
	return hex.EncodeToString(h[:])[:20]
}

// MarshalText encodes the handle as 0x-prefixed hex.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex handle.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := NewHandleFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// EncryptedInput is the result of encrypting user input for one contract and user.
type EncryptedInput struct {
	Handles    []Handle `json:"handles"`
	InputProof []byte   `json:"inputProof"`
}

// HandleContractPair names a handle to decrypt together with the contract it belongs to.
type HandleContractPair struct {
	Handle          Handle         `json:"handle"`
	ContractAddress common.Address `json:"contractAddress"`
}

// DecryptionAuthorization is a time-bounded, user-signed credential allowing
// the holder of PrivateKey to decrypt handles of ContractAddresses.
type DecryptionAuthorization struct {
	PrivateKey        hexutil.Bytes    `json:"privateKey"`
	PublicKey         hexutil.Bytes    `json:"publicKey"`
	Signature         hexutil.Bytes    `json:"signature"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	UserAddress       common.Address   `json:"userAddress"`
	StartTimestamp    int64            `json:"startTimestamp"`
	DurationDays      int64            `json:"durationDays"`
}

// ExpiresAt returns the end of the validity window.
func (a *DecryptionAuthorization) ExpiresAt() time.Time {
	return time.Unix(a.StartTimestamp, 0).Add(time.Duration(a.DurationDays) * 24 * time.Hour)
}

// IsValidAt reports whether now falls inside the validity window.
func (a *DecryptionAuthorization) IsValidAt(now time.Time) bool {
	start := time.Unix(a.StartTimestamp, 0)
	return !now.Before(start) && now.Before(a.ExpiresAt())
}

// Covers reports whether the authorization was issued for contract.
func (a *DecryptionAuthorization) Covers(contract common.Address) bool {
	for _, c := range a.ContractAddresses {
		if c == contract {
			return true
		}
	}
	return false
}
