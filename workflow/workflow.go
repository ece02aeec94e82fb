package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// ErrMissingResult is returned when decryption does not yield the result handle.
var ErrMissingResult = errors.New("decryption did not return the verification result")

// Authorizer obtains a decryption authorization for signer and contracts.
// fhevm.Authorizer implements it.
type Authorizer interface {
	LoadOrSign(ctx context.Context, client interfaces.EncryptionClient, contracts []common.Address, signer interfaces.Signer) (*interfaces.DecryptionAuthorization, error)
}

// ProgressFunc observes state transitions and progress messages.
type ProgressFunc func(state interfaces.WorkflowState, message string)

// Env carries the collaborators of one workflow run. Registry is nil when no
// contract is deployed on the session network and Signer is nil when the
// wallet cannot sign.
type Env struct {
	Session    interfaces.Session
	Registry   interfaces.IdentityRegistry
	Encryption interfaces.EncryptionProvider
	Signer     interfaces.Signer
	Authorizer Authorizer
	Status     *StatusChecker
	Log        *slog.Logger
	OnProgress ProgressFunc
}

// RegisterResult describes a register run. On the already-registered path it
// is returned together with the conflict error.
type RegisterResult struct {
	Handle            interfaces.Handle
	TxHash            common.Hash
	AlreadyRegistered bool
	Status            interfaces.StatusReport
}

// VerifyResult describes a completed verify run.
type VerifyResult struct {
	Handle       interfaces.Handle
	TxHash       common.Hash
	ResultHandle interfaces.Handle
	Match        bool
}

type prepared struct {
	client   interfaces.EncryptionClient
	contract common.Address
	identity uint32
}

// checkPreconditions validates the run in a fixed order and returns the first
// unmet precondition.
func checkPreconditions(action interfaces.Action, env *Env, input string) (*prepared, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonMissingInput, nil)
	}

	if !connected(env.Session) {
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonWalletDisconnected, nil)
	}

	if env.Registry == nil {
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonContractUnavailable, nil)
	}

	var (
		client  interfaces.EncryptionClient
		loading bool
		initErr error
	)
	if env.Encryption != nil {
		client, loading, initErr = env.Encryption.Instance()
	}
	switch {
	case loading:
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonEncryptionLoading, nil)
	case client == nil && initErr != nil:
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonEncryptionInitFailed, initErr)
	case client == nil:
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonEncryptionNotReady, nil)
	}

	if env.Signer == nil {
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonSignerUnavailable, nil)
	}

	identity, err := ParseIdentity(input)
	if err != nil {
		return nil, interfaces.NewPreconditionError(action, interfaces.ReasonInvalidIdentity, err)
	}

	return &prepared{client: client, contract: env.Registry.Address(), identity: identity}, nil
}

// ParseIdentity accepts a decimal integer in the range of the 32-bit encrypted field.
func ParseIdentity(input string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(input), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("identity must be a non-negative integer below 2^32: %w", err)
	}
	return uint32(v), nil
}

// Register encrypts input and stores it as the identity of the session account.
func Register(ctx context.Context, env *Env, input string) (*RegisterResult, error) {
	action := interfaces.ActionRegister
	p, err := checkPreconditions(action, env, input)
	if err != nil {
		return nil, err
	}

	account := env.Session.Account
	result := &RegisterResult{}

	env.progress(interfaces.StateEncrypting, "Encrypting identity...")
	env.progress(interfaces.StateEncrypting, fmt.Sprintf("Encrypting identity %q locally...", strconv.FormatUint(uint64(p.identity), 10)))
	handle, proof, err := encrypt(ctx, p, account)
	if err != nil {
		return nil, interfaces.NewWorkflowError(action, err)
	}
	result.Handle = handle
	env.progress(interfaces.StateEncrypting, fmt.Sprintf("✓ Encrypted! Handle: %s...", handle.Preview()))

	env.progress(interfaces.StateSubmitting, "Sending encrypted identity to blockchain...")
	tx, err := submit(ctx, env, env.Registry.Register, handle, proof)
	if err == nil {
		result.TxHash = tx.Hash()
		env.progress(interfaces.StateAwaitingConfirmation, fmt.Sprintf("Transaction sent: %s. Waiting for confirmation...", tx.Hash().Hex()))
		_, err = env.Registry.WaitConfirmed(ctx, tx)
	}
	if err != nil {
		wfErr := interfaces.NewWorkflowError(action, err)
		if wfErr.Reason == interfaces.ReasonAlreadyRegistered {
			result.AlreadyRegistered = true
			result.Status = env.refreshStatus(ctx)
			result.Status.Registered = true
			return result, wfErr
		}
		return nil, wfErr
	}

	result.Status = env.refreshStatus(ctx)
	result.Status.Registered = true
	env.log().Info("Identity registered", "account", account, "contract", p.contract, "tx", result.TxHash)
	env.progress(interfaces.StateComplete, "✓ Registration successful! Your encrypted identity is now stored on-chain.")
	return result, nil
}

// Verify submits input for comparison against the registered identity and
// decrypts the encrypted boolean outcome.
func Verify(ctx context.Context, env *Env, input string) (*VerifyResult, error) {
	action := interfaces.ActionVerify
	p, err := checkPreconditions(action, env, input)
	if err != nil {
		return nil, err
	}

	account := env.Session.Account
	result := &VerifyResult{}

	env.progress(interfaces.StateEncrypting, "Encrypting identity for verification...")
	env.progress(interfaces.StateEncrypting, fmt.Sprintf("Step 1/3: Encrypting identity %q locally...", strconv.FormatUint(uint64(p.identity), 10)))
	handle, proof, err := encrypt(ctx, p, account)
	if err != nil {
		return nil, interfaces.NewWorkflowError(action, err)
	}
	result.Handle = handle
	env.progress(interfaces.StateEncrypting, fmt.Sprintf("✓ Step 1 Complete: Encrypted! Handle: %s...", handle.Preview()))

	env.progress(interfaces.StateVerifying, "Step 2/3: Comparing encrypted identities on-chain (FHE operation)...")
	tx, err := submit(ctx, env, env.Registry.Verify, handle, proof)
	if err != nil {
		return nil, interfaces.NewWorkflowError(action, err)
	}
	result.TxHash = tx.Hash()

	env.progress(interfaces.StateAwaitingConfirmation, fmt.Sprintf("Transaction sent: %s. Waiting for confirmation...", tx.Hash().Hex()))
	if _, err := env.Registry.WaitConfirmed(ctx, tx); err != nil {
		return nil, interfaces.NewWorkflowError(action, err)
	}

	resultHandle, err := env.Registry.VerifyResult(ctx, account, handle, proof)
	if err != nil {
		return nil, interfaces.NewWorkflowError(action, err)
	}
	result.ResultHandle = resultHandle
	env.progress(interfaces.StateAwaitingConfirmation, fmt.Sprintf("✓ Step 2 Complete: FHE comparison done! Encrypted result handle: %s...", resultHandle.Preview()))

	env.progress(interfaces.StateDecrypting, "Step 3/3: Decrypting verification result locally...")
	match, err := decryptResult(ctx, env, p, resultHandle)
	if err != nil {
		return nil, err
	}
	result.Match = match

	env.log().Info("Identity verified", "account", account, "contract", p.contract, "match", match)
	if match {
		env.progress(interfaces.StateComplete, "✓ Step 3 Complete: Decrypted result = true. Verification successful! Identity matches.")
	} else {
		env.progress(interfaces.StateComplete, "✓ Step 3 Complete: Decrypted result = false. Verification failed. Identity does not match.")
	}
	return result, nil
}

func encrypt(ctx context.Context, p *prepared, account common.Address) (interfaces.Handle, []byte, error) {
	encrypted, err := p.client.CreateEncryptedInput(p.contract, account).Add32(p.identity).Encrypt(ctx)
	if err != nil {
		if interfaces.KindOf(err) == interfaces.KindUnknown {
			err = fmt.Errorf("%w: %w", interfaces.ErrEncryptionService, err)
		}
		return interfaces.Handle{}, nil, err
	}
	if len(encrypted.Handles) != 1 {
		return interfaces.Handle{}, nil, fmt.Errorf("%w: expected one handle, got %d", interfaces.ErrEncryptionService, len(encrypted.Handles))
	}
	return encrypted.Handles[0], encrypted.InputProof, nil
}

type submitFunc func(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error)

func submit(ctx context.Context, env *Env, fn submitFunc, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	opts, err := env.Signer.TransactOpts(ctx, env.Session.ChainID)
	if err != nil {
		return nil, err
	}
	return fn(ctx, opts, handle, proof)
}

// decryptResult fails closed: without an authorization nothing is decrypted,
// and only resultHandle is requested.
func decryptResult(ctx context.Context, env *Env, p *prepared, resultHandle interfaces.Handle) (bool, error) {
	action := interfaces.ActionVerify

	if env.Authorizer == nil {
		return false, &interfaces.WorkflowError{Action: action, Reason: interfaces.ReasonAuthorizationUnavailable, Err: errors.New("no authorization store configured")}
	}
	auth, err := env.Authorizer.LoadOrSign(ctx, p.client, []common.Address{p.contract}, env.Signer)
	if err != nil || auth == nil {
		if err == nil {
			err = errors.New("no authorization returned")
		}
		return false, &interfaces.WorkflowError{Action: action, Kind: interfaces.KindOf(err), Reason: interfaces.ReasonAuthorizationUnavailable, Err: err}
	}

	values, err := p.client.UserDecrypt(ctx, []interfaces.HandleContractPair{{Handle: resultHandle, ContractAddress: p.contract}}, auth)
	if err != nil {
		if interfaces.KindOf(err) == interfaces.KindUnknown {
			err = fmt.Errorf("%w: %w", interfaces.ErrEncryptionService, err)
		}
		return false, interfaces.NewWorkflowError(action, err)
	}

	value, ok := values[resultHandle]
	if !ok {
		return false, interfaces.NewWorkflowError(action, fmt.Errorf("%w: %w", interfaces.ErrEncryptionService, ErrMissingResult))
	}
	return value == 1, nil
}

func (env *Env) refreshStatus(ctx context.Context) interfaces.StatusReport {
	if env.Status == nil {
		return interfaces.StatusReport{RegistrationRecord: interfaces.RegistrationRecord{Account: env.Session.Account}}
	}
	return env.Status.Check(ctx, env.Session, env.Registry)
}

func (env *Env) progress(state interfaces.WorkflowState, message string) {
	if env.OnProgress != nil {
		env.OnProgress(state, message)
	}
}

func (env *Env) log() *slog.Logger {
	if env.Log != nil {
		return env.Log
	}
	return slog.Default()
}
