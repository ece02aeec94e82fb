package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/fhe-identity-auth/bindings/identityauth"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// OnchainIdentityClient implements interfaces.IdentityRegistry for an
// EncryptedIdentityAuth contract deployed on a blockchain.
type OnchainIdentityClient struct {
	contract *identityauth.EncryptedIdentityAuth
	backend  bind.DeployBackend
	address  common.Address
}

// NewOnchainIdentityClient creates a client for the contract at address. It
// requires a ContractBackend for calls and transactions and a DeployBackend
// for waiting on receipts.
func NewOnchainIdentityClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) (*OnchainIdentityClient, error) {
	contract, err := identityauth.NewEncryptedIdentityAuth(address, client)
	if err != nil {
		return nil, err
	}

	return &OnchainIdentityClient{
		contract: contract,
		backend:  backend,
		address:  address,
	}, nil
}

func (c *OnchainIdentityClient) Address() common.Address {
	return c.address
}

// IsRegistered reports whether account has stored an encrypted identity.
func (c *OnchainIdentityClient) IsRegistered(ctx context.Context, account common.Address) (bool, error) {
	registered, err := c.contract.IsRegistered(&bind.CallOpts{Context: ctx}, account)
	if err != nil {
		return false, MapError(err)
	}
	return registered, nil
}

// RegistrationTimestamp returns the registration block time in unix seconds.
func (c *OnchainIdentityClient) RegistrationTimestamp(ctx context.Context, account common.Address) (uint64, error) {
	ts, err := c.contract.GetRegistrationTimestamp(&bind.CallOpts{Context: ctx}, account)
	if err != nil {
		return 0, MapError(err)
	}
	if !ts.IsUint64() {
		return 0, fmt.Errorf("registration timestamp out of range: %s", ts)
	}
	return ts.Uint64(), nil
}

// Register sends register(handle, proof). Gas estimation runs the call first,
// so contract reverts surface here rather than as a failed receipt.
func (c *OnchainIdentityClient) Register(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	if opts == nil {
		return nil, interfaces.ErrNoTransactOpts
	}

	tx, err := c.contract.Register(withContext(ctx, opts), handle, proof)
	if err != nil {
		return nil, MapError(err)
	}
	return tx, nil
}

// Verify sends verify(handle, proof).
func (c *OnchainIdentityClient) Verify(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	if opts == nil {
		return nil, interfaces.ErrNoTransactOpts
	}

	tx, err := c.contract.Verify(withContext(ctx, opts), handle, proof)
	if err != nil {
		return nil, MapError(err)
	}
	return tx, nil
}

// VerifyResult runs verify as an eth_call from the given account and returns
// the encrypted boolean handle.
func (c *OnchainIdentityClient) VerifyResult(ctx context.Context, from common.Address, handle interfaces.Handle, proof []byte) (interfaces.Handle, error) {
	result, err := c.contract.VerifyCall(&bind.CallOpts{Context: ctx, From: from}, handle, proof)
	if err != nil {
		return interfaces.Handle{}, MapError(err)
	}
	return interfaces.Handle(result), nil
}

// WaitConfirmed waits for tx to be mined.
func (c *OnchainIdentityClient) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, MapError(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", interfaces.ErrTransactionFailed, tx.Hash().Hex())
	}
	return receipt, nil
}

// MapError translates go-ethereum and RPC errors into the interfaces
// sentinels. Errors already carrying a sentinel are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		interfaces.ErrUserRejected,
		interfaces.ErrInsufficientFunds,
		interfaces.ErrTransport,
		interfaces.ErrAlreadyRegistered,
		interfaces.ErrNotRegistered,
		interfaces.ErrNoTransactOpts,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already registered"):
		return fmt.Errorf("%w: %v", interfaces.ErrAlreadyRegistered, err)
	case strings.Contains(msg, "not registered"):
		return fmt.Errorf("%w: %v", interfaces.ErrNotRegistered, err)
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", interfaces.ErrInsufficientFunds, err)
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return fmt.Errorf("%w: %v", interfaces.ErrUserRejected, err)
	}

	if interfaces.IsTransportError(err) {
		return interfaces.WrapTransport(err)
	}
	return err
}

func withContext(ctx context.Context, opts *bind.TransactOpts) *bind.TransactOpts {
	scoped := *opts
	scoped.Context = ctx
	return &scoped
}

// IdentityRegistryFactory creates OnchainIdentityClient instances for
// different contract addresses.
type IdentityRegistryFactory struct {
	client  bind.ContractBackend
	backend bind.DeployBackend
}

// NewIdentityRegistryFactory creates a factory sharing one RPC connection.
func NewIdentityRegistryFactory(client bind.ContractBackend, backend bind.DeployBackend) *IdentityRegistryFactory {
	return &IdentityRegistryFactory{client: client, backend: backend}
}

// RegistryFor returns a client for the contract at address.
func (f *IdentityRegistryFactory) RegistryFor(address common.Address) (interfaces.IdentityRegistry, error) {
	return NewOnchainIdentityClient(f.client, f.backend, address)
}
