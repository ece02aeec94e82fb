package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// IdentityRegistry is the EncryptedIdentityAuth contract as seen by the workflow.
type IdentityRegistry interface {
	// Address returns the contract address.
	Address() common.Address

	// IsRegistered reports whether account has stored an encrypted identity.
	IsRegistered(ctx context.Context, account common.Address) (bool, error)

	// RegistrationTimestamp returns the block time (unix seconds) of the registration.
	RegistrationTimestamp(ctx context.Context, account common.Address) (uint64, error)

	// Register submits the encrypted identity handle and its input proof.
	Register(ctx context.Context, opts *bind.TransactOpts, handle Handle, proof []byte) (*types.Transaction, error)

	// Verify submits an encrypted identity for comparison against the stored one.
	Verify(ctx context.Context, opts *bind.TransactOpts, handle Handle, proof []byte) (*types.Transaction, error)

	// VerifyResult replays verify as a read-only call from the given account and
	// returns the encrypted boolean handle it yields. It never changes state.
	VerifyResult(ctx context.Context, from common.Address, handle Handle, proof []byte) (Handle, error)

	// WaitConfirmed blocks until tx is included and returns its receipt.
	// A receipt with failed status is returned together with ErrTransactionFailed.
	WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// IdentityRegistryFactory creates IdentityRegistry instances for contract addresses.
type IdentityRegistryFactory interface {
	RegistryFor(address common.Address) (IdentityRegistry, error)
}
