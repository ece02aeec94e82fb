package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockIdentityRegistry mocks the IdentityRegistry interface
type MockIdentityRegistry struct {
	mock.Mock
}

// Address mocks the Address method
func (m *MockIdentityRegistry) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// IsRegistered mocks the IsRegistered method
func (m *MockIdentityRegistry) IsRegistered(ctx context.Context, account common.Address) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

// RegistrationTimestamp mocks the RegistrationTimestamp method
func (m *MockIdentityRegistry) RegistrationTimestamp(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

// Register mocks the Register method
func (m *MockIdentityRegistry) Register(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	args := m.Called(ctx, opts, handle, proof)
	tx, _ := args.Get(0).(*types.Transaction)
	return tx, args.Error(1)
}

// Verify mocks the Verify method
func (m *MockIdentityRegistry) Verify(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	args := m.Called(ctx, opts, handle, proof)
	tx, _ := args.Get(0).(*types.Transaction)
	return tx, args.Error(1)
}

// VerifyResult mocks the VerifyResult method
func (m *MockIdentityRegistry) VerifyResult(ctx context.Context, from common.Address, handle interfaces.Handle, proof []byte) (interfaces.Handle, error) {
	args := m.Called(ctx, from, handle, proof)
	return args.Get(0).(interfaces.Handle), args.Error(1)
}

// WaitConfirmed mocks the WaitConfirmed method
func (m *MockIdentityRegistry) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(ctx, tx)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}
