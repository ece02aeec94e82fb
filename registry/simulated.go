package registry

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/fhe-identity-auth/bindings/identityauth"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

const simulatedGasLimit = 500_000

// SimulatedIdentityRegistry is an in-memory EncryptedIdentityAuth contract
// evaluating comparisons on a development coprocessor. Transactions are signed
// with the caller's TransactOpts and mined immediately, one per block.
type SimulatedIdentityRegistry struct {
	address common.Address
	cp      *coprocessor.Coprocessor
	abi     *abi.ABI
	now     func() time.Time

	mu          sync.Mutex
	identities  map[common.Address]interfaces.Handle
	timestamps  map[common.Address]uint64
	nonces      map[common.Address]uint64
	receipts    map[common.Hash]*types.Receipt
	blockNumber uint64
}

// NewSimulatedIdentityRegistry deploys the simulated contract at address.
// now may be nil.
func NewSimulatedIdentityRegistry(address common.Address, cp *coprocessor.Coprocessor, now func() time.Time) (*SimulatedIdentityRegistry, error) {
	parsed, err := identityauth.ParsedABI()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}

	return &SimulatedIdentityRegistry{
		address:    address,
		cp:         cp,
		abi:        parsed,
		now:        now,
		identities: make(map[common.Address]interfaces.Handle),
		timestamps: make(map[common.Address]uint64),
		nonces:     make(map[common.Address]uint64),
		receipts:   make(map[common.Hash]*types.Receipt),
	}, nil
}

func (s *SimulatedIdentityRegistry) Address() common.Address {
	return s.address
}

func (s *SimulatedIdentityRegistry) IsRegistered(ctx context.Context, account common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.identities[account]
	return ok, nil
}

func (s *SimulatedIdentityRegistry) RegistrationTimestamp(ctx context.Context, account common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamps[account], nil
}

// Register stores the encrypted identity of opts.From. It reverts when the
// account is already registered or the input proof does not verify.
func (s *SimulatedIdentityRegistry) Register(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	if opts == nil {
		return nil, interfaces.ErrNoTransactOpts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[opts.From]; ok {
		return nil, fmt.Errorf("%w: execution reverted", interfaces.ErrAlreadyRegistered)
	}

	if err := s.cp.VerifyInput(handle, proof, s.address, opts.From); err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}

	tx, err := s.signTx(ctx, opts, "register", handle, proof)
	if err != nil {
		return nil, err
	}

	stored, err := s.cp.FromExternal(handle, proof, s.address, opts.From)
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}
	s.cp.Allow(stored, opts.From)

	s.identities[opts.From] = stored
	s.timestamps[opts.From] = uint64(s.now().Unix())
	s.mine(opts.From, tx)
	return tx, nil
}

// Verify compares the submitted identity against the stored one and grants
// the sender access to the encrypted result.
func (s *SimulatedIdentityRegistry) Verify(ctx context.Context, opts *bind.TransactOpts, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	if opts == nil {
		return nil, interfaces.ErrNoTransactOpts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.identities[opts.From]
	if !ok {
		return nil, fmt.Errorf("%w: execution reverted", interfaces.ErrNotRegistered)
	}

	if err := s.cp.VerifyInput(handle, proof, s.address, opts.From); err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}

	tx, err := s.signTx(ctx, opts, "verify", handle, proof)
	if err != nil {
		return nil, err
	}

	submitted, err := s.cp.FromExternal(handle, proof, s.address, opts.From)
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}

	result, err := s.cp.Eq(stored, submitted)
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}
	s.cp.Allow(result, s.address)
	s.cp.Allow(result, opts.From)

	s.mine(opts.From, tx)
	return tx, nil
}

// VerifyResult derives the handle verify would return without evaluating
// anything or touching the access list.
func (s *SimulatedIdentityRegistry) VerifyResult(ctx context.Context, from common.Address, handle interfaces.Handle, proof []byte) (interfaces.Handle, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.Handle{}, err
	}

	s.mu.Lock()
	stored, ok := s.identities[from]
	s.mu.Unlock()
	if !ok {
		return interfaces.Handle{}, fmt.Errorf("%w: execution reverted", interfaces.ErrNotRegistered)
	}

	if err := s.cp.VerifyInput(handle, proof, s.address, from); err != nil {
		return interfaces.Handle{}, fmt.Errorf("execution reverted: %w", err)
	}
	return coprocessor.EqHandle(stored, handle), nil
}

func (s *SimulatedIdentityRegistry) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	receipt, ok := s.receipts[tx.Hash()]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", tx.Hash().Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", interfaces.ErrTransactionFailed, tx.Hash().Hex())
	}
	return receipt, nil
}

// signTx builds and signs the call transaction. The caller holds s.mu.
func (s *SimulatedIdentityRegistry) signTx(ctx context.Context, opts *bind.TransactOpts, method string, handle interfaces.Handle, proof []byte) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.abi.Pack(method, handle, proof)
	if err != nil {
		return nil, fmt.Errorf("could not pack %s call: %w", method, err)
	}

	to := s.address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    s.nonces[opts.From],
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      simulatedGasLimit,
		GasPrice: big.NewInt(1),
		Data:     data,
	})

	signed, err := opts.Signer(opts.From, tx)
	if err != nil {
		return nil, MapError(err)
	}
	return signed, nil
}

// mine records a successful receipt for tx. The caller holds s.mu.
func (s *SimulatedIdentityRegistry) mine(from common.Address, tx *types.Transaction) {
	s.nonces[from]++
	s.blockNumber++

	s.receipts[tx.Hash()] = &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: simulatedGasLimit / 2,
		GasUsed:           simulatedGasLimit / 2,
		TxHash:            tx.Hash(),
		BlockNumber:       new(big.Int).SetUint64(s.blockNumber),
		Logs:              []*types.Log{},
	}
}

// StaticRegistryFactory serves a fixed set of registries keyed by address.
type StaticRegistryFactory map[common.Address]interfaces.IdentityRegistry

// NewStaticRegistryFactory indexes registries by their Address.
func NewStaticRegistryFactory(registries ...interfaces.IdentityRegistry) StaticRegistryFactory {
	f := make(StaticRegistryFactory, len(registries))
	for _, r := range registries {
		f[r.Address()] = r
	}
	return f
}

func (f StaticRegistryFactory) RegistryFor(address common.Address) (interfaces.IdentityRegistry, error) {
	r, ok := f[address]
	if !ok {
		return nil, fmt.Errorf("no registry deployed at %s", address.Hex())
	}
	return r, nil
}
