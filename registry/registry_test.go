package registry

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// SetupTestChain creates a simulated blockchain with one funded account.
func SetupTestChain() (*simulated.Backend, *bind.TransactOpts, *ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(1337))
	if err != nil {
		return nil, nil, nil, err
	}

	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	genesisAlloc := map[common.Address]types.Account{
		auth.From: {Balance: balance},
	}

	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(8000000))
	return backend, auth, privateKey, nil
}

func TestOnchainIdentityClient_NoContractCode(t *testing.T) {
	backend, auth, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	client, err := NewOnchainIdentityClient(backend.Client(), backend.Client(), testContractAddr)
	require.NoError(t, err)
	assert.Equal(t, testContractAddr, client.Address())

	_, err = client.IsRegistered(context.Background(), auth.From)
	require.Error(t, err)
	assert.ErrorIs(t, err, bind.ErrNoCode)
	assert.False(t, interfaces.IsTransportError(err))

	_, err = client.RegistrationTimestamp(context.Background(), auth.From)
	assert.ErrorIs(t, err, bind.ErrNoCode)

	_, err = client.VerifyResult(context.Background(), auth.From, interfaces.Handle{0x01}, []byte{0x02})
	assert.ErrorIs(t, err, bind.ErrNoCode)
}

func TestOnchainIdentityClient_TransactAndWait(t *testing.T) {
	backend, auth, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	client, err := NewOnchainIdentityClient(backend.Client(), backend.Client(), testContractAddr)
	require.NoError(t, err)

	_, err = client.Register(context.Background(), nil, interfaces.Handle{}, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)

	// With a fixed gas limit bind skips estimation, so a call to an address
	// without code is mined successfully. That is enough to exercise
	// submission and receipt handling.
	auth.GasLimit = 100000
	tx, err := client.Register(context.Background(), auth, interfaces.Handle{0x01}, []byte{0x02})
	require.NoError(t, err)
	backend.Commit()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipt, err := client.WaitConfirmed(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestOnchainIdentityClient_InsufficientFunds(t *testing.T) {
	backend, _, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	poorKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	poor, err := bind.NewKeyedTransactorWithChainID(poorKey, big.NewInt(1337))
	require.NoError(t, err)
	poor.GasLimit = 100000

	client, err := NewOnchainIdentityClient(backend.Client(), backend.Client(), testContractAddr)
	require.NoError(t, err)

	_, err = client.Verify(context.Background(), poor, interfaces.Handle{0x01}, []byte{0x02})
	assert.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
	assert.Equal(t, interfaces.KindInsufficientFunds, interfaces.KindOf(err))
}

func TestOnchainIdentityClient_Unreachable(t *testing.T) {
	rpc, err := ethclient.Dial("http://127.0.0.1:1")
	require.NoError(t, err)
	defer rpc.Close()

	client, err := NewIdentityRegistryFactory(rpc, rpc).RegistryFor(testContractAddr)
	require.NoError(t, err)

	_, err = client.IsRegistered(context.Background(), common.HexToAddress("0x01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrTransport)
	assert.Equal(t, interfaces.KindTransportFailure, interfaces.KindOf(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"already registered revert", errors.New("execution reverted: Already registered"), interfaces.ErrAlreadyRegistered},
		{"not registered revert", errors.New("execution reverted: User not registered"), interfaces.ErrNotRegistered},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), interfaces.ErrInsufficientFunds},
		{"user denied", errors.New("MetaMask Tx Signature: User denied transaction signature."), interfaces.ErrUserRejected},
		{"connection refused", errors.New(`Post "http://127.0.0.1:8545": dial tcp 127.0.0.1:8545: connect: connection refused`), interfaces.ErrTransport},
		{"already typed", interfaces.ErrUserRejected, interfaces.ErrUserRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.err), tt.expected)
		})
	}

	assert.Nil(t, MapError(nil))

	other := errors.New("execution reverted")
	assert.Equal(t, other, MapError(other))
	assert.Equal(t, context.DeadlineExceeded, MapError(context.DeadlineExceeded))
}

func newSimulatedRegistry(t *testing.T) (*SimulatedIdentityRegistry, *coprocessor.Coprocessor) {
	t.Helper()
	cp, err := coprocessor.New(coprocessor.NewPlaintextEngine(), interfaces.HardhatChainID, coprocessor.Options{})
	require.NoError(t, err)

	reg, err := NewSimulatedIdentityRegistry(testContractAddr, cp, func() time.Time { return time.Unix(1700000000, 0) })
	require.NoError(t, err)
	return reg, cp
}

func newTransactor(t *testing.T) *bind.TransactOpts {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(int64(interfaces.HardhatChainID)))
	require.NoError(t, err)
	return auth
}

func TestSimulatedIdentityRegistry_RegisterAndVerify(t *testing.T) {
	ctx := context.Background()
	reg, cp := newSimulatedRegistry(t)
	auth := newTransactor(t)

	registered, err := reg.IsRegistered(ctx, auth.From)
	require.NoError(t, err)
	assert.False(t, registered)

	_, err = reg.Verify(ctx, auth, interfaces.Handle{}, nil)
	assert.ErrorIs(t, err, interfaces.ErrNotRegistered)

	input, err := cp.Encrypt32(testContractAddr, auth.From, []uint32{12345})
	require.NoError(t, err)

	tx, err := reg.Register(ctx, auth, input.Handles[0], input.InputProof)
	require.NoError(t, err)
	assert.Equal(t, testContractAddr, *tx.To())

	receipt, err := reg.WaitConfirmed(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, tx.Hash(), receipt.TxHash)

	registered, err = reg.IsRegistered(ctx, auth.From)
	require.NoError(t, err)
	assert.True(t, registered)

	ts, err := reg.RegistrationTimestamp(ctx, auth.From)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), ts)

	// Registering twice reverts without a transaction.
	again, err := cp.Encrypt32(testContractAddr, auth.From, []uint32{1})
	require.NoError(t, err)
	_, err = reg.Register(ctx, auth, again.Handles[0], again.InputProof)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)

	probe, err := cp.Encrypt32(testContractAddr, auth.From, []uint32{12345})
	require.NoError(t, err)

	replayed, err := reg.VerifyResult(ctx, auth.From, probe.Handles[0], probe.InputProof)
	require.NoError(t, err)
	assert.False(t, cp.IsAllowed(replayed, auth.From), "replay must not grant access")

	vtx, err := reg.Verify(ctx, auth, probe.Handles[0], probe.InputProof)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), vtx.Nonce())
	_, err = reg.WaitConfirmed(ctx, vtx)
	require.NoError(t, err)

	assert.True(t, cp.IsAllowed(replayed, auth.From))
	assert.True(t, cp.IsAllowed(replayed, testContractAddr))
}

func TestSimulatedIdentityRegistry_RejectsForeignProof(t *testing.T) {
	ctx := context.Background()
	reg, cp := newSimulatedRegistry(t)
	auth := newTransactor(t)

	// Encrypted for another user.
	input, err := cp.Encrypt32(testContractAddr, common.HexToAddress("0x02"), []uint32{1})
	require.NoError(t, err)

	_, err = reg.Register(ctx, auth, input.Handles[0], input.InputProof)
	assert.ErrorIs(t, err, coprocessor.ErrInvalidProof)

	registered, err := reg.IsRegistered(ctx, auth.From)
	require.NoError(t, err)
	assert.False(t, registered)

	_, err = reg.Register(ctx, nil, input.Handles[0], input.InputProof)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
}

func TestSimulatedIdentityRegistry_SignerRejects(t *testing.T) {
	ctx := context.Background()
	reg, cp := newSimulatedRegistry(t)
	auth := newTransactor(t)
	auth.Signer = func(common.Address, *types.Transaction) (*types.Transaction, error) {
		return nil, errors.New("user rejected transaction")
	}

	input, err := cp.Encrypt32(testContractAddr, auth.From, []uint32{1})
	require.NoError(t, err)

	_, err = reg.Register(ctx, auth, input.Handles[0], input.InputProof)
	assert.ErrorIs(t, err, interfaces.ErrUserRejected)

	registered, err := reg.IsRegistered(ctx, auth.From)
	require.NoError(t, err)
	assert.False(t, registered)
}
