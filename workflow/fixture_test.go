package workflow

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/fhevm"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/networks"
	"github.com/ruteri/fhe-identity-auth/registry"
	"github.com/ruteri/fhe-identity-auth/storage"
	"github.com/ruteri/fhe-identity-auth/wallet"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var contractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// promptCounter counts wallet prompts by kind.
type promptCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (p *promptCounter) confirm(_ context.Context, prompt wallet.Prompt) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[prompt.Kind]++
	return true
}

func (p *promptCounter) count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[kind]
}

type fixture struct {
	cp         *coprocessor.Coprocessor
	client     *fhevm.LocalClient
	registry   *registry.SimulatedIdentityRegistry
	signer     *wallet.KeySigner
	prompts    *promptCounter
	session    interfaces.Session
	authorizer *fhevm.Authorizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cp, err := coprocessor.New(coprocessor.NewPlaintextEngine(), interfaces.HardhatChainID, coprocessor.Options{
		DecryptionVerifier: common.HexToAddress("0xa02Cda4Ca3a71D7C46997716F4283aa851C28812"),
	})
	require.NoError(t, err)

	reg, err := registry.NewSimulatedIdentityRegistry(contractAddress, cp, nil)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	prompts := &promptCounter{counts: make(map[string]int)}
	signer := wallet.NewKeySigner(key, prompts.confirm)

	return &fixture{
		cp:       cp,
		client:   fhevm.NewLocalClient(cp),
		registry: reg,
		signer:   signer,
		prompts:  prompts,
		session: interfaces.Session{
			Connected: true,
			Account:   signer.Address(),
			ChainID:   interfaces.HardhatChainID,
		},
		authorizer: &fhevm.Authorizer{Storage: storage.NewMemoryBackend("authorizations"), Log: discardLogger()},
	}
}

func (f *fixture) env() *Env {
	return &Env{
		Session:    f.session,
		Registry:   f.registry,
		Encryption: fhevm.StaticProvider{Client: f.client},
		Signer:     f.signer,
		Authorizer: f.authorizer,
		Status:     &StatusChecker{Log: discardLogger()},
		Log:        discardLogger(),
	}
}

func (f *fixture) controller(reg interfaces.IdentityRegistry) *Controller {
	return NewController(ControllerConfig{
		Resolver:       networks.NewResolver(networks.Deployment{ChainID: interfaces.HardhatChainID, ChainName: "Hardhat Local", Address: contractAddress}),
		Registries:     registry.NewStaticRegistryFactory(reg),
		Encryption:     fhevm.StaticProvider{Client: f.client},
		Authorizer:     f.authorizer,
		Log:            discardLogger(),
		ConfirmTimeout: 5 * time.Second,
	})
}

// recordingRecorder captures metrics calls.
type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	checks   []string
}

func (r *recordingRecorder) RecordWorkflow(action interfaces.Action, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, string(action)+":"+outcome)
}

func (r *recordingRecorder) RecordStatusCheck(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, result)
}

const mockAny = mock.Anything

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// signedTx returns a transaction signed by the fixture signer.
func signedTx(t *testing.T, f *fixture) *types.Transaction {
	t.Helper()
	opts, err := f.signer.TransactOpts(context.Background(), f.session.ChainID)
	require.NoError(t, err)
	to := contractAddress
	tx, err := opts.Signer(opts.From, types.NewTx(&types.LegacyTx{To: &to, Gas: 21000, GasPrice: big.NewInt(1), Value: big.NewInt(0)}))
	require.NoError(t, err)
	return tx
}
