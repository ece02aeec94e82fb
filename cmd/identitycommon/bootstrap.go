// Package identitycommon wires the chain, wallet, coprocessor and storage
// stack shared by identity-agent and identity-cli.
package identitycommon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/fhe-identity-auth/cmd/flags"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/fhevm"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/networks"
	"github.com/ruteri/fhe-identity-auth/registry"
	"github.com/ruteri/fhe-identity-auth/storage"
	"github.com/ruteri/fhe-identity-auth/wallet"
	"github.com/ruteri/fhe-identity-auth/workflow"
	"github.com/urfave/cli/v2"
)

// DevnetContractAddress is where the simulated contract lives in devnet mode.
// It matches the first contract deployed by the default hardhat account.
var DevnetContractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// Stack is everything a workflow run needs, built from command line flags.
type Stack struct {
	Log        *slog.Logger
	ChainID    interfaces.ChainID
	Resolver   *networks.Resolver
	Registries interfaces.IdentityRegistryFactory
	Engine     *coprocessor.LazyEngine
	Encryption *fhevm.Provider
	Signer     interfaces.Signer
	Authorizer *fhevm.Authorizer

	closers []func()
}

// Setup builds the stack and starts loading the FHE engine in the background.
// confirm is passed to the wallet signer; nil approves every request.
func Setup(cCtx *cli.Context, logger *slog.Logger, confirm wallet.ConfirmFunc) (*Stack, error) {
	ctx := cCtx.Context
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Stack{Log: logger}

	engine, err := newEngine(cCtx, logger)
	if err != nil {
		return nil, err
	}
	s.Engine = engine

	deployments, err := LoadDeployments(cCtx.String(flags.DeploymentsFileFlag.Name))
	if err != nil {
		return nil, err
	}

	devnet := cCtx.Bool(flags.DevnetFlag.Name)
	inputSignerKey := cCtx.String(flags.InputSignerKeyFlag.Name)

	var cp *coprocessor.Coprocessor
	if devnet {
		s.ChainID = interfaces.HardhatChainID
		cp, err = newCoprocessor(engine, s.ChainID, inputSignerKey, devnet, logger)
		if err != nil {
			return nil, err
		}

		simulated, err := registry.NewSimulatedIdentityRegistry(DevnetContractAddress, cp, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create simulated registry: %w", err)
		}
		s.Registries = registry.NewStaticRegistryFactory(simulated)
		deployments = append(deployments, networks.Deployment{
			ChainID:   interfaces.HardhatChainID,
			ChainName: "Hardhat Local",
			Address:   DevnetContractAddress,
		})
		logger.Info("Using in-process devnet", "contract", DevnetContractAddress)
	} else {
		rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
		logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
		ethClient, err := ethclient.DialContext(ctx, rpcAddress)
		if err != nil {
			return nil, fmt.Errorf("could not dial RPC: %w", err)
		}
		s.closers = append(s.closers, ethClient.Close)

		s.ChainID = interfaces.ChainID(cCtx.Uint64(flags.ChainIDFlag.Name))
		if s.ChainID == 0 {
			id, err := ethClient.ChainID(ctx)
			if err != nil {
				// An unreachable node is not fatal: the status checker reports it.
				logger.Warn("Could not read chain id from RPC", "err", err)
			} else {
				s.ChainID = interfaces.ChainID(id.Uint64())
			}
		}

		cp, err = newCoprocessor(engine, s.ChainID, inputSignerKey, devnet, logger)
		if err != nil {
			return nil, err
		}
		s.Registries = registry.NewIdentityRegistryFactory(ethClient, ethClient)
	}
	s.Resolver = networks.NewResolver(deployments...)

	s.Encryption = fhevm.NewProvider(engine, fhevm.NewLocalClient(cp))
	engine.Start(ctx)

	s.Signer, err = loadSigner(cCtx, confirm)
	if err != nil {
		return nil, err
	}

	authStorage, err := newAuthStorage(cCtx, logger)
	if err != nil {
		return nil, err
	}
	s.Authorizer = &fhevm.Authorizer{Storage: authStorage, Log: logger}

	return s, nil
}

// Controller returns a workflow controller over the stack.
func (s *Stack) Controller(cCtx *cli.Context, recorder workflow.Recorder) *workflow.Controller {
	return workflow.NewController(workflow.ControllerConfig{
		Resolver:       s.Resolver,
		Registries:     s.Registries,
		Encryption:     s.Encryption,
		Authorizer:     s.Authorizer,
		Metrics:        recorder,
		Log:            s.Log,
		ConfirmTimeout: cCtx.Duration(flags.ConfirmTimeoutFlag.Name),
	})
}

// Session describes the configured wallet on the resolved chain.
func (s *Stack) Session() interfaces.Session {
	if s.Signer == nil {
		return interfaces.Session{ChainID: s.ChainID}
	}
	return interfaces.Session{Connected: true, Account: s.Signer.Address(), ChainID: s.ChainID}
}

// Registry returns the contract client for the session network, or nil when
// no contract is deployed there.
func (s *Stack) Registry() interfaces.IdentityRegistry {
	address, ok := s.Resolver.Resolve(s.ChainID)
	if !ok {
		return nil
	}
	reg, err := s.Registries.RegistryFor(address)
	if err != nil {
		s.Log.Error("Could not create registry client", "err", err, "contract", address)
		return nil
	}
	return reg
}

// WaitEncryption blocks until the FHE engine is ready, failed, or ctx is done.
func (s *Stack) WaitEncryption(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for !s.Engine.Ready() {
		if _, err := s.Engine.Status(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Stack) Close() {
	for _, c := range s.closers {
		c()
	}
}

func newEngine(cCtx *cli.Context, logger *slog.Logger) (*coprocessor.LazyEngine, error) {
	switch name := cCtx.String(flags.FHEEngineFlag.Name); name {
	case "tfhe":
		return coprocessor.NewLazyEngine(func() (coprocessor.Engine, error) {
			return coprocessor.NewTFHEEngine()
		}, logger), nil
	case "plaintext":
		logger.Warn("Using plaintext coprocessor engine, values are not encrypted")
		return coprocessor.NewLazyEngine(func() (coprocessor.Engine, error) {
			return coprocessor.NewPlaintextEngine(), nil
		}, logger), nil
	default:
		return nil, fmt.Errorf("invalid fhe-engine: %s", name)
	}
}

// newCoprocessor creates the in-process coprocessor. Outside devnet the
// contract only accepts proofs signed by the input signer it trusts, so
// running with a generated key is reported loudly.
func newCoprocessor(engine coprocessor.Engine, chainID interfaces.ChainID, inputSignerKey string, devnet bool, logger *slog.Logger) (*coprocessor.Coprocessor, error) {
	var opts coprocessor.Options
	if inputSignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(inputSignerKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid input-signer-key: %w", err)
		}
		opts.InputSignerKey = key
	}

	cp, err := coprocessor.New(engine, chainID, opts)
	if err != nil {
		return nil, err
	}

	if !devnet && opts.InputSignerKey == nil {
		logger.Warn("Input proofs are signed by a generated coprocessor key; the contract will reject registrations unless it trusts this signer. Set --input-signer-key or use --devnet",
			"inputSigner", cp.InputSigner(), "chainId", chainID)
	}
	return cp, nil
}

// LoadDeployments returns the default deployment table merged with the file at
// path, if any.
func LoadDeployments(path string) ([]networks.Deployment, error) {
	base := append([]networks.Deployment(nil), networks.DefaultDeployments...)
	if path == "" {
		return base, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open deployments file: %w", err)
	}
	defer f.Close()

	return networks.LoadDeployments(f, base)
}

func loadSigner(cCtx *cli.Context, confirm wallet.ConfirmFunc) (interfaces.Signer, error) {
	privateKey := cCtx.String(flags.PrivateKeyFlag.Name)
	keystorePath := cCtx.String(flags.KeystoreFlag.Name)

	var (
		signer *wallet.KeySigner
		err    error
	)
	switch {
	case privateKey != "" && keystorePath != "":
		return nil, errors.New("private-key and keystore are mutually exclusive")
	case privateKey != "":
		signer, err = wallet.NewKeySignerFromHex(privateKey, confirm)
	case keystorePath != "":
		signer, err = wallet.NewKeySignerFromKeystore(keystorePath, cCtx.String(flags.KeystorePasswordFlag.Name), confirm)
	default:
		// No wallet configured: the session is disconnected.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func newAuthStorage(cCtx *cli.Context, logger *slog.Logger) (interfaces.KeyValueStorage, error) {
	factory := storage.NewStorageBackendFactory(logger)
	if passphrase := cCtx.String(flags.SealPassphraseFlag.Name); passphrase != "" {
		factory = factory.WithSealing([]byte(passphrase), 0)
	}

	uris := cCtx.StringSlice(flags.AuthStorageFlag.Name)
	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		locations = append(locations, interfaces.StorageBackendLocation(uri))
	}

	backend, err := factory.CreateMultiBackend(locations)
	if err != nil {
		return nil, fmt.Errorf("could not create authorization storage: %w", err)
	}
	return backend, nil
}

// TerminalConfirm asks on out and reads a y/N answer from in.
func TerminalConfirm(in io.Reader, out io.Writer) wallet.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, prompt wallet.Prompt) bool {
		switch prompt.Kind {
		case wallet.PromptTypedData:
			fmt.Fprintf(out, "Sign %s decryption authorization for %s? [y/N]: ", prompt.Detail, prompt.Account.Hex())
		default:
			fmt.Fprintf(out, "Send transaction from %s (%s)? [y/N]: ", prompt.Account.Hex(), prompt.Detail)
		}

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
