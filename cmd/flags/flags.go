package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/fhe-identity-auth/common"
	"github.com/ruteri/fhe-identity-auth/httpserver"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	listenAddr := cCtx.String(ListenAddrFlag.Name)
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		// Workflow requests block until the transaction is confirmed.
		WriteTimeout: cCtx.Duration(ConfirmTimeoutFlag.Name) + 30*time.Second,
	}
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"IDENTITY_RPC_ADDR"},
}

var ChainIDFlag = &cli.Uint64Flag{
	Name:    "chain-id",
	Usage:   "network id to use instead of the one reported by the RPC node",
	EnvVars: []string{"IDENTITY_CHAIN_ID"},
}

var DeploymentsFileFlag = &cli.StringFlag{
	Name:    "deployments-file",
	Usage:   "JSON file mapping chain ids to deployed contract addresses",
	EnvVars: []string{"IDENTITY_DEPLOYMENTS_FILE"},
}

var DevnetFlag = &cli.BoolFlag{
	Name:    "devnet",
	Value:   false,
	Usage:   "run against an in-process simulated contract on the local chain id",
	EnvVars: []string{"IDENTITY_DEVNET"},
}

var FHEEngineFlag = &cli.StringFlag{
	Name:    "fhe-engine",
	Value:   "tfhe",
	Usage:   "coprocessor engine: 'tfhe' or 'plaintext'",
	EnvVars: []string{"IDENTITY_FHE_ENGINE"},
}

var InputSignerKeyFlag = &cli.StringFlag{
	Name:    "input-signer-key",
	Usage:   "hex-encoded key the coprocessor signs input proofs with; must be trusted by the contract outside devnet",
	EnvVars: []string{"IDENTITY_INPUT_SIGNER_KEY"},
}

var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded wallet private key",
	EnvVars: []string{"IDENTITY_PRIVATE_KEY"},
}

var KeystoreFlag = &cli.StringFlag{
	Name:    "keystore",
	Usage:   "path to an encrypted JSON keystore file",
	EnvVars: []string{"IDENTITY_KEYSTORE"},
}

var KeystorePasswordFlag = &cli.StringFlag{
	Name:    "keystore-password",
	Usage:   "password of the keystore file",
	EnvVars: []string{"IDENTITY_KEYSTORE_PASSWORD"},
}

var AutoApproveFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Value:   false,
	Usage:   "approve transactions and signatures without prompting",
	EnvVars: []string{"IDENTITY_AUTO_APPROVE"},
}

var AuthStorageFlag = &cli.StringSliceFlag{
	Name:    "auth-storage",
	Value:   cli.NewStringSlice("file://./.identity/authorizations"),
	Usage:   "storage URI for cached decryption authorizations (memory, file, s3, minio, vault); repeat to replicate",
	EnvVars: []string{"IDENTITY_AUTH_STORAGE"},
}

var SealPassphraseFlag = &cli.StringFlag{
	Name:    "seal-passphrase",
	Usage:   "seal cached authorizations with a key derived from this passphrase",
	EnvVars: []string{"IDENTITY_SEAL_PASSPHRASE"},
}

var ConfirmTimeoutFlag = &cli.DurationFlag{
	Name:    "confirm-timeout",
	Value:   5 * time.Minute,
	Usage:   "upper bound on a single register or verify run",
	EnvVars: []string{"IDENTITY_CONFIRM_TIMEOUT"},
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"IDENTITY_LISTEN_ADDR"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"IDENTITY_METRICS_ADDR"},
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

// ClientFlags configure the chain, wallet and encryption stack shared by the
// agent and the CLI.
var ClientFlags = []cli.Flag{
	RpcAddrFlag,
	ChainIDFlag,
	DeploymentsFileFlag,
	DevnetFlag,
	FHEEngineFlag,
	InputSignerKeyFlag,
	PrivateKeyFlag,
	KeystoreFlag,
	KeystorePasswordFlag,
	AuthStorageFlag,
	SealPassphraseFlag,
	ConfirmTimeoutFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
