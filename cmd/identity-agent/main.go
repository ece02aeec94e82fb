package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/fhe-identity-auth/cmd/flags"
	"github.com/ruteri/fhe-identity-auth/cmd/identitycommon"
	"github.com/ruteri/fhe-identity-auth/common"
	"github.com/ruteri/fhe-identity-auth/httpserver"
	"github.com/ruteri/fhe-identity-auth/metrics"
	"github.com/ruteri/fhe-identity-auth/workflow"
	"github.com/urfave/cli/v2"
)

func main() {
	appFlags := append([]cli.Flag{}, flags.ClientFlags...)
	appFlags = append(appFlags, flags.ServerFlags...)
	appFlags = append(appFlags, flags.LogFlags...)
	appFlags = append(appFlags, flags.LogServiceFlagFn("identity-agent"))

	app := &cli.App{
		Name:  "identity-agent",
		Usage: "Serve the encrypted identity register and verify workflows over HTTP",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			// Requests to the agent are the user's approval.
			stack, err := identitycommon.Setup(cCtx, logger, nil)
			if err != nil {
				logger.Error("Failed to set up identity stack", "err", err)
				return err
			}
			defer stack.Close()

			if stack.Signer == nil {
				logger.Warn("No wallet configured, workflows will report a disconnected wallet")
			}

			cfg := flags.ConfigureServer(cCtx, logger)

			var recorder workflow.Recorder = workflow.NopRecorder{}
			var metricsSrv *metrics.MetricsServer
			if cfg.MetricsAddr != "" {
				metricsSrv, err = metrics.New(common.PackageName, cfg.MetricsAddr)
				if err != nil {
					logger.Error("Failed to create metrics server", "err", err)
					return err
				}
				recorder = metricsSrv
			}

			controller := stack.Controller(cCtx, recorder)
			handler := httpserver.NewHandler(controller, stack.Resolver, stack.Encryption, httpserver.StaticSession{
				Signer:  stack.Signer,
				ChainID: stack.ChainID,
			}, logger)

			server, err := httpserver.New(cfg, handler, metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server",
				"chainId", uint64(stack.ChainID),
				"chainName", stack.Resolver.ChainName(stack.ChainID))
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
