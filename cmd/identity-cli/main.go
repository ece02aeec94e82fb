package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ruteri/fhe-identity-auth/clients"
	"github.com/ruteri/fhe-identity-auth/cmd/flags"
	"github.com/ruteri/fhe-identity-auth/cmd/identitycommon"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/presenter"
	"github.com/ruteri/fhe-identity-auth/wallet"
	"github.com/ruteri/fhe-identity-auth/workflow"
	"github.com/urfave/cli/v2"
)

var flagJSON = &cli.BoolFlag{
	Name:  "json",
	Usage: "print results as JSON",
}

var flagAgentAddr = &cli.StringFlag{
	Name:    "agent-addr",
	Usage:   "run status, register and verify through a running identity-agent at this URL",
	EnvVars: []string{"IDENTITY_AGENT_ADDR"},
}

var flagIdentity = &cli.StringFlag{
	Name:    "identity",
	Usage:   "numeric identity to register or verify (0 to 4294967295)",
	EnvVars: []string{"IDENTITY_VALUE"},
}

func main() {
	appFlags := append([]cli.Flag{}, flags.ClientFlags...)
	appFlags = append(appFlags, flags.AutoApproveFlag, flagJSON, flagAgentAddr)
	appFlags = append(appFlags, flags.LogFlags...)
	appFlags = append(appFlags, flags.LogServiceFlagFn("identity-cli"))

	app := &cli.App{
		Name:  "identity-cli",
		Usage: "Register and verify an encrypted identity on-chain",
		Flags: appFlags,
		Commands: []*cli.Command{
			{
				Name:   "networks",
				Usage:  "List supported networks and deployed contracts",
				Action: networksCmd,
			},
			{
				Name:   "status",
				Usage:  "Show the registration status of the wallet account",
				Action: statusCmd,
			},
			{
				Name:      "register",
				Usage:     "Encrypt an identity and register it on-chain",
				ArgsUsage: "[identity]",
				Flags:     []cli.Flag{flagIdentity},
				Action: func(cCtx *cli.Context) error {
					return runWorkflow(cCtx, interfaces.ActionRegister)
				},
			},
			{
				Name:      "verify",
				Usage:     "Verify an identity against the registered one",
				ArgsUsage: "[identity]",
				Flags:     []cli.Flag{flagIdentity},
				Action: func(cCtx *cli.Context) error {
					return runWorkflow(cCtx, interfaces.ActionVerify)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func networksCmd(cCtx *cli.Context) error {
	deployments, err := identitycommon.LoadDeployments(cCtx.String(flags.DeploymentsFileFlag.Name))
	if err != nil {
		return err
	}

	if cCtx.Bool(flagJSON.Name) {
		return printJSON(cCtx.App.Writer, deployments)
	}

	w := tabwriter.NewWriter(cCtx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN ID\tNAME\tCONTRACT")
	for _, d := range deployments {
		contract := "not deployed"
		if d.Deployed() {
			contract = d.Address.Hex()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", d.ChainID, d.ChainName, contract)
	}
	return w.Flush()
}

func statusCmd(cCtx *cli.Context) error {
	if agent := agentClient(cCtx); agent != nil {
		resp, err := agent.Status(cCtx.Context)
		if err != nil {
			return err
		}
		return printDisplay(cCtx, resp.Display, resp.Report)
	}

	logger := flags.SetupLogger(cCtx)
	stack, err := identitycommon.Setup(cCtx, logger, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	session := stack.Session()
	reg := stack.Registry()
	if reg == nil {
		return printDisplay(cCtx, presenter.RenderUnavailable(stack.Resolver.ChainName(session.ChainID), stack.Resolver.SupportedNetworks()), nil)
	}

	checker := &workflow.StatusChecker{Log: logger}
	report := checker.Check(cCtx.Context, session, reg)
	return printDisplay(cCtx, presenter.RenderStatus(report), report)
}

func runWorkflow(cCtx *cli.Context, action interfaces.Action) error {
	identity := cCtx.String(flagIdentity.Name)
	if identity == "" {
		identity = cCtx.Args().First()
	}

	if agent := agentClient(cCtx); agent != nil {
		run := agent.Verify
		if action == interfaces.ActionRegister {
			run = agent.Register
		}
		resp, err := run(cCtx.Context, identity)
		if err != nil && !errors.Is(err, clients.ErrConflict) {
			return err
		}
		return finishWorkflow(cCtx, resp.Display, resp.Snapshot, err != nil || resp.Error != nil)
	}

	logger := flags.SetupLogger(cCtx)

	var confirm wallet.ConfirmFunc
	if !cCtx.Bool(flags.AutoApproveFlag.Name) {
		confirm = identitycommon.TerminalConfirm(os.Stdin, cCtx.App.ErrWriter)
	}

	stack, err := identitycommon.Setup(cCtx, logger, confirm)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx := cCtx.Context
	if timeout := cCtx.Duration(flags.ConfirmTimeoutFlag.Name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// The CLI has nothing else to do while the engine loads.
	if err := stack.WaitEncryption(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Debug("FHE engine did not become ready", "err", err)
	}

	session := stack.Session()
	reg := stack.Registry()
	if reg == nil && session.Connected {
		return finishWorkflow(cCtx, presenter.RenderUnavailable(stack.Resolver.ChainName(session.ChainID), stack.Resolver.SupportedNetworks()), nil, true)
	}

	env := &workflow.Env{
		Session:    session,
		Registry:   reg,
		Encryption: stack.Encryption,
		Signer:     stack.Signer,
		Authorizer: stack.Authorizer,
		Status:     &workflow.StatusChecker{Log: logger},
		Log:        logger,
		OnProgress: func(state interfaces.WorkflowState, message string) {
			if message != "" && !cCtx.Bool(flagJSON.Name) {
				fmt.Fprintf(cCtx.App.ErrWriter, "%s %s\n", presenter.IconHourglass, message)
			}
		},
	}

	var (
		display presenter.Display
		result  any
		runErr  error
	)
	switch action {
	case interfaces.ActionRegister:
		var res *workflow.RegisterResult
		res, runErr = workflow.Register(ctx, env, identity)
		result = res
		if runErr == nil {
			display = presenter.Render(workflow.Snapshot{Action: action, State: interfaces.StateComplete, Message: "Your encrypted identity is now stored on-chain."})
		}
	case interfaces.ActionVerify:
		var res *workflow.VerifyResult
		res, runErr = workflow.Verify(ctx, env, identity)
		result = res
		if runErr == nil {
			display = presenter.Render(workflow.Snapshot{Action: action, State: interfaces.StateComplete, VerificationResult: &res.Match})
		}
	}
	if runErr != nil {
		display = presenter.Describe(runErr, session.ChainID)
	}

	return finishWorkflow(cCtx, display, result, runErr != nil)
}

// finishWorkflow prints the outcome of a run. A failed run exits with status 1;
// in JSON mode the document is still written to stdout.
func finishWorkflow(cCtx *cli.Context, display presenter.Display, result any, failed bool) error {
	if !failed {
		return printDisplay(cCtx, display, result)
	}
	if cCtx.Bool(flagJSON.Name) {
		if err := printDisplay(cCtx, display, result); err != nil {
			return err
		}
		return cli.Exit("", 1)
	}
	return cli.Exit(display.String(), 1)
}

func agentClient(cCtx *cli.Context) *clients.AgentClient {
	addr := cCtx.String(flagAgentAddr.Name)
	if addr == "" {
		return nil
	}
	return clients.NewAgentClient(addr, cCtx.Duration(flags.ConfirmTimeoutFlag.Name)+30*time.Second)
}

func printDisplay(cCtx *cli.Context, display presenter.Display, result any) error {
	if cCtx.Bool(flagJSON.Name) {
		return printJSON(cCtx.App.Writer, struct {
			Display presenter.Display `json:"display"`
			Result  any               `json:"result,omitempty"`
		}{display, result})
	}
	_, err := fmt.Fprintln(cCtx.App.Writer, display.String())
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
