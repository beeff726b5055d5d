package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
	"github.com/hatmlabs/hatm-staker/internal/lib/staking"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *StakerApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// Output is a tty - we're being run interactively vs as a service
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		}))
	} else {
		// not on console - output as json, with key names remapped to what
		// google logging expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli Command instance.
	// signer and clients are set in the initClients method.
	appConfig := &StakerApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "hatm-staker",
		Usage:   "Configuration tool and transaction runner for HATM token staking",
		Version: getVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			// Further bootstrap of the 'app' but within context of 'cli' helper as it
			// has access to flags and options (network to use for eg) already set.
			return appConfig.initClients(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("HATM_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Solana network to use",
				Value:   "mainnet",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("SOLANA_NETWORK"),
			},
			&cli.StringFlag{
				Name:    "owner",
				Usage:   "Wallet address to operate as. Defaults to the first key loaded from the environment.",
				Sources: cli.EnvVars("HATM_OWNER"),
			},
		},
		Commands: []*cli.Command{
			GetStakeCmdOpts(),
			GetInfoCmdOpts(),
			GetReferralCmdOpts(),
		},
	}
	return appConfig
}

type StakerApp struct {
	cliCmd *cli.Command
	logger *slog.Logger
	signer sol.MultipleWalletSigner

	rpcClient *rpc.Client
	staker    *staking.Client
	owner     solana.PublicKey
}

// initClients validates the chosen network, connects the RPC client and
// wires up the staking client + remote API fallback.
func (ac *StakerApp) initClients(ctx context.Context, cmd *cli.Command) error {
	network := cmd.String("network")

	if envfile := cmd.String("envfile"); envfile != "" {
		if err := loadNamedEnvFile(envfile); err != nil {
			return err
		}
	}
	switch network {
	case "mainnet", "devnet", "localnet":
	default:
		return fmt.Errorf("unknown network:%s", network)
	}

	// Now load .env.{network} overrides - ie: .env.localnet containing keys
	// generated by the bootstrap script
	misc.LoadEnvForNetwork(ac.logger, network)

	cfg := sol.GetNetworkConfig(network)
	rpcClient, err := sol.GetRPCClient(ac.logger, cfg)
	if err != nil {
		return err
	}
	ac.rpcClient = rpcClient

	// This loads keys from the environment - and handles all 'local' signing for the app
	ac.signer = sol.NewLocalKeyStore(ac.logger)

	staker, err := staking.New(
		cfg,
		ac.logger,
		rpcClient,
		ac.signer,
		staking.NewRemoteClient(ac.logger, cfg),
		clockwork.NewRealClock(),
	)
	if err != nil {
		return err
	}
	ac.staker = staker

	if ownerStr := cmd.String("owner"); ownerStr != "" {
		owner, err := solana.PublicKeyFromBase58(ownerStr)
		if err != nil {
			return fmt.Errorf("invalid owner address %q: %w", ownerStr, err)
		}
		ac.owner = owner
	}
	return nil
}

// requireOwner returns the wallet to operate as. When --owner wasn't given
// it falls back to the first key the signer loaded.
func (ac *StakerApp) requireOwner() (solana.PublicKey, error) {
	if !ac.owner.IsZero() {
		return ac.owner, nil
	}
	if lister, ok := ac.signer.(sol.AccountLister); ok {
		if accounts := lister.Accounts(); len(accounts) > 0 {
			ac.owner = accounts[0]
			misc.Infof(ac.logger, "no --owner given, using first loaded wallet:%s", ac.owner)
			return ac.owner, nil
		}
	}
	return solana.PublicKey{}, fmt.Errorf("no wallet specified - set --owner, the HATM_OWNER env var, or load a key via HATM_WALLET_KEY1")
}

func loadNamedEnvFile(envFile string) error {
	misc.Infof(App.logger, "loading env file:%s", envFile)
	return godotenv.Load(envFile)
}

// Version is replaced at build time during docker builds w/ 'release' version
// If not defined, we just return the git rev.
var Version string

func getVersionInfo() string {
	if Version != "" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "The version information could not be determined"
	}
	var vcsRev = "(unknown)"
	if fnd := slices.IndexFunc(info.Settings, func(v debug.BuildSetting) bool { return v.Key == "vcs.revision" }); fnd != -1 && len(info.Settings[fnd].Value) >= 7 {
		vcsRev = info.Settings[fnd].Value[0:7]
	}
	return fmt.Sprintf("[%s]", vcsRev)
}
