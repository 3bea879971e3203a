package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"securechat/internal/app"
	"securechat/internal/logging"
)

var (
	envFile string
	flagCfg app.Config

	appCtx *app.App
	wire   *app.Wire
	logger *logging.ZapLogger
)

// needsKey marks commands that use the device key and so may prompt for a
// passphrase.
const needsKey = "needs-key"

func Execute() error {
	root := &cobra.Command{
		Use:           "securechat",
		Short:         "End-to-end encrypted two-party chat",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(envFile)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), &cfg)

			if cfg.Passphrase == "" && cmd.Annotations[needsKey] == "true" {
				if cfg.Passphrase, err = promptPassphrase(cmd); err != nil {
					return err
				}
			}

			logger, err = logging.New(cfg.LogLevel, false)
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			appCtx = app.New(wire)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			if wire != nil {
				errs = append(errs, wire.Close())
			}
			if logger != nil {
				_ = logger.Sync()
			}
			return errors.Join(errs...)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&envFile, "env", ".env", "dotenv file to load if present")
	pf.StringVar(&flagCfg.Home, "home", "", "data dir (default ~/.securechat)")
	pf.StringVarP(&flagCfg.User, "user", "u", "", "your user id")
	pf.StringVarP(&flagCfg.Passphrase, "passphrase", "p", "", "passphrase protecting the device key")
	pf.StringVar(&flagCfg.Backend, "backend", "", "backend: relay, sqlite or memory")
	pf.StringVar(&flagCfg.SQLitePath, "db", "", "sqlite file shared between local users")
	pf.StringVar(&flagCfg.RelayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	pf.StringVar(&flagCfg.Token, "token", "", "relay bearer token")
	pf.StringVar(&flagCfg.Delivery, "delivery", "", "delivery: push or poll")
	pf.StringVar(&flagCfg.Curve, "curve", "", "key agreement curve: x25519 or p256")
	pf.StringVar(&flagCfg.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(keygenCmd(), fingerprintCmd(), chatCmd(), sendCmd(), historyCmd(), listCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

// applyFlags copies explicitly set flags over the environment config.
func applyFlags(fs *pflag.FlagSet, cfg *app.Config) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("home", &cfg.Home, flagCfg.Home)
	set("user", &cfg.User, flagCfg.User)
	set("passphrase", &cfg.Passphrase, flagCfg.Passphrase)
	set("backend", &cfg.Backend, flagCfg.Backend)
	set("db", &cfg.SQLitePath, flagCfg.SQLitePath)
	set("relay", &cfg.RelayURL, flagCfg.RelayURL)
	set("token", &cfg.Token, flagCfg.Token)
	set("delivery", &cfg.Delivery, flagCfg.Delivery)
	set("curve", &cfg.Curve, flagCfg.Curve)
	set("log-level", &cfg.LogLevel, flagCfg.LogLevel)
}

// promptPassphrase asks on the terminal. Without a terminal the key stays in
// memory for this run only.
func promptPassphrase(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(b), nil
}

func keyAnnotations() map[string]string { return map[string]string{needsKey: "true"} }
