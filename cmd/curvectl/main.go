// ====================================
// File: cmd/curvectl/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/bot"
	"github.com/rovshanmuradov/pump-meteora/internal/config"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/logger"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
)

const defaultConfigPath = "configs/config.yaml"

// globalOpts holds the flags shared by every command and the app context
// built from them.
type globalOpts struct {
	configPath string
	log        *logger.Logger
	runner     *bot.Runner
}

// flagKeys maps config keys to the flags that may override them. Only flags
// defined on the running command are bound.
var flagKeys = map[string]string{
	"env":          "env",
	"rpc_url":      "rpc",
	"keypair_path": "keypair",
	"slippage_bps": "slippage",
	"lookup_table": "lookup-table",
	"token.name":   "name",
	"token.symbol": "symbol",
	"token.uri":    "uri",
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := &globalOpts{}
	err := newRootCmd(opts).ExecuteContext(ctx)
	if opts.runner != nil {
		if err != nil {
			opts.log.Error("💥 Command failed", zap.Error(err))
		}
		opts.runner.Shutdown()
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *globalOpts) *cobra.Command {
	root := &cobra.Command{
		Use:          "curvectl",
		Short:        "Bonding-curve sale client with Meteora pool migration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file (yaml or json)")
	flags.StringP("env", "e", config.DefaultEnv, "Solana cluster env name")
	flags.StringP("rpc", "r", "", "Solana cluster RPC URL (derived from --env when empty)")
	flags.StringP("keypair", "k", config.DefaultKeypairPath, "Solana wallet keypair path")

	root.AddCommand(
		newConfigCmd(opts),
		newCurveCmd(opts),
		newSwapCmd(opts),
		newPriceCmd(opts),
		newCalculateSwapCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func (o *globalOpts) setup(cmd *cobra.Command) error {
	loader := config.NewLoader()
	for key, name := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := loader.BindFlag(key, flag); err != nil {
				return err
			}
		}
	}

	path := o.configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := loader.Load(path)
	if err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Debug = cfg.DebugLogging
	o.log, err = logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	o.runner, err = bot.NewRunner(cfg, o.log.Logger, metrics.NewCollector())
	if err != nil {
		o.log.Error("Failed to initialize runner", zap.Error(err))
		_ = o.log.Sync()
		return err
	}
	if cfg.JournalFile != "" {
		if err := o.runner.AttachJournal(cfg.JournalFile); err != nil {
			return &config.ConfigurationError{Key: "journal_file", Reason: err.Error()}
		}
	}
	return nil
}

// run executes fn inside the runner's signal-aware context.
func (o *globalOpts) run(cmd *cobra.Command, fn func(ctx context.Context, r *bot.Runner) error) error {
	return o.runner.Run(cmd.Context(), func(ctx context.Context) error {
		return fn(ctx, o.runner)
	})
}
