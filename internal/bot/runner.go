// internal/bot/runner.go
package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/lookuptable"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/pump-meteora/internal/config"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/meteora"
	logutil "github.com/rovshanmuradov/pump-meteora/internal/utils/logger"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
	"github.com/rovshanmuradov/pump-meteora/internal/wallet"
)

// Runner is the application context every command runs against. It is built
// once from the loaded config and passed around by pointer.
type Runner struct {
	logger      *zap.Logger
	config      *config.Config
	client      blockchain.Client
	wallet      *wallet.Wallet
	txManager   *transaction.Manager
	curveConfig *bondingcurve.Config
	reader      *bondingcurve.Reader
	tables      *lookuptable.Builder
	programs    meteora.Programs
	ammConfig   solana.PublicKey
	priority    transaction.PriorityConfig
	commitment  rpc.CommitmentType
	metrics     *metrics.Collector
	events      *EventBus
	journal     *Journal
	shutdown    *ShutdownHandler
	shutdownCh  chan os.Signal
}

// NewRunner загружает ключ и подключается к RPC из cfg.
func NewRunner(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*Runner, error) {
	w, err := wallet.Load(cfg.KeypairPath)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "keypair_path", Reason: err.Error()}
	}
	client := solbc.NewClient(cfg.RPCURL, rpc.CommitmentType(cfg.Commitment), logger)
	return NewRunnerWithClient(cfg, client, w, logger, collector)
}

// NewRunnerWithClient собирает Runner поверх готового клиента и кошелька.
func NewRunnerWithClient(
	cfg *config.Config,
	client blockchain.Client,
	w *wallet.Wallet,
	logger *zap.Logger,
	collector *metrics.Collector,
) (*Runner, error) {
	if client == nil || w == nil {
		return nil, &config.ConfigurationError{Key: "rpc_url", Reason: "client is not initialized"}
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "program_id", Reason: "not a valid public key"}
	}
	curveConfig, err := bondingcurve.NewConfig(programID)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "program_id", Reason: err.Error()}
	}
	ammConfig := meteora.DefaultPoolConfig
	if cfg.AmmConfig != "" {
		if ammConfig, err = solana.PublicKeyFromBase58(cfg.AmmConfig); err != nil {
			return nil, &config.ConfigurationError{Key: "amm_config", Reason: "not a valid public key"}
		}
	}

	commitment := rpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	computeUnits := cfg.ComputeUnitLimit
	if computeUnits == 0 {
		computeUnits = transaction.DefaultComputeUnits
	}

	manager := transaction.NewManager(client, w.PublicKey, w, logger, transaction.Config{
		ConfirmationTime: cfg.ConfirmTimeout(),
		PollInterval:     cfg.ConfirmPoll(),
		Commitment:       commitment,
	}, collector)

	r := &Runner{
		logger:      logger.Named("runner"),
		config:      cfg,
		client:      client,
		wallet:      w,
		txManager:   manager,
		curveConfig: curveConfig,
		reader:      bondingcurve.NewReader(client, curveConfig, logger),
		tables:      lookuptable.NewBuilder(client, manager, logger, cfg.LookupTableSettle(), collector),
		programs:    meteora.DefaultPrograms(),
		ammConfig:   ammConfig,
		priority:    transaction.PriorityConfig{ComputeUnits: computeUnits, PriorityFee: cfg.PriorityFee},
		commitment:  commitment,
		metrics:     collector,
		events:      NewEventBus(logger),
		shutdown:    NewShutdownHandler(logger, defaultShutdownTimeout),
		shutdownCh:  make(chan os.Signal, 1),
	}

	// LIFO: метрики пишутся до финального Sync логгера.
	r.shutdown.AddFunc("logger", func() error { return syncLogger(logger) })
	if cfg.MetricsFile != "" {
		r.shutdown.AddFunc("metrics", func() error { return collector.WriteTextfile(cfg.MetricsFile) })
	}
	return r, nil
}

// Payer returns the public key that pays for and signs every transaction.
func (r *Runner) Payer() solana.PublicKey {
	return r.wallet.PublicKey
}

// Events returns the bus confirmed operations are published on.
func (r *Runner) Events() *EventBus {
	return r.events
}

// OnShutdown registers closer to run on Shutdown, before the logger is synced.
func (r *Runner) OnShutdown(name string, closer io.Closer) {
	r.shutdown.Add(name, closer)
}

// Config returns the configuration the runner was built from.
func (r *Runner) Config() *config.Config {
	return r.config
}

// Run выполняет fn, отменяя контекст по SIGINT/SIGTERM.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(r.shutdownCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("📡 Signal received: " + sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	r.logCluster()
	return fn(runCtx)
}

func (r *Runner) logCluster() {
	r.logger.Info("Solana cluster",
		zap.String("env", r.config.Env),
		zap.String("keypair_path", r.config.KeypairPath),
		zap.String("rpc_url", r.config.RPCURL),
		zap.String("payer", r.wallet.String()))
}

// begin проверяет команду и возвращает логгер операции с correlation_id.
func (r *Runner) begin(cmd Command) (*zap.Logger, error) {
	logger := logutil.WithOperation(r.logger, cmd.GetType())
	if err := cmd.Validate(); err != nil {
		logger.Error("Command validation failed", zap.Error(err))
		return nil, fmt.Errorf("command validation failed: %w", err)
	}
	logger.Info("Executing command")
	return logger, nil
}

// forMint returns a copy of the curve config set up for mint.
func (r *Runner) forMint(mint solana.PublicKey) (*bondingcurve.Config, error) {
	cfg := *r.curveConfig
	if err := cfg.SetupForToken(mint.String(), r.logger); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Runner) executeOptions(label string, signers ...solana.PrivateKey) transaction.ExecuteOptions {
	return transaction.ExecuteOptions{
		Simulate:   true,
		Commitment: r.commitment,
		Signers:    signers,
		Label:      label,
	}
}

// Shutdown закрывает зарегистрированные сервисы: метрики, затем логгер.
func (r *Runner) Shutdown() {
	r.logger.Info("👋 Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := r.shutdown.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown completed with errors: %v\n", err)
	}
}

func syncLogger(logger *zap.Logger) error {
	err := logger.Sync()
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	switch err.Error() {
	case "sync /dev/stdout: invalid argument",
		"sync /dev/stdout: inappropriate ioctl for device",
		"sync /dev/stderr: inappropriate ioctl for device":
		return nil
	}
	return err
}
