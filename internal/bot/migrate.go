// internal/bot/migrate.go
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/migration"
	logutil "github.com/rovshanmuradov/pump-meteora/internal/utils/logger"
)

// MigrateResult is the outcome of Migrate. Run is nil for ReconcileOnly
// commands; Reconciliation is set for those and after an unknown confirmation.
type MigrateResult struct {
	Run            *migration.Result
	Reconciliation *migration.Reconciliation
}

func (r *Runner) orchestrator(lookupTable solana.PublicKey, logger *zap.Logger) *migration.Orchestrator {
	opts := migration.Options{
		AmmConfig:   r.ammConfig,
		LookupTable: lookupTable,
		Priority:    r.priority,
		Commitment:  r.commitment,
	}
	if r.journal != nil {
		opts.Store = journalTables{journal: r.journal, events: r.events, logger: r.logger}
	}
	return migration.NewOrchestrator(r.client, r.txManager, r.tables, r.curveConfig, r.programs, opts, logger, r.metrics)
}

// Migrate переносит завершённую кривую в пул DAMM и блокирует LP.
// Если подтверждение не получено, состояние сети перечитывается и
// возвращается вместе с ошибкой.
func (r *Runner) Migrate(ctx context.Context, cmd MigrateCommand) (*MigrateResult, error) {
	logger, err := r.begin(cmd)
	if err != nil {
		return nil, err
	}
	mint, _ := parseMint("mint", cmd.Mint)
	logger = logutil.WithMint(logger, mint)

	lookupTable := solana.PublicKey{}
	switch {
	case cmd.LookupTable != "":
		lookupTable, _ = parseMint("lookup-table", cmd.LookupTable)
	case r.config.LookupTable != "":
		lookupTable, _ = solana.PublicKeyFromBase58(r.config.LookupTable)
	}
	orch := r.orchestrator(lookupTable, logger)

	if cmd.ReconcileOnly {
		rec, err := orch.Reconcile(ctx, mint)
		if err != nil {
			return nil, err
		}
		logReconciliation(logger, rec)
		return &MigrateResult{Reconciliation: rec}, nil
	}

	res, runErr := orch.Run(ctx, mint)
	if runErr == nil {
		logger.Info("✅ Migration completed",
			zap.String("pool", res.Plan.Addresses.Pool.Pool.String()),
			zap.String("signature", res.Signature.String()),
			zap.Bool("already_locked", res.AlreadyLocked))
		r.events.Publish(MigrationFinishedEvent{
			Mint:          mint,
			Pool:          res.Plan.Addresses.Pool.Pool,
			AlreadyLocked: res.AlreadyLocked,
			Signature:     res.Signature,
			Timestamp:     time.Now(),
		})
		return &MigrateResult{Run: res}, nil
	}

	phase := migration.StateInit
	var phaseErr *migration.PhaseError
	if errors.As(runErr, &phaseErr) {
		phase = phaseErr.State
	}
	r.events.Publish(MigrationInterruptedEvent{Mint: mint, Phase: phase, Err: runErr, Timestamp: time.Now()})

	var unknown *blockchain.ConfirmationUnknownError
	if !errors.As(runErr, &unknown) {
		return nil, runErr
	}

	logger.Warn("Confirmation unknown, reading ledger state", zap.String("signature", unknown.Signature.String()))
	rec, err := orch.Reconcile(ctx, mint)
	if err != nil {
		logger.Error("Reconcile failed", zap.Error(err))
		return nil, runErr
	}
	logReconciliation(logger, rec)
	return &MigrateResult{Reconciliation: rec}, runErr
}

func logReconciliation(logger *zap.Logger, rec *migration.Reconciliation) {
	logger.Info("Ledger state",
		zap.String("pool", rec.Addresses.Pool.Pool.String()),
		zap.Bool("vault_a", rec.VaultAExist),
		zap.Bool("vault_b", rec.VaultBExist),
		zap.Bool("pool_exists", rec.PoolExists),
		zap.Bool("locked", rec.Locked),
		zap.Stringer("state", rec.State))
}
