// =============================
// File: internal/migration/orchestrator.go
// =============================
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/lookuptable"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/meteora"
	"github.com/rovshanmuradov/pump-meteora/internal/provision"
	logutil "github.com/rovshanmuradov/pump-meteora/internal/utils/logger"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
)

// DefaultMinPayerBalance covers the rent of vaults, pool, lookup table and
// escrows plus fees.
const DefaultMinPayerBalance uint64 = 50_000_000

// Sender submits a transaction and waits for its confirmation.
// *transaction.Manager implements it.
type Sender interface {
	SendAndConfirm(ctx context.Context, instructions []solana.Instruction, opts transaction.ExecuteOptions) (solana.Signature, error)
	Payer() solana.PublicKey
}

// TableLoader returns a lookup table holding every required address.
// *lookuptable.Builder implements it.
type TableLoader interface {
	Load(ctx context.Context, address solana.PublicKey, required []solana.PublicKey) (*lookuptable.Table, error)
}

// TableStore remembers the lookup table built for a mint so that a later run
// loads it instead of building another.
type TableStore interface {
	LookupTable(mint solana.PublicKey) (solana.PublicKey, bool)
	RecordLookupTable(mint solana.PublicKey, table *lookuptable.Table)
}

// Options configure an Orchestrator.
type Options struct {
	// AmmConfig is the DAMM config the pool is created under.
	AmmConfig solana.PublicKey
	// LookupTable is an existing table to reuse; zero falls back to Store,
	// then builds a new one.
	LookupTable solana.PublicKey
	// Store is optional.
	Store    TableStore
	Priority transaction.PriorityConfig
	// MinPayerBalance is the lamports the payer must hold before anything is
	// submitted; zero uses DefaultMinPayerBalance.
	MinPayerBalance uint64
	// Commitment for the pool and lock transactions. Preparation always
	// waits for finalized.
	Commitment rpc.CommitmentType
}

// Orchestrator drives the migration of a completed curve into a DAMM pool
// with locked liquidity.
type Orchestrator struct {
	client      blockchain.Client
	sender      Sender
	tables      TableLoader
	curveConfig *bondingcurve.Config
	reader      *bondingcurve.Reader
	provisioner *provision.Provisioner
	programs    meteora.Programs
	options     Options
	logger      *zap.Logger
	metrics     *metrics.Collector
}

func NewOrchestrator(
	client blockchain.Client,
	sender Sender,
	tables TableLoader,
	curveConfig *bondingcurve.Config,
	programs meteora.Programs,
	options Options,
	logger *zap.Logger,
	collector *metrics.Collector,
) *Orchestrator {
	if options.AmmConfig.IsZero() {
		options.AmmConfig = meteora.DefaultPoolConfig
	}
	if options.Commitment == "" {
		options.Commitment = rpc.CommitmentConfirmed
	}
	if options.MinPayerBalance == 0 {
		options.MinPayerBalance = DefaultMinPayerBalance
	}
	return &Orchestrator{
		client:      client,
		sender:      sender,
		tables:      tables,
		curveConfig: curveConfig,
		reader:      bondingcurve.NewReader(client, curveConfig, logger),
		provisioner: provision.NewProvisioner(client, programs, logger),
		programs:    programs,
		options:     options,
		logger:      logger.Named("migration"),
		metrics:     collector,
	}
}

type phase struct {
	from State
	run  func(ctx context.Context, plan *Plan, res *Result) (skipped bool, err error)
}

// Run migrates the curve of mint. Every returned error is a *PhaseError.
// No phase is retried; after a ConfirmationUnknownError call Reconcile
// before running again.
func (o *Orchestrator) Run(ctx context.Context, mint solana.PublicKey) (*Result, error) {
	plan := &Plan{
		Mint:       mint,
		Payer:      o.sender.Payer(),
		Signatures: make(map[State]solana.Signature),
	}
	res := &Result{Plan: plan, States: []State{StateInit}}
	logger := logutil.WithMint(o.logger, mint)
	logger.Info("Starting migration", zap.String("payer", plan.Payer.String()))

	phases := []phase{
		{from: StateInit, run: o.ensureVaults},
		{from: StateVaultsEnsured, run: o.prepareLookupTable},
		{from: StateLookupTableReady, run: o.createPool},
		{from: StatePoolCreated, run: o.lockPool},
	}

	for _, ph := range phases {
		to := ph.from.next()
		end := logutil.TrackPerformance(logger, to.String())
		skipped, err := ph.run(ctx, plan, res)
		elapsed := end()
		if err != nil {
			o.metrics.RecordPhase(to.String(), phaseOutcome(err), elapsed)
			logger.Error("Migration phase failed",
				zap.String("state", ph.from.String()),
				zap.Error(err))
			return nil, &PhaseError{State: ph.from, Err: err}
		}

		outcome := metrics.OutcomeSuccess
		if skipped {
			outcome = metrics.OutcomeSkipped
		}
		o.metrics.RecordPhase(to.String(), outcome, elapsed)
		logger.Info("Migration phase completed",
			zap.String("state", to.String()),
			zap.Bool("skipped", skipped),
			zap.Duration("elapsed", elapsed))
		res.States = append(res.States, to)
	}

	res.States = append(res.States, StateDone)
	res.Signature = plan.Signatures[StatePoolLocked]
	logger.Info("Migration completed",
		zap.String("pool", plan.Addresses.Pool.Pool.String()),
		zap.String("lock_signature", res.Signature.String()))
	return res, nil
}

func phaseOutcome(err error) string {
	var unknown *blockchain.ConfirmationUnknownError
	if errors.As(err, &unknown) {
		return metrics.OutcomeUnknown
	}
	return metrics.OutcomeFailure
}

// resolve reads the curve state and derives every address of the run.
func (o *Orchestrator) resolve(ctx context.Context, plan *Plan) error {
	cfg := *o.curveConfig
	if err := cfg.SetupForToken(plan.Mint.String(), o.logger); err != nil {
		return err
	}
	plan.CurveConfig = &cfg

	config, err := o.reader.FetchConfig(ctx)
	if err != nil {
		return err
	}
	curve, err := o.reader.FetchBondingCurve(ctx, plan.Mint)
	if err != nil {
		return err
	}
	plan.Config = config
	plan.BondingCurve = curve

	addrs, err := DeriveAddresses(o.programs, o.options.AmmConfig, plan.Mint, Participants{
		Payer:           plan.Payer,
		TeamWallet:      config.TeamWallet,
		MigrationWallet: config.MigrationWallet,
		Creator:         curve.Creator,
	})
	if err != nil {
		return fmt.Errorf("failed to derive migration addresses: %w", err)
	}
	plan.Addresses = addrs
	return nil
}

// ensureVaults: Init -> VaultsEnsured.
func (o *Orchestrator) ensureVaults(ctx context.Context, plan *Plan, _ *Result) (bool, error) {
	if err := o.resolve(ctx, plan); err != nil {
		return false, err
	}
	if !plan.BondingCurve.IsCompleted {
		return false, fmt.Errorf("%w: real sol reserves %d, limit %d",
			ErrCurveNotCompleted, plan.BondingCurve.RealSolReserves, plan.Config.CurveLimit)
	}

	addrs := plan.Addresses
	if err := o.readPool(ctx, plan); err != nil {
		return false, err
	}
	if !plan.Locked {
		if err := o.checkPayerBalance(ctx, plan.Payer); err != nil {
			return false, err
		}
	}

	vaultA, vaultB, err := o.provisioner.EnsureVaults(ctx, addrs.Pool.TokenAMint, addrs.Pool.TokenBMint, plan.Payer)
	if err != nil {
		return false, err
	}
	plan.VaultA, plan.VaultB = vaultA, vaultB
	addrs.UseVaultLpMints(vaultA.LpMint, vaultB.LpMint)

	var batch provision.Batch
	batch.Add(&vaultA.Result, &vaultB.Result)
	for _, ata := range []struct{ owner, mint solana.PublicKey }{
		{plan.Payer, addrs.Pool.TokenAMint},
		{plan.Payer, addrs.Pool.TokenBMint},
		{addrs.Lock.FeeReceiver, addrs.Pool.TokenBMint},
	} {
		r, err := o.provisioner.EnsureATA(ctx, ata.owner, ata.mint, plan.Payer)
		if err != nil {
			return false, err
		}
		batch.Add(r)
	}

	plan.Prepare = batch.Instructions()
	if batch.Empty() {
		o.logger.Info("Vaults and token accounts already exist")
		return true, nil
	}

	sig, err := o.sender.SendAndConfirm(ctx, plan.Prepare, transaction.ExecuteOptions{
		Simulate:   true,
		Commitment: rpc.CommitmentFinalized,
		Label:      "migration_prepare",
	})
	if err != nil {
		return false, err
	}
	plan.Signatures[StateVaultsEnsured] = sig
	logutil.WithTransaction(o.logger, sig).Info("Vaults and token accounts created",
		zap.Int("instructions", len(plan.Prepare)))
	return false, nil
}

// prepareLookupTable: VaultsEnsured -> LookupTableReady. The pool and escrows
// are read first: a locked migration needs no table, and lock_pool alone fits
// a legacy transaction.
func (o *Orchestrator) prepareLookupTable(ctx context.Context, plan *Plan, _ *Result) (bool, error) {
	addrs := plan.Addresses
	if plan.Locked {
		o.logger.Info("Liquidity already locked, lookup table not needed")
		return true, nil
	}
	if plan.PoolExists {
		o.logger.Info("Pool already exists, lock_pool is sent without a lookup table",
			zap.String("pool", addrs.Pool.Pool.String()))
		return true, nil
	}

	address := o.options.LookupTable
	if address.IsZero() && o.options.Store != nil {
		if recorded, ok := o.options.Store.LookupTable(plan.Mint); ok {
			o.logger.Info("Using recorded lookup table", zap.String("table", recorded.String()))
			address = recorded
		}
	}

	table, err := o.tables.Load(ctx, address, addrs.LookupTableAddresses(plan.Payer))
	if err != nil {
		return false, err
	}
	plan.Table = table
	if len(table.Signatures) == 0 {
		return true, nil
	}

	sig := table.Signatures[len(table.Signatures)-1]
	plan.Signatures[StateLookupTableReady] = sig
	logutil.WithTransaction(o.logger, sig).Info("Lookup table ready",
		zap.String("table", table.Address.String()),
		zap.Int("addresses", len(table.Addresses)))
	if o.options.Store != nil {
		o.options.Store.RecordLookupTable(plan.Mint, table)
	} else {
		o.logger.Warn("Lookup table built; set lookup_table to reuse it on a rerun",
			zap.String("table", table.Address.String()))
	}
	return false, nil
}

// createPool: LookupTableReady -> PoolCreated. An existing pool means a
// previous run got this far.
func (o *Orchestrator) createPool(ctx context.Context, plan *Plan, res *Result) (bool, error) {
	exists, err := o.exists(ctx, plan.Addresses.Pool.Pool)
	if err != nil {
		return false, err
	}
	if exists {
		o.logger.Info("Pool already exists, skipping creation",
			zap.String("pool", plan.Addresses.Pool.Pool.String()))
		res.PoolExisted = true
		return true, nil
	}

	ix, err := bondingcurve.BuildCreatePoolInstruction(plan.CurveConfig, plan.Payer, plan.Addresses.Pool)
	if err != nil {
		return false, err
	}
	plan.CreatePool = o.options.Priority.WithBudget(ix)

	sig, err := o.sender.SendAndConfirm(ctx, plan.CreatePool, transaction.ExecuteOptions{
		Simulate:      true,
		Commitment:    o.options.Commitment,
		AddressTables: plan.Table.AddressTables(),
		Label:         "create_pool",
	})
	if err != nil {
		return false, err
	}
	plan.Signatures[StatePoolCreated] = sig
	logutil.WithTransaction(o.logger, sig).Info("Pool created",
		zap.String("pool", plan.Addresses.Pool.Pool.String()))
	return false, nil
}

// lockPool: PoolCreated -> PoolLocked. Both escrows present means the LP was
// already locked.
func (o *Orchestrator) lockPool(ctx context.Context, plan *Plan, res *Result) (bool, error) {
	lock := plan.Addresses.Lock
	locked, err := o.allExist(ctx, lock.LockEscrow, lock.LockEscrow1)
	if err != nil {
		return false, err
	}
	if locked {
		o.logger.Info("Lock escrows already exist, skipping lock",
			zap.String("lock_escrow", lock.LockEscrow.String()),
			zap.String("lock_escrow_1", lock.LockEscrow1.String()))
		res.AlreadyLocked = true
		return true, nil
	}

	ix, err := bondingcurve.BuildLockPoolInstruction(plan.CurveConfig, plan.Payer, plan.Addresses.Pool, lock)
	if err != nil {
		return false, err
	}
	plan.LockPool = o.options.Priority.WithBudget(ix)

	// Симуляция уже выполнена, preflight ноды не нужен
	sig, err := o.sender.SendAndConfirm(ctx, plan.LockPool, transaction.ExecuteOptions{
		Simulate:      true,
		SkipPreflight: true,
		Commitment:    o.options.Commitment,
		AddressTables: plan.Table.AddressTables(),
		Label:         "lock_pool",
	})
	if err != nil {
		return false, err
	}
	plan.Signatures[StatePoolLocked] = sig
	logutil.WithTransaction(o.logger, sig).Info("Liquidity locked",
		zap.String("lock_escrow", lock.LockEscrow.String()),
		zap.String("lock_escrow_1", lock.LockEscrow1.String()))
	return false, nil
}

// readPool records whether the pool and both lock escrows already exist.
func (o *Orchestrator) readPool(ctx context.Context, plan *Plan) error {
	addrs := plan.Addresses
	accounts, err := o.client.GetMultipleAccounts(ctx, []solana.PublicKey{
		addrs.Pool.Pool, addrs.Lock.LockEscrow, addrs.Lock.LockEscrow1,
	})
	if err != nil {
		return err
	}
	if len(accounts) != 3 {
		return fmt.Errorf("expected 3 accounts, got %d", len(accounts))
	}
	plan.PoolExists = accounts[0] != nil
	plan.Locked = accounts[1] != nil && accounts[2] != nil
	return nil
}

func (o *Orchestrator) checkPayerBalance(ctx context.Context, payer solana.PublicKey) error {
	balance, err := o.client.GetBalance(ctx, payer, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("failed to get payer balance: %w", err)
	}
	if balance < o.options.MinPayerBalance {
		return fmt.Errorf("%w: payer %s holds %d lamports, migration needs at least %d",
			blockchain.ErrInsufficientFunds, payer, balance, o.options.MinPayerBalance)
	}
	o.logger.Debug("Payer balance checked", zap.Uint64("lamports", balance))
	return nil
}

func (o *Orchestrator) exists(ctx context.Context, address solana.PublicKey) (bool, error) {
	_, err := o.client.GetAccountInfo(ctx, address)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, blockchain.ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (o *Orchestrator) allExist(ctx context.Context, addresses ...solana.PublicKey) (bool, error) {
	accounts, err := o.client.GetMultipleAccounts(ctx, addresses)
	if err != nil {
		return false, err
	}
	for _, acct := range accounts {
		if acct == nil {
			return false, nil
		}
	}
	return len(accounts) == len(addresses), nil
}

// Reconciliation is the ledger view of a migration, read after an uncertain
// outcome.
type Reconciliation struct {
	Addresses   *Addresses
	VaultAExist bool
	VaultBExist bool
	PoolExists  bool
	Locked      bool
	// State is the furthest state the ledger proves was reached.
	State State
}

// Reconcile re-reads the ledger for mint without submitting anything.
func (o *Orchestrator) Reconcile(ctx context.Context, mint solana.PublicKey) (*Reconciliation, error) {
	plan := &Plan{Mint: mint, Payer: o.sender.Payer()}
	if err := o.resolve(ctx, plan); err != nil {
		return nil, err
	}
	addrs := plan.Addresses

	accounts, err := o.client.GetMultipleAccounts(ctx, []solana.PublicKey{
		addrs.VaultA.Vault,
		addrs.VaultB.Vault,
		addrs.Pool.Pool,
		addrs.Lock.LockEscrow,
		addrs.Lock.LockEscrow1,
	})
	if err != nil {
		return nil, err
	}
	if len(accounts) != 5 {
		return nil, fmt.Errorf("expected 5 accounts, got %d", len(accounts))
	}

	rec := &Reconciliation{
		Addresses:   addrs,
		VaultAExist: accounts[0] != nil,
		VaultBExist: accounts[1] != nil,
		PoolExists:  accounts[2] != nil,
		Locked:      accounts[3] != nil && accounts[4] != nil,
	}
	switch {
	case rec.Locked:
		rec.State = StateDone
	case rec.PoolExists:
		rec.State = StatePoolCreated
	case rec.VaultAExist && rec.VaultBExist:
		rec.State = StateVaultsEnsured
	default:
		rec.State = StateInit
	}

	o.logger.Info("Migration reconciled",
		zap.String("mint", mint.String()),
		zap.String("state", rec.State.String()),
		zap.Bool("pool_exists", rec.PoolExists),
		zap.Bool("locked", rec.Locked))
	return rec, nil
}
