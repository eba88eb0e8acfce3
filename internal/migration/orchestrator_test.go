package migration

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/blockchaintest"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/lookuptable"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/meteora"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
)

var testProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

type fakeTables struct {
	calls int
	err   error
}

func (f *fakeTables) Load(_ context.Context, _ solana.PublicKey, required []solana.PublicKey) (*lookuptable.Table, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &lookuptable.Table{
		Address:    solana.NewWallet().PublicKey(),
		Addresses:  required,
		Signatures: []solana.Signature{{7}},
	}, nil
}

type fixture struct {
	ledger    *blockchaintest.Ledger
	tables    *fakeTables
	orch      *Orchestrator
	manager   *transaction.Manager
	curveCfg  *bondingcurve.Config
	collector *metrics.Collector
	mint      solana.PublicKey
	payer     solana.PrivateKey
	config    *bondingcurve.ConfigAccount
	addrs     *Addresses
}

func hasDiscriminator(tx *solana.Transaction, disc [8]byte) bool {
	for _, ix := range blockchaintest.Instructions(tx) {
		if bytes.HasPrefix(ix.Data, disc[:]) {
			return true
		}
	}
	return false
}

// applyEffects mimics the programs: vault initialize and ATA creation create
// accounts, create_pool creates the pool, lock_pool the escrows.
func (f *fixture) applyEffects(l *blockchaintest.Ledger, tx *solana.Transaction) {
	for _, ix := range blockchaintest.Instructions(tx) {
		switch {
		case ix.ProgramID.Equals(meteora.VaultProgramID) && len(ix.Accounts) > 4:
			data, _ := meteora.EncodeVaultState(&meteora.VaultState{
				Enabled:   1,
				TokenMint: ix.Accounts[3],
				LpMint:    ix.Accounts[4],
			})
			l.PutAccount(ix.Accounts[0], meteora.VaultProgramID, data)
		case ix.ProgramID.Equals(solana.SPLAssociatedTokenAccountProgramID) && len(ix.Accounts) > 1:
			l.PutAccount(ix.Accounts[1], solana.TokenProgramID, make([]byte, 165))
		case ix.ProgramID.Equals(lookuptable.ProgramID) && len(ix.Accounts) > 1 && len(ix.Data) >= 4:
			applyLookupTable(l, ix)
		}
	}
	if hasDiscriminator(tx, bondingcurve.CreatePoolDiscriminator) {
		l.PutAccount(f.addrs.Pool.Pool, meteora.AmmProgramID, []byte{1})
	}
	if hasDiscriminator(tx, bondingcurve.LockPoolDiscriminator) {
		l.PutAccount(f.addrs.Lock.LockEscrow, meteora.AmmProgramID, []byte{1})
		l.PutAccount(f.addrs.Lock.LockEscrow1, meteora.AmmProgramID, []byte{1})
	}
}

// applyLookupTable mimics the lookup table program: create stores an empty
// active table, extend appends the addresses from the instruction data.
func applyLookupTable(l *blockchaintest.Ledger, ix blockchaintest.DecodedInstruction) {
	table := ix.Accounts[0]
	switch binary.LittleEndian.Uint32(ix.Data[:4]) {
	case 0:
		authority := ix.Accounts[1]
		l.PutAccount(table, lookuptable.ProgramID, lookuptable.EncodeState(&lookuptable.State{
			DeactivationSlot: math.MaxUint64,
			Authority:        &authority,
		}))
	case 2:
		data, ok := l.AccountData(table)
		if !ok || len(ix.Data) < 12 {
			return
		}
		state, err := lookuptable.DecodeState(data)
		if err != nil {
			return
		}
		n := int(binary.LittleEndian.Uint64(ix.Data[4:12]))
		for i := 0; i < n && 12+(i+1)*32 <= len(ix.Data); i++ {
			state.Addresses = append(state.Addresses, solana.PublicKeyFromBytes(ix.Data[12+i*32:12+(i+1)*32]))
		}
		l.PutAccount(table, lookuptable.ProgramID, lookuptable.EncodeState(state))
	}
}

func newFixture(t *testing.T, completed bool) *fixture {
	t.Helper()
	f := &fixture{
		ledger:    blockchaintest.NewLedger(),
		tables:    &fakeTables{},
		collector: metrics.NewCollector(),
		mint:      solana.NewWallet().PublicKey(),
		payer:     solana.NewWallet().PrivateKey,
	}

	curveCfg, err := bondingcurve.NewConfig(testProgramID)
	require.NoError(t, err)

	f.config = &bondingcurve.ConfigAccount{
		TeamWallet:      solana.NewWallet().PublicKey(),
		MigrationWallet: solana.NewWallet().PublicKey(),
		CurveLimit:      62_000_000_000,
		Initialized:     true,
	}
	configData, err := bondingcurve.EncodeConfigAccount(f.config)
	require.NoError(t, err)
	f.ledger.SetAccount(curveCfg.GlobalConfig, testProgramID, configData)

	creator := solana.NewWallet().PublicKey()
	curveAddr, _, err := bondingcurve.DeriveBondingCurve(testProgramID, f.mint)
	require.NoError(t, err)
	curveData, err := bondingcurve.EncodeBondingCurveAccount(&bondingcurve.BondingCurveAccount{
		VirtualSolReserves:   92_000_000_000,
		VirtualTokenReserves: 280_000_000_000_000,
		RealSolReserves:      62_000_000_000,
		IsCompleted:          completed,
		Creator:              creator,
	})
	require.NoError(t, err)
	f.ledger.SetAccount(curveAddr, testProgramID, curveData)

	f.addrs, err = DeriveAddresses(meteora.DefaultPrograms(), meteora.DefaultPoolConfig, f.mint, Participants{
		Payer:           f.payer.PublicKey(),
		TeamWallet:      f.config.TeamWallet,
		MigrationWallet: f.config.MigrationWallet,
		Creator:         creator,
	})
	require.NoError(t, err)

	f.ledger.OnSend = func(l *blockchaintest.Ledger, tx *solana.Transaction) (interface{}, error) {
		f.applyEffects(l, tx)
		return nil, nil
	}

	manager := transaction.NewManager(f.ledger, f.payer.PublicKey(), blockchaintest.KeySigner{Key: f.payer}, zap.NewNop(),
		transaction.Config{
			ConfirmationTime: 50 * time.Millisecond,
			PollInterval:     time.Millisecond,
			MaxSendElapsed:   time.Second,
		}, f.collector)

	f.manager = manager
	f.curveCfg = curveCfg
	f.orch = f.newOrchestrator(f.tables, Options{})
	return f
}

func (f *fixture) newOrchestrator(tables TableLoader, opts Options) *Orchestrator {
	opts.Priority = transaction.PriorityConfig{ComputeUnits: transaction.DefaultComputeUnits}
	return NewOrchestrator(f.ledger, f.manager, tables, f.curveCfg, meteora.DefaultPrograms(), opts, zap.NewNop(), f.collector)
}

// withTableProgram switches the fixture to a real lookup table builder.
func (f *fixture) withTableProgram(opts Options) {
	builder := lookuptable.NewBuilder(f.ledger, f.manager, zap.NewNop(), 0, f.collector)
	f.orch = f.newOrchestrator(builder, opts)
}

type memoryTables map[solana.PublicKey]solana.PublicKey

func (m memoryTables) LookupTable(mint solana.PublicKey) (solana.PublicKey, bool) {
	table, ok := m[mint]
	return table, ok
}

func (m memoryTables) RecordLookupTable(mint solana.PublicKey, table *lookuptable.Table) {
	m[mint] = table.Address
}

func TestRun_VisitsStatesInOrder(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.orch.Run(context.Background(), f.mint)
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateInit, StateVaultsEnsured, StateLookupTableReady, StatePoolCreated, StatePoolLocked, StateDone,
	}, res.States)

	sent := f.ledger.Sent()
	require.Len(t, sent, 3)
	assert.True(t, hasDiscriminator(sent[1], bondingcurve.CreatePoolDiscriminator))
	assert.True(t, hasDiscriminator(sent[2], bondingcurve.LockPoolDiscriminator))
	assert.Equal(t, sent[2].Signatures[0], res.Signature)

	// 2 хранилища + 3 ATA
	assert.Len(t, res.Plan.Prepare, 5)
	assert.Len(t, res.Plan.CreatePool, 2)
	assert.Equal(t, f.addrs.Pool.Pool, res.Plan.Addresses.Pool.Pool)
	assert.False(t, res.PoolExisted)
	assert.True(t, f.ledger.HasAccount(f.addrs.FeeReceiverTokenB))
	assert.Equal(t, 1, f.tables.calls)
}

func TestRun_SecondRunSubmitsNothing(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.orch.Run(context.Background(), f.mint)
	require.NoError(t, err)
	sentAfterFirst := len(f.ledger.Sent())

	res, err := f.orch.Run(context.Background(), f.mint)
	require.NoError(t, err)
	assert.Len(t, f.ledger.Sent(), sentAfterFirst)
	assert.Empty(t, res.Plan.Prepare)
	assert.True(t, res.PoolExisted)
	assert.True(t, res.AlreadyLocked)
	assert.True(t, res.Signature.IsZero())
	assert.Equal(t, StateDone, res.States[len(res.States)-1])
	assert.Equal(t, 1, f.tables.calls)
	assert.Nil(t, res.Plan.Table)
}

func TestRun_RerunWithTableProgram(t *testing.T) {
	f := newFixture(t, true)
	f.withTableProgram(Options{})
	ctx := context.Background()

	first, err := f.orch.Run(ctx, f.mint)
	require.NoError(t, err)
	// prepare, таблица, create_pool, lock_pool
	require.Len(t, f.ledger.Sent(), 4)
	require.NotNil(t, first.Plan.Table)
	assert.Len(t, first.Plan.Table.Addresses, 27)

	second, err := f.orch.Run(ctx, f.mint)
	require.NoError(t, err)
	assert.Len(t, f.ledger.Sent(), 4)
	assert.True(t, second.AlreadyLocked)
	assert.Equal(t, []solana.PublicKey{first.Plan.Table.Address}, f.ledger.AccountsOwnedBy(lookuptable.ProgramID))
}

func TestRun_ResumeAfterPoolCreatedSkipsTable(t *testing.T) {
	f := newFixture(t, true)
	f.withTableProgram(Options{})
	failLock := true
	f.ledger.OnSend = func(l *blockchaintest.Ledger, tx *solana.Transaction) (interface{}, error) {
		if failLock && hasDiscriminator(tx, bondingcurve.LockPoolDiscriminator) {
			return map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 6004}}}, nil
		}
		f.applyEffects(l, tx)
		return nil, nil
	}
	ctx := context.Background()

	_, err := f.orch.Run(ctx, f.mint)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, StatePoolCreated, phaseErr.State)
	sentAfterFirst := len(f.ledger.Sent())

	failLock = false
	res, err := f.orch.Run(ctx, f.mint)
	require.NoError(t, err)
	assert.True(t, res.PoolExisted)
	assert.False(t, res.AlreadyLocked)

	sent := f.ledger.Sent()[sentAfterFirst:]
	require.Len(t, sent, 1)
	assert.True(t, hasDiscriminator(sent[0], bondingcurve.LockPoolDiscriminator))
	assert.Len(t, f.ledger.AccountsOwnedBy(lookuptable.ProgramID), 1)
	assert.True(t, f.ledger.HasAccount(f.addrs.Lock.LockEscrow))
}

func TestRun_RecordedTableIsReused(t *testing.T) {
	f := newFixture(t, true)
	store := memoryTables{}
	f.withTableProgram(Options{Store: store})
	failPool := true
	f.ledger.OnSimulate = func(tx *solana.Transaction) *blockchain.SimulationResult {
		if failPool && hasDiscriminator(tx, bondingcurve.CreatePoolDiscriminator) {
			return &blockchain.SimulationResult{Err: "InsufficientFundsForRent"}
		}
		return nil
	}
	ctx := context.Background()

	_, err := f.orch.Run(ctx, f.mint)
	require.Error(t, err)
	recorded, ok := store[f.mint]
	require.True(t, ok)

	failPool = false
	res, err := f.orch.Run(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, recorded, res.Plan.Table.Address)
	assert.Empty(t, res.Plan.Table.Signatures)
	assert.Equal(t, []solana.PublicKey{recorded}, f.ledger.AccountsOwnedBy(lookuptable.ProgramID))
}

func TestRun_PayerWithoutFunds(t *testing.T) {
	f := newFixture(t, true)
	f.ledger.SetBalance(f.payer.PublicKey(), DefaultMinPayerBalance-1)

	_, err := f.orch.Run(context.Background(), f.mint)
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
	assert.Empty(t, f.ledger.Sent())
	assert.Zero(t, f.tables.calls)
}

func TestRun_LockedMigrationIgnoresPayerBalance(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.orch.Run(context.Background(), f.mint)
	require.NoError(t, err)

	f.ledger.SetBalance(f.payer.PublicKey(), 0)
	res, err := f.orch.Run(context.Background(), f.mint)
	require.NoError(t, err)
	assert.True(t, res.AlreadyLocked)
}

func TestRun_UsesExistingVaultLpMint(t *testing.T) {
	f := newFixture(t, true)
	legacyLp := solana.NewWallet().PublicKey()
	data, err := meteora.EncodeVaultState(&meteora.VaultState{TokenMint: solana.WrappedSol, LpMint: legacyLp})
	require.NoError(t, err)
	f.ledger.SetAccount(f.addrs.VaultA.Vault, meteora.VaultProgramID, data)

	res, err := f.orch.Run(context.Background(), f.mint)
	require.NoError(t, err)
	assert.Equal(t, legacyLp, res.Plan.Addresses.Pool.AVaultLpMint)
	assert.Contains(t, res.Plan.Table.Addresses, legacyLp)
	assert.Len(t, res.Plan.Prepare, 4)
}

func TestRun_SimulationFailureAbortsBeforeSend(t *testing.T) {
	f := newFixture(t, true)
	f.ledger.OnSimulate = func(tx *solana.Transaction) *blockchain.SimulationResult {
		if !hasDiscriminator(tx, bondingcurve.CreatePoolDiscriminator) {
			return nil
		}
		return &blockchain.SimulationResult{
			Err: map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 6010}}},
			Logs: []string{
				"Program log: AnchorError occurred. Error Code: CurveNotCompleted. Error Number: 6010. Error Message: Curve is not completed.",
			},
		}
	}

	_, err := f.orch.Run(context.Background(), f.mint)
	require.Error(t, err)

	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, StateLookupTableReady, phaseErr.State)

	var simErr *blockchain.SimulationError
	require.True(t, errors.As(err, &simErr))
	var rejection *blockchain.ProgramRejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, 6010, rejection.Code)

	for _, tx := range f.ledger.Sent() {
		assert.False(t, hasDiscriminator(tx, bondingcurve.CreatePoolDiscriminator))
	}
}

func TestRun_UnknownConfirmation(t *testing.T) {
	g := newFixture(t, true)
	g.ledger.Unconfirmed = true
	// хранилища и ATA уже созданы, подготовительной транзакции не будет
	for _, addr := range []solana.PublicKey{
		g.addrs.VaultA.Vault, g.addrs.VaultB.Vault,
	} {
		data, err := meteora.EncodeVaultState(&meteora.VaultState{LpMint: solana.NewWallet().PublicKey()})
		require.NoError(t, err)
		g.ledger.SetAccount(addr, meteora.VaultProgramID, data)
	}
	for _, addr := range []solana.PublicKey{
		g.addrs.Pool.PayerTokenA, g.addrs.Pool.PayerTokenB, g.addrs.FeeReceiverTokenB,
	} {
		g.ledger.SetAccount(addr, solana.TokenProgramID, make([]byte, 165))
	}

	_, err := g.orch.Run(context.Background(), g.mint)
	require.Error(t, err)

	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, StateLookupTableReady, phaseErr.State)
	var unknown *blockchain.ConfirmationUnknownError
	require.True(t, errors.As(err, &unknown))
	assert.False(t, unknown.Signature.IsZero())
	assert.Len(t, g.ledger.Sent(), 1)
}

func TestRun_OnChainFailureIsProgramRejection(t *testing.T) {
	f := newFixture(t, true)
	f.ledger.OnSend = func(l *blockchaintest.Ledger, tx *solana.Transaction) (interface{}, error) {
		if hasDiscriminator(tx, bondingcurve.LockPoolDiscriminator) {
			return map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 6004}}}, nil
		}
		f.applyEffects(l, tx)
		return nil, nil
	}

	_, err := f.orch.Run(context.Background(), f.mint)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, StatePoolCreated, phaseErr.State)
	var rejection *blockchain.ProgramRejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, 6004, rejection.Code)
	assert.Equal(t, 1, rejection.InstructionIndex)
}

func TestRun_CurveNotCompleted(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.orch.Run(context.Background(), f.mint)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, StateInit, phaseErr.State)
	assert.ErrorIs(t, err, ErrCurveNotCompleted)
	assert.Empty(t, f.ledger.Sent())
	assert.Zero(t, f.tables.calls)
}

func TestRun_LookupTableFailure(t *testing.T) {
	f := newFixture(t, true)
	f.tables.err = &blockchain.ConfirmationUnknownError{}

	_, err := f.orch.Run(context.Background(), f.mint)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, StateVaultsEnsured, phaseErr.State)
	assert.Len(t, f.ledger.Sent(), 1)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	rec, err := f.orch.Reconcile(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, StateInit, rec.State)
	assert.False(t, rec.PoolExists)

	_, err = f.orch.Run(ctx, f.mint)
	require.NoError(t, err)

	rec, err = f.orch.Reconcile(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, StateDone, rec.State)
	assert.True(t, rec.PoolExists)
	assert.True(t, rec.Locked)
}

func TestDeriveAddresses_LookupTableSet(t *testing.T) {
	f := newFixture(t, true)
	payer := f.payer.PublicKey()
	set := f.addrs.LookupTableAddresses(payer)
	assert.Len(t, set, 27)
	assert.Len(t, lookuptable.Dedup(set), 27)
	assert.Contains(t, set, f.addrs.Pool.Pool)
	assert.Contains(t, set, payer)

	again, err := DeriveAddresses(meteora.DefaultPrograms(), meteora.DefaultPoolConfig, f.mint, Participants{
		Payer:           payer,
		TeamWallet:      f.config.TeamWallet,
		MigrationWallet: f.config.MigrationWallet,
		Creator:         f.addrs.Lock.CreatorReceiver,
	})
	require.NoError(t, err)
	assert.Equal(t, f.addrs, again)
	assert.NotEqual(t, again.Lock.LockEscrow, again.Lock.LockEscrow1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "lookup_table_ready", StateLookupTableReady.String())
	assert.Equal(t, StateDone, StatePoolLocked.next())
	assert.Equal(t, StateDone, StateDone.next())
}
