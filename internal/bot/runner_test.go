package bot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/blockchaintest"
	"github.com/rovshanmuradov/pump-meteora/internal/config"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/migration"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
	"github.com/rovshanmuradov/pump-meteora/internal/wallet"
)

const testProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

var testReserves = bondingcurve.ReserveSnapshot{
	VirtualSolReserves:   30_000_000_000,
	VirtualTokenReserves: 1_073_000_000_000_000,
	RealSolReserves:      10_000_000_000,
	RealTokenReserves:    793_100_000_000_000,
}

func testCurveSettings() config.CurveSettings {
	return config.CurveSettings{
		TeamWallet:                  "Br4NUsLoHRgAcxTBsDwgnejnjqMe5bkyio1YCrM3gWM2",
		MigrationWallet:             "DQ8fi6tyN9MPD5bpSpUXxKd9FVRY2WcnoniVEgs6StEW",
		InitBondingCurve:            100,
		BuyFeePercent:               0.69,
		SellFeePercent:              0.69,
		MigrationFeePercent:         0.69,
		MinLamports:                 15_000_000_000,
		MaxLamports:                 20_000_000_000,
		TokenSupply:                 1_000_000_000,
		TokenDecimals:               6,
		InitialVirtualTokenReserves: 1_073_000_000_000_000,
		InitialVirtualSolReserves:   30_000_000_000,
		InitialRealTokenReserves:    793_100_000_000_000,
		InitialMeteoraTokenReserves: 206_900_000_000_000,
		InitialMeteoraSolAmount:     62_000_000_000,
		CurveLimit:                  62_000_000_000,
	}
}

type testEnv struct {
	runner *Runner
	ledger *blockchaintest.Ledger
	global *bondingcurve.ConfigAccount
}

func newTestEnv(t *testing.T, withConfig bool) *testEnv {
	t.Helper()
	ledger := blockchaintest.NewLedger()
	w, err := wallet.NewWallet(base58.Encode(solana.NewWallet().PrivateKey))
	require.NoError(t, err)

	cfg := &config.Config{
		Env:              "devnet",
		RPCURL:           rpc.DevNet_RPC,
		KeypairPath:      "unused.json",
		ProgramID:        testProgramID,
		Commitment:       "confirmed",
		ConfirmTimeoutMs: 200,
		ConfirmPollMs:    1,
		SlippageBps:      100,
	}
	runner, err := NewRunnerWithClient(cfg, ledger, w, zap.NewNop(), metrics.NewCollector())
	require.NoError(t, err)

	env := &testEnv{runner: runner, ledger: ledger}
	if withConfig {
		env.global, err = NewConfigAccount(testCurveSettings(), w.PublicKey)
		require.NoError(t, err)
		data, err := bondingcurve.EncodeConfigAccount(env.global)
		require.NoError(t, err)
		ledger.SetAccount(runner.curveConfig.GlobalConfig, runner.curveConfig.ProgramID, data)
	}
	return env
}

func (e *testEnv) putCurve(t *testing.T, s bondingcurve.ReserveSnapshot, completed bool) solana.PublicKey {
	t.Helper()
	mint := solana.NewWallet().PublicKey()
	addr, _, err := bondingcurve.DeriveBondingCurve(e.runner.curveConfig.ProgramID, mint)
	require.NoError(t, err)
	data, err := bondingcurve.EncodeBondingCurveAccount(&bondingcurve.BondingCurveAccount{
		VirtualSolReserves:   s.VirtualSolReserves,
		VirtualTokenReserves: s.VirtualTokenReserves,
		RealSolReserves:      s.RealSolReserves,
		RealTokenReserves:    s.RealTokenReserves,
		TokenTotalSupply:     1_000_000_000_000_000,
		IsCompleted:          completed,
		Creator:              solana.NewWallet().PublicKey(),
	})
	require.NoError(t, err)
	e.ledger.SetAccount(addr, e.runner.curveConfig.ProgramID, data)
	e.putMint(t, mint, testMintDecimals)
	return mint
}

// testMintDecimals differs from token.decimals in the config on purpose.
const testMintDecimals = 9

func (e *testEnv) putMint(t *testing.T, mint solana.PublicKey, decimals uint8) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bin.NewBinEncoder(&buf).Encode(&token.Mint{
		Supply:        1_000_000_000_000_000,
		Decimals:      decimals,
		IsInitialized: true,
	}))
	e.ledger.SetAccount(mint, solana.TokenProgramID, buf.Bytes())
}

func findInstruction(tx *solana.Transaction, disc [8]byte) (blockchaintest.DecodedInstruction, bool) {
	for _, ix := range blockchaintest.Instructions(tx) {
		if bytes.HasPrefix(ix.Data, disc[:]) {
			return ix, true
		}
	}
	return blockchaintest.DecodedInstruction{}, false
}

func hasProgram(tx *solana.Transaction, program solana.PublicKey) bool {
	for _, ix := range blockchaintest.Instructions(tx) {
		if ix.ProgramID.Equals(program) {
			return true
		}
	}
	return false
}

func TestCommands_Validate(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	tests := []struct {
		name  string
		cmd   Command
		field string
	}{
		{"swap ok", SwapCommand{Mint: mint, Amount: 1, Style: 1}, ""},
		{"swap style", SwapCommand{Mint: mint, Amount: 1, Style: 2}, "style"},
		{"swap zero amount", SwapCommand{Mint: mint, Amount: 0, Style: 0}, "amount"},
		{"swap negative amount", SwapCommand{Mint: mint, Amount: -5, Style: 0}, "amount"},
		{"swap bad mint", SwapCommand{Mint: "xyz", Amount: 1}, "token"},
		{"swap slippage", SwapCommand{Mint: mint, Amount: 1, SlippageBps: 10_000}, "slippage"},
		{"price missing mint", PriceCommand{}, "mint"},
		{"calculate amount", CalculateSwapCommand{Mint: mint, Amount: -1}, "amount"},
		{"migrate bad table", MigrateCommand{Mint: mint, LookupTable: "bad"}, "lookup-table"},
		{"migrate ok", MigrateCommand{Mint: mint}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(LaunchCommand{}.Validate(), &cfgErr))
	assert.Equal(t, "token.name", cfgErr.Key)
}

func TestNewRunnerWithClient_ConfigurationError(t *testing.T) {
	w, err := wallet.NewWallet(base58.Encode(solana.NewWallet().PrivateKey))
	require.NoError(t, err)

	_, err = NewRunnerWithClient(&config.Config{ProgramID: "nope"}, blockchaintest.NewLedger(), w, zap.NewNop(), nil)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "program_id", cfgErr.Key)

	_, err = NewRunnerWithClient(&config.Config{ProgramID: testProgramID}, nil, w, zap.NewNop(), nil)
	require.True(t, errors.As(err, &cfgErr))
}

func TestNewConfigAccount(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	acct, err := NewConfigAccount(testCurveSettings(), authority)
	require.NoError(t, err)

	assert.Equal(t, authority, acct.Authority)
	assert.Equal(t, authority, acct.MigrationAuthority)
	feeBps, err := acct.BuyFeeBps()
	require.NoError(t, err)
	assert.Equal(t, uint64(69), feeBps)
	assert.True(t, acct.LamportAmountConfig.Contains(15_000_000_000))
	assert.False(t, acct.LamportAmountConfig.Contains(21_000_000_000))
	assert.True(t, acct.TokenDecimalsConfig.Contains(6))
	assert.False(t, acct.Initialized)

	settings := testCurveSettings()
	settings.TeamWallet = "bad"
	_, err = NewConfigAccount(settings, authority)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "curve.team_wallet", cfgErr.Key)
}

func TestCreateConfig(t *testing.T) {
	env := newTestEnv(t, false)

	res, err := env.runner.CreateConfig(context.Background(), CreateConfigCommand{Settings: testCurveSettings()})
	require.NoError(t, err)

	sent := env.ledger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, sent[0].Signatures[0], res.Signature)
	assert.Equal(t, env.runner.curveConfig.GlobalConfig, res.GlobalConfig)

	ix, ok := findInstruction(sent[0], bondingcurve.CreateConfigDiscriminator)
	require.True(t, ok)
	assert.Equal(t, env.runner.Payer(), ix.Accounts[0])
	assert.Equal(t, env.runner.curveConfig.GlobalConfig, ix.Accounts[1])
	assert.True(t, hasProgram(sent[0], solana.ComputeBudget))
}

func TestLaunch(t *testing.T) {
	env := newTestEnv(t, true)

	res, err := env.runner.Launch(context.Background(), LaunchCommand{Token: config.TokenSettings{
		Name: "Test", Symbol: "TST", URI: "https://example.org/t.json",
		Decimals: 6, Supply: 1_000_000_000, ReserveLamports: 15_000_000_000,
	}})
	require.NoError(t, err)

	sent := env.ledger.Sent()
	require.Len(t, sent, 1)
	// плательщик и новый mint
	assert.Len(t, sent[0].Signatures, 2)
	assert.NoError(t, sent[0].VerifySignatures())

	curve, _, err := bondingcurve.DeriveBondingCurve(env.runner.curveConfig.ProgramID, res.Mint)
	require.NoError(t, err)
	assert.Equal(t, curve, res.BondingCurve)

	ix, ok := findInstruction(sent[0], bondingcurve.LaunchDiscriminator)
	require.True(t, ok)
	assert.Equal(t, env.global.TeamWallet, ix.Accounts[2])
	assert.Equal(t, res.Mint, ix.Accounts[3])
}

func TestLaunch_OutsideConfigRange(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.runner.Launch(context.Background(), LaunchCommand{Token: config.TokenSettings{
		Name: "Test", Symbol: "TST", Decimals: 6, Supply: 1_000_000_000, ReserveLamports: 1,
	}})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "token.reserve_lamports", vErr.Field)
	assert.Empty(t, env.ledger.Sent())
}

func TestSwap_Buy(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)

	res, err := env.runner.Swap(context.Background(), SwapCommand{
		Mint: mint.String(), Amount: 2_000_000_000, Style: 0, SlippageBps: 100,
	})
	require.NoError(t, err)

	expected, err := bondingcurve.QuoteBuy(testReserves, 2_000_000_000, 69)
	require.NoError(t, err)
	assert.Equal(t, expected, res.Quote)
	assert.Equal(t, bondingcurve.MinimumReceive(expected.AmountOut, 100), res.MinimumReceive)
	assert.Equal(t, uint8(testMintDecimals), res.TokenDecimals)

	sent := env.ledger.Sent()
	require.Len(t, sent, 1)
	assert.True(t, hasProgram(sent[0], solana.SPLAssociatedTokenAccountProgramID))

	ix, ok := findInstruction(sent[0], bondingcurve.SwapDiscriminator)
	require.True(t, ok)
	require.Len(t, ix.Data, 25)
	assert.Equal(t, uint64(2_000_000_000), binary.LittleEndian.Uint64(ix.Data[8:16]))
	assert.Equal(t, byte(0), ix.Data[16])
	assert.Equal(t, res.MinimumReceive, binary.LittleEndian.Uint64(ix.Data[17:25]))
	assert.Equal(t, env.global.TeamWallet, ix.Accounts[2])
}

func TestSwap_SellSkipsATA(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)
	ata, err := env.runner.wallet.GetATA(mint)
	require.NoError(t, err)
	env.ledger.SetTokenAccount(ata, mint, env.runner.Payer(), 1_000_000_000)

	res, err := env.runner.Swap(context.Background(), SwapCommand{
		Mint: mint.String(), Amount: 1_000_000_000, Style: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, bondingcurve.SwapSell, res.Direction)
	assert.LessOrEqual(t, res.Quote.AmountOut, testReserves.RealSolReserves)
	assert.Equal(t, res.Quote.AmountOut, res.MinimumReceive)

	sent := env.ledger.Sent()
	require.Len(t, sent, 1)
	assert.False(t, hasProgram(sent[0], solana.SPLAssociatedTokenAccountProgramID))
}

func TestSwap_SellWithoutTokens(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)
	ata, err := env.runner.wallet.GetATA(mint)
	require.NoError(t, err)
	env.ledger.SetTokenAccount(ata, mint, env.runner.Payer(), 999)

	_, err = env.runner.Swap(context.Background(), SwapCommand{Mint: mint.String(), Amount: 1_000, Style: 1})
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)

	// без ATA баланс считается нулевым
	other := env.putCurve(t, testReserves, false)
	_, err = env.runner.Swap(context.Background(), SwapCommand{Mint: other.String(), Amount: 1, Style: 1})
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
	assert.Empty(t, env.ledger.Sent())
}

func TestSwap_BuyWithoutLamports(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)
	env.ledger.SetBalance(env.runner.Payer(), 1_000)

	_, err := env.runner.Swap(context.Background(), SwapCommand{Mint: mint.String(), Amount: 1_001, Style: 0})
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
	assert.Empty(t, env.ledger.Sent())
}

func TestSwap_CompletedCurve(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, true)

	_, err := env.runner.Swap(context.Background(), SwapCommand{Mint: mint.String(), Amount: 1, Style: 0})
	assert.ErrorIs(t, err, ErrCurveCompleted)
	assert.Empty(t, env.ledger.Sent())
}

func TestSwap_SimulationFailureSendsNothing(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)
	env.ledger.OnSimulate = func(*solana.Transaction) *blockchain.SimulationResult {
		return &blockchain.SimulationResult{
			Err:  map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 6003}}},
			Logs: []string{"Program log: AnchorError occurred. Error Code: SlippageExceeded. Error Number: 6003. Error Message: Slippage exceeded."},
		}
	}

	_, err := env.runner.Swap(context.Background(), SwapCommand{Mint: mint.String(), Amount: 1_000_000, Style: 0})
	var simErr *blockchain.SimulationError
	require.True(t, errors.As(err, &simErr))
	assert.Empty(t, env.ledger.Sent())
}

func TestCurrentPrice(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)

	res, err := env.runner.CurrentPrice(context.Background(), PriceCommand{Mint: mint.String()})
	require.NoError(t, err)

	expected, err := bondingcurve.PriceDecimal(testReserves)
	require.NoError(t, err)
	assert.True(t, expected.Equal(res.Price))
	assert.True(t, res.Price.IsPositive())
	assert.Equal(t, "16.13", res.Progress.String())
	assert.False(t, res.MigrationEligible)
	assert.Equal(t, testReserves, res.Reserves)
}

func TestCurrentPrice_DivisionByZero(t *testing.T) {
	env := newTestEnv(t, true)
	empty := testReserves
	empty.VirtualSolReserves = 0
	mint := env.putCurve(t, empty, false)

	_, err := env.runner.CurrentPrice(context.Background(), PriceCommand{Mint: mint.String()})
	assert.ErrorIs(t, err, bondingcurve.ErrDivisionByZero)
}

func TestCalculateSwap_FeeBeforeQuote(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)

	res, err := env.runner.CalculateSwap(context.Background(), CalculateSwapCommand{Mint: mint.String(), Amount: 1000})
	require.NoError(t, err)
	require.True(t, res.Computable)
	assert.Equal(t, uint64(69), res.FeeBps)
	// 1000 - 0.69% = 993.1, в целых единицах 993
	assert.Equal(t, uint64(993), res.Quote.AmountIn)

	direct, err := bondingcurve.QuoteTokensOut(testReserves, 993)
	require.NoError(t, err)
	assert.Equal(t, direct.AmountOut, res.Quote.AmountOut)
}

func TestCalculateSwap_NotComputableIsSoft(t *testing.T) {
	env := newTestEnv(t, true)
	empty := testReserves
	empty.VirtualTokenReserves = 0
	mint := env.putCurve(t, empty, false)

	res, err := env.runner.CalculateSwap(context.Background(), CalculateSwapCommand{Mint: mint.String(), Amount: 1000})
	require.NoError(t, err)
	assert.False(t, res.Computable)
}

func TestCalculateSwap_MissingConfigIsSurfaced(t *testing.T) {
	env := newTestEnv(t, false)
	mint := env.putCurve(t, testReserves, false)

	_, err := env.runner.CalculateSwap(context.Background(), CalculateSwapCommand{Mint: mint.String(), Amount: 1000})
	assert.ErrorIs(t, err, blockchain.ErrAccountNotFound)
}

func TestMigrate_ReconcileOnly(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, true)

	res, err := env.runner.Migrate(context.Background(), MigrateCommand{Mint: mint.String(), ReconcileOnly: true})
	require.NoError(t, err)
	require.NotNil(t, res.Reconciliation)
	assert.Nil(t, res.Run)
	assert.Equal(t, migration.StateInit, res.Reconciliation.State)
	assert.Empty(t, env.ledger.Sent())
}

func TestMigrate_UnknownConfirmationReconciles(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, true)
	env.ledger.Unconfirmed = true

	res, err := env.runner.Migrate(context.Background(), MigrateCommand{Mint: mint.String()})
	var unknown *blockchain.ConfirmationUnknownError
	require.True(t, errors.As(err, &unknown))
	var phaseErr *migration.PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, migration.StateInit, phaseErr.State)

	require.NotNil(t, res)
	require.NotNil(t, res.Reconciliation)
	assert.Equal(t, migration.StateInit, res.Reconciliation.State)
	assert.Len(t, env.ledger.Sent(), 1)
}

func TestMigrate_CurveNotCompleted(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, false)

	_, err := env.runner.Migrate(context.Background(), MigrateCommand{Mint: mint.String()})
	assert.ErrorIs(t, err, migration.ErrCurveNotCompleted)
	assert.Empty(t, env.ledger.Sent())
}

func TestMigrate_PayerWithoutFunds(t *testing.T) {
	env := newTestEnv(t, true)
	mint := env.putCurve(t, testReserves, true)
	env.ledger.SetBalance(env.runner.Payer(), migration.DefaultMinPayerBalance-1)

	_, err := env.runner.Migrate(context.Background(), MigrateCommand{Mint: mint.String()})
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
	var phaseErr *migration.PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, migration.StateInit, phaseErr.State)
	assert.Empty(t, env.ledger.Sent())
}

func TestRun_PassesContext(t *testing.T) {
	env := newTestEnv(t, false)
	called := false
	err := env.runner.Run(context.Background(), func(ctx context.Context) error {
		called = true
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.True(t, called)
}
