// internal/bot/trading.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/config"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	logutil "github.com/rovshanmuradov/pump-meteora/internal/utils/logger"
	"github.com/rovshanmuradov/pump-meteora/internal/wallet"
)

// ErrCurveCompleted is returned for swaps against a curve that already
// collected its limit and waits for migration.
var ErrCurveCompleted = errors.New("bonding curve is completed")

// ConfigResult is the outcome of CreateConfig.
type ConfigResult struct {
	Signature    solana.Signature
	GlobalConfig solana.PublicKey
}

// LaunchResult is the outcome of Launch.
type LaunchResult struct {
	Signature    solana.Signature
	Mint         solana.PublicKey
	BondingCurve solana.PublicKey
}

// SwapResult is the outcome of Swap.
type SwapResult struct {
	Signature      solana.Signature
	Direction      bondingcurve.SwapDirection
	Quote          bondingcurve.Quote
	MinimumReceive uint64
	// TokenDecimals are read from the mint account.
	TokenDecimals uint8
}

func u64p(v uint64) *uint64 { return &v }
func u8p(v uint8) *uint8    { return &v }

// NewConfigAccount переводит настройки из конфига в аккаунт Config программы.
func NewConfigAccount(s config.CurveSettings, authority solana.PublicKey) (*bondingcurve.ConfigAccount, error) {
	teamWallet, err := solana.PublicKeyFromBase58(s.TeamWallet)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "curve.team_wallet", Reason: "not a valid public key"}
	}
	migrationWallet, err := solana.PublicKeyFromBase58(s.MigrationWallet)
	if err != nil {
		return nil, &config.ConfigurationError{Key: "curve.migration_wallet", Reason: "not a valid public key"}
	}
	return &bondingcurve.ConfigAccount{
		Authority:            authority,
		MigrationAuthority:   authority,
		TeamWallet:           teamWallet,
		MigrationWallet:      migrationWallet,
		InitBondingCurve:     s.InitBondingCurve,
		PlatformBuyFee:       s.BuyFeePercent,
		PlatformSellFee:      s.SellFeePercent,
		PlatformMigrationFee: s.MigrationFeePercent,
		LamportAmountConfig: bondingcurve.AmountConfigU64{
			Range: &bondingcurve.RangeU64{Min: u64p(s.MinLamports), Max: u64p(s.MaxLamports)},
		},
		TokenSupplyConfig: bondingcurve.AmountConfigU64{
			Range: &bondingcurve.RangeU64{Min: u64p(s.TokenSupply), Max: u64p(s.TokenSupply)},
		},
		TokenDecimalsConfig: bondingcurve.AmountConfigU8{
			Range: &bondingcurve.RangeU8{Min: u8p(s.TokenDecimals), Max: u8p(s.TokenDecimals)},
		},
		InitialVirtualTokenReserves: s.InitialVirtualTokenReserves,
		InitialVirtualSolReserves:   s.InitialVirtualSolReserves,
		InitialRealTokenReserves:    s.InitialRealTokenReserves,
		InitialMeteoraTokenReserves: s.InitialMeteoraTokenReserves,
		InitialMeteoraSolAmount:     s.InitialMeteoraSolAmount,
		CurveLimit:                  s.CurveLimit,
	}, nil
}

// CreateConfig записывает глобальный Config. Платит и становится authority
// текущий кошелёк.
func (r *Runner) CreateConfig(ctx context.Context, cmd CreateConfigCommand) (*ConfigResult, error) {
	logger, err := r.begin(cmd)
	if err != nil {
		return nil, err
	}

	account, err := NewConfigAccount(cmd.Settings, r.Payer())
	if err != nil {
		return nil, err
	}
	ix, err := bondingcurve.BuildCreateConfigInstruction(r.curveConfig, r.Payer(), account)
	if err != nil {
		return nil, err
	}

	sig, err := r.txManager.SendAndConfirm(ctx, r.priority.WithBudget(ix), r.executeOptions("create_config"))
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	logger.Info("✅ Project configuration completed",
		zap.String("config", r.curveConfig.GlobalConfig.String()),
		zap.String("signature", sig.String()))
	r.events.Publish(ConfigCreatedEvent{GlobalConfig: r.curveConfig.GlobalConfig, Signature: sig, Timestamp: time.Now()})
	return &ConfigResult{Signature: sig, GlobalConfig: r.curveConfig.GlobalConfig}, nil
}

// Launch создаёт новый mint, его метаданные и кривую. Команда кошелька
// берётся из on-chain Config.
func (r *Runner) Launch(ctx context.Context, cmd LaunchCommand) (*LaunchResult, error) {
	logger, err := r.begin(cmd)
	if err != nil {
		return nil, err
	}

	global, err := r.reader.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}
	t := cmd.Token
	switch {
	case !global.LamportAmountConfig.Contains(t.ReserveLamports):
		return nil, &ValidationError{Field: "token.reserve_lamports", Reason: "outside the range allowed by the config account"}
	case !global.TokenSupplyConfig.Contains(t.Supply):
		return nil, &ValidationError{Field: "token.supply", Reason: "outside the range allowed by the config account"}
	case !global.TokenDecimalsConfig.Contains(t.Decimals):
		return nil, &ValidationError{Field: "token.decimals", Reason: "outside the range allowed by the config account"}
	}

	mintKey := solana.NewWallet().PrivateKey
	mint := mintKey.PublicKey()
	curveCfg, err := r.forMint(mint)
	if err != nil {
		return nil, err
	}
	metadata, _, err := r.programs.DeriveMetadata(mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token metadata: %w", err)
	}

	ix, err := bondingcurve.BuildLaunchInstruction(curveCfg, bondingcurve.LaunchAccounts{
		Creator:         r.Payer(),
		TeamWallet:      global.TeamWallet,
		TokenMetadata:   metadata,
		MetadataProgram: r.programs.Metaplex,
	}, bondingcurve.LaunchParams{
		Decimals:       t.Decimals,
		TokenSupply:    t.Supply,
		ReserveLamport: t.ReserveLamports,
		Name:           t.Name,
		Symbol:         t.Symbol,
		URI:            t.URI,
	})
	if err != nil {
		return nil, err
	}

	sig, err := r.txManager.SendAndConfirm(ctx, r.priority.WithBudget(ix), r.executeOptions("launch", mintKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create bonding curve: %w", err)
	}

	logger.Info("✅ Bonding curve created",
		zap.String("mint", mint.String()),
		zap.String("bonding_curve", curveCfg.BondingCurve.String()),
		zap.String("signature", sig.String()))
	r.events.Publish(CurveLaunchedEvent{Mint: mint, BondingCurve: curveCfg.BondingCurve, Signature: sig, Timestamp: time.Now()})
	return &LaunchResult{Signature: sig, Mint: mint, BondingCurve: curveCfg.BondingCurve}, nil
}

// Swap торгует с кривой. Минимальный выход считается локально из свежих
// резервов, комиссии из on-chain Config и cmd.SlippageBps.
func (r *Runner) Swap(ctx context.Context, cmd SwapCommand) (*SwapResult, error) {
	logger, err := r.begin(cmd)
	if err != nil {
		return nil, err
	}
	mint, _ := parseMint("token", cmd.Mint)
	direction := cmd.Direction()
	logger = logutil.WithMint(logger, mint).With(zap.Stringer("direction", direction))

	global, err := r.reader.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}
	curve, err := r.reader.FetchBondingCurve(ctx, mint)
	if err != nil {
		return nil, err
	}
	if curve.IsCompleted {
		return nil, fmt.Errorf("%w: mint %s", ErrCurveCompleted, mint)
	}

	if err := r.checkSwapBalance(ctx, mint, direction, uint64(cmd.Amount)); err != nil {
		return nil, err
	}
	decimals, err := r.reader.FetchMintDecimals(ctx, mint)
	if err != nil {
		return nil, err
	}

	quote, err := quoteSwap(curve.Snapshot(), global, direction, uint64(cmd.Amount))
	if err != nil {
		return nil, err
	}
	if quote.Clamped {
		logger.Warn("Real reserves limit reached, quote clamped", zap.Uint64("amount_out", quote.AmountOut))
	}
	minimum := bondingcurve.MinimumReceive(quote.AmountOut, cmd.SlippageBps)

	curveCfg, err := r.forMint(mint)
	if err != nil {
		return nil, err
	}
	var instructions []solana.Instruction
	if direction == bondingcurve.SwapBuy {
		ataIx, err := wallet.CreateATAIdempotentInstruction(r.Payer(), r.Payer(), mint)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare token account: %w", err)
		}
		instructions = append(instructions, ataIx)
	}
	swapIx, err := bondingcurve.BuildSwapInstruction(curveCfg, r.Payer(), global.TeamWallet, bondingcurve.SwapParams{
		Amount:               uint64(cmd.Amount),
		Direction:            direction,
		MinimumReceiveAmount: minimum,
	})
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, swapIx)

	logger.Info("Submitting swap",
		zap.Int64("amount", cmd.Amount),
		zap.Uint64("expected_out", quote.AmountOut),
		zap.Uint64("minimum_receive", minimum),
		zap.Uint64("fee", quote.Fee))

	sig, err := r.txManager.SendAndConfirm(ctx, r.priority.WithBudget(instructions...), r.executeOptions("swap"))
	if err != nil {
		return nil, fmt.Errorf("swap failed: %w", err)
	}

	logger.Info("✅ Swap completed", zap.String("signature", sig.String()))
	r.events.Publish(SwapExecutedEvent{
		Mint:      mint,
		Direction: direction,
		AmountIn:  quote.AmountIn,
		AmountOut: quote.AmountOut,
		Signature: sig,
		Timestamp: time.Now(),
	})
	return &SwapResult{
		Signature:      sig,
		Direction:      direction,
		Quote:          quote,
		MinimumReceive: minimum,
		TokenDecimals:  decimals,
	}, nil
}

// checkSwapBalance makes sure the payer holds the swap input: lamports on
// buy, tokens in its associated account on sell.
func (r *Runner) checkSwapBalance(ctx context.Context, mint solana.PublicKey, direction bondingcurve.SwapDirection, amount uint64) error {
	if direction == bondingcurve.SwapBuy {
		lamports, err := r.client.GetBalance(ctx, r.Payer(), r.commitment)
		if err != nil {
			return fmt.Errorf("failed to get payer balance: %w", err)
		}
		if lamports < amount {
			return fmt.Errorf("%w: payer holds %d lamports, swap needs %d", blockchain.ErrInsufficientFunds, lamports, amount)
		}
		return nil
	}

	ata, err := r.wallet.GetATA(mint)
	if err != nil {
		return fmt.Errorf("failed to derive token account: %w", err)
	}
	tokens, err := r.client.GetTokenAccountBalance(ctx, ata)
	switch {
	case errors.Is(err, blockchain.ErrAccountNotFound):
		tokens = 0
	case err != nil:
		return fmt.Errorf("failed to get token balance: %w", err)
	}
	if tokens < amount {
		return fmt.Errorf("%w: token account %s holds %d, swap needs %d", blockchain.ErrInsufficientFunds, ata, tokens, amount)
	}
	return nil
}

func quoteSwap(s bondingcurve.ReserveSnapshot, global *bondingcurve.ConfigAccount, direction bondingcurve.SwapDirection, amount uint64) (bondingcurve.Quote, error) {
	if direction == bondingcurve.SwapSell {
		feeBps, err := global.SellFeeBps()
		if err != nil {
			return bondingcurve.Quote{}, err
		}
		return bondingcurve.QuoteSell(s, amount, feeBps)
	}
	feeBps, err := global.BuyFeeBps()
	if err != nil {
		return bondingcurve.Quote{}, err
	}
	return bondingcurve.QuoteBuy(s, amount, feeBps)
}
