// internal/bot/quotes.go
package bot

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
)

// PriceResult is the outcome of CurrentPrice.
type PriceResult struct {
	Mint     solana.PublicKey
	Reserves bondingcurve.ReserveSnapshot
	Price    decimal.Decimal
	// Progress is RealSolReserves as a percentage of the curve limit.
	Progress          decimal.Decimal
	MigrationEligible bool
	Completed         bool
}

// CalculateSwapResult is the outcome of CalculateSwap. Computable is false
// when the curve has no token liquidity; that is not an error.
type CalculateSwapResult struct {
	Mint       solana.PublicKey
	Reserves   bondingcurve.ReserveSnapshot
	FeeBps     uint64
	Quote      bondingcurve.Quote
	Computable bool
}

// CurrentPrice читает резервы и считает текущую цену.
func (r *Runner) CurrentPrice(ctx context.Context, cmd PriceCommand) (*PriceResult, error) {
	logger, err := r.begin(cmd)
	if err != nil {
		return nil, err
	}
	mint, _ := parseMint("mint", cmd.Mint)

	curve, err := r.reader.FetchBondingCurve(ctx, mint)
	if err != nil {
		return nil, err
	}
	global, err := r.reader.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := curve.Snapshot()
	price, err := bondingcurve.PriceDecimal(snapshot)
	if err != nil {
		return nil, err
	}

	res := &PriceResult{
		Mint:              mint,
		Reserves:          snapshot,
		Price:             price,
		Progress:          bondingcurve.Progress(snapshot, global.CurveLimit),
		MigrationEligible: bondingcurve.MigrationEligible(snapshot, global.CurveLimit),
		Completed:         curve.IsCompleted,
	}
	logger.Info("Current price",
		zap.String("mint", mint.String()),
		zap.String("price", price.String()),
		zap.String("progress_pct", res.Progress.String()),
		zap.Bool("migration_eligible", res.MigrationEligible))
	return res, nil
}

// CalculateSwap оценивает покупку на cmd.Amount лампортов с учётом
// комиссии покупки из on-chain Config.
func (r *Runner) CalculateSwap(ctx context.Context, cmd CalculateSwapCommand) (*CalculateSwapResult, error) {
	logger, err := r.begin(cmd)
	if err != nil {
		return nil, err
	}
	mint, _ := parseMint("mint", cmd.Mint)

	global, err := r.reader.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}
	feeBps, err := global.BuyFeeBps()
	if err != nil {
		return nil, err
	}
	snapshot, err := r.reader.Snapshot(ctx, mint)
	if err != nil {
		return nil, err
	}

	res := &CalculateSwapResult{Mint: mint, Reserves: snapshot, FeeBps: feeBps}
	quote, err := bondingcurve.QuoteBuy(snapshot, uint64(cmd.Amount), feeBps)
	switch {
	case errors.Is(err, bondingcurve.ErrNotComputable):
		logger.Warn("Quote not computable", zap.String("mint", mint.String()))
		return res, nil
	case err != nil:
		return nil, err
	}

	res.Quote = quote
	res.Computable = true
	if quote.Clamped {
		logger.Info("Real token reserves limit reached", zap.Uint64("real_token_reserves", snapshot.RealTokenReserves))
	}
	logger.Info("Swap calculated",
		zap.Int64("sol_in", cmd.Amount),
		zap.Uint64("sol_after_fee", quote.AmountIn),
		zap.Uint64("tokens_out", quote.AmountOut))
	return res, nil
}
