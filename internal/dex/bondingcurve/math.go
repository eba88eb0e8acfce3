// =============================
// File: internal/dex/bondingcurve/math.go
// =============================
package bondingcurve

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Fixed-point policy. Token reserves carry 6 decimals and SOL carries 9, so
// token amounts are multiplied by TokenScaleUp/TokenScaleDown before they meet
// lamports in the constant product and divided back afterwards.
const (
	TokenScaleUp   = 1_000_000_000 // 9-decimal SOL granularity
	TokenScaleDown = 1_000_000     // 6-decimal token granularity

	// PriceDisplayDivisor brings lamports-per-token-unit to display scale.
	PriceDisplayDivisor = 1000

	BasisPointsDenominator = 10_000

	// PriceDisplayPrecision is the number of decimal places kept by PriceDecimal.
	PriceDisplayPrecision = 18
)

var (
	// ErrDivisionByZero reports reserves that make the formula undefined.
	ErrDivisionByZero = errors.New("division by zero in curve math")
	// ErrNotComputable is the "no liquidity" signal: scaled token reserves are zero.
	ErrNotComputable = errors.New("quote not computable: no token liquidity")
)

var (
	bigScaleUp   = big.NewInt(TokenScaleUp)
	bigScaleDown = big.NewInt(TokenScaleDown)
	bigBps       = big.NewInt(BasisPointsDenominator)
)

func u64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func scaleTokens(v uint64) *big.Int {
	scaled := new(big.Int).Mul(u64(v), bigScaleUp)
	return scaled.Quo(scaled, bigScaleDown)
}

func unscaleTokens(v *big.Int) *big.Int {
	out := new(big.Int).Mul(v, bigScaleDown)
	return out.Quo(out, bigScaleUp)
}

// Price returns vsr / vtr / PriceDisplayDivisor as an exact rational.
func Price(s ReserveSnapshot) (*big.Rat, error) {
	if s.VirtualSolReserves == 0 {
		return nil, fmt.Errorf("%w: virtual sol reserves are zero", ErrDivisionByZero)
	}
	if s.VirtualTokenReserves == 0 {
		return nil, fmt.Errorf("%w: virtual token reserves are zero", ErrDivisionByZero)
	}
	denom := new(big.Int).Mul(u64(s.VirtualTokenReserves), big.NewInt(PriceDisplayDivisor))
	return new(big.Rat).SetFrac(u64(s.VirtualSolReserves), denom), nil
}

// PriceDecimal renders Price for humans.
func PriceDecimal(s ReserveSnapshot) (decimal.Decimal, error) {
	p, err := Price(s)
	if err != nil {
		return decimal.Zero, err
	}
	num := decimal.NewFromBigInt(p.Num(), 0)
	return num.DivRound(decimal.NewFromBigInt(p.Denom(), 0), PriceDisplayPrecision), nil
}

// QuoteTokensOut runs the constant product for a buy of solIn lamports.
// The caller must already have taken the fee out of solIn. The result never
// exceeds RealTokenReserves.
func QuoteTokensOut(s ReserveSnapshot, solIn uint64) (Quote, error) {
	currentTokens := scaleTokens(s.VirtualTokenReserves)
	if currentTokens.Sign() == 0 {
		return Quote{}, ErrNotComputable
	}

	currentSol := u64(s.VirtualSolReserves)
	newSol := new(big.Int).Add(currentSol, u64(solIn))
	if newSol.Sign() == 0 {
		return Quote{}, fmt.Errorf("%w: sol reserves after swap are zero", ErrDivisionByZero)
	}

	k := new(big.Int).Mul(currentSol, currentTokens)
	newTokens := k.Quo(k, newSol)
	tokensOut := unscaleTokens(new(big.Int).Sub(currentTokens, newTokens))

	q := Quote{AmountIn: solIn, AmountOut: tokensOut.Uint64()}
	if limit := u64(s.RealTokenReserves); tokensOut.Cmp(limit) >= 0 {
		q.Clamped = tokensOut.Cmp(limit) > 0
		q.AmountOut = s.RealTokenReserves
	}
	return q, nil
}

// QuoteSolOut runs the constant product for a sell of tokensIn base units.
// The new SOL reserve is rounded up so the quote never overstates the payout,
// and the result never exceeds RealSolReserves.
func QuoteSolOut(s ReserveSnapshot, tokensIn uint64) (Quote, error) {
	currentTokens := scaleTokens(s.VirtualTokenReserves)
	newTokens := new(big.Int).Add(currentTokens, scaleTokens(tokensIn))
	if newTokens.Sign() == 0 {
		return Quote{}, ErrNotComputable
	}

	currentSol := u64(s.VirtualSolReserves)
	k := new(big.Int).Mul(currentSol, currentTokens)
	newSol := ceilQuo(k, newTokens)
	solOut := new(big.Int).Sub(currentSol, newSol)
	if solOut.Sign() < 0 {
		solOut.SetInt64(0)
	}

	q := Quote{AmountIn: tokensIn, AmountOut: solOut.Uint64()}
	if limit := u64(s.RealSolReserves); solOut.Cmp(limit) >= 0 {
		q.Clamped = solOut.Cmp(limit) > 0
		q.AmountOut = s.RealSolReserves
	}
	return q, nil
}

func ceilQuo(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// ApplyFee returns floor(amount * (10000 - feeBps) / 10000).
func ApplyFee(amount, feeBps uint64) uint64 {
	if feeBps >= BasisPointsDenominator {
		return 0
	}
	out := new(big.Int).Mul(u64(amount), u64(BasisPointsDenominator-feeBps))
	return out.Quo(out, bigBps).Uint64()
}

// QuoteBuy takes the fee out of solIn and quotes the remainder.
func QuoteBuy(s ReserveSnapshot, solIn, feeBps uint64) (Quote, error) {
	net := ApplyFee(solIn, feeBps)
	q, err := QuoteTokensOut(s, net)
	if err != nil {
		return Quote{}, err
	}
	q.Fee = solIn - net
	return q, nil
}

// QuoteSell quotes tokensIn and takes the fee out of the SOL payout.
func QuoteSell(s ReserveSnapshot, tokensIn, feeBps uint64) (Quote, error) {
	q, err := QuoteSolOut(s, tokensIn)
	if err != nil {
		return Quote{}, err
	}
	gross := q.AmountOut
	q.AmountOut = ApplyFee(gross, feeBps)
	q.Fee = gross - q.AmountOut
	return q, nil
}

// MinimumReceive is the slippage floor passed to the swap instruction.
func MinimumReceive(amount, slippageBps uint64) uint64 {
	return ApplyFee(amount, slippageBps)
}

// FeeBps converts a fee stored as a percentage (0.69) to basis points (69).
func FeeBps(percent float64) (uint64, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("fee percent out of range: %v", percent)
	}
	bps := decimal.NewFromFloat(percent).Mul(decimal.NewFromInt(100)).Round(0)
	return uint64(bps.IntPart()), nil
}

// Progress returns how far the real SOL reserves are towards curveLimit, in percent.
func Progress(s ReserveSnapshot, curveLimit uint64) decimal.Decimal {
	if curveLimit == 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromBigInt(u64(s.RealSolReserves), 0).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromBigInt(u64(curveLimit), 0), 2)
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}

// MigrationEligible reports whether the curve has collected curveLimit lamports.
func MigrationEligible(s ReserveSnapshot, curveLimit uint64) bool {
	return curveLimit > 0 && s.RealSolReserves >= curveLimit
}

// FormatAmount renders base units with the given number of decimals.
func FormatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(u64(amount), -decimals).String()
}
