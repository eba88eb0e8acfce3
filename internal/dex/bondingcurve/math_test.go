package bondingcurve

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var launchReserves = ReserveSnapshot{
	VirtualSolReserves:   30_000_000_000,
	VirtualTokenReserves: 1_073_000_000,
	RealSolReserves:      0,
	RealTokenReserves:    793_100_000,
}

func TestPrice(t *testing.T) {
	p, err := Price(launchReserves)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Sign())
	// 30e9 / (1.073e9 * 1000)
	assert.Zero(t, p.Cmp(big.NewRat(30_000_000_000, 1_073_000_000_000)))

	// больше токенов в резерве - ниже цена
	more := launchReserves
	more.VirtualTokenReserves *= 2
	p2, err := Price(more)
	require.NoError(t, err)
	assert.Equal(t, -1, p2.Cmp(p))
}

func TestPrice_DivisionByZero(t *testing.T) {
	_, err := Price(ReserveSnapshot{VirtualTokenReserves: 1_000})
	assert.True(t, errors.Is(err, ErrDivisionByZero))

	_, err = Price(ReserveSnapshot{VirtualSolReserves: 1_000})
	assert.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestPriceDecimal(t *testing.T) {
	p, err := PriceDecimal(ReserveSnapshot{VirtualSolReserves: 3_000, VirtualTokenReserves: 1})
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(3)), p.String())
}

func TestQuoteTokensOut_Scenario(t *testing.T) {
	q, err := QuoteTokensOut(launchReserves, 2_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(67_062_500), q.AmountOut)
	assert.False(t, q.Clamped)
	assert.Less(t, q.AmountOut, launchReserves.VirtualTokenReserves)
}

func TestQuoteTokensOut_Clamp(t *testing.T) {
	s := launchReserves
	s.RealTokenReserves = 10_000_000

	q, err := QuoteTokensOut(s, 2_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, s.RealTokenReserves, q.AmountOut)
	assert.True(t, q.Clamped)

	// равенство не считается срабатыванием ограничения
	s.RealTokenReserves = 67_062_500
	q, err = QuoteTokensOut(s, 2_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(67_062_500), q.AmountOut)
	assert.False(t, q.Clamped)
}

func TestQuoteTokensOut_ZeroInput(t *testing.T) {
	q, err := QuoteTokensOut(launchReserves, 0)
	require.NoError(t, err)
	assert.Zero(t, q.AmountOut)
}

func TestQuoteTokensOut_Monotonic(t *testing.T) {
	var prev uint64
	for _, solIn := range []uint64{0, 1, 1_000, 1_000_000, 500_000_000, 2_000_000_000, 60_000_000_000, 1 << 62} {
		q, err := QuoteTokensOut(launchReserves, solIn)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, q.AmountOut, prev, "solIn=%d", solIn)
		assert.LessOrEqual(t, q.AmountOut, launchReserves.RealTokenReserves)
		prev = q.AmountOut
	}
}

func TestQuoteTokensOut_NotComputable(t *testing.T) {
	_, err := QuoteTokensOut(ReserveSnapshot{VirtualSolReserves: 1}, 10)
	assert.ErrorIs(t, err, ErrNotComputable)
}

func TestQuoteTokensOut_EmptySolSide(t *testing.T) {
	_, err := QuoteTokensOut(ReserveSnapshot{VirtualTokenReserves: 10}, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestApplyFee(t *testing.T) {
	assert.Equal(t, uint64(993), ApplyFee(1000, 69))
	assert.Equal(t, uint64(1000), ApplyFee(1000, 0))
	assert.Zero(t, ApplyFee(1000, BasisPointsDenominator))
}

func TestQuoteBuy_FeeBeforeQuote(t *testing.T) {
	q, err := QuoteBuy(launchReserves, 1000, 69)
	require.NoError(t, err)
	assert.Equal(t, uint64(993), q.AmountIn)
	assert.Equal(t, uint64(7), q.Fee)

	direct, err := QuoteTokensOut(launchReserves, 993)
	require.NoError(t, err)
	assert.Equal(t, direct.AmountOut, q.AmountOut)
}

func TestQuoteSolOut_RoundTrip(t *testing.T) {
	afterBuy := ReserveSnapshot{
		VirtualSolReserves:   32_000_000_000,
		VirtualTokenReserves: 1_005_937_500,
		RealSolReserves:      5_000_000_000,
		RealTokenReserves:    726_037_500,
	}
	q, err := QuoteSolOut(afterBuy, 67_062_500)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), q.AmountOut)
	assert.False(t, q.Clamped)
}

func TestQuoteSolOut_ClampsToRealSol(t *testing.T) {
	s := ReserveSnapshot{
		VirtualSolReserves:   32_000_000_000,
		VirtualTokenReserves: 1_005_937_500,
		RealSolReserves:      1_000_000_000,
	}
	q, err := QuoteSolOut(s, 67_062_500)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), q.AmountOut)
	assert.True(t, q.Clamped)
}

func TestQuoteSell_FeeOnPayout(t *testing.T) {
	s := ReserveSnapshot{
		VirtualSolReserves:   32_000_000_000,
		VirtualTokenReserves: 1_005_937_500,
		RealSolReserves:      5_000_000_000,
	}
	q, err := QuoteSell(s, 67_062_500, 69)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_986_200_000), q.AmountOut)
	assert.Equal(t, uint64(13_800_000), q.Fee)
}

func TestFeeBps(t *testing.T) {
	bps, err := FeeBps(0.69)
	require.NoError(t, err)
	assert.Equal(t, uint64(69), bps)

	bps, err = FeeBps(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bps)

	_, err = FeeBps(-1)
	assert.Error(t, err)
}

func TestMinimumReceive(t *testing.T) {
	assert.Equal(t, uint64(990), MinimumReceive(1000, 100))
}

func TestProgress(t *testing.T) {
	s := ReserveSnapshot{RealSolReserves: 31_000_000_000}
	assert.True(t, Progress(s, 62_000_000_000).Equal(decimal.NewFromInt(50)))
	assert.False(t, MigrationEligible(s, 62_000_000_000))

	s.RealSolReserves = 70_000_000_000
	assert.True(t, Progress(s, 62_000_000_000).Equal(decimal.NewFromInt(100)))
	assert.True(t, MigrationEligible(s, 62_000_000_000))

	assert.True(t, Progress(s, 0).IsZero())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "67.0625", FormatAmount(67_062_500, 6))
	assert.Equal(t, "2", FormatAmount(2_000_000_000, 9))
}
