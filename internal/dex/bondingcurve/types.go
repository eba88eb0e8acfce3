// =============================
// File: internal/dex/bondingcurve/types.go
// =============================
package bondingcurve

import (
	"github.com/gagliardetto/solana-go"
)

// SwapDirection is the direction byte of the swap instruction.
type SwapDirection uint8

const (
	// SwapBuy spends SOL for tokens.
	SwapBuy SwapDirection = 0
	// SwapSell spends tokens for SOL.
	SwapSell SwapDirection = 1
)

func (d SwapDirection) String() string {
	switch d {
	case SwapBuy:
		return "buy"
	case SwapSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ReserveSnapshot is a point-in-time copy of the curve reserves, in base units.
// It is rebuilt from a fresh ledger read for every quote.
type ReserveSnapshot struct {
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

// Quote is the outcome of a client-side swap simulation.
type Quote struct {
	// AmountIn is the amount fed into the curve formula, after fees on the buy side.
	AmountIn uint64
	// AmountOut is what the caller receives, after fees on the sell side.
	AmountOut uint64
	// Fee is the part of the trade kept by the platform.
	Fee uint64
	// Clamped is set when the formula result exceeded the real reserves.
	Clamped bool
}

// RangeU64 is an inclusive bound; nil ends are open.
type RangeU64 struct {
	Min *uint64
	Max *uint64
}

// RangeU8 is an inclusive bound; nil ends are open.
type RangeU8 struct {
	Min *uint8
	Max *uint8
}

// ConfigAccount mirrors the on-chain Config account.
type ConfigAccount struct {
	Authority          solana.PublicKey
	MigrationAuthority solana.PublicKey
	TeamWallet         solana.PublicKey
	MigrationWallet    solana.PublicKey

	InitBondingCurve uint64

	PlatformBuyFee       float64 // percent
	PlatformSellFee      float64 // percent
	PlatformMigrationFee float64 // percent

	LamportAmountConfig AmountConfigU64
	TokenSupplyConfig   AmountConfigU64
	TokenDecimalsConfig AmountConfigU8

	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	InitialMeteoraTokenReserves uint64
	InitialMeteoraSolAmount     uint64

	CurveLimit  uint64
	Initialized bool
}

// BondingCurveAccount mirrors the on-chain BondingCurve account.
type BondingCurveAccount struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	IsCompleted          bool
	Creator              solana.PublicKey
}

// Snapshot returns the reserve fields of the account.
func (b *BondingCurveAccount) Snapshot() ReserveSnapshot {
	return ReserveSnapshot{
		VirtualSolReserves:   b.VirtualSolReserves,
		VirtualTokenReserves: b.VirtualTokenReserves,
		RealSolReserves:      b.RealSolReserves,
		RealTokenReserves:    b.RealTokenReserves,
	}
}

// LaunchParams are the arguments of the curve creation instruction.
type LaunchParams struct {
	Decimals       uint8
	TokenSupply    uint64
	ReserveLamport uint64
	Name           string
	Symbol         string
	URI            string
}

// SwapParams are the arguments of the swap instruction.
type SwapParams struct {
	Amount               uint64
	Direction            SwapDirection
	MinimumReceiveAmount uint64
}
