package migration

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/lookuptable"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/provision"
)

// Plan is the working state of one migration run. It is never persisted; a
// new run rebuilds it from the ledger.
type Plan struct {
	Mint         solana.PublicKey
	Payer        solana.PublicKey
	CurveConfig  *bondingcurve.Config
	Config       *bondingcurve.ConfigAccount
	BondingCurve *bondingcurve.BondingCurveAccount
	Addresses    *Addresses
	// PoolExists and Locked are the ledger view when the run started.
	PoolExists bool
	Locked     bool

	VaultA *provision.VaultResult
	VaultB *provision.VaultResult
	// Prepare holds vault and ATA creation instructions, empty on a rerun.
	Prepare []solana.Instruction
	Table   *lookuptable.Table

	CreatePool []solana.Instruction
	LockPool   []solana.Instruction

	// Signatures by the state the transaction moved the run into.
	Signatures map[State]solana.Signature
}

// Result is returned by a completed run.
type Result struct {
	// Signature of the lock transaction; zero when the pool was already locked.
	Signature solana.Signature
	Plan      *Plan
	States    []State

	PoolExisted   bool
	AlreadyLocked bool
}
