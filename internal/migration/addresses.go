package migration

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/meteora"
)

// Participants are the wallets a migration moves value between.
type Participants struct {
	Payer           solana.PublicKey
	TeamWallet      solana.PublicKey
	MigrationWallet solana.PublicKey
	Creator         solana.PublicKey
}

// Addresses is every account a migration touches. It is derived once per run
// and shared by all phases.
type Addresses struct {
	Mint   solana.PublicKey
	VaultA meteora.VaultAddresses
	VaultB meteora.VaultAddresses
	Pool   bondingcurve.PoolAccounts
	Lock   bondingcurve.LockAccounts
	// FeeReceiverTokenB is the migration wallet's account for the curve token.
	FeeReceiverTokenB solana.PublicKey
}

// DeriveAddresses derives the pool, vault and escrow accounts for mint paired
// with wrapped SOL. Vault LP mints are the derived ones; callers override them
// with on-chain values via UseVaultLpMints.
func DeriveAddresses(programs meteora.Programs, ammConfig, mint solana.PublicKey, who Participants) (*Addresses, error) {
	tokenA := solana.WrappedSol
	tokenB := mint

	pool, _, err := programs.DerivePoolWithConfig(tokenA, tokenB, ammConfig)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	lpMint, _, err := programs.DerivePoolLpMint(pool)
	if err != nil {
		return nil, fmt.Errorf("pool lp mint: %w", err)
	}
	vaultA, err := programs.DeriveVaultAddresses(tokenA)
	if err != nil {
		return nil, fmt.Errorf("vault A: %w", err)
	}
	vaultB, err := programs.DeriveVaultAddresses(tokenB)
	if err != nil {
		return nil, fmt.Errorf("vault B: %w", err)
	}
	aVaultLp, _, err := programs.DeriveVaultLp(vaultA.Vault, pool)
	if err != nil {
		return nil, fmt.Errorf("vault A lp: %w", err)
	}
	bVaultLp, _, err := programs.DeriveVaultLp(vaultB.Vault, pool)
	if err != nil {
		return nil, fmt.Errorf("vault B lp: %w", err)
	}
	feeA, _, err := programs.DeriveProtocolFee(tokenA, pool)
	if err != nil {
		return nil, fmt.Errorf("protocol fee A: %w", err)
	}
	feeB, _, err := programs.DeriveProtocolFee(tokenB, pool)
	if err != nil {
		return nil, fmt.Errorf("protocol fee B: %w", err)
	}
	metadata, _, err := programs.DeriveMetadata(lpMint)
	if err != nil {
		return nil, fmt.Errorf("lp metadata: %w", err)
	}
	eventAuth, _, err := programs.DeriveAmmEventAuthority()
	if err != nil {
		return nil, fmt.Errorf("amm event authority: %w", err)
	}

	payerTokenA, _, err := solana.FindAssociatedTokenAddress(who.Payer, tokenA)
	if err != nil {
		return nil, err
	}
	payerTokenB, _, err := solana.FindAssociatedTokenAddress(who.Payer, tokenB)
	if err != nil {
		return nil, err
	}
	payerPoolLp, _, err := solana.FindAssociatedTokenAddress(who.Payer, lpMint)
	if err != nil {
		return nil, err
	}
	feeReceiverTokenB, _, err := solana.FindAssociatedTokenAddress(who.MigrationWallet, tokenB)
	if err != nil {
		return nil, err
	}

	creatorEscrow, _, err := programs.DeriveLockEscrow(pool, who.Creator)
	if err != nil {
		return nil, fmt.Errorf("creator lock escrow: %w", err)
	}
	feeEscrow, _, err := programs.DeriveLockEscrow(pool, who.MigrationWallet)
	if err != nil {
		return nil, fmt.Errorf("migration wallet lock escrow: %w", err)
	}
	// владельцы эскроу-ATA: PDA
	creatorEscrowVault, _, err := solana.FindAssociatedTokenAddress(creatorEscrow, lpMint)
	if err != nil {
		return nil, err
	}
	feeEscrowVault, _, err := solana.FindAssociatedTokenAddress(feeEscrow, lpMint)
	if err != nil {
		return nil, err
	}

	return &Addresses{
		Mint:   mint,
		VaultA: vaultA,
		VaultB: vaultB,
		Pool: bondingcurve.PoolAccounts{
			Pool:              pool,
			AmmConfig:         ammConfig,
			LpMint:            lpMint,
			TokenAMint:        tokenA,
			TokenBMint:        tokenB,
			AVault:            vaultA.Vault,
			BVault:            vaultB.Vault,
			ATokenVault:       vaultA.TokenVault,
			BTokenVault:       vaultB.TokenVault,
			AVaultLp:          aVaultLp,
			BVaultLp:          bVaultLp,
			AVaultLpMint:      vaultA.LpMint,
			BVaultLpMint:      vaultB.LpMint,
			PayerTokenA:       payerTokenA,
			PayerTokenB:       payerTokenB,
			PayerPoolLp:       payerPoolLp,
			ProtocolTokenAFee: feeA,
			ProtocolTokenBFee: feeB,
			MintMetadata:      metadata,
			TeamWallet:        who.TeamWallet,
			MetadataProgram:   programs.Metaplex,
			VaultProgram:      programs.Vault,
			AmmProgram:        programs.Amm,
			AmmEventAuth:      eventAuth,
		},
		Lock: bondingcurve.LockAccounts{
			FeeReceiver:     who.MigrationWallet,
			CreatorReceiver: who.Creator,
			LockEscrow:      creatorEscrow,
			LockEscrow1:     feeEscrow,
			EscrowVault:     creatorEscrowVault,
			EscrowVault1:    feeEscrowVault,
		},
		FeeReceiverTokenB: feeReceiverTokenB,
	}, nil
}

// UseVaultLpMints replaces the derived vault LP mints. Vaults created before
// the PDA scheme keep a keypair LP mint.
func (a *Addresses) UseVaultLpMints(lpA, lpB solana.PublicKey) {
	if !lpA.IsZero() {
		a.Pool.AVaultLpMint = lpA
	}
	if !lpB.IsZero() {
		a.Pool.BVaultLpMint = lpB
	}
}

// LookupTableAddresses lists the accounts compressed through the lookup table,
// in table order.
func (a *Addresses) LookupTableAddresses(payer solana.PublicKey) []solana.PublicKey {
	p := a.Pool
	return []solana.PublicKey{
		p.Pool,
		p.AmmConfig,
		p.LpMint,
		p.TokenAMint,
		p.TokenBMint,
		p.AVault,
		p.BVault,
		p.ATokenVault,
		p.BTokenVault,
		p.AVaultLp,
		p.BVaultLp,
		p.AVaultLpMint,
		p.BVaultLpMint,
		p.PayerTokenA,
		p.PayerTokenB,
		p.PayerPoolLp,
		p.ProtocolTokenAFee,
		p.ProtocolTokenBFee,
		payer,
		p.MintMetadata,
		solana.SysVarRentPubkey,
		p.MetadataProgram,
		p.VaultProgram,
		solana.TokenProgramID,
		solana.SPLAssociatedTokenAccountProgramID,
		solana.SystemProgramID,
		p.AmmProgram,
	}
}
