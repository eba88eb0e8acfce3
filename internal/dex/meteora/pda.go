package meteora

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// VaultAddresses are the PDAs of one dynamic vault.
type VaultAddresses struct {
	Vault      solana.PublicKey
	TokenVault solana.PublicKey
	LpMint     solana.PublicKey
}

func sortedKeys(a, b solana.PublicKey) ([]byte, []byte) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return a.Bytes(), b.Bytes()
	}
	return b.Bytes(), a.Bytes()
}

// DerivePoolWithConfig returns the DAMM pool of the pair under config. The
// larger mint (bytewise) goes first.
func (p Programs) DerivePoolWithConfig(tokenA, tokenB, config solana.PublicKey) (solana.PublicKey, uint8, error) {
	first, second := sortedKeys(tokenA, tokenB)
	return solana.FindProgramAddress([][]byte{first, second, config.Bytes()}, p.Amm)
}

func (p Programs) DerivePoolLpMint(pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.LpMint, pool.Bytes()}, p.Amm)
}

// DeriveVaultLp is the pool's LP position in vault.
func (p Programs) DeriveVaultLp(vault, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{vault.Bytes(), pool.Bytes()}, p.Amm)
}

func (p Programs) DeriveProtocolFee(mint, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.Fee, mint.Bytes(), pool.Bytes()}, p.Amm)
}

func (p Programs) DeriveLockEscrow(pool, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.LockEscrow, pool.Bytes(), owner.Bytes()}, p.Amm)
}

func (p Programs) DeriveAmmEventAuthority() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.EventAuthority}, p.Amm)
}

// DeriveVault returns the vault of mint. Seed order is mint, then base.
func (p Programs) DeriveVault(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.Vault, mint.Bytes(), p.Base.Bytes()}, p.Vault)
}

func (p Programs) DeriveTokenVault(vault solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.TokenVault, vault.Bytes()}, p.Vault)
}

// DeriveVaultLpMint is the LP mint of a vault created after the PDA scheme
// was introduced. Older vaults keep a keypair mint, see VaultState.LpMint.
func (p Programs) DeriveVaultLpMint(vault solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.LpMint, vault.Bytes()}, p.Vault)
}

// DeriveVaultAddresses derives every PDA of the vault of mint.
func (p Programs) DeriveVaultAddresses(mint solana.PublicKey) (VaultAddresses, error) {
	vault, _, err := p.DeriveVault(mint)
	if err != nil {
		return VaultAddresses{}, err
	}
	tokenVault, _, err := p.DeriveTokenVault(vault)
	if err != nil {
		return VaultAddresses{}, err
	}
	lpMint, _, err := p.DeriveVaultLpMint(vault)
	if err != nil {
		return VaultAddresses{}, err
	}
	return VaultAddresses{Vault: vault, TokenVault: tokenVault, LpMint: lpMint}, nil
}

// DeriveMetadata returns the Metaplex metadata account of mint.
func (p Programs) DeriveMetadata(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seed.Metadata, p.Metaplex.Bytes(), mint.Bytes()}, p.Metaplex)
}
