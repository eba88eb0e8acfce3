// =============================
// File: internal/dex/meteora/config.go
// =============================
package meteora

import (
	"github.com/gagliardetto/solana-go"
)

// Program IDs and fixed accounts used during migration.
var (
	// AmmProgramID is the Meteora dynamic AMM (DAMM v1) program.
	AmmProgramID = solana.MustPublicKeyFromBase58("Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB")
	// VaultProgramID is the Meteora dynamic vault program.
	VaultProgramID = solana.MustPublicKeyFromBase58("24Uqj9JCLxUeoC3hGfh5W3s9FM9uCHDS2SG3LYwBpyTi")
	// VaultBase is the base key all permissionless vaults are derived from.
	VaultBase = solana.MustPublicKeyFromBase58("HWzXGcGHy4tcpYfaRDCyLNzXqBTv3E6BttpCH2vJxArv")
	// MetaplexProgramID owns LP mint metadata accounts.
	MetaplexProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	// DefaultPoolConfig is the DAMM config account migrated pools are created with.
	DefaultPoolConfig = solana.MustPublicKeyFromBase58("BdfD7rrTZEWmf8UbEBPVpvM3wUqyrR8swjAy5SNT8gJ2")
)

var seed = struct {
	Vault          []byte
	TokenVault     []byte
	LpMint         []byte
	Fee            []byte
	LockEscrow     []byte
	Metadata       []byte
	EventAuthority []byte
}{
	Vault:          []byte("vault"),
	TokenVault:     []byte("token_vault"),
	LpMint:         []byte("lp_mint"),
	Fee:            []byte("fee"),
	LockEscrow:     []byte("lock_escrow"),
	Metadata:       []byte("metadata"),
	EventAuthority: []byte("__event_authority"),
}

// Programs groups the program IDs so tests and forks can override them.
type Programs struct {
	Amm      solana.PublicKey
	Vault    solana.PublicKey
	Metaplex solana.PublicKey
	Base     solana.PublicKey
}

// DefaultPrograms returns the mainnet program set.
func DefaultPrograms() Programs {
	return Programs{
		Amm:      AmmProgramID,
		Vault:    VaultProgramID,
		Metaplex: MetaplexProgramID,
		Base:     VaultBase,
	}
}
