// =============================
// File: internal/dex/bondingcurve/instructions.go
// =============================
package bondingcurve

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators of the curve program.
var (
	CreateConfigDiscriminator = anchorDiscriminator("global", "create_config")
	LaunchDiscriminator       = anchorDiscriminator("global", "launch")
	SwapDiscriminator         = anchorDiscriminator("global", "swap")
	CreatePoolDiscriminator   = anchorDiscriminator("global", "create_pool")
	LockPoolDiscriminator     = anchorDiscriminator("global", "lock_pool")
)

func instructionData(discriminator [8]byte, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("failed to encode instruction args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// BuildCreateConfigInstruction writes newConfig into the global Config PDA.
func BuildCreateConfigInstruction(cfg *Config, payer solana.PublicKey, newConfig *ConfigAccount) (solana.Instruction, error) {
	data, err := instructionData(CreateConfigDiscriminator, newConfig)
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: cfg.GlobalConfig, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(cfg.ProgramID, accounts, data), nil
}

// LaunchAccounts are the non-derivable accounts of the launch instruction.
// cfg must already be set up for the new mint.
type LaunchAccounts struct {
	Creator         solana.PublicKey
	TeamWallet      solana.PublicKey
	TokenMetadata   solana.PublicKey
	MetadataProgram solana.PublicKey
}

// BuildLaunchInstruction creates the mint, its metadata and the bonding curve.
// The mint is a fresh keypair and must co-sign the transaction.
func BuildLaunchInstruction(cfg *Config, accts LaunchAccounts, params LaunchParams) (solana.Instruction, error) {
	if cfg.Mint.IsZero() {
		return nil, fmt.Errorf("bonding curve config is not set up for a mint")
	}
	data, err := instructionData(LaunchDiscriminator, params)
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: accts.Creator, IsSigner: true, IsWritable: true},
		{PublicKey: cfg.GlobalConfig, IsSigner: false, IsWritable: true},
		{PublicKey: accts.TeamWallet, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.Mint, IsSigner: true, IsWritable: true},
		{PublicKey: cfg.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.CurveTokenATA, IsSigner: false, IsWritable: true},
		{PublicKey: accts.TokenMetadata, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: accts.MetadataProgram, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(cfg.ProgramID, accounts, data), nil
}

// BuildSwapInstruction trades against the curve of cfg.Mint.
func BuildSwapInstruction(cfg *Config, user, teamWallet solana.PublicKey, params SwapParams) (solana.Instruction, error) {
	if cfg.Mint.IsZero() {
		return nil, fmt.Errorf("bonding curve config is not set up for a mint")
	}
	if params.Direction != SwapBuy && params.Direction != SwapSell {
		return nil, fmt.Errorf("invalid swap direction %d", params.Direction)
	}
	userATA, _, err := solana.FindAssociatedTokenAddress(user, cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user token account: %w", err)
	}
	data, err := instructionData(SwapDiscriminator, params)
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: cfg.GlobalConfig, IsSigner: false, IsWritable: true},
		{PublicKey: teamWallet, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: cfg.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.CurveTokenATA, IsSigner: false, IsWritable: true},
		{PublicKey: userATA, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(cfg.ProgramID, accounts, data), nil
}

// PoolAccounts is the account set shared by create_pool and lock_pool.
// Token A is the native mint, token B the curve token.
type PoolAccounts struct {
	Pool         solana.PublicKey
	AmmConfig    solana.PublicKey
	LpMint       solana.PublicKey
	TokenAMint   solana.PublicKey
	TokenBMint   solana.PublicKey
	AVault       solana.PublicKey
	BVault       solana.PublicKey
	ATokenVault  solana.PublicKey
	BTokenVault  solana.PublicKey
	AVaultLp     solana.PublicKey
	BVaultLp     solana.PublicKey
	AVaultLpMint solana.PublicKey
	BVaultLpMint solana.PublicKey

	PayerTokenA       solana.PublicKey
	PayerTokenB       solana.PublicKey
	PayerPoolLp       solana.PublicKey
	ProtocolTokenAFee solana.PublicKey
	ProtocolTokenBFee solana.PublicKey
	MintMetadata      solana.PublicKey

	TeamWallet      solana.PublicKey
	MetadataProgram solana.PublicKey
	VaultProgram    solana.PublicKey
	AmmProgram      solana.PublicKey
	AmmEventAuth    solana.PublicKey
}

// LockAccounts are the escrows receiving the locked LP position.
type LockAccounts struct {
	FeeReceiver     solana.PublicKey
	CreatorReceiver solana.PublicKey
	LockEscrow      solana.PublicKey
	LockEscrow1     solana.PublicKey
	EscrowVault     solana.PublicKey
	EscrowVault1    solana.PublicKey
}

// BuildCreatePoolInstruction moves the curve reserves into a new DAMM pool.
func BuildCreatePoolInstruction(cfg *Config, payer solana.PublicKey, p PoolAccounts) (solana.Instruction, error) {
	if cfg.Mint.IsZero() {
		return nil, fmt.Errorf("bonding curve config is not set up for a mint")
	}
	data, err := instructionData(CreatePoolDiscriminator, nil)
	if err != nil {
		return nil, err
	}
	// Порядок аккаунтов фиксирован программой. Authority is the payer key in a
	// slot of its own, directly after payer.
	accounts := []*solana.AccountMeta{
		{PublicKey: cfg.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: p.TeamWallet, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.GlobalConfig, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: cfg.CurveTokenATA, IsSigner: false, IsWritable: true},
		{PublicKey: p.Pool, IsSigner: false, IsWritable: true},
		{PublicKey: p.AmmConfig, IsSigner: false, IsWritable: false},
		{PublicKey: p.LpMint, IsSigner: false, IsWritable: true},
		{PublicKey: p.AVaultLp, IsSigner: false, IsWritable: true},
		{PublicKey: p.BVaultLp, IsSigner: false, IsWritable: true},
		{PublicKey: p.TokenAMint, IsSigner: false, IsWritable: false},
		{PublicKey: p.TokenBMint, IsSigner: false, IsWritable: false},
		{PublicKey: p.AVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.BVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.ATokenVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.BTokenVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.AVaultLpMint, IsSigner: false, IsWritable: true},
		{PublicKey: p.BVaultLpMint, IsSigner: false, IsWritable: true},
		{PublicKey: p.PayerTokenA, IsSigner: false, IsWritable: true},
		{PublicKey: p.PayerTokenB, IsSigner: false, IsWritable: true},
		{PublicKey: p.PayerPoolLp, IsSigner: false, IsWritable: true},
		{PublicKey: p.ProtocolTokenAFee, IsSigner: false, IsWritable: true},
		{PublicKey: p.ProtocolTokenBFee, IsSigner: false, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: false}, // authority
		{PublicKey: p.MintMetadata, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: p.MetadataProgram, IsSigner: false, IsWritable: false},
		{PublicKey: p.VaultProgram, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: p.AmmProgram, IsSigner: false, IsWritable: false},
		{PublicKey: p.AmmEventAuth, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(cfg.ProgramID, accounts, data), nil
}

// BuildLockPoolInstruction splits the payer's LP position into the creator
// and migration wallet lock escrows.
func BuildLockPoolInstruction(cfg *Config, payer solana.PublicKey, p PoolAccounts, l LockAccounts) (solana.Instruction, error) {
	if cfg.Mint.IsZero() {
		return nil, fmt.Errorf("bonding curve config is not set up for a mint")
	}
	data, err := instructionData(LockPoolDiscriminator, nil)
	if err != nil {
		return nil, err
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: cfg.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: cfg.GlobalConfig, IsSigner: false, IsWritable: false},
		{PublicKey: p.Pool, IsSigner: false, IsWritable: true},
		{PublicKey: p.LpMint, IsSigner: false, IsWritable: true},
		{PublicKey: p.AVaultLp, IsSigner: false, IsWritable: true},
		{PublicKey: p.BVaultLp, IsSigner: false, IsWritable: true},
		{PublicKey: p.TokenBMint, IsSigner: false, IsWritable: false},
		{PublicKey: p.AVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.BVault, IsSigner: false, IsWritable: true},
		{PublicKey: p.AVaultLpMint, IsSigner: false, IsWritable: true},
		{PublicKey: p.BVaultLpMint, IsSigner: false, IsWritable: true},
		{PublicKey: p.PayerPoolLp, IsSigner: false, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: false}, // authority
		{PublicKey: l.FeeReceiver, IsSigner: false, IsWritable: false},
		{PublicKey: l.CreatorReceiver, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: l.LockEscrow, IsSigner: false, IsWritable: true},
		{PublicKey: l.LockEscrow1, IsSigner: false, IsWritable: true},
		{PublicKey: l.EscrowVault, IsSigner: false, IsWritable: true},
		{PublicKey: l.EscrowVault1, IsSigner: false, IsWritable: true},
		{PublicKey: p.AmmProgram, IsSigner: false, IsWritable: false},
		{PublicKey: p.AmmEventAuth, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(cfg.ProgramID, accounts, data), nil
}
