// =============================
// File: internal/dex/bondingcurve/config.go
// =============================
package bondingcurve

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// PDA seeds used by the curve program.
var (
	SeedConfig         = []byte("config")
	SeedBondingCurve   = []byte("bonding-curve")
	SeedEventAuthority = []byte("__event_authority")
)

// Config holds the addresses the curve program needs for a single token.
type Config struct {
	ProgramID      solana.PublicKey
	GlobalConfig   solana.PublicKey
	GlobalBump     uint8
	EventAuthority solana.PublicKey

	Mint          solana.PublicKey
	BondingCurve  solana.PublicKey
	CurveBump     uint8
	CurveTokenATA solana.PublicKey
}

// NewConfig derives the program level addresses for programID.
func NewConfig(programID solana.PublicKey) (*Config, error) {
	if programID.IsZero() {
		return nil, fmt.Errorf("program id is required")
	}
	global, globalBump, err := DeriveGlobalConfig(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive config account: %w", err)
	}
	eventAuthority, _, err := DeriveEventAuthority(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive event authority: %w", err)
	}
	return &Config{
		ProgramID:      programID,
		GlobalConfig:   global,
		GlobalBump:     globalBump,
		EventAuthority: eventAuthority,
	}, nil
}

// SetupForToken fills the per-token addresses for tokenMint.
func (cfg *Config) SetupForToken(tokenMint string, logger *zap.Logger) error {
	if tokenMint == "" {
		return fmt.Errorf("token mint address is required")
	}

	mint, err := solana.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return fmt.Errorf("invalid token mint address: %w", err)
	}
	return cfg.setupForMint(mint, logger)
}

func (cfg *Config) setupForMint(mint solana.PublicKey, logger *zap.Logger) error {
	curve, bump, err := DeriveBondingCurve(cfg.ProgramID, mint)
	if err != nil {
		return fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	curveATA, err := DeriveCurveTokenAccount(curve, mint)
	if err != nil {
		return fmt.Errorf("failed to derive curve token account: %w", err)
	}

	cfg.Mint = mint
	cfg.BondingCurve = curve
	cfg.CurveBump = bump
	cfg.CurveTokenATA = curveATA

	logger.Debug("Bonding curve configuration prepared",
		zap.String("program_id", cfg.ProgramID.String()),
		zap.String("mint", mint.String()),
		zap.String("bonding_curve", curve.String()),
		zap.String("curve_token_account", curveATA.String()))
	return nil
}
