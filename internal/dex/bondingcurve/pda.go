package bondingcurve

import (
	"github.com/gagliardetto/solana-go"
)

// DeriveGlobalConfig returns the deployment wide Config PDA.
func DeriveGlobalConfig(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedConfig}, programID)
}

// DeriveBondingCurve returns the BondingCurve PDA of mint.
func DeriveBondingCurve(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedBondingCurve, mint.Bytes()}, programID)
}

// DeriveEventAuthority returns the anchor event authority of the curve program.
func DeriveEventAuthority(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedEventAuthority}, programID)
}

// DeriveCurveTokenAccount returns the token account holding the curve's real
// token reserves. The owner is a PDA, so the ATA is derived off-curve.
func DeriveCurveTokenAccount(bondingCurve, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(bondingCurve, mint)
	return ata, err
}
