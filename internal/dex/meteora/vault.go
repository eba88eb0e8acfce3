package meteora

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var ErrInvalidVaultAccount = errors.New("invalid vault account")

var (
	vaultAccountDiscriminator = discriminator("account:Vault")
	vaultInitializeIx         = discriminator("global:initialize")
)

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// VaultState is the prefix of the vault account up to lp_mint. The strategy
// list that follows is not needed here.
type VaultState struct {
	Enabled        uint8
	VaultBump      uint8
	TokenVaultBump uint8
	TotalAmount    uint64
	TokenVault     solana.PublicKey
	FeeVault       solana.PublicKey
	TokenMint      solana.PublicKey
	LpMint         solana.PublicKey
}

// vaultLpMintOffset = discriminator + enabled + bumps + total_amount + 3 pubkeys.
const vaultLpMintOffset = 8 + 1 + 2 + 8 + 32*3

// DecodeVaultState parses raw vault account data.
func DecodeVaultState(data []byte) (*VaultState, error) {
	if len(data) < vaultLpMintOffset+32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidVaultAccount, len(data))
	}
	if !bytes.Equal(data[:8], vaultAccountDiscriminator[:]) {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrInvalidVaultAccount)
	}
	var state VaultState
	if err := bin.NewBorshDecoder(data[8 : vaultLpMintOffset+32]).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode vault: %w", err)
	}
	return &state, nil
}

// EncodeVaultState writes the account prefix DecodeVaultState reads.
func EncodeVaultState(state *VaultState) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(vaultAccountDiscriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInitializeVaultInstruction creates the permissionless vault of mint.
func (p Programs) BuildInitializeVaultInstruction(payer, mint solana.PublicKey) (solana.Instruction, VaultAddresses, error) {
	addrs, err := p.DeriveVaultAddresses(mint)
	if err != nil {
		return nil, VaultAddresses{}, fmt.Errorf("failed to derive vault addresses: %w", err)
	}
	accounts := []*solana.AccountMeta{
		{PublicKey: addrs.Vault, IsSigner: false, IsWritable: true},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: addrs.TokenVault, IsSigner: false, IsWritable: true},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.LpMint, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	data := append([]byte(nil), vaultInitializeIx[:]...)
	return solana.NewInstruction(p.Vault, accounts, data), addrs, nil
}
