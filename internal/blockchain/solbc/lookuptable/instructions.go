// Package lookuptable creates, extends and loads address lookup tables for
// oversized v0 transactions.
//
// The program uses bincode: a little-endian uint32 instruction tag followed by
// the instruction fields.
package lookuptable

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ProgramID of the address lookup table program.
var ProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")

const (
	instructionCreate uint32 = 0
	instructionExtend uint32 = 2

	// MaxAddressesPerExtend keeps a create+extend transaction under the size ceiling.
	MaxAddressesPerExtend = 30
	// RecentSlotOffset: the table is bound to a slot this far behind the tip so
	// the slot is guaranteed to be in the SlotHashes sysvar.
	RecentSlotOffset = 200
	// MaxAddresses is the capacity of one table.
	MaxAddresses = 256
)

// DeriveAddress returns the table address of authority at recentSlot.
func DeriveAddress(authority solana.PublicKey, recentSlot uint64) (solana.PublicKey, uint8, error) {
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, recentSlot)
	return solana.FindProgramAddress([][]byte{authority.Bytes(), slot}, ProgramID)
}

// CreateInstruction creates the table bound to recentSlot.
func CreateInstruction(authority, payer solana.PublicKey, recentSlot uint64) (solana.Instruction, solana.PublicKey, error) {
	table, bump, err := DeriveAddress(authority, recentSlot)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionCreate, bin.LE); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := enc.WriteUint64(recentSlot, bin.LE); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := enc.WriteUint8(bump); err != nil {
		return nil, solana.PublicKey{}, err
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: table, IsSigner: false, IsWritable: true},
		{PublicKey: authority, IsSigner: true, IsWritable: false},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(ProgramID, accounts, buf.Bytes()), table, nil
}

// ExtendInstruction appends addresses to table.
func ExtendInstruction(table, authority, payer solana.PublicKey, addresses []solana.PublicKey) solana.Instruction {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint32(instructionExtend, bin.LE)
	_ = enc.WriteUint64(uint64(len(addresses)), bin.LE)
	for _, addr := range addresses {
		_ = enc.WriteBytes(addr.Bytes(), false)
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: table, IsSigner: false, IsWritable: true},
		{PublicKey: authority, IsSigner: true, IsWritable: false},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(ProgramID, accounts, buf.Bytes())
}

// Dedup removes repeated addresses, keeping the first occurrence.
func Dedup(addresses []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(addresses))
	out := make([]solana.PublicKey, 0, len(addresses))
	for _, addr := range addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// Chunk splits addresses into batches of at most size.
func Chunk(addresses []solana.PublicKey, size int) [][]solana.PublicKey {
	if size <= 0 {
		size = MaxAddressesPerExtend
	}
	var chunks [][]solana.PublicKey
	for start := 0; start < len(addresses); start += size {
		end := start + size
		if end > len(addresses) {
			end = len(addresses)
		}
		chunks = append(chunks, addresses[start:end])
	}
	return chunks
}
