package lookuptable

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var ErrInvalidTableAccount = errors.New("invalid lookup table account")

// metaSize is the fixed header before the address list.
const metaSize = 56

const lookupTableTypeTag uint32 = 1

// State is a decoded lookup table account.
type State struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	Authority                  *solana.PublicKey
	Addresses                  solana.PublicKeySlice
}

// IsActive reports whether the table has not been deactivated.
func (s *State) IsActive() bool {
	return s.DeactivationSlot == math.MaxUint64
}

// Missing returns the addresses of want that the table does not hold.
func (s *State) Missing(want []solana.PublicKey) []solana.PublicKey {
	have := make(map[solana.PublicKey]struct{}, len(s.Addresses))
	for _, addr := range s.Addresses {
		have[addr] = struct{}{}
	}
	var missing []solana.PublicKey
	for _, addr := range want {
		if _, ok := have[addr]; !ok {
			missing = append(missing, addr)
		}
	}
	return missing
}

// DecodeState parses raw lookup table account data.
func DecodeState(data []byte) (*State, error) {
	if len(data) < metaSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidTableAccount, len(data))
	}
	if (len(data)-metaSize)%solana.PublicKeyLength != 0 {
		return nil, fmt.Errorf("%w: trailing %d bytes", ErrInvalidTableAccount, (len(data)-metaSize)%solana.PublicKeyLength)
	}

	dec := bin.NewBinDecoder(data[:metaSize])
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	if tag != lookupTableTypeTag {
		return nil, fmt.Errorf("%w: type %d", ErrInvalidTableAccount, tag)
	}

	state := &State{}
	if state.DeactivationSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, err
	}
	if state.LastExtendedSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, err
	}
	if state.LastExtendedSlotStartIndex, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	hasAuthority, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	if hasAuthority == 1 {
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return nil, err
		}
		authority := solana.PublicKeyFromBytes(raw)
		state.Authority = &authority
	}

	for off := metaSize; off < len(data); off += solana.PublicKeyLength {
		state.Addresses = append(state.Addresses, solana.PublicKeyFromBytes(data[off:off+solana.PublicKeyLength]))
	}
	return state, nil
}

// EncodeState is the inverse of DecodeState.
func EncodeState(state *State) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint32(lookupTableTypeTag, bin.LE)
	_ = enc.WriteUint64(state.DeactivationSlot, bin.LE)
	_ = enc.WriteUint64(state.LastExtendedSlot, bin.LE)
	_ = enc.WriteUint8(state.LastExtendedSlotStartIndex)
	if state.Authority != nil {
		_ = enc.WriteUint8(1)
		_ = enc.WriteBytes(state.Authority.Bytes(), false)
	}
	// padding up to the address list
	buf.Write(make([]byte, metaSize-buf.Len()))
	for _, addr := range state.Addresses {
		buf.Write(addr.Bytes())
	}
	return buf.Bytes()
}
