// =============================
// File: internal/dex/bondingcurve/accounts.go
// =============================
package bondingcurve

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

var (
	ErrInvalidDiscriminator = errors.New("invalid account discriminator")
	ErrAccountDataTooShort  = errors.New("account data too short")
)

// Anchor discriminators of the accounts this package reads.
var (
	ConfigAccountDiscriminator       = anchorDiscriminator("account", "Config")
	BondingCurveAccountDiscriminator = anchorDiscriminator("account", "BondingCurve")
)

func anchorDiscriminator(namespace, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// AmountConfigU64 is the borsh enum AmountConfig<u64>: either a Range or an
// explicit list of allowed values.
type AmountConfigU64 struct {
	Range *RangeU64
	Enum  []uint64
}

// AmountConfigU8 is AmountConfig<u8>.
type AmountConfigU8 struct {
	Range *RangeU8
	Enum  []uint8
}

const (
	amountConfigRange uint8 = 0
	amountConfigEnum  uint8 = 1
)

func (a AmountConfigU64) MarshalWithEncoder(enc *bin.Encoder) error {
	if a.Range == nil {
		if err := enc.WriteUint8(amountConfigEnum); err != nil {
			return err
		}
		if err := enc.WriteUint32(uint32(len(a.Enum)), bin.LE); err != nil {
			return err
		}
		for _, v := range a.Enum {
			if err := enc.WriteUint64(v, bin.LE); err != nil {
				return err
			}
		}
		return nil
	}
	if err := enc.WriteUint8(amountConfigRange); err != nil {
		return err
	}
	if err := writeOptionU64(enc, a.Range.Min); err != nil {
		return err
	}
	return writeOptionU64(enc, a.Range.Max)
}

func (a *AmountConfigU64) UnmarshalWithDecoder(dec *bin.Decoder) error {
	tag, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	switch tag {
	case amountConfigRange:
		r := &RangeU64{}
		if r.Min, err = readOptionU64(dec); err != nil {
			return err
		}
		if r.Max, err = readOptionU64(dec); err != nil {
			return err
		}
		a.Range = r
	case amountConfigEnum:
		n, err := dec.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		a.Enum = make([]uint64, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := dec.ReadUint64(bin.LE)
			if err != nil {
				return err
			}
			a.Enum = append(a.Enum, v)
		}
	default:
		return fmt.Errorf("unknown amount config variant %d", tag)
	}
	return nil
}

// Contains reports whether v is allowed.
func (a AmountConfigU64) Contains(v uint64) bool {
	if a.Range != nil {
		return (a.Range.Min == nil || v >= *a.Range.Min) && (a.Range.Max == nil || v <= *a.Range.Max)
	}
	for _, allowed := range a.Enum {
		if allowed == v {
			return true
		}
	}
	return false
}

func (a AmountConfigU8) MarshalWithEncoder(enc *bin.Encoder) error {
	if a.Range == nil {
		if err := enc.WriteUint8(amountConfigEnum); err != nil {
			return err
		}
		if err := enc.WriteUint32(uint32(len(a.Enum)), bin.LE); err != nil {
			return err
		}
		for _, v := range a.Enum {
			if err := enc.WriteUint8(v); err != nil {
				return err
			}
		}
		return nil
	}
	if err := enc.WriteUint8(amountConfigRange); err != nil {
		return err
	}
	if err := writeOptionU8(enc, a.Range.Min); err != nil {
		return err
	}
	return writeOptionU8(enc, a.Range.Max)
}

func (a *AmountConfigU8) UnmarshalWithDecoder(dec *bin.Decoder) error {
	tag, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	switch tag {
	case amountConfigRange:
		r := &RangeU8{}
		if r.Min, err = readOptionU8(dec); err != nil {
			return err
		}
		if r.Max, err = readOptionU8(dec); err != nil {
			return err
		}
		a.Range = r
	case amountConfigEnum:
		n, err := dec.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		a.Enum = make([]uint8, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := dec.ReadUint8()
			if err != nil {
				return err
			}
			a.Enum = append(a.Enum, v)
		}
	default:
		return fmt.Errorf("unknown amount config variant %d", tag)
	}
	return nil
}

// Contains reports whether v is allowed.
func (a AmountConfigU8) Contains(v uint8) bool {
	if a.Range != nil {
		return (a.Range.Min == nil || v >= *a.Range.Min) && (a.Range.Max == nil || v <= *a.Range.Max)
	}
	for _, allowed := range a.Enum {
		if allowed == v {
			return true
		}
	}
	return false
}

func writeOptionU64(enc *bin.Encoder, v *uint64) error {
	if v == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteUint64(*v, bin.LE)
}

func readOptionU64(dec *bin.Decoder) (*uint64, error) {
	some, err := dec.ReadUint8()
	if err != nil || some == 0 {
		return nil, err
	}
	v, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeOptionU8(enc *bin.Encoder, v *uint8) error {
	if v == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteUint8(*v)
}

func readOptionU8(dec *bin.Decoder) (*uint8, error) {
	some, err := dec.ReadUint8()
	if err != nil || some == 0 {
		return nil, err
	}
	v, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeAccount(data []byte, discriminator [8]byte, dst interface{}) error {
	if len(data) < len(discriminator) {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooShort, len(data))
	}
	if !bytes.Equal(data[:8], discriminator[:]) {
		return ErrInvalidDiscriminator
	}
	return bin.NewBorshDecoder(data[8:]).Decode(dst)
}

func encodeAccount(discriminator [8]byte, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeConfigAccount parses raw Config account data.
func DecodeConfigAccount(data []byte) (*ConfigAccount, error) {
	var cfg ConfigAccount
	if err := decodeAccount(data, ConfigAccountDiscriminator, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config account: %w", err)
	}
	return &cfg, nil
}

// DecodeBondingCurveAccount parses raw BondingCurve account data.
func DecodeBondingCurveAccount(data []byte) (*BondingCurveAccount, error) {
	var curve BondingCurveAccount
	if err := decodeAccount(data, BondingCurveAccountDiscriminator, &curve); err != nil {
		return nil, fmt.Errorf("failed to decode bonding curve account: %w", err)
	}
	return &curve, nil
}

// EncodeConfigAccount produces the on-chain representation of cfg.
func EncodeConfigAccount(cfg *ConfigAccount) ([]byte, error) {
	return encodeAccount(ConfigAccountDiscriminator, cfg)
}

// EncodeBondingCurveAccount produces the on-chain representation of curve.
func EncodeBondingCurveAccount(curve *BondingCurveAccount) ([]byte, error) {
	return encodeAccount(BondingCurveAccountDiscriminator, curve)
}

// BuyFeeBps returns the platform buy fee in basis points.
func (c *ConfigAccount) BuyFeeBps() (uint64, error) {
	return FeeBps(c.PlatformBuyFee)
}

// SellFeeBps returns the platform sell fee in basis points.
func (c *ConfigAccount) SellFeeBps() (uint64, error) {
	return FeeBps(c.PlatformSellFee)
}
