package fuse

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Substrate is an opaque 32-byte identifier scoped to a market. It may carry
// an address (zero-extended into the low 20 bytes, high bytes clear), a
// numeric sub-market id, or protocol-specific packed data. Only the address
// and uint64 encodings are defined here; packed substrates mean whatever the
// fuse that receives them decides.
type Substrate [32]byte

// SubstrateFromAddress zero-extends a 20-byte address into substrate space.
// The encoding is invertible via Substrate.AsAddress.
func SubstrateFromAddress(a Address) Substrate {
	var s Substrate
	copy(s[12:], a[:])
	return s
}

// AsAddress extracts the low 20 bytes, discarding the high bytes.
func (s Substrate) AsAddress() Address {
	var a Address
	copy(a[:], s[12:])
	return a
}

// SubstrateFromUint64 encodes a numeric sub-market identifier big-endian
// into the low 8 bytes.
func SubstrateFromUint64(v uint64) Substrate {
	var s Substrate
	binary.BigEndian.PutUint64(s[24:], v)
	return s
}

// AsUint64 extracts the low 8 bytes as a big-endian integer.
func (s Substrate) AsUint64() uint64 {
	return binary.BigEndian.Uint64(s[24:])
}

// SubstrateFromBytes packs up to 32 raw bytes, right-aligned. Longer inputs
// are rejected rather than truncated.
func SubstrateFromBytes(b []byte) (Substrate, error) {
	var s Substrate
	if len(b) > 32 {
		return s, fmt.Errorf("substrate payload too long: %d bytes", len(b))
	}
	copy(s[32-len(b):], b)
	return s, nil
}

// SubstrateFromHex parses a 64-hex-digit substrate, with or without 0x prefix.
func SubstrateFromHex(str string) (Substrate, error) {
	var s Substrate
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	if len(str) != 64 {
		return s, fmt.Errorf("substrate must be 64 hex digits, got %d", len(str))
	}
	b, err := hex.DecodeString(str)
	if err != nil {
		return s, fmt.Errorf("decode substrate: %w", err)
	}
	copy(s[:], b)
	return s, nil
}

// Hex returns the 0x-prefixed lowercase hex form.
func (s Substrate) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Substrate) String() string {
	return s.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (s Substrate) MarshalText() ([]byte, error) {
	return []byte(s.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Substrate) UnmarshalText(b []byte) error {
	parsed, err := SubstrateFromHex(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
