package fuse

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Address is the 20-byte identity of a fuse, asset, or external counterparty.
type Address [20]byte

// ZeroAddress is the empty identity.
var ZeroAddress Address

// AddressFromHex parses a 40-hex-digit address, with or without 0x prefix.
func AddressFromHex(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 40 {
		return a, fmt.Errorf("address must be 40 hex digits, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether the address is the empty identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// MarshalText implements encoding.TextMarshaler for JSON map keys and fields.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := AddressFromHex(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Fuse is the identity every pluggable adapter carries: its own address and
// the market it operates in.
type Fuse interface {
	Address() Address
	MarketID() uint64
}

// ActionFuse is a fuse that can move value into or out of its market.
// Params are substrates: assets, sub-markets, or protocol-packed values the
// fuse knows how to interpret.
type ActionFuse interface {
	Fuse
	Enter(ctx context.Context, params []Substrate) error
	Exit(ctx context.Context, params []Substrate) error
}

// BalanceFuse reports its market's current value in 18-decimal USD.
// Exactly one balance fuse serves each market.
type BalanceFuse interface {
	Fuse
	BalanceOf(ctx context.Context) (*big.Int, error)
}

// Verb selects which side of an action fuse an Action invokes.
type Verb uint8

const (
	VerbEnter Verb = iota
	VerbExit
)

func (v Verb) String() string {
	switch v {
	case VerbEnter:
		return "enter"
	case VerbExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Action is one unit of work for the execution path: invoke the named fuse
// with the given params.
type Action struct {
	Fuse   Address
	Verb   Verb
	Params []Substrate
}
