package fpmath_test

import (
	"math/big"
	"testing"

	"VaultCore/internal/fpmath"
)

// ============================================================================
// Test: MulDiv rounding
// ============================================================================

func TestMulDivDown_Floors(t *testing.T) {
	// 7 * 3 / 2 = 10.5 -> 10
	got := fpmath.MulDivDown(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("got %s, want 10", got)
	}
}

func TestMulDivUp_Ceils(t *testing.T) {
	got := fpmath.MulDivUp(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Cmp(big.NewInt(11)) != 0 {
		t.Errorf("got %s, want 11", got)
	}

	// Exact division must not round up.
	got = fpmath.MulDivUp(big.NewInt(6), big.NewInt(3), big.NewInt(2))
	if got.Cmp(big.NewInt(9)) != 0 {
		t.Errorf("exact: got %s, want 9", got)
	}
}

// The product must be carried at full precision: 2^64 * 2^64 / 2^64 would
// overflow any machine-word intermediate but is exact here.
func TestMulDiv_FullPrecisionIntermediate(t *testing.T) {
	two64 := new(big.Int).Lsh(big.NewInt(1), 64)

	got := fpmath.MulDivDown(two64, two64, two64)
	if got.Cmp(two64) != 0 {
		t.Errorf("got %s, want 2^64", got)
	}
}

// ============================================================================
// Test: PercentOf
// ============================================================================

func TestPercentOf(t *testing.T) {
	wad := fpmath.Wad()
	thirtyPct := new(big.Int).Div(new(big.Int).Mul(wad, big.NewInt(30)), big.NewInt(100))

	tests := []struct {
		name  string
		total *big.Int
		pct   *big.Int
		want  *big.Int
	}{
		{"30% of 1000", big.NewInt(1000), thirtyPct, big.NewInt(300)},
		{"100% is identity", big.NewInt(12345), wad, big.NewInt(12345)},
		{"0% is zero", big.NewInt(12345), new(big.Int), new(big.Int)},
		{"floors fractional result", big.NewInt(3), new(big.Int).Div(wad, big.NewInt(2)), big.NewInt(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fpmath.PercentOf(tt.total, tt.pct)
			if got.Cmp(tt.want) != 0 {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Test: DustTolerance
// ============================================================================

func TestDustTolerance(t *testing.T) {
	tests := []struct {
		decimals uint8
		want     int64
	}{
		{18, 1_000_000_000},
		{8, 10_000},
		{6, 1_000},
		{1, 1}, // odd decimals floor the exponent
		{0, 1},
	}
	for _, tt := range tests {
		if got := fpmath.DustTolerance(tt.decimals); got.Cmp(big.NewInt(tt.want)) != 0 {
			t.Errorf("decimals %d: got %s, want %d", tt.decimals, got, tt.want)
		}
	}
}

func TestWad_ReturnsCopy(t *testing.T) {
	fpmath.Wad().SetInt64(1)
	if fpmath.Wad().Cmp(fpmath.WAD) != 0 {
		t.Error("mutating a returned Wad copy must not affect the scale")
	}
}
