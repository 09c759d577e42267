package fpmath

import (
	"math/big"
	"sync"
)

// WAD is the fixed-point scale for percentages and 18-decimal USD values:
// 1e18 = 100% (or 1 USD).
var WAD = new(big.Int).SetUint64(1_000_000_000_000_000_000)

// Wad returns a copy of the WAD scale for callers that mutate.
func Wad() *big.Int {
	return new(big.Int).Set(WAD)
}

// bigPool recycles big.Ints used as intermediates in mul-then-div chains.
var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	bigPool.Put(v)
}

// MulDivDown computes floor(a * b / denom) at full precision: the product is
// never truncated before the division. denom must be non-zero.
func MulDivDown(a, b, denom *big.Int) *big.Int {
	prod := getBig()
	prod.Mul(a, b)

	result := new(big.Int).Quo(prod, denom)

	putBig(prod)
	return result
}

// MulDivUp computes ceil(a * b / denom) at full precision.
func MulDivUp(a, b, denom *big.Int) *big.Int {
	prod := getBig()
	rem := getBig()
	prod.Mul(a, b)

	result := new(big.Int)
	result.QuoRem(prod, denom, rem)
	if rem.Sign() != 0 {
		result.Add(result, big.NewInt(1))
	}

	putBig(prod)
	putBig(rem)
	return result
}

// PercentOf computes floor(pct * total / WAD), where pct is WAD-scaled
// (1e18 = 100%). Rounds down: the permitted ceiling never exceeds the
// exact fraction.
func PercentOf(total, pct *big.Int) *big.Int {
	return MulDivDown(pct, total, WAD)
}

// DustTolerance returns 10^(decimals/2), the residual-value threshold below
// which a market counts as empty for deregistration purposes. With 18
// decimals this is 1e9, one billionth of a whole unit.
func DustTolerance(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals/2)), nil)
}
