package record

import (
	"math"
	"math/big"
)

// One is the fixed-point scale: amounts carry six decimal places.
const One = 1000000

// MaxAmount is the largest representable amount.
const MaxAmount = math.MaxInt64

// Rounding selects the direction for inexact division results.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

// BigDivide computes a*b/c with a 128-bit intermediate, rounding per the
// given mode. Returns false on division by zero, negative input, or a
// result outside int64 range. Overflow is never silent.
func BigDivide(a, b, c int64, round Rounding) (int64, bool) {
	if c == 0 || a < 0 || b < 0 {
		return 0, false
	}

	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	den := big.NewInt(c)

	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if round == RoundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}

	if !quo.IsInt64() {
		return 0, false
	}
	return quo.Int64(), true
}

// SafeAdd returns a+b, or false if the sum overflows int64 in either
// direction.
func SafeAdd(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// SafeAddUint64 returns a+b, or false if the sum wraps.
func SafeAddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// SafeMul returns a*b, or false on overflow. Inputs must be non-negative.
func SafeMul(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

// PercentFee computes amount*percent/(100*One) rounded per the given mode.
// percent is a fixed-point percentage: One represents 1%.
func PercentFee(amount, percent int64, round Rounding) (int64, bool) {
	return BigDivide(amount, percent, 100*One, round)
}
