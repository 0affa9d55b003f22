package circuit

import "math/bits"

// Fixed fee law shared bit-for-bit between the circuit's conservation
// constraint and the settlement kernel's recomputation, per
// SPEC_FULL.md §4.3 constraint 5 / §4.4 step 5.
const (
	FixedFee = 2_500_000
	VarNum   = 5
	VarDen   = 1_000
)

// Fee computes fee(a) = FIXED_FEE + floor(a * VAR_NUM / VAR_DEN) using
// checked u64 arithmetic. ok is false on overflow, matching the
// MathOverflow boundary behaviour named in SPEC_FULL.md §8.
func Fee(amount uint64) (fee uint64, ok bool) {
	hi, lo := bits.Mul64(amount, VarNum)
	if hi >= VarDen {
		return 0, false // quotient would not fit in 64 bits
	}
	q, _ := bits.Div64(hi, lo, VarDen)

	sum := q + FixedFee
	if sum < q {
		return 0, false // FixedFee + q overflowed
	}
	return sum, true
}
