package av

import (
	"fmt"
	"math/big"
)

// NoPTS marks an undefined timestamp.
const NoPTS int64 = -0x8000000000000000

type Rational struct {
	Num, Den int
}

func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

func (r Rational) Valid() bool {
	return r.Num != 0 && r.Den != 0
}

func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rescale converts ts from one time base to another, rounding to the
// nearest tick with halfway cases away from zero. Undefined timestamps
// pass through untouched.
func Rescale(ts int64, from, to Rational) int64 {
	if ts == NoPTS || !from.Valid() || !to.Valid() {
		return ts
	}

	num := new(big.Int).Mul(big.NewInt(ts), big.NewInt(int64(from.Num)*int64(to.Den)))
	den := big.NewInt(int64(from.Den) * int64(to.Num))
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}

	half := new(big.Int).Quo(den, big.NewInt(2))
	if num.Sign() >= 0 {
		num.Add(num, half)
	} else {
		num.Sub(num, half)
	}
	return num.Quo(num, den).Int64()
}
