package fixedpoint

import "math/big"

// expMaxExponent bounds the power-of-two range reduction in Exp. Arguments
// past this produce values with no meaning for funding or impact math
// (e^88 already exceeds any notional the market can represent).
const expMaxExponent = 128

// Exp returns e^x at 1e18 scale. Negative arguments are computed as the
// reciprocal of the positive case. Relative error is well under the 1e-4
// tolerance the accounting requires (the series is run to term exhaustion).
func Exp(x *big.Int) *big.Int {
	if x.Sign() < 0 {
		pos := Exp(new(big.Int).Neg(x))
		if pos.Sign() == 0 {
			return big.NewInt(0)
		}
		// 1e18 * 1e18 / e^|x|
		return DivDown(One, pos)
	}
	if x.Sign() == 0 {
		return Clone(One)
	}

	// Range reduction: x = n*ln2 + r with 0 <= r < ln2, so e^x = 2^n * e^r.
	n := new(big.Int).Quo(x, ln2)
	if !n.IsInt64() || n.Int64() > expMaxExponent {
		fail("Exp", "argument out of range")
	}
	r := new(big.Int).Sub(x, new(big.Int).Mul(n, ln2))

	// Maclaurin series for e^r: terms shrink geometrically since r < ln2.
	sum := Clone(One)
	term := Clone(One)
	for k := int64(1); term.Sign() != 0; k++ {
		term.Mul(term, r)
		term.Quo(term, One)
		term.Quo(term, big.NewInt(k))
		sum.Add(sum, term)
		if k > 64 {
			break
		}
	}

	return sum.Lsh(sum, uint(n.Int64()))
}

// Ln returns the natural logarithm of x at 1e18 scale. The result is
// negative for x < 1. Zero or negative arguments are hard failures.
func Ln(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		fail("Ln", "argument must be positive")
	}

	// Range reduction: scale m into [1, 2) by powers of two, so
	// ln(x) = k*ln2 + ln(m). k may be negative for x < 1.
	m := Clone(x)
	k := int64(0)
	for m.Cmp(Two) >= 0 {
		m.Rsh(m, 1)
		k++
	}
	for m.Cmp(One) < 0 {
		m.Lsh(m, 1)
		k--
	}

	// atanh series: ln(m) = 2*(z + z^3/3 + z^5/5 + ...) with
	// z = (m-1)/(m+1), |z| < 1/3 for m in [1, 2).
	z := DivDown(new(big.Int).Sub(m, One), new(big.Int).Add(m, One))
	z2 := MulDown(z, z)

	sum := Clone(z)
	term := Clone(z)
	for i := int64(3); term.Sign() != 0; i += 2 {
		term.Mul(term, z2)
		term.Quo(term, One)
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, new(big.Int).Quo(term, big.NewInt(i)))
		if i > 129 {
			break
		}
	}
	sum.Lsh(sum, 1)

	return sum.Add(sum, new(big.Int).Mul(big.NewInt(k), ln2))
}
