// Package fixedpoint implements 1e18-scaled decimal arithmetic on big.Int.
// All market accounting runs through this package; there is no floating
// point anywhere in the core. Division and multiplication round down
// (floor) unless the Up variant is used.
package fixedpoint

import (
	"fmt"
	"math/big"
)

// Scale is the number of decimal places in the fixed-point representation.
const Scale = 18

var (
	// One is 1.0 at 1e18 scale.
	One = big.NewInt(1_000_000_000_000_000_000)

	// Two is 2.0 at 1e18 scale.
	Two = big.NewInt(2_000_000_000_000_000_000)

	zero = big.NewInt(0)

	// ln2 at 1e18 scale, used for range reduction in Exp and Ln.
	ln2 = big.NewInt(693_147_180_559_945_309)
)

// ArithmeticError is raised (via panic) on division by zero or on inputs
// outside a function's domain. It is unconditionally fatal to the enclosing
// market operation; callers never clamp silently.
type ArithmeticError struct {
	Op     string
	Detail string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("fixedpoint: %s: %s", e.Op, e.Detail)
}

func fail(op, detail string) {
	panic(&ArithmeticError{Op: op, Detail: detail})
}

// NewFromInt returns v * 1e18 as a fixed-point value.
func NewFromInt(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), One)
}

// Clone returns an independent copy of v.
func Clone(v *big.Int) *big.Int {
	return new(big.Int).Set(v)
}

// Add returns a + b.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// Sub returns a - b.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// MulDown returns a * b / 1e18, rounded toward zero.
func MulDown(a, b *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, One)
}

// MulUp returns a * b / 1e18, rounded away from zero for non-negative
// operands.
func MulUp(a, b *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	if p.Sign() == 0 {
		return p
	}
	r := new(big.Int)
	q, r := p.QuoRem(p, One, r)
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// DivDown returns a * 1e18 / b, rounded toward zero. Division by zero is a
// hard failure.
func DivDown(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		fail("DivDown", "division by zero")
	}
	p := new(big.Int).Mul(a, One)
	return p.Quo(p, b)
}

// DivUp returns a * 1e18 / b, rounded away from zero for non-negative
// operands. Division by zero is a hard failure.
func DivUp(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		fail("DivUp", "division by zero")
	}
	p := new(big.Int).Mul(a, One)
	r := new(big.Int)
	q, r := p.QuoRem(p, b, r)
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Min returns the smaller of a and b (a copy).
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// Max returns the larger of a and b (a copy).
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// IsZero reports whether v == 0.
func IsZero(v *big.Int) bool {
	return v.Sign() == 0
}
