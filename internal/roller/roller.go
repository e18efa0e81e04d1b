// Package roller implements the exponentially decaying rolling accumulator
// used for ask volume, bid volume, and the circuit-breaker minted total.
package roller

import (
	"fmt"
	"math/big"
)

// Snapshot is the accumulator state at a point in time. WindowLast is in
// seconds; ValueLast is 1e18-scaled and may be signed (the minted
// accumulator preserves sign, the volume accumulators stay non-negative).
type Snapshot struct {
	TimestampLast int64
	WindowLast    int64
	ValueLast     *big.Int
}

// New returns an empty snapshot anchored at the given timestamp.
func New(timestamp int64) Snapshot {
	return Snapshot{TimestampLast: timestamp, ValueLast: big.NewInt(0)}
}

// Value returns a copy of the accumulated value.
func (s Snapshot) Value() *big.Int {
	if s.ValueLast == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.ValueLast)
}

// Transform rolls the snapshot forward to timestamp, decays the prior
// value, and folds in a new value over newWindow seconds.
//
// The prior value decays linearly to zero over WindowLast: anything at or
// past one full window contributes nothing (dt == WindowLast decays fully,
// not partially). The new window is the magnitude-weighted average of the
// decayed remainder's window and newWindow; when both magnitudes are zero
// the window resets to newWindow.
func (s Snapshot) Transform(timestamp, newWindow int64, value *big.Int) (Snapshot, error) {
	dt := timestamp - s.TimestampLast
	if dt < 0 {
		return Snapshot{}, fmt.Errorf("roller: timestamp went backwards (last=%d, new=%d)", s.TimestampLast, timestamp)
	}

	decayed := big.NewInt(0)
	if s.ValueLast != nil && s.WindowLast != 0 && dt < s.WindowLast {
		// valueLast * (windowLast - dt) / windowLast
		decayed.Mul(s.ValueLast, big.NewInt(s.WindowLast-dt))
		decayed.Quo(decayed, big.NewInt(s.WindowLast))
	}

	accumulated := new(big.Int).Add(decayed, value)

	// Window blend weights are magnitudes: the minted accumulator carries
	// sign in the value but a burn still widens the window like a mint.
	absDecayed := new(big.Int).Abs(decayed)
	absNew := new(big.Int).Abs(value)
	denom := new(big.Int).Add(absDecayed, absNew)

	window := newWindow
	if denom.Sign() != 0 {
		// ((windowLast - dt) * |decayed| + newWindow * |new|) / (|decayed| + |new|)
		remaining := s.WindowLast - dt
		if remaining < 0 {
			remaining = 0
		}
		num := new(big.Int).Mul(big.NewInt(remaining), absDecayed)
		num.Add(num, new(big.Int).Mul(big.NewInt(newWindow), absNew))
		num.Quo(num, denom)
		window = num.Int64()
	}

	return Snapshot{
		TimestampLast: timestamp,
		WindowLast:    window,
		ValueLast:     accumulated,
	}, nil
}
