// Package feed defines the price-feed collaborator interface. Concrete
// oracle adapters (Uniswap V3, Balancer V2 style TWAPs) live outside this
// repository; the market consumes only the aggregated tuple below.
package feed

import (
	"fmt"
	"math/big"
	"time"
)

// Data is a single aggregated quote from the oracle. Prices and the reserve
// are 1e18-scaled; windows and the timestamp are unix seconds.
type Data struct {
	Timestamp              int64
	MicroWindow            int64
	MacroWindow            int64
	PriceOverMicroWindow   *big.Int
	PriceOverMacroWindow   *big.Int
	PriceOneMacroWindowAgo *big.Int
	ReserveOverMicroWindow *big.Int
	HasReserve             bool
}

// Feed supplies the latest aggregated quote. Latest is treated as an
// atomic sub-call: any error aborts the enclosing market operation.
type Feed interface {
	Latest() (Data, error)
}

// Validate rejects structurally unusable tuples before any pricing math.
// Staleness/drift checks are a pricing concern, not a shape concern.
func (d Data) Validate() error {
	if d.PriceOverMicroWindow == nil || d.PriceOverMacroWindow == nil || d.PriceOneMacroWindowAgo == nil {
		return fmt.Errorf("feed: nil price in data tuple")
	}
	if d.MicroWindow <= 0 || d.MacroWindow <= 0 {
		return fmt.Errorf("feed: non-positive window (micro=%d, macro=%d)", d.MicroWindow, d.MacroWindow)
	}
	if d.HasReserve && d.ReserveOverMicroWindow == nil {
		return fmt.Errorf("feed: hasReserve set with nil reserve")
	}
	return nil
}

// Fixed is a constant feed for tests and local runs. The timestamp can be
// advanced between calls to simulate elapsed chain time.
type Fixed struct {
	Data Data
}

// NewFixed returns a Fixed feed quoting price for both windows with the
// given reserve (nil reserve means HasReserve=false).
func NewFixed(timestamp int64, price, reserve *big.Int) *Fixed {
	return &Fixed{Data: Data{
		Timestamp:              timestamp,
		MicroWindow:            600,
		MacroWindow:            3600,
		PriceOverMicroWindow:   new(big.Int).Set(price),
		PriceOverMacroWindow:   new(big.Int).Set(price),
		PriceOneMacroWindowAgo: new(big.Int).Set(price),
		ReserveOverMicroWindow: reserve,
		HasReserve:             reserve != nil,
	}}
}

func (f *Fixed) Latest() (Data, error) {
	return f.Data, nil
}

// Clocked quotes a constant price stamped with wall time, so elapsed
// seconds accrue funding in local runs. The quote itself never changes;
// a real oracle adapter replaces this in production.
type Clocked struct {
	base Data
	now  func() int64
}

// NewClocked wraps a fixed quote with the given clock (nil means wall time).
func NewClocked(price, reserve *big.Int, now func() int64) *Clocked {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	f := NewFixed(0, price, reserve)
	return &Clocked{base: f.Data, now: now}
}

func (c *Clocked) Latest() (Data, error) {
	d := c.base
	d.Timestamp = c.now()
	return d, nil
}

// Advance moves the feed clock forward by dt seconds.
func (f *Fixed) Advance(dt int64) {
	f.Data.Timestamp += dt
}

// SetPrice updates both window prices to p.
func (f *Fixed) SetPrice(p *big.Int) {
	f.Data.PriceOverMicroWindow = new(big.Int).Set(p)
	f.Data.PriceOverMacroWindow = new(big.Int).Set(p)
}
