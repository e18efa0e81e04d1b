// Package pricing computes bid/ask from the feed mid price and traded
// volume, and the dynamic notional caps (front-run/back-run bounds and the
// minted circuit breaker) that bound every build.
package pricing

import (
	"math/big"

	"PerpMarket/internal/feed"
	"PerpMarket/internal/fixedpoint"
	"PerpMarket/internal/risk"
)

// DriftReferenceSeconds is the fixed reference period for the dataIsValid
// drift bound. It is deliberately independent of the feed's actual macro
// window: a constant carried over from the reference deployment, pending
// product-owner confirmation.
const DriftReferenceSeconds = 3000

// Engine prices against an immutable parameter snapshot taken at the start
// of the enclosing market operation.
type Engine struct {
	params risk.Snapshot
}

func New(params risk.Snapshot) Engine {
	return Engine{params: params}
}

// Mid blends the feed's micro and macro prices into the reference price.
func Mid(d feed.Data) *big.Int {
	sum := new(big.Int).Add(d.PriceOverMicroWindow, d.PriceOverMacroWindow)
	return sum.Rsh(sum, 1)
}

// impactPow is delta + lambda*volume, the exponent of the market-impact
// function. Volume is the 1e18 fraction of capacity traded.
func (e Engine) impactPow(volume *big.Int) *big.Int {
	pow := fixedpoint.MulDown(e.params.Get(risk.Lambda), volume)
	return pow.Add(pow, e.params.Get(risk.Delta))
}

// Ask returns mid * e^(delta + lambda*volume).
func (e Engine) Ask(d feed.Data, volume *big.Int) *big.Int {
	return fixedpoint.MulUp(Mid(d), fixedpoint.Exp(e.impactPow(volume)))
}

// Bid returns mid * e^-(delta + lambda*volume).
func (e Engine) Bid(d feed.Data, volume *big.Int) *big.Int {
	pow := e.impactPow(volume)
	return fixedpoint.MulDown(Mid(d), fixedpoint.Exp(pow.Neg(pow)))
}

// FrontRunBound caps notional against a single-block front-run of the
// micro-window TWAP: lambda * reserveOverMicroWindow. Without a reserve the
// bound does not apply (nil = unbounded).
func (e Engine) FrontRunBound(d feed.Data) *big.Int {
	if !d.HasReserve {
		return nil
	}
	return fixedpoint.MulDown(e.params.Get(risk.Lambda), d.ReserveOverMicroWindow)
}

// BackRunBound caps notional against a multi-block back-run over the macro
// window: 2 * delta * reserve * (macroWindow / averageBlockTime).
func (e Engine) BackRunBound(d feed.Data) *big.Int {
	if !d.HasReserve {
		return nil
	}
	blocks := fixedpoint.DivDown(
		fixedpoint.NewFromInt(d.MacroWindow),
		e.params.Get(risk.AverageBlockTime),
	)
	bound := new(big.Int).Lsh(e.params.Get(risk.Delta), 1)
	bound = fixedpoint.MulDown(bound, d.ReserveOverMicroWindow)
	return fixedpoint.MulDown(bound, blocks)
}

// CapNotionalAdjustedForBounds returns min(capNotional, frontRunBound,
// backRunBound) when the feed reports a reserve, else capNotional.
func (e Engine) CapNotionalAdjustedForBounds(d feed.Data, capNotional *big.Int) *big.Int {
	cap := fixedpoint.Clone(capNotional)
	if front := e.FrontRunBound(d); front != nil {
		cap = fixedpoint.Min(cap, front)
	}
	if back := e.BackRunBound(d); back != nil {
		cap = fixedpoint.Min(cap, back)
	}
	return cap
}

// CircuitBreaker shrinks capNotional as the rolling minted total approaches
// the governance target: unchanged at or below target/2, zero at or above
// 2*target, linear in between (exactly capNotional at minted == target).
func (e Engine) CircuitBreaker(minted, capNotional *big.Int) *big.Int {
	target := e.params.Get(risk.CircuitBreakerMintTarget)
	if target.Sign() == 0 {
		if minted.Sign() > 0 {
			return big.NewInt(0)
		}
		return fixedpoint.Clone(capNotional)
	}

	halfTarget := new(big.Int).Rsh(target, 1)
	if minted.Cmp(halfTarget) <= 0 {
		return fixedpoint.Clone(capNotional)
	}
	doubleTarget := new(big.Int).Lsh(target, 1)
	if minted.Cmp(doubleTarget) >= 0 {
		return big.NewInt(0)
	}

	// capNotional * (2 - minted/target)
	factor := fixedpoint.Sub(fixedpoint.Two, fixedpoint.DivDown(minted, target))
	return fixedpoint.MulDown(capNotional, factor)
}

// CapNotionalAdjustedForCircuitBreaker returns min(capNotional,
// CircuitBreaker(minted, capNotional)).
func (e Engine) CapNotionalAdjustedForCircuitBreaker(minted, capNotional *big.Int) *big.Int {
	return fixedpoint.Min(capNotional, e.CircuitBreaker(minted, capNotional))
}

// OiFromNotional converts quote-denominated notional to open interest at
// the given price, rounding down. A zero result on a non-zero notional is
// a caller error surfaced by the market's oi==0 precondition.
func OiFromNotional(notional, price *big.Int) *big.Int {
	return fixedpoint.DivDown(notional, price)
}

// DataIsValid rejects a feed tuple when either macro price is zero or the
// macro-window drift ratio leaves [e^(-drift*3000), e^(drift*3000)].
func (e Engine) DataIsValid(d feed.Data) bool {
	priceNow := d.PriceOverMacroWindow
	priceAgo := d.PriceOneMacroWindowAgo
	if priceNow == nil || priceAgo == nil || priceNow.Sign() == 0 || priceAgo.Sign() == 0 {
		return false
	}

	pow := new(big.Int).Mul(e.params.Get(risk.PriceDriftUpperLimit), big.NewInt(DriftReferenceSeconds))
	upper := fixedpoint.Exp(pow)
	lower := fixedpoint.DivDown(fixedpoint.One, upper)

	ratio := fixedpoint.DivDown(priceNow, priceAgo)
	return ratio.Cmp(lower) >= 0 && ratio.Cmp(upper) <= 0
}
