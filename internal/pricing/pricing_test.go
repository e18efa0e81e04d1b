package pricing_test

import (
	"math/big"
	"testing"

	"PerpMarket/internal/feed"
	"PerpMarket/internal/fixedpoint"
	"PerpMarket/internal/pricing"
	"PerpMarket/internal/risk"
)

func fp(v int64) *big.Int {
	return fixedpoint.NewFromInt(v)
}

func fpFrac(num, den int64) *big.Int {
	return fixedpoint.DivDown(fp(num), fp(den))
}

func testData(price, reserve *big.Int) feed.Data {
	d := feed.Data{
		Timestamp:              1_643_583_611,
		MicroWindow:            600,
		MacroWindow:            3600,
		PriceOverMicroWindow:   new(big.Int).Set(price),
		PriceOverMacroWindow:   new(big.Int).Set(price),
		PriceOneMacroWindowAgo: new(big.Int).Set(price),
	}
	if reserve != nil {
		d.ReserveOverMicroWindow = reserve
		d.HasReserve = true
	}
	return d
}

func relDiff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	d.Abs(d)
	return fixedpoint.DivDown(d, b)
}

func TestMid_BlendsMicroAndMacro(t *testing.T) {
	d := testData(fp(100), nil)
	d.PriceOverMicroWindow = fp(90)
	d.PriceOverMacroWindow = fp(110)
	if got := pricing.Mid(d); got.Cmp(fp(100)) != 0 {
		t.Errorf("mid: got %s, want %s", got, fp(100))
	}
}

func TestAskBid_StraddleMid(t *testing.T) {
	e := pricing.New(risk.Defaults().Snapshot())
	d := testData(fp(100), nil)
	vol := fpFrac(1, 100)

	ask := e.Ask(d, vol)
	bid := e.Bid(d, vol)
	mid := pricing.Mid(d)

	if ask.Cmp(mid) <= 0 {
		t.Errorf("ask %s should exceed mid %s", ask, mid)
	}
	if bid.Cmp(mid) >= 0 {
		t.Errorf("bid %s should be below mid %s", bid, mid)
	}

	// exp(x)*exp(-x) == 1: bid*ask should round-trip to mid^2.
	prod := fixedpoint.MulDown(ask, bid)
	midSq := fixedpoint.MulDown(mid, mid)
	tol := big.NewInt(100_000_000_000_000) // 1e-4 at 1e18 scale
	if relDiff(prod, midSq).Cmp(tol) > 0 {
		t.Errorf("bid*ask: got %s, want ~%s", prod, midSq)
	}
}

func TestAskBid_MonotonicInVolume(t *testing.T) {
	e := pricing.New(risk.Defaults().Snapshot())
	d := testData(fp(100), nil)

	askSmall := e.Ask(d, fpFrac(1, 1000))
	askLarge := e.Ask(d, fpFrac(1, 10))
	if askLarge.Cmp(askSmall) <= 0 {
		t.Error("ask should increase with volume")
	}

	bidSmall := e.Bid(d, fpFrac(1, 1000))
	bidLarge := e.Bid(d, fpFrac(1, 10))
	if bidLarge.Cmp(bidSmall) >= 0 {
		t.Error("bid should decrease with volume")
	}
}

func TestFrontRunBound(t *testing.T) {
	store := risk.Defaults()
	if err := store.Set(risk.Lambda, fpFrac(1, 2)); err != nil {
		t.Fatal(err)
	}
	e := pricing.New(store.Snapshot())

	d := testData(fp(100), fp(10_000))
	got := e.FrontRunBound(d)
	if got.Cmp(fp(5_000)) != 0 {
		t.Errorf("frontRunBound: got %s, want %s", got, fp(5_000))
	}

	if e.FrontRunBound(testData(fp(100), nil)) != nil {
		t.Error("frontRunBound without reserve should be unbounded (nil)")
	}
}

func TestBackRunBound(t *testing.T) {
	store := risk.Defaults()
	if err := store.Set(risk.Delta, fpFrac(1, 400)); err != nil { // 0.0025
		t.Fatal(err)
	}
	if err := store.Set(risk.AverageBlockTime, fp(14)); err != nil {
		t.Fatal(err)
	}
	e := pricing.New(store.Snapshot())

	// 2 * 0.0025 * 10000 * (3600/14) = 50 * 257.142... = 12857.14...
	d := testData(fp(100), fp(10_000))
	got := e.BackRunBound(d)
	want := fixedpoint.MulDown(fp(50), fixedpoint.DivDown(fp(3600), fp(14)))
	if got.Cmp(want) != 0 {
		t.Errorf("backRunBound: got %s, want %s", got, want)
	}
}

func TestCapNotionalAdjustedForBounds(t *testing.T) {
	store := risk.Defaults()
	if err := store.Set(risk.Lambda, fp(1)); err != nil {
		t.Fatal(err)
	}
	e := pricing.New(store.Snapshot())

	// Tiny reserve: frontRunBound = 1 * 100 = 100 binds below the cap.
	d := testData(fp(100), fp(100))
	got := e.CapNotionalAdjustedForBounds(d, fp(800_000))
	if got.Cmp(fp(100)) != 0 {
		t.Errorf("bounded cap: got %s, want %s", got, fp(100))
	}

	// No reserve: cap passes through untouched.
	got = e.CapNotionalAdjustedForBounds(testData(fp(100), nil), fp(800_000))
	if got.Cmp(fp(800_000)) != 0 {
		t.Errorf("unbounded cap: got %s, want %s", got, fp(800_000))
	}
}

func TestCircuitBreaker_Regions(t *testing.T) {
	store := risk.Defaults()
	target := fp(1000)
	if err := store.Set(risk.CircuitBreakerMintTarget, target); err != nil {
		t.Fatal(err)
	}
	e := pricing.New(store.Snapshot())
	cap := fp(500_000)

	// minted <= target/2: unchanged.
	if got := e.CircuitBreaker(fp(500), cap); got.Cmp(cap) != 0 {
		t.Errorf("at target/2: got %s, want %s", got, cap)
	}
	if got := e.CircuitBreaker(fp(-100), cap); got.Cmp(cap) != 0 {
		t.Errorf("negative minted: got %s, want %s", got, cap)
	}

	// minted >= 2*target: zero.
	if got := e.CircuitBreaker(fp(2000), cap); got.Sign() != 0 {
		t.Errorf("at 2*target: got %s, want 0", got)
	}

	// Interpolation midpoint: minted == target gives exactly cap * (2-1).
	if got := e.CircuitBreaker(fp(1000), cap); got.Cmp(cap) != 0 {
		t.Errorf("at target: got %s, want %s", got, cap)
	}

	// Three-quarter point: minted = 1.5*target gives cap * 0.5.
	if got := e.CircuitBreaker(fp(1500), cap); got.Cmp(fp(250_000)) != 0 {
		t.Errorf("at 1.5*target: got %s, want %s", got, fp(250_000))
	}
}

func TestOiFromNotional(t *testing.T) {
	got := pricing.OiFromNotional(fp(1000), fp(4))
	if got.Cmp(fp(250)) != 0 {
		t.Errorf("oi: got %s, want %s", got, fp(250))
	}

	// Rounds down to zero when notional is below one price unit of oi.
	got = pricing.OiFromNotional(big.NewInt(1), fp(1_000_000))
	if got.Sign() != 0 {
		t.Errorf("dust notional should floor to zero oi, got %s", got)
	}
}

func TestDataIsValid_DriftBound(t *testing.T) {
	store := risk.Defaults()
	drift := fpFrac(1, 100_000) // 0.00001 per second
	if err := store.Set(risk.PriceDriftUpperLimit, drift); err != nil {
		t.Fatal(err)
	}
	e := pricing.New(store.Snapshot())

	// pow = drift * 3000 = 0.03; ratio must stay within [e^-0.03, e^0.03].
	priceAgo := fp(100)

	inside := fixedpoint.MulDown(priceAgo, fixedpoint.Exp(fpFrac(29, 1000)))
	d := testData(fp(100), nil)
	d.PriceOverMacroWindow = inside
	d.PriceOneMacroWindowAgo = priceAgo
	if !e.DataIsValid(d) {
		t.Error("ratio just under the upper limit should be valid")
	}

	outside := fixedpoint.MulDown(priceAgo, fixedpoint.Exp(fpFrac(31, 1000)))
	d.PriceOverMacroWindow = outside
	if e.DataIsValid(d) {
		t.Error("ratio past the upper limit should be invalid")
	}

	// Symmetric lower bound.
	d.PriceOverMacroWindow = fixedpoint.DivDown(priceAgo, fixedpoint.Exp(fpFrac(31, 1000)))
	if e.DataIsValid(d) {
		t.Error("ratio past the lower limit should be invalid")
	}
}

func TestDataIsValid_ZeroPrices(t *testing.T) {
	e := pricing.New(risk.Defaults().Snapshot())

	d := testData(fp(100), nil)
	d.PriceOverMacroWindow = big.NewInt(0)
	if e.DataIsValid(d) {
		t.Error("zero priceNow should be invalid")
	}

	d = testData(fp(100), nil)
	d.PriceOneMacroWindowAgo = big.NewInt(0)
	if e.DataIsValid(d) {
		t.Error("zero priceAgo should be invalid")
	}
}
