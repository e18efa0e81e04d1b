// Package risk holds the named, bounded market parameters consumed by the
// pricing, funding, and market packages. The market reads a snapshot once
// per state-changing call; writes come from a governance collaborator.
package risk

import (
	"fmt"
	"math/big"
	"sync"

	"PerpMarket/internal/fixedpoint"
)

// Param identifies a risk parameter. The set is closed: governance updates
// address parameters by this index.
type Param int

const (
	// K is the funding constant (per-second rate, 1e18 scale).
	K Param = iota
	// Lambda is the market-impact slope.
	Lambda
	// Delta is the static bid/ask spread.
	Delta
	// CapPayoff bounds a position's payoff multiple on entry price.
	CapPayoff
	// CapNotional caps aggregate notional per side before dynamic bounds.
	CapNotional
	// CapLeverage is the maximum build leverage.
	CapLeverage
	// CircuitBreakerWindow is the minted-roller window in seconds (stored
	// 1e18-scaled like every other parameter).
	CircuitBreakerWindow
	// CircuitBreakerMintTarget is the minted total at which the breaker
	// starts shrinking notional capacity.
	CircuitBreakerMintTarget
	// MaintenanceMarginFraction is the liquidation threshold on notional.
	MaintenanceMarginFraction
	// MaintenanceMarginBurnRate is the share of remaining value burned on
	// liquidation.
	MaintenanceMarginBurnRate
	// LiquidationFeeRate is the share of remaining value paid to the
	// liquidator.
	LiquidationFeeRate
	// TradingFeeRate is charged on notional at build and on value at unwind.
	TradingFeeRate
	// MinCollateral is the minimum collateral per build.
	MinCollateral
	// PriceDriftUpperLimit bounds per-second macro price drift in
	// dataIsValid.
	PriceDriftUpperLimit
	// AverageBlockTime feeds the back-run bound (seconds, 1e18 scale).
	AverageBlockTime

	paramCount
)

var paramNames = map[Param]string{
	K:                         "k",
	Lambda:                    "lambda",
	Delta:                     "delta",
	CapPayoff:                 "capPayoff",
	CapNotional:               "capNotional",
	CapLeverage:               "capLeverage",
	CircuitBreakerWindow:      "circuitBreakerWindow",
	CircuitBreakerMintTarget:  "circuitBreakerMintTarget",
	MaintenanceMarginFraction: "maintenanceMarginFraction",
	MaintenanceMarginBurnRate: "maintenanceMarginBurnRate",
	LiquidationFeeRate:        "liquidationFeeRate",
	TradingFeeRate:            "tradingFeeRate",
	MinCollateral:             "minCollateral",
	PriceDriftUpperLimit:      "priceDriftUpperLimit",
	AverageBlockTime:          "averageBlockTime",
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return fmt.Sprintf("param(%d)", int(p))
}

// ParamFromName resolves the wire name of a parameter.
func ParamFromName(name string) (Param, bool) {
	for p, n := range paramNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// bound is an inclusive [min, max] range at 1e18 scale.
type bound struct {
	min *big.Int
	max *big.Int
}

func fp(f float64) *big.Int {
	// Bounds are configuration constants, so constructing them through a
	// float literal here is fine; runtime accounting never touches floats.
	d := new(big.Float).Mul(big.NewFloat(f), new(big.Float).SetInt(fixedpoint.One))
	out, _ := d.Int(nil)
	return out
}

// paramBounds validates governance updates. Ranges follow the reference
// deployment envelope.
var paramBounds = map[Param]bound{
	K:                         {min: big.NewInt(0), max: fp(0.04)},
	Lambda:                    {min: big.NewInt(0), max: fp(10)},
	Delta:                     {min: big.NewInt(0), max: fp(0.2)},
	CapPayoff:                 {min: fp(1), max: fp(100)},
	CapNotional:               {min: big.NewInt(0), max: fp(8_000_000)},
	CapLeverage:               {min: fp(1), max: fp(20)},
	CircuitBreakerWindow:      {min: big.NewInt(0), max: fp(31_536_000)},
	CircuitBreakerMintTarget:  {min: big.NewInt(0), max: fp(8_000_000)},
	MaintenanceMarginFraction: {min: fp(0.01), max: fp(0.2)},
	MaintenanceMarginBurnRate: {min: big.NewInt(0), max: fp(0.5)},
	LiquidationFeeRate:        {min: fp(0.001), max: fp(0.1)},
	TradingFeeRate:            {min: big.NewInt(0), max: fp(0.03)},
	MinCollateral:             {min: fp(0.0001), max: fp(1)},
	PriceDriftUpperLimit:      {min: big.NewInt(0), max: fp(0.1)},
	AverageBlockTime:          {min: fp(1), max: fp(3600)},
}

// Store is the mutable parameter set. Reads take a snapshot; Set validates
// against the per-parameter bounds.
type Store struct {
	mu     sync.RWMutex
	values [paramCount]*big.Int
}

// Defaults mirror the reference test deployment.
func Defaults() *Store {
	s := &Store{}
	defaults := map[Param]*big.Int{
		K:                         fp(0.0000004),
		Lambda:                    fp(1),
		Delta:                     fp(0.0025),
		CapPayoff:                 fp(5),
		CapNotional:               fp(800_000),
		CapLeverage:               fp(5),
		CircuitBreakerWindow:      fp(2_592_000), // 30 days
		CircuitBreakerMintTarget:  fp(66_670),
		MaintenanceMarginFraction: fp(0.1),
		MaintenanceMarginBurnRate: fp(0.1),
		LiquidationFeeRate:        fp(0.01),
		TradingFeeRate:            fp(0.00075),
		MinCollateral:             fp(0.0001),
		PriceDriftUpperLimit:      fp(0.00001),
		AverageBlockTime:          fp(14),
	}
	for p, v := range defaults {
		s.values[p] = v
	}
	return s
}

// Get returns a copy of the parameter value.
func (s *Store) Get(p Param) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p < 0 || p >= paramCount || s.values[p] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.values[p])
}

// Set validates and updates a parameter. Only the governance collaborator
// calls this.
func (s *Store) Set(p Param, v *big.Int) error {
	if p < 0 || p >= paramCount {
		return fmt.Errorf("risk: unknown parameter %d", int(p))
	}
	b, ok := paramBounds[p]
	if ok {
		if v.Cmp(b.min) < 0 {
			return fmt.Errorf("risk: %s below minimum (%s < %s)", p, v, b.min)
		}
		if v.Cmp(b.max) > 0 {
			return fmt.Errorf("risk: %s above maximum (%s > %s)", p, v, b.max)
		}
	}
	s.mu.Lock()
	s.values[p] = new(big.Int).Set(v)
	s.mu.Unlock()
	return nil
}

// Snapshot is an immutable copy of all parameters, read once at the start
// of a state-changing operation so mid-call governance writes cannot race
// the accounting.
type Snapshot struct {
	values [paramCount]*big.Int
}

// Snapshot captures the current parameter set.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	for i := range s.values {
		if s.values[i] != nil {
			snap.values[i] = new(big.Int).Set(s.values[i])
		} else {
			snap.values[i] = big.NewInt(0)
		}
	}
	return snap
}

// Get returns a copy of the parameter value from the snapshot.
func (s Snapshot) Get(p Param) *big.Int {
	if p < 0 || p >= paramCount || s.values[p] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.values[p])
}

// Seconds interprets a parameter as a duration in whole seconds.
func (s Snapshot) Seconds(p Param) int64 {
	v := s.Get(p)
	return v.Quo(v, fixedpoint.One).Int64()
}

// Names lists all parameter wire names in index order.
func Names() []string {
	out := make([]string, 0, int(paramCount))
	for p := Param(0); p < paramCount; p++ {
		out = append(out, p.String())
	}
	return out
}
