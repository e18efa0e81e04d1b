// Package position holds per-(owner, id) position records and the pure
// accounting math over them: current open interest, cost basis, value with
// capped payoff, and the liquidation threshold.
package position

import (
	"math/big"

	"PerpMarket/internal/fixedpoint"

	"github.com/google/uuid"
)

// Position is a single open position. All amounts are 1e18-scaled.
//
// MidRatio is the entry price over the mid price at build time; EntryMid is
// that mid price. The entry price is always recovered as MidRatio*EntryMid,
// fixed at build and never recombined with a later mid price.
type Position struct {
	NotionalInitial *big.Int
	DebtInitial     *big.Int
	MidRatio        *big.Int
	EntryMid        *big.Int
	IsLong          bool
	Liquidated      bool
	OiSharesInitial *big.Int
}

// EntryPrice recovers the price the position was built at.
func (p *Position) EntryPrice() *big.Int {
	return fixedpoint.MulDown(p.MidRatio, p.EntryMid)
}

// Cost is the initial collateral backing the position: notional - debt.
func (p *Position) Cost() *big.Int {
	return fixedpoint.Sub(p.NotionalInitial, p.DebtInitial)
}

// OiCurrent is the funding-adjusted open interest for a fraction of the
// position: fraction * oiSharesInitial * aggOi / aggOiShares.
func (p *Position) OiCurrent(fraction, aggOi, aggOiShares *big.Int) *big.Int {
	if aggOiShares.Sign() == 0 {
		return big.NewInt(0)
	}
	shares := fixedpoint.MulDown(fraction, p.OiSharesInitial)
	oi := new(big.Int).Mul(shares, aggOi)
	return oi.Quo(oi, aggOiShares)
}

// Value returns the settlement value of a fraction of the position at the
// given exit price, floored at zero. The price move is capped in the
// trader's favor at capPayoff * entryPrice.
//
//	value = fraction*cost + pnl + funding
//	pnl     = oiCurrent * capped(exit - entry)        (negated for shorts)
//	funding = fraction*notional * (aggOi/aggOiShares - 1)
func (p *Position) Value(fraction, aggOi, aggOiShares, exitPrice, capPayoff *big.Int) *big.Int {
	cost := fixedpoint.MulDown(fraction, p.Cost())
	notional := fixedpoint.MulDown(fraction, p.NotionalInitial)
	oi := p.OiCurrent(fraction, aggOi, aggOiShares)

	entry := p.EntryPrice()
	move := fixedpoint.Sub(exitPrice, entry)
	if !p.IsLong {
		move.Neg(move)
	}
	// Payoff cap: the favorable move cannot exceed capPayoff multiples of
	// the entry price. Losses are not capped here; the zero floor below
	// bounds them.
	maxMove := fixedpoint.MulDown(capPayoff, entry)
	if move.Cmp(maxMove) > 0 {
		move = maxMove
	}
	pnl := fixedpoint.MulDown(oi, move)

	value := fixedpoint.Add(cost, pnl)
	if aggOiShares.Sign() != 0 {
		// fraction*notional * aggOi/aggOiShares - fraction*notional
		funded := new(big.Int).Mul(notional, aggOi)
		funded.Quo(funded, aggOiShares)
		value.Add(value, funded.Sub(funded, notional))
	}

	if value.Sign() < 0 {
		return big.NewInt(0)
	}
	return value
}

// IsLiquidatable reports whether the whole remaining position has fallen
// below its maintenance margin: value < mmFraction * notionalInitial.
func (p *Position) IsLiquidatable(aggOi, aggOiShares, exitPrice, capPayoff, mmFraction *big.Int) bool {
	value := p.Value(fixedpoint.One, aggOi, aggOiShares, exitPrice, capPayoff)
	margin := fixedpoint.MulUp(mmFraction, p.NotionalInitial)
	return value.Cmp(margin) < 0
}

// ScaleDown reduces the position in place after a partial unwind of the
// given fraction. Each field retains initial - floor(fraction*initial), the
// exact complement of what the unwind removed from the side aggregates, so
// record and aggregate never drift apart. MidRatio and EntryMid are
// untouched: the entry price of the remainder is unchanged.
func (p *Position) ScaleDown(fraction *big.Int) {
	p.NotionalInitial = fixedpoint.Sub(p.NotionalInitial, fixedpoint.MulDown(fraction, p.NotionalInitial))
	p.DebtInitial = fixedpoint.Sub(p.DebtInitial, fixedpoint.MulDown(fraction, p.DebtInitial))
	p.OiSharesInitial = fixedpoint.Sub(p.OiSharesInitial, fixedpoint.MulDown(fraction, p.OiSharesInitial))
}

// clone returns a deep copy of the record.
func (p *Position) clone() *Position {
	return &Position{
		NotionalInitial: fixedpoint.Clone(p.NotionalInitial),
		DebtInitial:     fixedpoint.Clone(p.DebtInitial),
		MidRatio:        fixedpoint.Clone(p.MidRatio),
		EntryMid:        fixedpoint.Clone(p.EntryMid),
		IsLong:          p.IsLong,
		Liquidated:      p.Liquidated,
		OiSharesInitial: fixedpoint.Clone(p.OiSharesInitial),
	}
}

// Key addresses a position by owner and market-local id.
type Key struct {
	Owner uuid.UUID
	ID    uint64
}

// Store is the in-memory position ledger. Records are physically deleted
// on full unwind and on liquidation, so a liquidated id answers "not
// found" afterwards; the Liquidated flag only survives on event copies.
type Store struct {
	positions map[Key]*Position
}

func NewStore() *Store {
	return &Store{positions: make(map[Key]*Position)}
}

// Get returns the live record, or false if it never existed or was closed.
// The returned pointer is the live record; the market mutates it in place
// under its own write lock.
func (s *Store) Get(owner uuid.UUID, id uint64) (*Position, bool) {
	p, ok := s.positions[Key{Owner: owner, ID: id}]
	return p, ok
}

// GetCopy returns a defensive copy for query surfaces.
func (s *Store) GetCopy(owner uuid.UUID, id uint64) (*Position, bool) {
	p, ok := s.positions[Key{Owner: owner, ID: id}]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// Set records a position.
func (s *Store) Set(owner uuid.UUID, id uint64, p *Position) {
	s.positions[Key{Owner: owner, ID: id}] = p
}

// Delete removes a record (full unwind or liquidation).
func (s *Store) Delete(owner uuid.UUID, id uint64) {
	delete(s.positions, Key{Owner: owner, ID: id})
}

// Len returns the number of open positions.
func (s *Store) Len() int {
	return len(s.positions)
}
