package market

import (
	"fmt"
	"math/big"

	"PerpMarket/internal/fixedpoint"
	"PerpMarket/internal/position"
	"PerpMarket/internal/pricing"
	"PerpMarket/internal/roller"

	"github.com/google/uuid"
)

// Position returns a copy of an open position, or false for unknown,
// closed, and liquidated ids alike.
func (m *Market) Position(owner uuid.UUID, id uint64) (*position.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions.GetCopy(owner, id)
}

// NextPositionID is the id the next successful build will return.
func (m *Market) NextPositionID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextPositionID
}

// TimestampUpdateLast is the feed timestamp of the last applied update.
func (m *Market) TimestampUpdateLast() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timestampUpdateLast
}

func (m *Market) OiLong() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fixedpoint.Clone(m.oiLong)
}

func (m *Market) OiShort() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fixedpoint.Clone(m.oiShort)
}

func (m *Market) OiLongShares() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fixedpoint.Clone(m.oiLongShares)
}

func (m *Market) OiShortShares() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fixedpoint.Clone(m.oiShortShares)
}

// SnapshotVolumeAsk returns a copy of the ask-volume accumulator.
func (m *Market) SnapshotVolumeAsk() roller.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySnapshot(m.volumeAsk)
}

// SnapshotVolumeBid returns a copy of the bid-volume accumulator.
func (m *Market) SnapshotVolumeBid() roller.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySnapshot(m.volumeBid)
}

// SnapshotMinted returns a copy of the circuit-breaker minted accumulator.
func (m *Market) SnapshotMinted() roller.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySnapshot(m.snapshotMinted)
}

func copySnapshot(s roller.Snapshot) roller.Snapshot {
	return roller.Snapshot{
		TimestampLast: s.TimestampLast,
		WindowLast:    s.WindowLast,
		ValueLast:     s.Value(),
	}
}

// State is a point-in-time view of the market aggregates for the query
// surface.
type State struct {
	OiLong              *big.Int
	OiShort             *big.Int
	OiLongShares        *big.Int
	OiShortShares       *big.Int
	TimestampUpdateLast int64
	NextPositionID      uint64
	OpenPositions       int
	Sequence            uint64
}

func (m *Market) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		OiLong:              fixedpoint.Clone(m.oiLong),
		OiShort:             fixedpoint.Clone(m.oiShort),
		OiLongShares:        fixedpoint.Clone(m.oiLongShares),
		OiShortShares:       fixedpoint.Clone(m.oiShortShares),
		TimestampUpdateLast: m.timestampUpdateLast,
		NextPositionID:      m.nextPositionID,
		OpenPositions:       m.positions.Len(),
		Sequence:            m.sequence,
	}
}

// Quote estimates the execution price and oi for a build of the given
// notional without mutating any state.
func (m *Market) Quote(notional *big.Int, isLong bool) (price, oi *big.Int, err error) {
	snap := m.params.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.feed.Latest()
	if err != nil {
		return nil, nil, fmt.Errorf("market: feed: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, nil, fmt.Errorf("market: feed: %w", err)
	}
	px, err := m.pricingContext(snap, d)
	if err != nil {
		return nil, nil, err
	}
	if px.capNotional.Sign() == 0 || notional.Cmp(px.capNotional) > 0 {
		return nil, nil, ErrOiAboveCap
	}

	volumeFrac := fixedpoint.DivUp(notional, px.capNotional)
	side := m.volumeAsk
	if !isLong {
		side = m.volumeBid
	}
	peek, err := side.Transform(d.Timestamp, d.MicroWindow, volumeFrac)
	if err != nil {
		return nil, nil, fmt.Errorf("market: volume roller: %w", err)
	}

	if isLong {
		price = px.engine.Ask(d, peek.Value())
	} else {
		price = px.engine.Bid(d, peek.Value())
	}
	return price, pricing.OiFromNotional(notional, price), nil
}

// DataIsValid reports whether the current feed tuple passes the drift
// bound. Build and unwind do not hard-fail on it; consumers poll this.
func (m *Market) DataIsValid() (bool, error) {
	snap := m.params.Snapshot()
	d, err := m.feed.Latest()
	if err != nil {
		return false, fmt.Errorf("market: feed: %w", err)
	}
	if err := d.Validate(); err != nil {
		return false, fmt.Errorf("market: feed: %w", err)
	}
	return pricing.New(snap).DataIsValid(d), nil
}

// CapNotionalAdjusted exposes the bounded, circuit-broken notional cap for
// the query surface.
func (m *Market) CapNotionalAdjusted() (*big.Int, error) {
	snap := m.params.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.feed.Latest()
	if err != nil {
		return nil, fmt.Errorf("market: feed: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("market: feed: %w", err)
	}
	px, err := m.pricingContext(snap, d)
	if err != nil {
		return nil, err
	}
	return px.capNotional, nil
}
