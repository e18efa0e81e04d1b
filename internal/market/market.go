// Package market is the state machine at the center of the service: it
// opens, partially closes, and liquidates positions against the feed,
// maintaining the aggregate open-interest invariants and settling every
// outcome through the collateral ledger.
//
// Every state-changing call runs under a single write lock: preconditions
// and outcomes are computed first, ledger sub-calls run next, and market
// state mutates last, so a failure at any step leaves no partial commit.
package market

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"PerpMarket/internal/event"
	"PerpMarket/internal/feed"
	"PerpMarket/internal/fixedpoint"
	"PerpMarket/internal/funding"
	"PerpMarket/internal/ledger"
	"PerpMarket/internal/observability"
	"PerpMarket/internal/position"
	"PerpMarket/internal/pricing"
	"PerpMarket/internal/risk"
	"PerpMarket/internal/roller"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config wires the market's collaborators. Feed, Params, and Ledger are
// required; the channels and metrics are optional (nil disables them).
type Config struct {
	Feed         feed.Feed
	Params       *risk.Store
	Ledger       ledger.Ledger
	FeeRecipient uuid.UUID

	// PersistCh receives every event and blocks when full (backpressure).
	PersistCh chan<- event.Envelope

	// PublishCh receives every event best-effort; full channel drops.
	PublishCh chan<- event.Envelope

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Market is a single base/quote synthetic market instance.
type Market struct {
	mu sync.Mutex

	log     zerolog.Logger
	metrics *observability.Metrics

	feed   feed.Feed
	params *risk.Store
	ledger ledger.Ledger

	account      uuid.UUID
	feeRecipient uuid.UUID

	positions *position.Store

	oiLong        *big.Int
	oiShort       *big.Int
	oiLongShares  *big.Int
	oiShortShares *big.Int

	volumeAsk      roller.Snapshot
	volumeBid      roller.Snapshot
	snapshotMinted roller.Snapshot

	timestampUpdateLast int64
	nextPositionID      uint64
	sequence            uint64

	persistCh chan<- event.Envelope
	publishCh chan<- event.Envelope
}

// New constructs a market anchored at the feed's current timestamp.
func New(cfg Config) (*Market, error) {
	if cfg.Feed == nil || cfg.Params == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("market: feed, params, and ledger are required")
	}
	d, err := cfg.Feed.Latest()
	if err != nil {
		return nil, fmt.Errorf("market: initial feed read: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("market: initial feed read: %w", err)
	}

	return &Market{
		log:                 cfg.Logger,
		metrics:             cfg.Metrics,
		feed:                cfg.Feed,
		params:              cfg.Params,
		ledger:              cfg.Ledger,
		account:             uuid.New(),
		feeRecipient:        cfg.FeeRecipient,
		positions:           position.NewStore(),
		oiLong:              big.NewInt(0),
		oiShort:             big.NewInt(0),
		oiLongShares:        big.NewInt(0),
		oiShortShares:       big.NewInt(0),
		volumeAsk:           roller.New(d.Timestamp),
		volumeBid:           roller.New(d.Timestamp),
		snapshotMinted:      roller.New(d.Timestamp),
		timestampUpdateLast: d.Timestamp,
		persistCh:           cfg.PersistCh,
		publishCh:           cfg.PublishCh,
	}, nil
}

// Account is the market's own ledger account, holding position collateral.
func (m *Market) Account() uuid.UUID {
	return m.account
}

// Build opens a position and returns its id.
func (m *Market) Build(owner uuid.UUID, collateral, leverage *big.Int, isLong bool, priceLimit *big.Int) (uint64, error) {
	start := time.Now()
	snap := m.params.Snapshot()

	if leverage.Cmp(fixedpoint.One) < 0 {
		return 0, m.reject("build", ErrLeverageBelowMinimum)
	}
	if leverage.Cmp(snap.Get(risk.CapLeverage)) > 0 {
		return 0, m.reject("build", ErrLeverageAboveMaximum)
	}
	if collateral.Cmp(snap.Get(risk.MinCollateral)) < 0 {
		return 0, m.reject("build", ErrCollateralBelowMinimum)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.updateLocked(snap)
	if err != nil {
		return 0, err
	}
	px, err := m.pricingContext(snap, d)
	if err != nil {
		return 0, err
	}

	notional := fixedpoint.MulDown(collateral, leverage)
	debt := fixedpoint.Sub(notional, collateral)
	tradeFee := fixedpoint.MulDown(notional, snap.Get(risk.TradingFeeRate))

	if px.capNotional.Sign() == 0 {
		return 0, m.reject("build", ErrOiAboveCap)
	}
	// The oi comparison below runs at the execution price, which the trade's
	// own impact inflates, so it cannot bound notional. Cap notional here, in
	// mid terms, before pricing.
	if notional.Cmp(px.capNotional) > 0 {
		return 0, m.reject("build", ErrOiAboveCap)
	}

	// The trade is priced off the accumulated decayed volume including this
	// trade's provisional fraction of capacity. The provisional volume uses
	// notional against the cap before the final price is known; this is the
	// accepted approximation, not an iteration to convergence.
	volumeFrac := fixedpoint.DivUp(notional, px.capNotional)
	side := &m.volumeAsk
	if !isLong {
		side = &m.volumeBid
	}
	sideNew, err := side.Transform(d.Timestamp, d.MicroWindow, volumeFrac)
	if err != nil {
		return 0, fmt.Errorf("market: volume roller: %w", err)
	}

	var price *big.Int
	if isLong {
		price = px.engine.Ask(d, sideNew.Value())
	} else {
		price = px.engine.Bid(d, sideNew.Value())
	}

	oi := pricing.OiFromNotional(notional, price)
	if oi.Sign() == 0 {
		return 0, m.reject("build", ErrOiZero)
	}
	if oi.Cmp(px.capOi) > 0 {
		return 0, m.reject("build", ErrOiAboveCap)
	}

	aggOi, aggShares := m.aggregates(isLong)
	var shares *big.Int
	if aggShares.Sign() == 0 || aggOi.Sign() == 0 {
		shares = fixedpoint.Clone(oi)
	} else {
		shares = new(big.Int).Mul(oi, aggShares)
		shares.Quo(shares, aggOi)
	}

	pos := &position.Position{
		NotionalInitial: fixedpoint.Clone(notional),
		DebtInitial:     debt,
		MidRatio:        fixedpoint.DivDown(price, px.mid),
		EntryMid:        fixedpoint.Clone(px.mid),
		IsLong:          isLong,
		OiSharesInitial: shares,
	}

	newAggOi := fixedpoint.Add(aggOi, oi)
	newAggShares := fixedpoint.Add(aggShares, shares)
	if pos.IsLiquidatable(newAggOi, newAggShares, px.mid,
		snap.Get(risk.CapPayoff), snap.Get(risk.MaintenanceMarginFraction)) {
		return 0, m.reject("build", ErrLiquidatable)
	}

	if isLong && price.Cmp(priceLimit) > 0 {
		return 0, m.reject("build", ErrSlippage)
	}
	if !isLong && price.Cmp(priceLimit) < 0 {
		return 0, m.reject("build", ErrSlippage)
	}

	// Ledger sub-calls: collateral plus fee in, fee onward. The second
	// transfer spends funds the first just delivered, so the only failure
	// mode is the trader's balance, surfaced by the first call.
	totalIn := fixedpoint.Add(collateral, tradeFee)
	if err := m.ledger.Transfer(owner, m.account, totalIn); err != nil {
		return 0, m.reject("build", fmt.Errorf("market: collateral transfer: %w", err))
	}
	if err := m.ledger.Transfer(m.account, m.feeRecipient, tradeFee); err != nil {
		return 0, fmt.Errorf("market: fee transfer: %w", err)
	}

	id := m.nextPositionID
	m.nextPositionID++
	m.positions.Set(owner, id, pos)
	m.setAggregates(isLong, newAggOi, newAggShares)
	*side = sideNew

	m.emit(d.Timestamp, event.Build{
		Owner:      owner,
		PositionID: id,
		Collateral: fixedpoint.Clone(collateral),
		Notional:   fixedpoint.Clone(notional),
		Debt:       fixedpoint.Clone(debt),
		Oi:         oi,
		OiShares:   fixedpoint.Clone(shares),
		EntryPrice: price,
		IsLong:     isLong,
		TradingFee: tradeFee,
	})

	m.log.Info().
		Str("op", "build").
		Str("owner", owner.String()).
		Uint64("position_id", id).
		Str("notional", notional.String()).
		Str("price", price.String()).
		Bool("is_long", isLong).
		Msg("position built")
	m.committed("build", start)
	return id, nil
}

// Unwind closes a fraction of a position at the current exit price.
func (m *Market) Unwind(owner uuid.UUID, id uint64, fraction, priceLimit *big.Int) error {
	start := time.Now()
	snap := m.params.Snapshot()

	if fraction.Sign() <= 0 {
		return m.reject("unwind", ErrFractionBelowMinimum)
	}
	if fraction.Cmp(fixedpoint.One) > 0 {
		return m.reject("unwind", ErrFractionAboveMaximum)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions.Get(owner, id)
	if !ok {
		return m.reject("unwind", ErrPositionNotFound)
	}
	isLong := pos.IsLong

	d, err := m.updateLocked(snap)
	if err != nil {
		return err
	}
	px, err := m.pricingContext(snap, d)
	if err != nil {
		return err
	}

	aggOi, aggShares := m.aggregates(isLong)
	unwoundOi := pos.OiCurrent(fraction, aggOi, aggShares)
	unwoundShares := fixedpoint.MulDown(fraction, pos.OiSharesInitial)
	// Retiring the last shares on a side takes all remaining oi; the floored
	// product would strand dust in the aggregate with no shares against it.
	if unwoundShares.Cmp(aggShares) == 0 {
		unwoundOi = fixedpoint.Clone(aggOi)
	}

	// Longs exit at bid, shorts at ask; the exit registers volume on the
	// opposite roller from the build. A fully closed circuit breaker still
	// lets positions exit, at full-capacity impact.
	volumeFrac := fixedpoint.Clone(fixedpoint.One)
	if px.capOi.Sign() > 0 {
		volumeFrac = fixedpoint.DivUp(unwoundOi, px.capOi)
	}
	side := &m.volumeBid
	if !isLong {
		side = &m.volumeAsk
	}
	sideNew, err := side.Transform(d.Timestamp, d.MicroWindow, volumeFrac)
	if err != nil {
		return fmt.Errorf("market: volume roller: %w", err)
	}

	var price *big.Int
	if isLong {
		price = px.engine.Bid(d, sideNew.Value())
	} else {
		price = px.engine.Ask(d, sideNew.Value())
	}

	capPayoff := snap.Get(risk.CapPayoff)
	if pos.IsLiquidatable(aggOi, aggShares, price, capPayoff,
		snap.Get(risk.MaintenanceMarginFraction)) {
		return m.reject("unwind", ErrLiquidatable)
	}
	if isLong && price.Cmp(priceLimit) < 0 {
		return m.reject("unwind", ErrSlippage)
	}
	if !isLong && price.Cmp(priceLimit) > 0 {
		return m.reject("unwind", ErrSlippage)
	}

	value := pos.Value(fraction, aggOi, aggShares, price, capPayoff)
	cost := fixedpoint.MulDown(fraction, pos.Cost())
	mint := fixedpoint.Sub(value, cost)
	fee := fixedpoint.Min(fixedpoint.MulDown(value, snap.Get(risk.TradingFeeRate)), value)

	mintedNew, err := m.snapshotMinted.Transform(
		d.Timestamp, snap.Seconds(risk.CircuitBreakerWindow), mint)
	if err != nil {
		return fmt.Errorf("market: minted roller: %w", err)
	}

	if err := m.settleMint(mint); err != nil {
		return err
	}
	payout := fixedpoint.Sub(value, fee)
	if err := m.ledger.Transfer(m.account, owner, payout); err != nil {
		return fmt.Errorf("market: payout transfer: %w", err)
	}
	if err := m.ledger.Transfer(m.account, m.feeRecipient, fee); err != nil {
		return fmt.Errorf("market: fee transfer: %w", err)
	}

	closed := fraction.Cmp(fixedpoint.One) == 0
	if closed {
		m.positions.Delete(owner, id)
	} else {
		pos.ScaleDown(fraction)
	}
	m.setAggregates(isLong,
		clampZero(fixedpoint.Sub(aggOi, unwoundOi)),
		clampZero(fixedpoint.Sub(aggShares, unwoundShares)))
	*side = sideNew
	m.snapshotMinted = mintedNew

	m.emit(d.Timestamp, event.Unwind{
		Owner:      owner,
		PositionID: id,
		Fraction:   fixedpoint.Clone(fraction),
		Value:      value,
		Cost:       cost,
		Mint:       mint,
		TradingFee: fee,
		ExitPrice:  price,
		IsLong:     isLong,
		Closed:     closed,
	})

	m.log.Info().
		Str("op", "unwind").
		Str("owner", owner.String()).
		Uint64("position_id", id).
		Str("fraction", fraction.String()).
		Str("value", value.String()).
		Str("mint", mint.String()).
		Bool("closed", closed).
		Msg("position unwound")
	m.committed("unwind", start)
	return nil
}

// Liquidate force-closes a position at or beyond the maintenance margin.
// Any caller can trigger it; the trader receives nothing, the remaining
// value splits into a maintenance burn, a fee to the caller, and a residual
// to the fee recipient. The record is deleted: later calls against the id
// answer not found.
func (m *Market) Liquidate(sender, owner uuid.UUID, id uint64) error {
	start := time.Now()
	snap := m.params.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions.Get(owner, id)
	if !ok {
		return m.reject("liquidate", ErrPositionNotFound)
	}
	isLong := pos.IsLong

	d, err := m.updateLocked(snap)
	if err != nil {
		return err
	}
	px, err := m.pricingContext(snap, d)
	if err != nil {
		return err
	}

	aggOi, aggShares := m.aggregates(isLong)
	oiTotal := pos.OiCurrent(fixedpoint.One, aggOi, aggShares)
	// Last shares on the side take all remaining oi, as in unwind.
	if pos.OiSharesInitial.Cmp(aggShares) == 0 {
		oiTotal = fixedpoint.Clone(aggOi)
	}

	volumeFrac := fixedpoint.Clone(fixedpoint.One)
	if px.capOi.Sign() > 0 {
		volumeFrac = fixedpoint.DivUp(oiTotal, px.capOi)
	}
	side := &m.volumeBid
	if !isLong {
		side = &m.volumeAsk
	}
	sideNew, err := side.Transform(d.Timestamp, d.MicroWindow, volumeFrac)
	if err != nil {
		return fmt.Errorf("market: volume roller: %w", err)
	}

	var price *big.Int
	if isLong {
		price = px.engine.Bid(d, sideNew.Value())
	} else {
		price = px.engine.Ask(d, sideNew.Value())
	}

	capPayoff := snap.Get(risk.CapPayoff)
	if !pos.IsLiquidatable(aggOi, aggShares, price, capPayoff,
		snap.Get(risk.MaintenanceMarginFraction)) {
		return m.reject("liquidate", ErrNotLiquidatable)
	}

	value := pos.Value(fixedpoint.One, aggOi, aggShares, price, capPayoff)
	cost := pos.Cost()
	mint := fixedpoint.Sub(value, cost)
	burn := fixedpoint.MulDown(value, snap.Get(risk.MaintenanceMarginBurnRate))
	liqFee := fixedpoint.MulDown(fixedpoint.Sub(value, burn), snap.Get(risk.LiquidationFeeRate))
	residual := fixedpoint.Sub(fixedpoint.Sub(value, burn), liqFee)

	mintedNew, err := m.snapshotMinted.Transform(
		d.Timestamp, snap.Seconds(risk.CircuitBreakerWindow), mint)
	if err != nil {
		return fmt.Errorf("market: minted roller: %w", err)
	}

	if err := m.settleMint(mint); err != nil {
		return err
	}
	if err := m.ledger.Burn(m.account, burn); err != nil {
		return fmt.Errorf("market: maintenance burn: %w", err)
	}
	if err := m.ledger.Transfer(m.account, sender, liqFee); err != nil {
		return fmt.Errorf("market: liquidation fee transfer: %w", err)
	}
	if err := m.ledger.Transfer(m.account, m.feeRecipient, residual); err != nil {
		return fmt.Errorf("market: residual transfer: %w", err)
	}

	m.positions.Delete(owner, id)
	m.setAggregates(isLong,
		clampZero(fixedpoint.Sub(aggOi, oiTotal)),
		clampZero(fixedpoint.Sub(aggShares, pos.OiSharesInitial)))
	*side = sideNew
	m.snapshotMinted = mintedNew

	m.emit(d.Timestamp, event.Liquidate{
		Owner:          owner,
		PositionID:     id,
		Sender:         sender,
		Value:          value,
		Burn:           burn,
		LiquidationFee: liqFee,
		Residual:       residual,
		Mint:           mint,
		ExitPrice:      price,
		IsLong:         isLong,
		Liquidated:     true,
	})

	m.log.Info().
		Str("op", "liquidate").
		Str("owner", owner.String()).
		Str("sender", sender.String()).
		Uint64("position_id", id).
		Str("value", value.String()).
		Str("burn", burn.String()).
		Msg("position liquidated")
	m.committed("liquidate", start)
	return nil
}

// Update applies funding for the elapsed time and returns the latest feed
// tuple. Callable by anyone, idempotent per feed timestamp.
func (m *Market) Update() (feed.Data, error) {
	start := time.Now()
	snap := m.params.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.updateLocked(snap)
	if err != nil {
		return feed.Data{}, err
	}
	m.committed("update", start)
	return d, nil
}

// SetParam validates and applies a governance parameter update, journaling
// it like any other state change.
func (m *Market) SetParam(p risk.Param, v *big.Int) error {
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.params.Set(p, v); err != nil {
		return m.reject("setParam", err)
	}
	m.emit(m.timestampUpdateLast, event.ParamUpdated{
		Name:  p.String(),
		Value: fixedpoint.Clone(v),
	})
	m.log.Info().Str("param", p.String()).Str("value", v.String()).Msg("parameter updated")
	m.committed("setParam", start)
	return nil
}

// updateLocked reads the feed and applies funding once per distinct feed
// timestamp. A second call at the same timestamp is a no-op. Feed validity
// is a soft signal here: funding and caps still use the data, invalidity is
// logged and counted for the query surface.
func (m *Market) updateLocked(snap risk.Snapshot) (feed.Data, error) {
	d, err := m.feed.Latest()
	if err != nil {
		return feed.Data{}, fmt.Errorf("market: feed: %w", err)
	}
	if err := d.Validate(); err != nil {
		return feed.Data{}, fmt.Errorf("market: feed: %w", err)
	}

	if d.Timestamp > m.timestampUpdateLast {
		dt := d.Timestamp - m.timestampUpdateLast
		longBefore := fixedpoint.Clone(m.oiLong)
		shortBefore := fixedpoint.Clone(m.oiShort)

		var newLong, newShort *big.Int
		if m.oiLong.Cmp(m.oiShort) >= 0 {
			newLong, newShort = funding.OiAfterFunding(m.oiLong, m.oiShort, snap.Get(risk.K), dt)
		} else {
			newShort, newLong = funding.OiAfterFunding(m.oiShort, m.oiLong, snap.Get(risk.K), dt)
		}
		changed := newLong.Cmp(longBefore) != 0 || newShort.Cmp(shortBefore) != 0
		m.oiLong = newLong
		m.oiShort = newShort
		m.timestampUpdateLast = d.Timestamp

		if changed {
			if m.metrics != nil {
				m.metrics.FundingApplied.Inc()
			}
			m.emit(d.Timestamp, event.FundingPaid{
				OiLongBefore:  longBefore,
				OiLongAfter:   fixedpoint.Clone(newLong),
				OiShortBefore: shortBefore,
				OiShortAfter:  fixedpoint.Clone(newShort),
				ElapsedSecs:   dt,
			})
		}
	}

	if !pricing.New(snap).DataIsValid(d) {
		if m.metrics != nil {
			m.metrics.FeedInvalid.Inc()
		}
		m.log.Warn().
			Int64("timestamp", d.Timestamp).
			Msg("feed data failed drift bound")
	}
	return d, nil
}

// pricingCtx is the per-operation pricing state: the cap after dynamic
// bounds and the circuit breaker, and its oi equivalent at mid.
type pricingCtx struct {
	engine      pricing.Engine
	mid         *big.Int
	capNotional *big.Int
	capOi       *big.Int
}

func (m *Market) pricingContext(snap risk.Snapshot, d feed.Data) (pricingCtx, error) {
	engine := pricing.New(snap)
	capNotional := engine.CapNotionalAdjustedForBounds(d, snap.Get(risk.CapNotional))

	// Peek at the minted accumulator decayed to now without committing the
	// transform; only unwind and liquidate register into it.
	peek, err := m.snapshotMinted.Transform(
		d.Timestamp, snap.Seconds(risk.CircuitBreakerWindow), big.NewInt(0))
	if err != nil {
		return pricingCtx{}, fmt.Errorf("market: minted roller: %w", err)
	}
	capNotional = engine.CapNotionalAdjustedForCircuitBreaker(peek.Value(), capNotional)

	mid := pricing.Mid(d)
	capOi := big.NewInt(0)
	if capNotional.Sign() > 0 {
		capOi = pricing.OiFromNotional(capNotional, mid)
	}
	return pricingCtx{engine: engine, mid: mid, capNotional: capNotional, capOi: capOi}, nil
}

// settleMint applies the signed value-minus-cost delta against the market's
// own balance before any payout leaves it.
func (m *Market) settleMint(mint *big.Int) error {
	switch mint.Sign() {
	case 1:
		if err := m.ledger.Mint(m.account, mint); err != nil {
			return fmt.Errorf("market: mint: %w", err)
		}
	case -1:
		if err := m.ledger.Burn(m.account, new(big.Int).Neg(mint)); err != nil {
			return fmt.Errorf("market: burn: %w", err)
		}
	}
	return nil
}

func (m *Market) aggregates(isLong bool) (*big.Int, *big.Int) {
	if isLong {
		return fixedpoint.Clone(m.oiLong), fixedpoint.Clone(m.oiLongShares)
	}
	return fixedpoint.Clone(m.oiShort), fixedpoint.Clone(m.oiShortShares)
}

func (m *Market) setAggregates(isLong bool, oi, shares *big.Int) {
	if isLong {
		m.oiLong, m.oiLongShares = oi, shares
	} else {
		m.oiShort, m.oiShortShares = oi, shares
	}
}

func clampZero(v *big.Int) *big.Int {
	if v.Sign() < 0 {
		return big.NewInt(0)
	}
	return v
}

// emit assigns the next sequence and hands the envelope to the persist
// channel (blocking) and the publish channel (drop when full; consumers
// replay from the event log).
func (m *Market) emit(timestamp int64, p event.Payload) {
	m.sequence++
	env, err := event.Wrap(m.sequence, timestamp, p)
	if err != nil {
		m.log.Error().Err(err).Msg("event marshal failed")
		return
	}
	if m.metrics != nil {
		m.metrics.Sequence.Set(float64(m.sequence))
	}
	if m.persistCh != nil {
		select {
		case m.persistCh <- env:
		default:
			if m.metrics != nil {
				m.metrics.PersistBackpressure.Inc()
			}
			m.persistCh <- env
		}
	}
	if m.publishCh != nil {
		select {
		case m.publishCh <- env:
		default:
			if m.metrics != nil {
				m.metrics.PublishDrops.Inc()
			}
			m.log.Warn().Uint64("sequence", env.Sequence).Msg("publish channel full, event dropped")
		}
	}
}

func (m *Market) reject(op string, err error) error {
	if m.metrics != nil {
		m.metrics.OpsRejected.WithLabelValues(op, reason(err)).Inc()
	}
	m.log.Debug().Str("op", op).Err(err).Msg("operation rejected")
	return err
}

func (m *Market) committed(op string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.OpsExecuted.WithLabelValues(op).Inc()
	m.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.metrics.OpenPositions.Set(float64(m.positions.Len()))
	m.metrics.OiAggregate.WithLabelValues("long").Set(wholeTokens(m.oiLong))
	m.metrics.OiAggregate.WithLabelValues("short").Set(wholeTokens(m.oiShort))
}

func wholeTokens(v *big.Int) float64 {
	t := new(big.Int).Quo(v, fixedpoint.One)
	f, _ := new(big.Float).SetInt(t).Float64()
	return f
}
