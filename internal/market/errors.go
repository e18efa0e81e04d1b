package market

import "errors"

// The rejection taxonomy is closed: every precondition failure maps to one
// of these sentinels, and callers match with errors.Is. Infrastructure
// failures (feed, ledger) are wrapped separately and are not part of it.
var (
	ErrLeverageBelowMinimum   = errors.New("market: leverage below minimum")
	ErrLeverageAboveMaximum   = errors.New("market: leverage above maximum")
	ErrCollateralBelowMinimum = errors.New("market: collateral below minimum")
	ErrOiZero                 = errors.New("market: oi is zero")
	ErrOiAboveCap             = errors.New("market: oi above cap")
	ErrLiquidatable           = errors.New("market: position is liquidatable")
	ErrNotLiquidatable        = errors.New("market: position is not liquidatable")
	ErrSlippage               = errors.New("market: price limit exceeded")
	ErrFractionBelowMinimum   = errors.New("market: fraction below minimum")
	ErrFractionAboveMaximum   = errors.New("market: fraction above maximum")
	ErrPositionNotFound       = errors.New("market: position not found")
)

// reason returns the stable metrics label for a rejection.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrLeverageBelowMinimum):
		return "lev_below_min"
	case errors.Is(err, ErrLeverageAboveMaximum):
		return "lev_above_max"
	case errors.Is(err, ErrCollateralBelowMinimum):
		return "collateral_below_min"
	case errors.Is(err, ErrOiZero):
		return "oi_zero"
	case errors.Is(err, ErrOiAboveCap):
		return "oi_above_cap"
	case errors.Is(err, ErrLiquidatable):
		return "liquidatable"
	case errors.Is(err, ErrNotLiquidatable):
		return "not_liquidatable"
	case errors.Is(err, ErrSlippage):
		return "slippage"
	case errors.Is(err, ErrFractionBelowMinimum):
		return "fraction_below_min"
	case errors.Is(err, ErrFractionAboveMaximum):
		return "fraction_above_max"
	case errors.Is(err, ErrPositionNotFound):
		return "position_not_found"
	default:
		return "infrastructure"
	}
}
