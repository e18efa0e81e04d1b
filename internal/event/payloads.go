package event

import (
	"math/big"

	"github.com/google/uuid"
)

// Build records a newly opened position. All amounts are 1e18-scaled.
type Build struct {
	Owner      uuid.UUID `json:"owner"`
	PositionID uint64    `json:"positionId"`
	Collateral *big.Int  `json:"collateral"`
	Notional   *big.Int  `json:"notional"`
	Debt       *big.Int  `json:"debt"`
	Oi         *big.Int  `json:"oi"`
	OiShares   *big.Int  `json:"oiShares"`
	EntryPrice *big.Int  `json:"entryPrice"`
	IsLong     bool      `json:"isLong"`
	TradingFee *big.Int  `json:"tradingFee"`
}

func (Build) EventType() Type { return TypeBuild }

// Unwind records a partial or full close. Mint is signed: positive when the
// market minted settlement value, negative when it burned.
type Unwind struct {
	Owner      uuid.UUID `json:"owner"`
	PositionID uint64    `json:"positionId"`
	Fraction   *big.Int  `json:"fraction"`
	Value      *big.Int  `json:"value"`
	Cost       *big.Int  `json:"cost"`
	Mint       *big.Int  `json:"mint"`
	TradingFee *big.Int  `json:"tradingFee"`
	ExitPrice  *big.Int  `json:"exitPrice"`
	IsLong     bool      `json:"isLong"`
	Closed     bool      `json:"closed"`
}

func (Unwind) EventType() Type { return TypeUnwind }

// Liquidate records a forced close. The position record is deleted; the
// Liquidated flag survives only here.
type Liquidate struct {
	Owner          uuid.UUID `json:"owner"`
	PositionID     uint64    `json:"positionId"`
	Sender         uuid.UUID `json:"sender"`
	Value          *big.Int  `json:"value"`
	Burn           *big.Int  `json:"burn"`
	LiquidationFee *big.Int  `json:"liquidationFee"`
	Residual       *big.Int  `json:"residual"`
	Mint           *big.Int  `json:"mint"`
	ExitPrice      *big.Int  `json:"exitPrice"`
	IsLong         bool      `json:"isLong"`
	Liquidated     bool      `json:"liquidated"`
}

func (Liquidate) EventType() Type { return TypeLiquidate }

// FundingPaid records one funding application between the two sides.
type FundingPaid struct {
	OiLongBefore  *big.Int `json:"oiLongBefore"`
	OiLongAfter   *big.Int `json:"oiLongAfter"`
	OiShortBefore *big.Int `json:"oiShortBefore"`
	OiShortAfter  *big.Int `json:"oiShortAfter"`
	ElapsedSecs   int64    `json:"elapsedSecs"`
}

func (FundingPaid) EventType() Type { return TypeFundingPaid }

// ParamUpdated records a governance write to a risk parameter.
type ParamUpdated struct {
	Name  string   `json:"name"`
	Value *big.Int `json:"value"`
}

func (ParamUpdated) EventType() Type { return TypeParamUpdated }
