package domain

import "time"

// PositionSide is the direction of an open position.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// Position statuses.
const (
	PositionActive = "ACTIVE"
	PositionClosed = "CLOSED"
)

// Exit reasons recorded when a position is closed.
const (
	ExitReasonMinProfit = "MIN_PROFIT"
	ExitReasonMaxHold   = "MAX_HOLD"
	ExitReasonManual    = "MANUAL"
)

// Position represents an open or closed market exposure for a single symbol.
// At most one ACTIVE position exists per symbol at any time.
type Position struct {
	ID         string       `json:"id"`
	Symbol     string       `json:"symbol"`
	Side       PositionSide `json:"side"`
	Quantity   float64      `json:"quantity"`
	EntryPrice float64      `json:"entryPrice"`
	EntryTime  time.Time    `json:"entryTime"`
	Status     string       `json:"status"`
	ExitPrice  *float64     `json:"exitPrice,omitempty"`
	ExitTime   *time.Time   `json:"exitTime,omitempty"`
	ExitReason string       `json:"exitReason,omitempty"`
	ProfitLoss *float64     `json:"profitLoss,omitempty"`
}

// Active reports whether the position is still open.
func (p *Position) Active() bool {
	return p.Status == PositionActive
}

// ProfitRatio returns the unrealized profit ratio at the given price.
// The sign is flipped for short positions.
func (p *Position) ProfitRatio(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	ratio := (price - p.EntryPrice) / p.EntryPrice
	if p.Side == SideShort {
		return -ratio
	}
	return ratio
}

// UnrealizedPL returns the unrealized profit in quote currency at the given price.
func (p *Position) UnrealizedPL(price float64) float64 {
	pl := (price - p.EntryPrice) * p.Quantity
	if p.Side == SideShort {
		return -pl
	}
	return pl
}

// Age returns how long the position has been open.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
