package domain

import (
	"context"
	"time"
)

// TradeLedger persists historical order and position records. Writes are
// fire-and-forget from the decision logic's perspective: a failed write is
// logged but never changes a trading decision.
type TradeLedger interface {
	RecordOrder(ctx context.Context, order *Order) error
	RecordPosition(ctx context.Context, position *Position) error
	UpdatePosition(ctx context.Context, position *Position) error

	// PositionHistory returns closed positions whose exit time is at or
	// after fromTime, newest first.
	PositionHistory(ctx context.Context, fromTime time.Time) ([]*Position, error)
}
