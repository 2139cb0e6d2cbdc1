package domain

import (
	"context"
	"time"
)

// EventKind identifies a trade lifecycle event.
type EventKind string

const (
	EventEngineStarted  EventKind = "ENGINE_STARTED"
	EventEngineStopped  EventKind = "ENGINE_STOPPED"
	EventEngineError    EventKind = "ENGINE_ERROR"
	EventRegimeDetected EventKind = "REGIME_DETECTED"
	EventOrderPlaced    EventKind = "ORDER_PLACED"
	EventOrderFilled    EventKind = "ORDER_FILLED"
	EventOrderFailed    EventKind = "ORDER_FAILED"
	EventPositionOpened EventKind = "POSITION_OPENED"
	EventPositionClosed EventKind = "POSITION_CLOSED"
)

// TradeEvent is a lifecycle event emitted by the decision core.
type TradeEvent struct {
	Kind       EventKind `json:"kind"`
	Symbol     string    `json:"symbol,omitempty"`
	Message    string    `json:"message,omitempty"`
	Price      float64   `json:"price,omitempty"`
	Quantity   float64   `json:"quantity,omitempty"`
	ProfitLoss *float64  `json:"profitLoss,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier is a fire-and-forget sink for trade events. Delivery guarantees
// are the relay's concern; the core never blocks on or inspects delivery.
type Notifier interface {
	Publish(ctx context.Context, ev TradeEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, TradeEvent) {}
