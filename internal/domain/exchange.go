package domain

import "context"

// ExchangeGateway defines the interface for interacting with a crypto
// exchange. The decision core is written against this interface only;
// the live and paper-trading implementations are selected at composition time.
type ExchangeGateway interface {
	// Ping verifies connectivity with the exchange.
	Ping(ctx context.Context) error

	// GetCandles returns up to limit candles for the symbol, ordered oldest
	// to newest, at the given period in minutes.
	GetCandles(ctx context.Context, symbol string, periodMinutes, limit int) ([]Candle, error)

	// GetCurrentPrice returns the latest traded price for the symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// GetBalance returns the free balance of the given asset.
	GetBalance(ctx context.Context, asset string) (float64, error)

	// PlaceMarketOrder places a market order and returns the resulting order
	// with its executed price and status.
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (*Order, error)

	// PlaceLimitOrder places a limit order at the given price.
	PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, quantity, price float64) (*Order, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// GetOrder returns the current state of an order.
	GetOrder(ctx context.Context, symbol string, orderID int64) (*Order, error)

	// CalculateOrderQuantity converts a quote-currency notional into a base
	// quantity rounded down to the symbol's lot-size step.
	CalculateOrderQuantity(ctx context.Context, symbol string, notional float64) (float64, error)
}
