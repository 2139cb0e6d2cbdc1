package binance

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"rangebot-backend/internal/domain"
)

// Gateway is the live ExchangeGateway backed by the Binance spot API.
// It composes the public market-data client and the signed trading client.
type Gateway struct {
	market  *Client
	trading *TradingClient

	mu       sync.Mutex
	lotSteps map[string]float64 // symbol -> LOT_SIZE step, cached per run
}

func NewGateway(apiKey, secretKey string, isTestnet bool) *Gateway {
	marketURL := SpotBaseURL
	if isTestnet {
		marketURL = TestnetBaseURL
	}
	return &Gateway{
		market:   NewClient(marketURL),
		trading:  NewTradingClient(apiKey, secretKey, isTestnet),
		lotSteps: make(map[string]float64),
	}
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.market.Ping(ctx); err != nil {
		return err
	}
	return g.trading.TestConnection(ctx)
}

func (g *Gateway) GetCandles(ctx context.Context, symbol string, periodMinutes, limit int) ([]domain.Candle, error) {
	return g.market.GetKlines(ctx, symbol, intervalString(periodMinutes), limit)
}

func (g *Gateway) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return g.market.GetPrice(ctx, symbol)
}

func (g *Gateway) GetBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := g.trading.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	return balances[asset], nil
}

func (g *Gateway) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*domain.Order, error) {
	return g.trading.PlaceOrder(ctx, &OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          domain.OrderMarket,
		Quantity:      quantity,
		ClientOrderID: uuid.NewString(),
	})
}

func (g *Gateway) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (*domain.Order, error) {
	return g.trading.PlaceOrder(ctx, &OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          domain.OrderLimit,
		Quantity:      quantity,
		Price:         price,
		ClientOrderID: uuid.NewString(),
	})
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return g.trading.CancelOrder(ctx, symbol, orderID)
}

func (g *Gateway) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	return g.trading.GetOrder(ctx, symbol, orderID)
}

// CalculateOrderQuantity converts a quote notional into a base quantity at
// the current price, rounded down to the symbol's lot-size step.
func (g *Gateway) CalculateOrderQuantity(ctx context.Context, symbol string, notional float64) (float64, error) {
	price, err := g.market.GetPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %.8f for %s", price, symbol)
	}

	step, err := g.lotSizeStep(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return FloorToStep(notional/price, step), nil
}

func (g *Gateway) lotSizeStep(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	step, ok := g.lotSteps[symbol]
	g.mu.Unlock()
	if ok {
		return step, nil
	}

	step, err := g.market.GetLotSizeStep(ctx, symbol)
	if err != nil {
		return 0, err
	}
	g.mu.Lock()
	g.lotSteps[symbol] = step
	g.mu.Unlock()
	return step, nil
}

// FloorToStep rounds a quantity down to a multiple of the lot-size step.
func FloorToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	steps := math.Floor(quantity/step + 1e-9)
	// Re-round to the step's own precision to avoid float dust like
	// 0.00019999999.
	decimals := 0
	for s := step; s < 1 && decimals < 10; s *= 10 {
		decimals++
	}
	p := math.Pow10(decimals)
	return math.Round(steps*step*p) / p
}

func intervalString(periodMinutes int) string {
	if periodMinutes%60 == 0 {
		return fmt.Sprintf("%dh", periodMinutes/60)
	}
	return fmt.Sprintf("%dm", periodMinutes)
}

// compile-time check
var _ domain.ExchangeGateway = (*Gateway)(nil)
