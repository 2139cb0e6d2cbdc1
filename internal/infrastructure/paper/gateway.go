package paper

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"rangebot-backend/internal/domain"
)

// MarketData is the slice of the exchange surface a paper gateway still
// needs live: real candles and prices, nothing authenticated.
type MarketData interface {
	Ping(ctx context.Context) error
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetLotSizeStep(ctx context.Context, symbol string) (float64, error)
}

// Gateway simulates an exchange: market orders fill instantly at the live
// public price against simulated balances, and every order is recorded to
// the trade ledger. Limit orders rest until a later status poll finds the
// market has crossed them.
type Gateway struct {
	market MarketData
	ledger domain.TradeLedger // optional

	mu       sync.Mutex
	balances map[string]float64
	orders   map[int64]*domain.Order
	nextID   int64
}

func NewGateway(market MarketData, ledger domain.TradeLedger, startingBalances map[string]float64) *Gateway {
	balances := make(map[string]float64, len(startingBalances))
	for asset, amount := range startingBalances {
		balances[asset] = amount
	}
	return &Gateway{
		market:   market,
		ledger:   ledger,
		balances: balances,
		orders:   make(map[int64]*domain.Order),
		nextID:   1,
	}
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.market.Ping(ctx)
}

func (g *Gateway) GetCandles(ctx context.Context, symbol string, periodMinutes, limit int) ([]domain.Candle, error) {
	interval := fmt.Sprintf("%dm", periodMinutes)
	if periodMinutes%60 == 0 {
		interval = fmt.Sprintf("%dh", periodMinutes/60)
	}
	return g.market.GetKlines(ctx, symbol, interval, limit)
}

func (g *Gateway) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return g.market.GetPrice(ctx, symbol)
}

func (g *Gateway) GetBalance(_ context.Context, asset string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[asset], nil
}

func (g *Gateway) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*domain.Order, error) {
	price, err := g.market.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("paper fill price for %s: %w", symbol, err)
	}

	g.mu.Lock()
	base, quote := splitSymbol(symbol)
	notional := quantity * price
	if side == domain.OrderBuy {
		if g.balances[quote] < notional {
			g.mu.Unlock()
			return nil, fmt.Errorf("paper balance %.4f %s below notional %.4f", g.balances[quote], quote, notional)
		}
		g.balances[quote] -= notional
		g.balances[base] += quantity
	} else {
		if g.balances[base] < quantity {
			g.mu.Unlock()
			return nil, fmt.Errorf("paper balance %.8f %s below quantity %.8f", g.balances[base], base, quantity)
		}
		g.balances[base] -= quantity
		g.balances[quote] += notional
	}

	order := &domain.Order{
		OrderID:       g.nextID,
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Type:          domain.OrderMarket,
		Quantity:      quantity,
		Price:         price,
		Status:        domain.OrderStatusFilled,
		CreatedAt:     time.Now(),
	}
	g.nextID++
	g.mu.Unlock()

	g.record(ctx, order)
	log.Printf("Paper fill: %s %s %.8f @ %.8f", side, symbol, quantity, price)
	return order, nil
}

func (g *Gateway) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (*domain.Order, error) {
	g.mu.Lock()
	order := &domain.Order{
		OrderID:       g.nextID,
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Type:          domain.OrderLimit,
		Quantity:      quantity,
		Price:         price,
		Status:        domain.OrderStatusNew,
		CreatedAt:     time.Now(),
	}
	g.nextID++
	g.orders[order.OrderID] = order
	g.mu.Unlock()

	g.record(ctx, order)
	snapshot := *order
	return &snapshot, nil
}

func (g *Gateway) CancelOrder(_ context.Context, symbol string, orderID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[orderID]
	if !ok || order.Symbol != symbol {
		return fmt.Errorf("paper order %d for %s not found", orderID, symbol)
	}
	order.Status = domain.OrderStatusCanceled
	delete(g.orders, orderID)
	return nil
}

// GetOrder returns the order's current state, filling a resting limit order
// when the live price has crossed its limit.
func (g *Gateway) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	g.mu.Lock()
	order, ok := g.orders[orderID]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("paper order %d for %s not found", orderID, symbol)
	}

	price, err := g.market.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	crossed := (order.Side == domain.OrderBuy && price <= order.Price) ||
		(order.Side == domain.OrderSell && price >= order.Price)
	if order.Status == domain.OrderStatusNew && crossed {
		base, quote := splitSymbol(symbol)
		notional := order.Quantity * order.Price
		if order.Side == domain.OrderBuy {
			g.balances[quote] -= notional
			g.balances[base] += order.Quantity
		} else {
			g.balances[base] -= order.Quantity
			g.balances[quote] += notional
		}
		order.Status = domain.OrderStatusFilled
		delete(g.orders, orderID)
	}
	snapshot := *order
	return &snapshot, nil
}

func (g *Gateway) CalculateOrderQuantity(ctx context.Context, symbol string, notional float64) (float64, error) {
	price, err := g.market.GetPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %.8f for %s", price, symbol)
	}
	step, err := g.market.GetLotSizeStep(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if step <= 0 {
		return notional / price, nil
	}
	return math.Floor(notional/price/step+1e-9) * step, nil
}

func (g *Gateway) record(ctx context.Context, order *domain.Order) {
	if g.ledger == nil {
		return
	}
	if err := g.ledger.RecordOrder(ctx, order); err != nil {
		log.Printf("Paper ledger write failed: %v", err)
	}
}

// splitSymbol separates a symbol like BTCUSDT into base and quote assets.
// Quote detection covers the common stablecoin and majors suffixes.
func splitSymbol(symbol string) (base, quote string) {
	for _, q := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB"} {
		if len(symbol) > len(q) && symbol[len(symbol)-len(q):] == q {
			return symbol[:len(symbol)-len(q)], q
		}
	}
	return symbol, "USDT"
}

// compile-time check
var _ domain.ExchangeGateway = (*Gateway)(nil)
