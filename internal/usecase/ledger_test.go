package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rangebot-backend/internal/domain"
)

// fakeGateway is a scriptable in-memory exchange used across the usecase
// tests.
type fakeGateway struct {
	mu sync.Mutex

	pingErr     error
	candles     []domain.Candle
	candlesErr  error
	price       float64
	priceErr    error
	balance     float64
	balanceErr  error
	quantity    float64
	quantityErr error
	placeErr    error
	fillPrice   float64

	placed []*domain.Order
	orders map[int64]*domain.Order
	nextID int64
}

var _ domain.ExchangeGateway = (*fakeGateway)(nil)

func (g *fakeGateway) Ping(ctx context.Context) error { return g.pingErr }

func (g *fakeGateway) GetCandles(ctx context.Context, symbol string, periodMinutes, limit int) ([]domain.Candle, error) {
	return g.candles, g.candlesErr
}

func (g *fakeGateway) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return g.price, g.priceErr
}

func (g *fakeGateway) GetBalance(ctx context.Context, asset string) (float64, error) {
	return g.balance, g.balanceErr
}

func (g *fakeGateway) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*domain.Order, error) {
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	order := &domain.Order{
		OrderID:   g.nextID,
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderMarket,
		Quantity:  quantity,
		Price:     g.fillPrice,
		Status:    domain.OrderStatusFilled,
		CreatedAt: time.Now(),
	}
	g.placed = append(g.placed, order)
	return order, nil
}

func (g *fakeGateway) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (*domain.Order, error) {
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	order := &domain.Order{
		OrderID:   g.nextID,
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderLimit,
		Quantity:  quantity,
		Price:     price,
		Status:    domain.OrderStatusNew,
		CreatedAt: time.Now(),
	}
	g.placed = append(g.placed, order)
	return order, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return nil
}

func (g *fakeGateway) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders[orderID], nil
}

func (g *fakeGateway) CalculateOrderQuantity(ctx context.Context, symbol string, notional float64) (float64, error) {
	return g.quantity, g.quantityErr
}

func (g *fakeGateway) placedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placed)
}

func (g *fakeGateway) lastPlaced() *domain.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.placed) == 0 {
		return nil
	}
	return g.placed[len(g.placed)-1]
}

func TestCreatePositionRejectsSecondActive(t *testing.T) {
	gw := &fakeGateway{}
	ledger := NewPositionLedger(gw, nil, nil, 24*time.Hour)
	ctx := context.Background()

	first, err := ledger.CreatePosition(ctx, "BTCUSDT", domain.SideLong, 0.001, 19000)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if first.ID == "" || !first.Active() {
		t.Fatalf("unexpected first position: %+v", first)
	}

	if _, err := ledger.CreatePosition(ctx, "BTCUSDT", domain.SideLong, 0.002, 19100); !errors.Is(err, ErrPositionExists) {
		t.Fatalf("second create: got %v, want ErrPositionExists", err)
	}

	active := ledger.GetActivePosition("BTCUSDT")
	if active == nil || active.ID != first.ID || active.Quantity != 0.001 {
		t.Fatalf("first position was not preserved: %+v", active)
	}

	// A different symbol is an independent slot.
	if _, err := ledger.CreatePosition(ctx, "ETHUSDT", domain.SideLong, 0.01, 2500); err != nil {
		t.Fatalf("create for second symbol failed: %v", err)
	}
	if got := len(ledger.ActivePositions()); got != 2 {
		t.Fatalf("active positions = %d, want 2", got)
	}
}

func TestClosePositionPlacesOpposingOrder(t *testing.T) {
	gw := &fakeGateway{fillPrice: 19090}
	ledger := NewPositionLedger(gw, nil, nil, 24*time.Hour)
	ctx := context.Background()

	if _, err := ledger.CreatePosition(ctx, "BTCUSDT", domain.SideLong, 0.001, 19000); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	closed, err := ledger.ClosePosition(ctx, "BTCUSDT", domain.ExitReasonMinProfit)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	order := gw.lastPlaced()
	if order == nil || order.Side != domain.OrderSell || order.Quantity != 0.001 {
		t.Fatalf("expected SELL of full quantity, got %+v", order)
	}
	if closed.Status != domain.PositionClosed || closed.ExitReason != domain.ExitReasonMinProfit {
		t.Fatalf("unexpected closed state: %+v", closed)
	}
	if closed.ExitPrice == nil || *closed.ExitPrice != 19090 {
		t.Fatalf("exit price not taken from fill: %+v", closed.ExitPrice)
	}
	wantPL := (19090.0 - 19000.0) * 0.001
	if closed.ProfitLoss == nil || *closed.ProfitLoss != wantPL {
		t.Fatalf("P/L = %+v, want %.4f", closed.ProfitLoss, wantPL)
	}
	if ledger.GetActivePosition("BTCUSDT") != nil {
		t.Fatalf("position still active after close")
	}
}

func TestClosePositionFailureKeepsPositionActive(t *testing.T) {
	gw := &fakeGateway{placeErr: errors.New("venue down")}
	ledger := NewPositionLedger(gw, nil, nil, 24*time.Hour)
	ctx := context.Background()

	if _, err := ledger.CreatePosition(ctx, "BTCUSDT", domain.SideLong, 0.001, 19000); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := ledger.ClosePosition(ctx, "BTCUSDT", domain.ExitReasonMinProfit); err == nil {
		t.Fatalf("expected close to fail")
	}

	active := ledger.GetActivePosition("BTCUSDT")
	if active == nil || !active.Active() {
		t.Fatalf("position must survive a failed close, got %+v", active)
	}
}

func TestClosePositionWithoutActive(t *testing.T) {
	ledger := NewPositionLedger(&fakeGateway{}, nil, nil, 24*time.Hour)
	if _, err := ledger.ClosePosition(context.Background(), "BTCUSDT", domain.ExitReasonManual); !errors.Is(err, ErrNoActivePosition) {
		t.Fatalf("got %v, want ErrNoActivePosition", err)
	}
}

func TestMonitorForcesAgedClose(t *testing.T) {
	gw := &fakeGateway{fillPrice: 18900}
	ledger := NewPositionLedger(gw, nil, nil, 24*time.Hour)
	ctx := context.Background()

	if _, err := ledger.CreatePosition(ctx, "BTCUSDT", domain.SideLong, 0.001, 19000); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Under the hold limit nothing happens.
	ledger.Monitor(ctx, time.Now().Add(23*time.Hour))
	if gw.placedCount() != 0 {
		t.Fatalf("close issued before max hold")
	}
	if ledger.GetActivePosition("BTCUSDT") == nil {
		t.Fatalf("position closed early")
	}

	// Past the limit the position is force-closed even at a loss.
	ledger.Monitor(ctx, time.Now().Add(25*time.Hour))
	if gw.placedCount() != 1 {
		t.Fatalf("expected one forced close order, got %d", gw.placedCount())
	}
	if ledger.GetActivePosition("BTCUSDT") != nil {
		t.Fatalf("aged position still active")
	}
}

func TestMonitorIsolatesFailures(t *testing.T) {
	gw := &fakeGateway{placeErr: errors.New("venue down")}
	ledger := NewPositionLedger(gw, nil, nil, 24*time.Hour)
	ctx := context.Background()

	ledger.CreatePosition(ctx, "BTCUSDT", domain.SideLong, 0.001, 19000)
	ledger.CreatePosition(ctx, "ETHUSDT", domain.SideLong, 0.01, 2500)

	// Both closes fail; both positions stay active and Monitor returns.
	ledger.Monitor(ctx, time.Now().Add(25*time.Hour))
	if got := len(ledger.ActivePositions()); got != 2 {
		t.Fatalf("active positions = %d, want 2 after failed closes", got)
	}
}

func TestRegisterAndSyncOrders(t *testing.T) {
	gw := &fakeGateway{orders: make(map[int64]*domain.Order)}
	ledger := NewPositionLedger(gw, nil, nil, 24*time.Hour)
	ctx := context.Background()

	resting := &domain.Order{OrderID: 7, Symbol: "BTCUSDT", Side: domain.OrderBuy, Type: domain.OrderLimit, Quantity: 0.001, Price: 18950, Status: domain.OrderStatusNew}
	ledger.RegisterOrder(ctx, resting)
	if ledger.GetOrder(7) == nil {
		t.Fatalf("resting order not registered")
	}

	// Terminal orders are never registered.
	ledger.RegisterOrder(ctx, &domain.Order{OrderID: 8, Symbol: "BTCUSDT", Status: domain.OrderStatusFilled})
	if ledger.GetOrder(8) != nil {
		t.Fatalf("terminal order must not enter the registry")
	}

	// Still NEW on the exchange: nothing pruned.
	gw.orders[7] = &domain.Order{OrderID: 7, Symbol: "BTCUSDT", Status: domain.OrderStatusNew}
	ledger.SyncOrders(ctx)
	if ledger.GetOrder(7) == nil {
		t.Fatalf("open order pruned prematurely")
	}

	// Filled on the exchange: pruned on the next sync.
	gw.orders[7] = &domain.Order{OrderID: 7, Symbol: "BTCUSDT", Status: domain.OrderStatusFilled}
	ledger.SyncOrders(ctx)
	if ledger.GetOrder(7) != nil {
		t.Fatalf("terminal order not pruned")
	}
	if got := len(ledger.ActiveOrders()); got != 0 {
		t.Fatalf("active orders = %d, want 0", got)
	}
}
