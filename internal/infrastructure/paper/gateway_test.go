package paper

import (
	"context"
	"testing"

	"rangebot-backend/internal/domain"
)

// fakeMarket serves a fixed price.
type fakeMarket struct {
	price float64
}

func (m *fakeMarket) Ping(ctx context.Context) error { return nil }

func (m *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return nil, nil
}

func (m *fakeMarket) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return m.price, nil
}

func (m *fakeMarket) GetLotSizeStep(ctx context.Context, symbol string) (float64, error) {
	return 0.0001, nil
}

func TestMarketOrderMovesBalances(t *testing.T) {
	market := &fakeMarket{price: 20000}
	gw := NewGateway(market, nil, map[string]float64{"USDT": 1000})
	ctx := context.Background()

	order, err := gw.PlaceMarketOrder(ctx, "BTCUSDT", domain.OrderBuy, 0.01)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if order.Status != domain.OrderStatusFilled || order.Price != 20000 {
		t.Fatalf("unexpected fill: %+v", order)
	}

	usdt, _ := gw.GetBalance(ctx, "USDT")
	btc, _ := gw.GetBalance(ctx, "BTC")
	if usdt != 800 || btc != 0.01 {
		t.Fatalf("balances after buy: %.4f USDT, %.8f BTC", usdt, btc)
	}

	market.price = 21000
	if _, err := gw.PlaceMarketOrder(ctx, "BTCUSDT", domain.OrderSell, 0.01); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	usdt, _ = gw.GetBalance(ctx, "USDT")
	btc, _ = gw.GetBalance(ctx, "BTC")
	if usdt != 1010 || btc != 0 {
		t.Fatalf("balances after sell: %.4f USDT, %.8f BTC", usdt, btc)
	}
}

func TestMarketOrderRejectsOverdraft(t *testing.T) {
	gw := NewGateway(&fakeMarket{price: 20000}, nil, map[string]float64{"USDT": 100})

	if _, err := gw.PlaceMarketOrder(context.Background(), "BTCUSDT", domain.OrderBuy, 0.01); err == nil {
		t.Fatalf("expected overdraft rejection")
	}
	usdt, _ := gw.GetBalance(context.Background(), "USDT")
	if usdt != 100 {
		t.Fatalf("balance mutated on rejected order: %.4f", usdt)
	}
}

func TestLimitOrderFillsWhenCrossed(t *testing.T) {
	market := &fakeMarket{price: 20000}
	gw := NewGateway(market, nil, map[string]float64{"USDT": 1000})
	ctx := context.Background()

	order, err := gw.PlaceLimitOrder(ctx, "BTCUSDT", domain.OrderBuy, 0.01, 19500)
	if err != nil {
		t.Fatalf("limit placement failed: %v", err)
	}
	if order.Status != domain.OrderStatusNew {
		t.Fatalf("resting order status %s", order.Status)
	}

	// Price above the limit: still resting.
	got, err := gw.GetOrder(ctx, "BTCUSDT", order.OrderID)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if got.Status != domain.OrderStatusNew {
		t.Fatalf("filled before price crossed: %+v", got)
	}

	// Price at the limit: fills at the limit price.
	market.price = 19400
	got, err = gw.GetOrder(ctx, "BTCUSDT", order.OrderID)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if got.Status != domain.OrderStatusFilled {
		t.Fatalf("not filled after cross: %+v", got)
	}

	btc, _ := gw.GetBalance(ctx, "BTC")
	if btc != 0.01 {
		t.Fatalf("base balance after limit fill: %.8f", btc)
	}
}

func TestCancelOrder(t *testing.T) {
	gw := NewGateway(&fakeMarket{price: 20000}, nil, map[string]float64{"USDT": 1000})
	ctx := context.Background()

	order, err := gw.PlaceLimitOrder(ctx, "BTCUSDT", domain.OrderBuy, 0.01, 19500)
	if err != nil {
		t.Fatalf("limit placement failed: %v", err)
	}
	if err := gw.CancelOrder(ctx, "BTCUSDT", order.OrderID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := gw.CancelOrder(ctx, "BTCUSDT", order.OrderID); err == nil {
		t.Fatalf("expected error cancelling a gone order")
	}
}

func TestCalculateOrderQuantity(t *testing.T) {
	gw := NewGateway(&fakeMarket{price: 20000}, nil, nil)

	qty, err := gw.CalculateOrderQuantity(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("quantity calc failed: %v", err)
	}
	// 10 / 20000 = 0.0005, already on the 0.0001 step.
	if diff := qty - 0.0005; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("quantity = %.8f, want 0.0005", qty)
	}
}

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		symbol, base, quote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHBTC", "ETH", "BTC"},
		{"SOLUSDC", "SOL", "USDC"},
	}
	for _, tt := range tests {
		base, quote := splitSymbol(tt.symbol)
		if base != tt.base || quote != tt.quote {
			t.Fatalf("%s split to %s/%s, want %s/%s", tt.symbol, base, quote, tt.base, tt.quote)
		}
	}
}
