package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rangebot-backend/internal/domain"
)

var (
	ErrPositionExists   = errors.New("an active position already exists for this symbol")
	ErrNoActivePosition = errors.New("no active position for this symbol")
)

// PositionLedger is the authoritative in-memory registry of at most one
// active position per symbol and all outstanding orders. It owns the
// position lifecycle: positions are created here on filled entry orders and
// closed here through the exchange gateway.
//
// The registries are check-then-act, so all mutations go through a mutex.
// A single monitoring loop never contends, but the invariant must survive
// additional symbols or concurrent cycles.
type PositionLedger struct {
	mu        sync.Mutex
	gateway   domain.ExchangeGateway
	ledger    domain.TradeLedger // optional, nil disables persistence
	notifier  domain.Notifier
	maxHold   time.Duration
	positions map[string]*domain.Position // symbol -> active position
	orders    map[int64]*domain.Order     // orderId -> outstanding order
}

func NewPositionLedger(gateway domain.ExchangeGateway, ledger domain.TradeLedger, notifier domain.Notifier, maxHold time.Duration) *PositionLedger {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &PositionLedger{
		gateway:   gateway,
		ledger:    ledger,
		notifier:  notifier,
		maxHold:   maxHold,
		positions: make(map[string]*domain.Position),
		orders:    make(map[int64]*domain.Order),
	}
}

// CreatePosition registers a new active position. It fails with
// ErrPositionExists when the symbol already has one; the first position is
// left untouched.
func (l *PositionLedger) CreatePosition(ctx context.Context, symbol string, side domain.PositionSide, quantity, entryPrice float64) (*domain.Position, error) {
	l.mu.Lock()
	if existing, ok := l.positions[symbol]; ok && existing.Active() {
		l.mu.Unlock()
		log.Printf("Rejected position create for %s: already holding %s %.8f", symbol, existing.Side, existing.Quantity)
		return nil, ErrPositionExists
	}

	pos := &domain.Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryTime:  time.Now(),
		Status:     domain.PositionActive,
	}
	l.positions[symbol] = pos
	l.mu.Unlock()

	l.record(ctx, func(ctx context.Context) error { return l.ledger.RecordPosition(ctx, pos) })
	l.notifier.Publish(ctx, domain.TradeEvent{
		Kind:     domain.EventPositionOpened,
		Symbol:   symbol,
		Price:    entryPrice,
		Quantity: quantity,
		At:       pos.EntryTime,
	})
	log.Printf("Position opened: %s %s qty=%.8f entry=%.8f", symbol, side, quantity, entryPrice)

	snapshot := *pos
	return &snapshot, nil
}

// GetActivePosition returns a copy of the active position for the symbol,
// or nil when there is none.
func (l *PositionLedger) GetActivePosition(symbol string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok || !pos.Active() {
		return nil
	}
	snapshot := *pos
	return &snapshot
}

// ActivePositions returns copies of all active positions.
func (l *PositionLedger) ActivePositions() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		if pos.Active() {
			snapshot := *pos
			out = append(out, &snapshot)
		}
	}
	return out
}

// ClosePosition issues the opposing market order through the exchange and,
// only on confirmed execution, marks the position closed and removes it from
// the active set. If the exchange call fails the position stays active and
// the caller retries on a later cycle.
func (l *PositionLedger) ClosePosition(ctx context.Context, symbol, reason string) (*domain.Position, error) {
	l.mu.Lock()
	pos, ok := l.positions[symbol]
	if !ok || !pos.Active() {
		l.mu.Unlock()
		return nil, ErrNoActivePosition
	}
	side := domain.EntrySide(pos.Side).Opposite()
	quantity := pos.Quantity
	l.mu.Unlock()

	order, err := l.gateway.PlaceMarketOrder(ctx, symbol, side, quantity)
	if err != nil {
		return nil, fmt.Errorf("close order for %s: %w", symbol, err)
	}

	exitPrice := order.Price
	if exitPrice <= 0 {
		// Some venues return no average price on market fills.
		if p, priceErr := l.gateway.GetCurrentPrice(ctx, symbol); priceErr == nil {
			exitPrice = p
		} else {
			exitPrice = pos.EntryPrice
		}
	}

	now := time.Now()
	pl := pos.UnrealizedPL(exitPrice)

	l.mu.Lock()
	pos.Status = domain.PositionClosed
	pos.ExitPrice = &exitPrice
	pos.ExitTime = &now
	pos.ExitReason = reason
	pos.ProfitLoss = &pl
	delete(l.positions, symbol)
	closed := *pos
	l.mu.Unlock()

	l.record(ctx, func(ctx context.Context) error { return l.ledger.RecordOrder(ctx, order) })
	l.record(ctx, func(ctx context.Context) error { return l.ledger.UpdatePosition(ctx, &closed) })
	l.notifier.Publish(ctx, domain.TradeEvent{
		Kind:       domain.EventPositionClosed,
		Symbol:     symbol,
		Price:      exitPrice,
		Quantity:   closed.Quantity,
		ProfitLoss: &pl,
		Reason:     reason,
		At:         now,
	})
	log.Printf("Position closed: %s exit=%.8f P/L=%.4f reason=%s", symbol, exitPrice, pl, reason)

	return &closed, nil
}

// Monitor force-closes every active position whose age exceeds the maximum
// hold duration, regardless of profit. Failures are isolated per position so
// one stuck close cannot block monitoring of the others.
func (l *PositionLedger) Monitor(ctx context.Context, now time.Time) {
	for _, pos := range l.ActivePositions() {
		if pos.Age(now) < l.maxHold {
			continue
		}
		log.Printf("Position %s exceeded max hold (%s), forcing close", pos.Symbol, pos.Age(now).Round(time.Minute))
		if _, err := l.ClosePosition(ctx, pos.Symbol, domain.ExitReasonMaxHold); err != nil {
			log.Printf("Forced close of %s failed: %v", pos.Symbol, err)
		}
	}
}

// RegisterOrder adds an order to the outstanding registry. Orders already in
// a terminal status are recorded to the trade ledger and not registered.
func (l *PositionLedger) RegisterOrder(ctx context.Context, order *domain.Order) {
	if order == nil {
		return
	}
	if order.Terminal() {
		l.record(ctx, func(ctx context.Context) error { return l.ledger.RecordOrder(ctx, order) })
		return
	}
	l.mu.Lock()
	l.orders[order.OrderID] = order
	l.mu.Unlock()
}

// GetOrder returns a copy of an outstanding order, or nil if unknown.
func (l *PositionLedger) GetOrder(orderID int64) *domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return nil
	}
	snapshot := *order
	return &snapshot
}

// ActiveOrders returns copies of all outstanding orders.
func (l *PositionLedger) ActiveOrders() []*domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Order, 0, len(l.orders))
	for _, order := range l.orders {
		snapshot := *order
		out = append(out, &snapshot)
	}
	return out
}

// SyncOrders polls the exchange for the status of every outstanding order
// and prunes those that reached a terminal status, recording them to the
// trade ledger. There is no implicit expiry.
func (l *PositionLedger) SyncOrders(ctx context.Context) {
	for _, order := range l.ActiveOrders() {
		latest, err := l.gateway.GetOrder(ctx, order.Symbol, order.OrderID)
		if err != nil {
			log.Printf("Order status poll failed for %s #%d: %v", order.Symbol, order.OrderID, err)
			continue
		}
		if latest == nil || !latest.Terminal() {
			continue
		}
		l.mu.Lock()
		delete(l.orders, order.OrderID)
		l.mu.Unlock()
		l.record(ctx, func(ctx context.Context) error { return l.ledger.RecordOrder(ctx, latest) })
		log.Printf("Order #%d for %s reached %s, pruned from registry", latest.OrderID, latest.Symbol, latest.Status)
	}
}

// record performs a fire-and-forget ledger write.
func (l *PositionLedger) record(ctx context.Context, write func(context.Context) error) {
	if l.ledger == nil {
		return
	}
	if err := write(ctx); err != nil {
		log.Printf("Trade ledger write failed: %v", err)
	}
}
