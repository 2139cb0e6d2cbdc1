package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"rangebot-backend/internal/domain"
)

// MonitoringLoop is the single scheduled task that drives the decision cycle.
// One instance runs per service; the loop never terminates on its own except
// on cancellation or a fatal startup failure.
type MonitoringLoop struct {
	engine    *TradingDecisionEngine
	positions *PositionLedger
	gateway   domain.ExchangeGateway
	notifier  domain.Notifier
	cfg       domain.TradingConfig
}

func NewMonitoringLoop(
	engine *TradingDecisionEngine,
	positions *PositionLedger,
	gateway domain.ExchangeGateway,
	notifier domain.Notifier,
	cfg domain.TradingConfig,
) *MonitoringLoop {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &MonitoringLoop{
		engine:    engine,
		positions: positions,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Run verifies exchange connectivity, then repeats the decision cycle at the
// configured interval until the context is cancelled. A failed startup check
// aborts the run entirely rather than looping on a dead exchange. Errors
// inside a cycle are logged and notified, then the loop continues after the
// shorter error-backoff interval.
func (l *MonitoringLoop) Run(ctx context.Context) error {
	if err := l.gateway.Ping(ctx); err != nil {
		l.notifier.Publish(ctx, domain.TradeEvent{
			Kind:    domain.EventEngineError,
			Symbol:  l.cfg.Symbol,
			Message: fmt.Sprintf("Exchange unreachable at startup: %v", err),
			At:      time.Now(),
		})
		return fmt.Errorf("exchange connectivity check: %w", err)
	}

	if balance, err := l.gateway.GetBalance(ctx, l.cfg.QuoteAsset); err != nil {
		log.Printf("Could not fetch starting balance: %v", err)
	} else {
		log.Printf("Starting balance: %.2f %s", balance, l.cfg.QuoteAsset)
	}

	log.Printf("Monitoring %s every %s (window=%d candles x %dm)",
		l.cfg.Symbol, l.cfg.MonitorInterval, l.cfg.AnalysisPeriods, l.cfg.PeriodMinutes)
	l.notifier.Publish(ctx, domain.TradeEvent{
		Kind:   domain.EventEngineStarted,
		Symbol: l.cfg.Symbol,
		At:     time.Now(),
	})

	for {
		err := l.cycle(ctx)

		delay := l.cfg.MonitorInterval
		if err != nil {
			log.Printf("Cycle failed: %v", err)
			l.notifier.Publish(ctx, domain.TradeEvent{
				Kind:    domain.EventEngineError,
				Symbol:  l.cfg.Symbol,
				Message: err.Error(),
				At:      time.Now(),
			})
			delay = l.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			log.Printf("Monitoring loop stopped: %v", ctx.Err())
			l.notifier.Publish(context.WithoutCancel(ctx), domain.TradeEvent{
				Kind:   domain.EventEngineStopped,
				Symbol: l.cfg.Symbol,
				At:     time.Now(),
			})
			return nil
		case <-time.After(delay):
		}
	}
}

// cycle runs one iteration: analysis, age-based monitoring, order pruning,
// and a live P&L log of every active position. Panics are absorbed so a bug
// in one iteration cannot take down the loop.
func (l *MonitoringLoop) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	if err := l.engine.AnalyzeMarket(ctx); err != nil {
		return err
	}

	l.positions.Monitor(ctx, time.Now())
	l.positions.SyncOrders(ctx)
	l.logActivePositions(ctx)
	return nil
}

func (l *MonitoringLoop) logActivePositions(ctx context.Context) {
	positions := l.positions.ActivePositions()
	if len(positions) == 0 {
		return
	}
	for _, pos := range positions {
		price, err := l.gateway.GetCurrentPrice(ctx, pos.Symbol)
		if err != nil {
			log.Printf("Active %s %s qty=%.8f entry=%.8f (price unavailable: %v)",
				pos.Symbol, pos.Side, pos.Quantity, pos.EntryPrice, err)
			continue
		}
		log.Printf("Active %s %s qty=%.8f entry=%.8f now=%.8f P/L=%.4f (%.2f%%) age=%s",
			pos.Symbol, pos.Side, pos.Quantity, pos.EntryPrice, price,
			pos.UnrealizedPL(price), pos.ProfitRatio(price)*100,
			pos.Age(time.Now()).Round(time.Minute))
	}
}
