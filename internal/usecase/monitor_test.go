package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rangebot-backend/internal/domain"
)

func fastConfig() domain.TradingConfig {
	cfg := domain.DefaultTradingConfig()
	cfg.MonitorInterval = 5 * time.Millisecond
	cfg.ErrorBackoff = 2 * time.Millisecond
	return cfg
}

func newTestLoop(gw domain.ExchangeGateway, cfg domain.TradingConfig) *MonitoringLoop {
	ledger := NewPositionLedger(gw, nil, nil, cfg.MaxHold())
	engine := NewTradingDecisionEngine(gw, ledger, NewRegimeDetector(), nil, nil, nil, cfg)
	return NewMonitoringLoop(engine, ledger, gw, nil, cfg)
}

func TestRunAbortsOnStartupPingFailure(t *testing.T) {
	gw := &fakeGateway{pingErr: errors.New("connection refused")}
	loop := newTestLoop(gw, fastConfig())

	err := loop.Run(context.Background())
	if err == nil {
		t.Fatalf("expected startup failure")
	}
	if !errors.Is(err, gw.pingErr) {
		t.Fatalf("error does not wrap the ping failure: %v", err)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	gw := &fakeGateway{candles: rangeWindow(), balance: 100, quantity: 0.0005}
	loop := newTestLoop(gw, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancelled run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop after cancellation")
	}
}

// erroringGateway fails every candle fetch while counting the attempts.
type erroringGateway struct {
	fakeGateway
	fetches atomic.Int32
}

func (g *erroringGateway) GetCandles(ctx context.Context, symbol string, periodMinutes, limit int) ([]domain.Candle, error) {
	g.fetches.Add(1)
	return nil, errors.New("timeout")
}

func TestRunContinuesAfterCycleErrors(t *testing.T) {
	gw := &erroringGateway{}
	loop := newTestLoop(gw, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Enough wall time for several error-backoff iterations.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop after cancellation")
	}

	if got := gw.fetches.Load(); got < 2 {
		t.Fatalf("loop retried %d times, want at least 2", got)
	}
}

// panickyGateway panics on candle fetches to exercise cycle recovery.
type panickyGateway struct {
	fakeGateway
	fetches atomic.Int32
}

func (g *panickyGateway) GetCandles(ctx context.Context, symbol string, periodMinutes, limit int) ([]domain.Candle, error) {
	g.fetches.Add(1)
	panic("corrupted candle payload")
}

func TestRunRecoversFromCyclePanic(t *testing.T) {
	gw := &panickyGateway{}
	loop := newTestLoop(gw, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("loop died after a cycle panic")
	}

	if got := gw.fetches.Load(); got < 2 {
		t.Fatalf("loop survived %d panics, want at least 2 cycles", got)
	}
}
