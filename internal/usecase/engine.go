package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rangebot-backend/internal/domain"
)

// candleFetchMargin is how many extra candles beyond the analysis window are
// requested each cycle, so a short exchange response still fills the window.
const candleFetchMargin = 5

// advisorVetoConfidence is the confidence above which an opposing advisory
// bias blocks a new entry.
const advisorVetoConfidence = 0.6

var ErrNoMarketData = errors.New("exchange returned no candle data")

// TradingDecisionEngine drives one symbol's trading decisions: it classifies
// the market each cycle, exits an existing position when the minimum profit
// is reached, and enters a new one near support while the market is sideways.
//
// Exit evaluation always happens before entry evaluation within a cycle, so
// a position closed this tick is never immediately re-entered.
type TradingDecisionEngine struct {
	gateway   domain.ExchangeGateway
	positions *PositionLedger
	detector  *RegimeDetector
	advisor   *MarketAdvisor // optional
	notifier  domain.Notifier
	status    domain.StatusRepository // optional
	cfg       domain.TradingConfig
}

func NewTradingDecisionEngine(
	gateway domain.ExchangeGateway,
	positions *PositionLedger,
	detector *RegimeDetector,
	advisor *MarketAdvisor,
	notifier domain.Notifier,
	status domain.StatusRepository,
	cfg domain.TradingConfig,
) *TradingDecisionEngine {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &TradingDecisionEngine{
		gateway:   gateway,
		positions: positions,
		detector:  detector,
		advisor:   advisor,
		notifier:  notifier,
		status:    status,
		cfg:       cfg,
	}
}

// AnalyzeMarket runs one decision cycle. All exchange failures are absorbed
// into the returned error; the next scheduled cycle is the retry.
func (e *TradingDecisionEngine) AnalyzeMarket(ctx context.Context) error {
	limit := e.cfg.AnalysisPeriods + candleFetchMargin
	candles, err := e.gateway.GetCandles(ctx, e.cfg.Symbol, e.cfg.PeriodMinutes, limit)
	if err != nil {
		return fmt.Errorf("fetch candles for %s: %w", e.cfg.Symbol, err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("%w for %s", ErrNoMarketData, e.cfg.Symbol)
	}

	regime := e.detector.Classify(candles, e.cfg.AnalysisPeriods, e.cfg.SidewaysThreshold)

	// One price snapshot per cycle, reused for both the exit and entry checks.
	currentPrice := candles[len(candles)-1].Close

	var advice domain.AdvisorSignal
	if e.advisor != nil {
		advice = e.advisor.Advise(candles)
	}

	e.saveStatus(regime, currentPrice, advice)

	if !regime.IsSideways {
		log.Printf("%s: market not sideways (support=%.4f resistance=%.4f), holding off", e.cfg.Symbol, regime.Support, regime.Resistance)
		return nil
	}

	buyLevel := regime.Support * (1 + e.cfg.BuyDistanceFromSupport)
	sellLevel := regime.Resistance * (1 - e.cfg.SellDistanceFromResistance)
	log.Printf("%s: sideways regime support=%.4f resistance=%.4f buyLevel=%.4f sellLevel=%.4f price=%.4f",
		e.cfg.Symbol, regime.Support, regime.Resistance, buyLevel, sellLevel, currentPrice)
	e.notifier.Publish(ctx, domain.TradeEvent{
		Kind:    domain.EventRegimeDetected,
		Symbol:  e.cfg.Symbol,
		Price:   currentPrice,
		Message: fmt.Sprintf("Sideways band %.4f - %.4f", regime.Support, regime.Resistance),
		At:      time.Now(),
	})

	// Manage the existing position first. Entries and exits are mutually
	// exclusive within one cycle: a position closed this tick must not be
	// re-entered until the next one.
	hadPosition := e.positions.GetActivePosition(e.cfg.Symbol) != nil
	e.manageExistingPosition(ctx, currentPrice)

	if !hadPosition && e.positions.GetActivePosition(e.cfg.Symbol) == nil {
		e.evaluateEntry(ctx, currentPrice, buyLevel, advice)
	}

	return nil
}

// manageExistingPosition closes the active position once its profit ratio
// reaches the configured minimum. Below that, including at a loss, the
// position is held; there are no partial exits.
func (e *TradingDecisionEngine) manageExistingPosition(ctx context.Context, currentPrice float64) {
	pos := e.positions.GetActivePosition(e.cfg.Symbol)
	if pos == nil {
		return
	}

	ratio := pos.ProfitRatio(currentPrice)
	switch {
	case ratio >= e.cfg.MinProfitPercent:
		closed, err := e.positions.ClosePosition(ctx, e.cfg.Symbol, domain.ExitReasonMinProfit)
		if err != nil {
			log.Printf("%s: profit exit failed, position stays open: %v", e.cfg.Symbol, err)
			return
		}
		if closed.ProfitLoss != nil {
			log.Printf("%s: realized P/L %.4f (%.2f%%)", e.cfg.Symbol, *closed.ProfitLoss, ratio*100)
		}
	case ratio < 0:
		log.Printf("%s: position underwater %.2f%%, holding", e.cfg.Symbol, ratio*100)
	default:
		log.Printf("%s: profit %.2f%% below %.2f%% target, holding", e.cfg.Symbol, ratio*100, e.cfg.MinProfitPercent*100)
	}
}

// evaluateEntry places a market buy when price has come down to the buy
// level above support. The position carries no exchange-side stop or target;
// its exit is governed by the profit check on later cycles.
func (e *TradingDecisionEngine) evaluateEntry(ctx context.Context, currentPrice, buyLevel float64, advice domain.AdvisorSignal) {
	if currentPrice > buyLevel {
		return
	}

	if e.advisor != nil && advice.Bias == domain.BiasShort && advice.Confidence >= advisorVetoConfidence {
		log.Printf("%s: entry vetoed by advisory signal (bias=%s confidence=%.2f)", e.cfg.Symbol, advice.Bias, advice.Confidence)
		return
	}

	balance, err := e.gateway.GetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		log.Printf("%s: balance check failed, skipping entry: %v", e.cfg.Symbol, err)
		return
	}
	if balance < e.cfg.OrderSize {
		log.Printf("%s: insufficient %s balance %.2f for order size %.2f", e.cfg.Symbol, e.cfg.QuoteAsset, balance, e.cfg.OrderSize)
		return
	}

	quantity, err := e.gateway.CalculateOrderQuantity(ctx, e.cfg.Symbol, e.cfg.OrderSize)
	if err != nil {
		log.Printf("%s: quantity calculation failed, skipping entry: %v", e.cfg.Symbol, err)
		return
	}
	if quantity <= 0 {
		log.Printf("%s: order size %.2f rounds to zero quantity, skipping entry", e.cfg.Symbol, e.cfg.OrderSize)
		return
	}

	order, err := e.gateway.PlaceMarketOrder(ctx, e.cfg.Symbol, domain.OrderBuy, quantity)
	if err != nil {
		log.Printf("%s: entry order failed: %v", e.cfg.Symbol, err)
		e.notifier.Publish(ctx, domain.TradeEvent{
			Kind:    domain.EventOrderFailed,
			Symbol:  e.cfg.Symbol,
			Message: err.Error(),
			At:      time.Now(),
		})
		return
	}

	e.positions.RegisterOrder(ctx, order)
	e.notifier.Publish(ctx, domain.TradeEvent{
		Kind:     domain.EventOrderPlaced,
		Symbol:   e.cfg.Symbol,
		Price:    order.Price,
		Quantity: order.Quantity,
		At:       time.Now(),
	})

	entryPrice := order.Price
	if entryPrice <= 0 {
		entryPrice = currentPrice
	}

	if _, err := e.positions.CreatePosition(ctx, e.cfg.Symbol, domain.SideLong, quantity, entryPrice); err != nil {
		// The buy went through but the registry refused; surfaced as a
		// warning, never silently overwritten.
		log.Printf("%s: position registration failed after fill: %v", e.cfg.Symbol, err)
	}
}

func (e *TradingDecisionEngine) saveStatus(regime domain.RegimeResult, price float64, advice domain.AdvisorSignal) {
	if e.status == nil {
		return
	}
	snapshot := domain.StatusSnapshot{
		Symbol:    e.cfg.Symbol,
		Price:     price,
		Regime:    regime,
		Advice:    advice,
		Position:  e.positions.GetActivePosition(e.cfg.Symbol),
		UpdatedAt: time.Now(),
	}
	if regime.IsSideways {
		snapshot.BuyLevel = regime.Support * (1 + e.cfg.BuyDistanceFromSupport)
		snapshot.SellLevel = regime.Resistance * (1 - e.cfg.SellDistanceFromResistance)
	}
	e.status.Save(snapshot)
}
