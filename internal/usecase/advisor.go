package usecase

import (
	"github.com/markcheno/go-talib"

	"rangebot-backend/internal/domain"
)

// Advisor indicator parameters.
const (
	advisorFastEMA   = 8
	advisorSlowEMA   = 30
	advisorRSIPeriod = 14
	advisorMinBars   = 35 // slow EMA plus MACD warm-up
)

// MarketAdvisor produces a loosely-coupled directional bias from the same
// candle window the engine already fetched. It is purely advisory: it never
// places orders, and the engine consults it at most to veto a new entry.
type MarketAdvisor struct{}

func NewMarketAdvisor() *MarketAdvisor {
	return &MarketAdvisor{}
}

// Advise combines EMA trend, MACD histogram, and RSI into a single bias with
// a confidence in [0,1]. Too few candles yields a neutral signal.
func (a *MarketAdvisor) Advise(candles []domain.Candle) domain.AdvisorSignal {
	if len(candles) < advisorMinBars {
		return domain.AdvisorSignal{Bias: domain.BiasNeutral}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := talib.Ema(closes, advisorFastEMA)
	slow := talib.Ema(closes, advisorSlowEMA)
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	rsi := talib.Rsi(closes, advisorRSIPeriod)

	last := len(closes) - 1
	return combineBias(fast[last], slow[last], hist[last], rsi[last])
}

// combineBias votes the indicator readings into a directional signal. Each
// agreeing indicator adds confidence; RSI at an extreme overrides the trend
// vote toward mean reversion.
func combineBias(emaFast, emaSlow, macdHist, rsi float64) domain.AdvisorSignal {
	signal := domain.AdvisorSignal{
		Bias:     domain.BiasNeutral,
		RSI:      rsi,
		MACDHist: macdHist,
	}

	votes := 0
	if emaFast > emaSlow {
		votes++
	} else if emaFast < emaSlow {
		votes--
	}
	if macdHist > 0 {
		votes++
	} else if macdHist < 0 {
		votes--
	}

	switch {
	case rsi >= 75:
		// Overbought: expect a pullback regardless of trend votes.
		signal.Bias = domain.BiasShort
		signal.Confidence = 0.5 + (rsi-75)/50
	case rsi <= 25:
		signal.Bias = domain.BiasLong
		signal.Confidence = 0.5 + (25-rsi)/50
	case votes > 0:
		signal.Bias = domain.BiasLong
		signal.Confidence = float64(votes) / 2 * 0.8
	case votes < 0:
		signal.Bias = domain.BiasShort
		signal.Confidence = float64(-votes) / 2 * 0.8
	}

	if signal.Confidence > 1 {
		signal.Confidence = 1
	}
	return signal
}
