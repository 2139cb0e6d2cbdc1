package usecase

import (
	"math"

	"rangebot-backend/internal/domain"
)

// touchTolerance is the fraction of the band width within which a candle
// extreme counts as a touch of support or resistance.
const touchTolerance = 0.10

// RegimeDetector classifies a candle window as sideways or not and computes
// the support/resistance band. It is a pure function of its input window.
type RegimeDetector struct{}

func NewRegimeDetector() *RegimeDetector {
	return &RegimeDetector{}
}

// Classify inspects the most recent windowSize candles. A window qualifies as
// sideways only when the high/low band is narrow relative to support, both
// band edges were touched at least twice, and the net close-to-close drift
// stays below half the range threshold. Fewer than windowSize candles is
// never sideways.
func (d *RegimeDetector) Classify(candles []domain.Candle, windowSize int, rangeThreshold float64) domain.RegimeResult {
	if windowSize <= 0 || len(candles) < windowSize {
		return domain.RegimeResult{}
	}

	window := candles[len(candles)-windowSize:]
	support, resistance := d.SupportResistance(window)
	if support <= 0 {
		return domain.RegimeResult{Support: support, Resistance: resistance}
	}

	rangeRatio := (resistance - support) / support
	inRange := rangeRatio <= rangeThreshold

	// A raw range passes on a single spike; genuine oscillation touches both
	// band edges repeatedly.
	tolerance := (resistance - support) * touchTolerance
	resistanceTouches := 0
	supportTouches := 0
	for _, c := range window {
		if c.High >= resistance-tolerance {
			resistanceTouches++
		}
		if c.Low <= support+tolerance {
			supportTouches++
		}
	}
	multipleTouches := resistanceTouches >= 2 && supportTouches >= 2

	firstClose := window[0].Close
	lastClose := window[len(window)-1].Close
	notTrending := firstClose != 0 &&
		math.Abs(lastClose-firstClose)/firstClose <= rangeThreshold/2

	return domain.RegimeResult{
		IsSideways: inRange && multipleTouches && notTrending,
		Support:    support,
		Resistance: resistance,
	}
}

// SupportResistance returns the lowest low and highest high over the window.
func (d *RegimeDetector) SupportResistance(window []domain.Candle) (support, resistance float64) {
	if len(window) == 0 {
		return 0, 0
	}
	support = window[0].Low
	resistance = window[0].High
	for _, c := range window[1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}
