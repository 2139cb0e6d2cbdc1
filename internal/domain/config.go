package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TradingConfig holds the immutable per-run trading parameters.
// It is loaded once at startup and never mutated by the core.
type TradingConfig struct {
	Symbol     string `json:"symbol"`
	QuoteAsset string `json:"quoteAsset"` // e.g. "USDT"

	OrderSize       float64 `json:"orderSize"`       // quote-currency notional per entry
	PeriodMinutes   int     `json:"periodMinutes"`   // candle period
	AnalysisPeriods int     `json:"analysisPeriods"` // classification window size

	SidewaysThreshold          float64 `json:"sidewaysThreshold"`          // max (resistance-support)/support ratio
	BuyDistanceFromSupport     float64 `json:"buyDistanceFromSupport"`     // entry tolerance above support
	SellDistanceFromResistance float64 `json:"sellDistanceFromResistance"` // sell band below resistance
	MinProfitPercent           float64 `json:"minProfitPercent"`           // profit ratio that triggers an exit

	MaxPositionHoldHours int `json:"maxPositionHoldHours"`

	MonitorInterval time.Duration `json:"monitorInterval"`
	ErrorBackoff    time.Duration `json:"errorBackoff"`
}

// DefaultTradingConfig returns a conservative baseline configuration.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		Symbol:                     "BTCUSDT",
		QuoteAsset:                 "USDT",
		OrderSize:                  10,
		PeriodMinutes:              15,
		AnalysisPeriods:            20,
		SidewaysThreshold:          0.02,
		BuyDistanceFromSupport:     0.005,
		SellDistanceFromResistance: 0.005,
		MinProfitPercent:           0.003,
		MaxPositionHoldHours:       24,
		MonitorInterval:            5 * time.Minute,
		ErrorBackoff:               1 * time.Minute,
	}
}

// Validate checks the configured ranges before the service starts.
func (c *TradingConfig) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if strings.TrimSpace(c.QuoteAsset) == "" {
		return errors.New("quote asset is required")
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("order size must be positive, got %.4f", c.OrderSize)
	}
	if c.PeriodMinutes <= 0 {
		return fmt.Errorf("candle period must be positive, got %d", c.PeriodMinutes)
	}
	if c.AnalysisPeriods < 2 {
		return fmt.Errorf("analysis window must be at least 2 candles, got %d", c.AnalysisPeriods)
	}
	for name, v := range map[string]float64{
		"sideways threshold":            c.SidewaysThreshold,
		"buy distance from support":     c.BuyDistanceFromSupport,
		"sell distance from resistance": c.SellDistanceFromResistance,
		"min profit percent":            c.MinProfitPercent,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be in (0,1), got %.4f", name, v)
		}
	}
	if c.MaxPositionHoldHours <= 0 {
		return fmt.Errorf("max position hold hours must be positive, got %d", c.MaxPositionHoldHours)
	}
	if c.MonitorInterval <= 0 {
		return errors.New("monitor interval must be positive")
	}
	if c.ErrorBackoff <= 0 {
		return errors.New("error backoff must be positive")
	}
	return nil
}

// MaxHold returns the maximum position hold duration.
func (c *TradingConfig) MaxHold() time.Duration {
	return time.Duration(c.MaxPositionHoldHours) * time.Hour
}

// Interval returns the candle period as a Binance interval string, e.g. "15m".
func (c *TradingConfig) Interval() string {
	if c.PeriodMinutes%60 == 0 {
		return fmt.Sprintf("%dh", c.PeriodMinutes/60)
	}
	return fmt.Sprintf("%dm", c.PeriodMinutes)
}
