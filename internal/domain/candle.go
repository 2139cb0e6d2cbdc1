package domain

import "time"

// Candle represents a single OHLC candle as returned by the exchange.
// Sequences are always ordered oldest to newest.
type Candle struct {
	OpenTime time.Time `json:"openTime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// RegimeResult is the outcome of classifying a candle window.
// Support is the lowest low and Resistance the highest high over the window.
// It is recomputed every cycle and never persisted.
type RegimeResult struct {
	IsSideways bool    `json:"isSideways"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Width returns the absolute band width.
func (r RegimeResult) Width() float64 {
	return r.Resistance - r.Support
}
