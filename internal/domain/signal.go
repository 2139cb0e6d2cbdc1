package domain

// AdvisorBias is the direction suggested by the advisory signal source.
type AdvisorBias string

const (
	BiasLong    AdvisorBias = "LONG"
	BiasShort   AdvisorBias = "SHORT"
	BiasNeutral AdvisorBias = "NEUTRAL"
)

// AdvisorSignal is a purely advisory directional signal. It never places
// orders; the engine may at most use it to veto a new entry.
type AdvisorSignal struct {
	Bias       AdvisorBias `json:"bias"`
	Confidence float64     `json:"confidence"` // 0..1
	RSI        float64     `json:"rsi"`
	MACDHist   float64     `json:"macdHist"`
}
