package domain

import "time"

// StatusSnapshot is the latest picture of the traded market, refreshed every
// analysis cycle and served over HTTP/WebSocket.
type StatusSnapshot struct {
	Symbol    string        `json:"symbol"`
	Price     float64       `json:"price"`
	Regime    RegimeResult  `json:"regime"`
	BuyLevel  float64       `json:"buyLevel"`
	SellLevel float64       `json:"sellLevel"`
	Advice    AdvisorSignal `json:"advice"`
	Position  *Position     `json:"position,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// StatusRepository stores the latest status snapshot.
type StatusRepository interface {
	Save(snapshot StatusSnapshot)
	Latest() StatusSnapshot
}
