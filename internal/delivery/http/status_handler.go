package http

import (
	"encoding/json"
	"net/http"
	"time"

	"rangebot-backend/internal/domain"
	"rangebot-backend/internal/usecase"
)

// StatusHandler serves the trading status and position history endpoints.
type StatusHandler struct {
	status    domain.StatusRepository
	ledger    domain.TradeLedger // optional
	positions *usecase.PositionLedger
}

func NewStatusHandler(status domain.StatusRepository, ledger domain.TradeLedger, positions *usecase.PositionLedger) *StatusHandler {
	return &StatusHandler{
		status:    status,
		ledger:    ledger,
		positions: positions,
	}
}

// HandleStatus handles GET /api/status
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.status.Latest()
	response := map[string]interface{}{
		"status":       snapshot,
		"openOrders":   h.positions.ActiveOrders(),
		"activeCount":  len(h.positions.ActivePositions()),
		"generatedAt":  time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleHistory handles GET /api/positions/history?period=1d|7d|30d
func (h *StatusHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var fromTime time.Time
	switch r.URL.Query().Get("period") {
	case "7d":
		fromTime = time.Now().Add(-7 * 24 * time.Hour)
	case "30d":
		fromTime = time.Now().Add(-30 * 24 * time.Hour)
	default:
		fromTime = time.Now().Add(-24 * time.Hour)
	}

	history := []*domain.Position{}
	if h.ledger != nil {
		if fetched, err := h.ledger.PositionHistory(r.Context(), fromTime); err == nil {
			history = fetched
		}
	}

	response := map[string]interface{}{
		"history": history,
		"stats":   historyStats(history),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func historyStats(history []*domain.Position) map[string]interface{} {
	if len(history) == 0 {
		return map[string]interface{}{
			"totalTrades": 0,
			"winRate":     0.0,
			"totalPL":     0.0,
		}
	}

	wins := 0
	totalPL := 0.0
	for _, p := range history {
		if p.ProfitLoss == nil {
			continue
		}
		if *p.ProfitLoss > 0 {
			wins++
		}
		totalPL += *p.ProfitLoss
	}

	return map[string]interface{}{
		"totalTrades": len(history),
		"winRate":     float64(wins) / float64(len(history)) * 100,
		"totalPL":     totalPL,
	}
}
