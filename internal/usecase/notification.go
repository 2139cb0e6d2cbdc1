package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"rangebot-backend/internal/domain"
	"rangebot-backend/internal/infrastructure/fcm"
	"rangebot-backend/internal/repository"
)

// regimeCooldown throttles repeated regime-detected pushes for the same
// symbol; order and position events are always delivered.
const regimeCooldown = 30 * time.Minute

// NotificationRelay publishes trade events as FCM push notifications to all
// registered device tokens. Delivery is best effort: failures are logged and
// never surfaced to the decision core.
type NotificationRelay struct {
	fcmClient *fcm.Client
	tokenRepo *repository.TokenRepository

	mu           sync.Mutex
	lastNotified map[string]time.Time // symbol -> last regime push
}

func NewNotificationRelay(fcmClient *fcm.Client, tokenRepo *repository.TokenRepository) *NotificationRelay {
	return &NotificationRelay{
		fcmClient:    fcmClient,
		tokenRepo:    tokenRepo,
		lastNotified: make(map[string]time.Time),
	}
}

// Publish implements domain.Notifier.
func (r *NotificationRelay) Publish(ctx context.Context, ev domain.TradeEvent) {
	if r.fcmClient == nil || !r.fcmClient.IsEnabled() {
		return
	}
	tokens := r.tokenRepo.GetAllTokens()
	if len(tokens) == 0 {
		return
	}

	if ev.Kind == domain.EventRegimeDetected && !r.regimeDue(ev.Symbol) {
		return
	}

	title, body := formatEvent(ev)
	data := map[string]string{
		"kind":   string(ev.Kind),
		"symbol": ev.Symbol,
		"price":  fmt.Sprintf("%.8f", ev.Price),
	}

	if err := r.fcmClient.SendMulticast(ctx, tokens, title, body, data); err != nil {
		log.Printf("Notification delivery failed for %s: %v", ev.Kind, err)
		return
	}
	if ev.Kind == domain.EventRegimeDetected {
		r.mu.Lock()
		r.lastNotified[ev.Symbol] = time.Now()
		r.mu.Unlock()
	}
}

func (r *NotificationRelay) regimeDue(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastNotified[symbol]
	return !ok || time.Since(last) >= regimeCooldown
}

func formatEvent(ev domain.TradeEvent) (title, body string) {
	switch ev.Kind {
	case domain.EventEngineStarted:
		return fmt.Sprintf("▶️ %s bot started", ev.Symbol), "Monitoring for a sideways market"
	case domain.EventEngineStopped:
		return fmt.Sprintf("⏹ %s bot stopped", ev.Symbol), "Monitoring loop shut down"
	case domain.EventEngineError:
		return fmt.Sprintf("⚠️ %s bot error", ev.Symbol), ev.Message
	case domain.EventRegimeDetected:
		return fmt.Sprintf("📊 %s sideways market", ev.Symbol),
			fmt.Sprintf("%s | Price: %.4f", ev.Message, ev.Price)
	case domain.EventOrderPlaced:
		return fmt.Sprintf("🛒 %s order placed", ev.Symbol),
			fmt.Sprintf("Qty: %.8f @ %.4f", ev.Quantity, ev.Price)
	case domain.EventOrderFilled:
		return fmt.Sprintf("✅ %s order filled", ev.Symbol),
			fmt.Sprintf("Qty: %.8f @ %.4f", ev.Quantity, ev.Price)
	case domain.EventOrderFailed:
		return fmt.Sprintf("❌ %s order failed", ev.Symbol), ev.Message
	case domain.EventPositionOpened:
		return fmt.Sprintf("📈 %s position opened", ev.Symbol),
			fmt.Sprintf("Qty: %.8f | Entry: %.4f", ev.Quantity, ev.Price)
	case domain.EventPositionClosed:
		pl := 0.0
		if ev.ProfitLoss != nil {
			pl = *ev.ProfitLoss
		}
		emoji := "💰"
		if pl < 0 {
			emoji = "🔻"
		}
		return fmt.Sprintf("%s %s position closed", emoji, ev.Symbol),
			fmt.Sprintf("Exit: %.4f | P/L: %.4f | Reason: %s", ev.Price, pl, ev.Reason)
	}
	return string(ev.Kind), ev.Message
}
