package usecase

import (
	"testing"

	"rangebot-backend/internal/domain"
)

func TestAdviseNeutralOnShortWindow(t *testing.T) {
	a := NewMarketAdvisor()
	signal := a.Advise(rangeWindow())
	if signal.Bias != domain.BiasNeutral || signal.Confidence != 0 {
		t.Fatalf("short window must be neutral, got %+v", signal)
	}
}

func TestCombineBias(t *testing.T) {
	tests := []struct {
		name     string
		emaFast  float64
		emaSlow  float64
		macdHist float64
		rsi      float64
		bias     domain.AdvisorBias
		conf     float64
	}{
		{"both bullish", 101, 100, 0.5, 55, domain.BiasLong, 0.8},
		{"both bearish", 99, 100, -0.5, 45, domain.BiasShort, 0.8},
		{"split votes", 101, 100, -0.5, 50, domain.BiasNeutral, 0},
		{"single bullish vote", 101, 100, 0, 50, domain.BiasLong, 0.4},
		{"overbought overrides trend", 101, 100, 0.5, 80, domain.BiasShort, 0.6},
		{"oversold overrides trend", 99, 100, -0.5, 20, domain.BiasLong, 0.6},
		{"overbought extreme clamps", 101, 100, 0.5, 100, domain.BiasShort, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := combineBias(tt.emaFast, tt.emaSlow, tt.macdHist, tt.rsi)
			if got.Bias != tt.bias {
				t.Fatalf("bias = %s, want %s", got.Bias, tt.bias)
			}
			if diff := got.Confidence - tt.conf; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("confidence = %.4f, want %.4f", got.Confidence, tt.conf)
			}
		})
	}
}
