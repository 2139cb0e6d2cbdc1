package usecase

import (
	"testing"
	"time"

	"rangebot-backend/internal/domain"
)

// rangeWindow builds a 20-candle window oscillating between 19,000 and
// 19,300 with both band edges touched twice and a 0.26% net drift.
func rangeWindow() []domain.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, 20)
	for i := range candles {
		candles[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:     19100,
			High:     19250,
			Low:      19050,
			Close:    19120,
		}
	}
	candles[0].Close = 19100
	candles[2].Low = 19000
	candles[5].Low = 19000
	candles[10].High = 19300
	candles[15].High = 19300
	candles[19].Close = 19150
	return candles
}

func TestClassifyInsufficientData(t *testing.T) {
	d := NewRegimeDetector()

	res := d.Classify(rangeWindow()[:10], 20, 0.02)
	if res.IsSideways {
		t.Fatalf("expected not sideways on short window")
	}

	res = d.Classify(nil, 20, 0.02)
	if res.IsSideways {
		t.Fatalf("expected not sideways on empty input")
	}
}

func TestClassifySidewaysRange(t *testing.T) {
	d := NewRegimeDetector()

	res := d.Classify(rangeWindow(), 20, 0.02)
	if !res.IsSideways {
		t.Fatalf("expected sideways, got %+v", res)
	}
	if res.Support != 19000 {
		t.Errorf("support = %.2f, want 19000", res.Support)
	}
	if res.Resistance != 19300 {
		t.Errorf("resistance = %.2f, want 19300", res.Resistance)
	}
}

func TestClassifyRejectsWideRange(t *testing.T) {
	d := NewRegimeDetector()
	candles := rangeWindow()
	// Push the band beyond the 2% threshold.
	candles[5].Low = 18000
	candles[8].Low = 18010

	res := d.Classify(candles, 20, 0.02)
	if res.IsSideways {
		t.Fatalf("expected not sideways when range ratio exceeds threshold")
	}
}

func TestClassifyRejectsSingleSpike(t *testing.T) {
	d := NewRegimeDetector()
	candles := rangeWindow()
	// Collapse resistance touches to a single candle: the other extreme
	// high drops well inside the band.
	candles[15].High = 19250

	res := d.Classify(candles, 20, 0.02)
	if res.IsSideways {
		t.Fatalf("expected not sideways with a single resistance touch")
	}
}

func TestClassifyRejectsTrendingWindow(t *testing.T) {
	d := NewRegimeDetector()
	candles := rangeWindow()
	// Net drift above threshold/2 even though the band itself is narrow.
	candles[0].Close = 19000
	candles[19].Close = 19295

	res := d.Classify(candles, 20, 0.02)
	if res.IsSideways {
		t.Fatalf("expected trending window to be rejected")
	}
}

func TestClassifyRangeMonotonicity(t *testing.T) {
	d := NewRegimeDetector()
	candles := rangeWindow()
	if !d.Classify(candles, 20, 0.02).IsSideways {
		t.Fatalf("baseline window must be sideways")
	}

	// Widening the extremes must never flip inRange from false to true.
	wide := rangeWindow()
	wide[2].Low = 18500
	wide[5].Low = 18500
	if d.Classify(wide, 20, 0.02).IsSideways {
		t.Fatalf("widened window unexpectedly sideways")
	}
	wider := rangeWindow()
	wider[2].Low = 18000
	wider[5].Low = 18000
	if d.Classify(wider, 20, 0.02).IsSideways {
		t.Fatalf("wider window unexpectedly sideways")
	}
}

func TestClassifyZeroWidthBand(t *testing.T) {
	d := NewRegimeDetector()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, 20)
	for i := range candles {
		candles[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:     100, High: 100, Low: 100, Close: 100,
		}
	}

	// Degenerate band: tolerance is zero, but every candle sits exactly on
	// the single level, so the touch counts still pass.
	res := d.Classify(candles, 20, 0.02)
	if !res.IsSideways {
		t.Fatalf("flat window should classify as sideways, got %+v", res)
	}
	if res.Support != res.Resistance {
		t.Fatalf("expected zero-width band, got %.2f..%.2f", res.Support, res.Resistance)
	}
}

func TestSupportResistance(t *testing.T) {
	d := NewRegimeDetector()
	support, resistance := d.SupportResistance(rangeWindow())
	if support != 19000 || resistance != 19300 {
		t.Fatalf("got %.2f/%.2f, want 19000/19300", support, resistance)
	}

	support, resistance = d.SupportResistance(nil)
	if support != 0 || resistance != 0 {
		t.Fatalf("empty window must yield zero levels")
	}
}
