package fusion

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig())
}

func TestUpdateSignal_UnknownLevel(t *testing.T) {
	e := newTestEngine()
	_, err := e.UpdateSignal(Level("weekly"), 0.7, 0.3, time.Now())
	if !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
}

func TestUpdateSignal_DailyMissing(t *testing.T) {
	e := newTestEngine()
	r, err := e.UpdateSignal(LevelHourly, 0.8, 0.2, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FinalSignal != DirectionNoSignal {
		t.Errorf("expected NO_SIGNAL without daily, got %s", r.FinalSignal)
	}
	if r.Confidence != 0 {
		t.Errorf("expected zero confidence, got %.4f", r.Confidence)
	}
}

func TestUpdateSignal_WeakDailyTrend(t *testing.T) {
	e := newTestEngine()
	r, err := e.UpdateSignal(LevelDaily, 0.52, 0.48, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FinalSignal != DirectionNoSignal {
		t.Errorf("expected NO_SIGNAL for daily below threshold, got %s", r.FinalSignal)
	}
}

func TestUpdateSignal_HourlyStricterThreshold(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	if _, err := e.UpdateSignal(LevelDaily, 0.75, 0.25, now); err != nil {
		t.Fatalf("daily update: %v", err)
	}
	// 0.60 clears the daily threshold but not the hourly one.
	r, err := e.UpdateSignal(LevelHourly, 0.60, 0.40, now)
	if err != nil {
		t.Fatalf("hourly update: %v", err)
	}
	if r.FinalSignal != DirectionNoSignal {
		t.Errorf("expected NO_SIGNAL for hourly below 0.65, got %s", r.FinalSignal)
	}
	if r.DailyDirection != DirectionLong {
		t.Errorf("daily direction should still be LONG, got %s", r.DailyDirection)
	}
}

func TestFusion_Conflict(t *testing.T) {
	tests := []struct {
		name        string
		dailyLong   float64
		dailyShort  float64
		hourlyLong  float64
		hourlyShort float64
	}{
		{"daily long hourly short", 0.75, 0.25, 0.30, 0.70},
		{"daily short hourly long", 0.25, 0.75, 0.70, 0.30},
	}

	for _, tt := range tests {
		e := newTestEngine()
		now := time.Now()
		if _, err := e.UpdateSignal(LevelDaily, tt.dailyLong, tt.dailyShort, now); err != nil {
			t.Fatalf("%s: daily update: %v", tt.name, err)
		}
		r, err := e.UpdateSignal(LevelHourly, tt.hourlyLong, tt.hourlyShort, now)
		if err != nil {
			t.Fatalf("%s: hourly update: %v", tt.name, err)
		}
		if r.FinalSignal != DirectionNoTrade {
			t.Errorf("%s: expected NO_TRADE on conflict, got %s", tt.name, r.FinalSignal)
		}
		if r.Confidence != 0 {
			t.Errorf("%s: expected zero confidence on conflict, got %.4f", tt.name, r.Confidence)
		}
	}
}

func TestFusion_Agreement(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	if _, err := e.UpdateSignal(LevelDaily, 0.75, 0.25, now); err != nil {
		t.Fatalf("daily update: %v", err)
	}
	r, err := e.UpdateSignal(LevelHourly, 0.70, 0.30, now)
	if err != nil {
		t.Fatalf("hourly update: %v", err)
	}
	if r.FinalSignal != DirectionLong {
		t.Errorf("expected LONG on agreement, got %s", r.FinalSignal)
	}
	if r.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %.4f", r.Confidence)
	}
}

// D(0.75/0.25) then H(0.70/0.30) then M(0.65/0.35) fuses to LONG with
// confidence 0.50*0.5 + 0.35*0.4 + 0.15*0.3 = 0.435.
func TestFusion_WeightedConfidence(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	if _, err := e.UpdateSignal(LevelDaily, 0.75, 0.25, now); err != nil {
		t.Fatalf("daily update: %v", err)
	}
	if _, err := e.UpdateSignal(LevelHourly, 0.70, 0.30, now); err != nil {
		t.Fatalf("hourly update: %v", err)
	}
	r, err := e.UpdateSignal(LevelMinute, 0.65, 0.35, now)
	if err != nil {
		t.Fatalf("minute update: %v", err)
	}

	if r.FinalSignal != DirectionLong {
		t.Fatalf("expected LONG, got %s", r.FinalSignal)
	}
	if math.Abs(r.Confidence-0.435) > 1e-9 {
		t.Errorf("expected confidence 0.435, got %.6f", r.Confidence)
	}
	if r.MinuteDirection != DirectionLong {
		t.Errorf("expected minute direction LONG, got %s", r.MinuteDirection)
	}
}

// A disagreeing minute signal is annotation only: it must not flip the decision.
func TestFusion_MinuteNeverFlipsDecision(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	e.UpdateSignal(LevelDaily, 0.75, 0.25, now)
	e.UpdateSignal(LevelHourly, 0.70, 0.30, now)
	r, err := e.UpdateSignal(LevelMinute, 0.20, 0.80, now)
	if err != nil {
		t.Fatalf("minute update: %v", err)
	}

	if r.FinalSignal != DirectionLong {
		t.Errorf("minute disagreement flipped the decision to %s", r.FinalSignal)
	}
	if r.MinuteDirection != DirectionShort {
		t.Errorf("expected minute direction SHORT, got %s", r.MinuteDirection)
	}
}

func TestUpdateSignal_InvalidProbabilitiesAbsorbed(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	e.UpdateSignal(LevelDaily, 0.75, 0.25, now)
	e.UpdateSignal(LevelHourly, 0.70, 0.30, now)

	r, err := e.UpdateSignal(LevelHourly, math.NaN(), 0.30, now)
	if err != nil {
		t.Fatalf("NaN input should be absorbed, got error %v", err)
	}
	if r.FinalSignal != DirectionNoSignal {
		t.Errorf("expected NO_SIGNAL for invalid input, got %s", r.FinalSignal)
	}

	// Held state must be untouched: the prior hourly signal still fuses.
	r, err = e.UpdateSignal(LevelDaily, 0.75, 0.25, now)
	if err != nil {
		t.Fatalf("refresh daily: %v", err)
	}
	if r.FinalSignal != DirectionLong {
		t.Errorf("invalid input corrupted held state: got %s", r.FinalSignal)
	}
}

func TestFusion_Deterministic(t *testing.T) {
	now := time.Now()
	run := func() Result {
		e := newTestEngine()
		e.UpdateSignal(LevelDaily, 0.70, 0.30, now)
		e.UpdateSignal(LevelHourly, 0.68, 0.32, now)
		r, _ := e.UpdateSignal(LevelMinute, 0.60, 0.40, now)
		return r
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); got != first {
			t.Fatalf("identical input sequence produced different results: %+v vs %+v", first, got)
		}
	}
}

func TestReset_ClearsHeldSignals(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	e.UpdateSignal(LevelDaily, 0.75, 0.25, now)
	e.UpdateSignal(LevelHourly, 0.70, 0.30, now)
	e.Reset()

	r, err := e.UpdateSignal(LevelHourly, 0.70, 0.30, now)
	if err != nil {
		t.Fatalf("hourly update after reset: %v", err)
	}
	if r.FinalSignal != DirectionNoSignal {
		t.Errorf("expected NO_SIGNAL after reset (daily gone), got %s", r.FinalSignal)
	}
}
