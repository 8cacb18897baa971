package risk

import (
	"sync"
	"testing"
	"time"

	"tradecore/internal/logging"
)

func newTestGovernor() *Governor {
	return NewGovernor(Config{DailyLossLimit: -0.05, MaxDrawdownPct: 10.0}, logging.Nop())
}

func TestDailyGate_LossLimit(t *testing.T) {
	g := newTestGovernor()
	g.StartSession(10000)

	g.UpdateRealizedPnL(-499)
	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("expected trading allowed at -4.99%%, blocked: %s", reason)
	}

	g.UpdateRealizedPnL(-1) // total -500 = exactly -5.0%
	if ok, _ := g.CanTrade(); ok {
		t.Fatal("expected trading blocked at -5.0%")
	}
}

func TestDailyGate_UnrealizedCountsToo(t *testing.T) {
	g := newTestGovernor()
	g.StartSession(10000)

	g.UpdateRealizedPnL(-300)
	g.UpdateUnrealizedPnL(-300)
	if ok, _ := g.CanTrade(); ok {
		t.Fatal("expected block when realized+unrealized breaches the limit")
	}

	// Unrealized recovering re-opens the gate.
	g.UpdateUnrealizedPnL(-100)
	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("expected trading allowed after recovery, blocked: %s", reason)
	}
}

func TestSession_RolloverClearsBreach(t *testing.T) {
	g := newTestGovernor()

	current := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	g.session.now = func() time.Time { return current }

	g.StartSession(10000)
	g.UpdateRealizedPnL(-600)
	if ok, _ := g.CanTrade(); ok {
		t.Fatal("expected block after -6% day")
	}

	current = current.Add(24 * time.Hour)
	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("expected trading allowed after date rollover, blocked: %s", reason)
	}
	if got := g.session.LossPct(); got != 0 {
		t.Errorf("expected fresh session loss 0, got %.4f", got)
	}
}

func TestSession_RolloverNotifiesListener(t *testing.T) {
	g := newTestGovernor()

	current := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	g.session.now = func() time.Time { return current }

	rolled := make(chan [2]time.Time, 1)
	g.OnSessionRollover(func(from, to time.Time) {
		rolled <- [2]time.Time{from, to}
	})

	g.StartSession(10000)
	current = current.Add(24 * time.Hour)
	g.CanTrade()

	select {
	case got := <-rolled:
		if !got[1].After(got[0]) {
			t.Errorf("rollover dates out of order: %v -> %v", got[0], got[1])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rollover listener not called")
	}
}

func TestSession_StartIdempotent(t *testing.T) {
	g := newTestGovernor()
	g.StartSession(10000)
	g.UpdateRealizedPnL(-100)
	g.StartSession(20000) // same date: must not reset PnL or balance

	stats := g.session.Stats()
	if stats["start_balance"].(float64) != 10000 {
		t.Errorf("second StartSession on same date replaced the balance: %v", stats["start_balance"])
	}
	if stats["realized_pnl"].(float64) != -100 {
		t.Errorf("second StartSession on same date reset the PnL: %v", stats["realized_pnl"])
	}
}

func TestSession_UpdatesBeforeStartIgnored(t *testing.T) {
	g := newTestGovernor()

	// Must not panic and must not poison later state.
	g.UpdateRealizedPnL(-5000)
	g.UpdateUnrealizedPnL(-5000)

	g.StartSession(10000)
	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("pre-session updates leaked into the session: %s", reason)
	}
}

func TestConcurrentPnLUpdatesSumExactly(t *testing.T) {
	g := newTestGovernor()
	g.StartSession(10000)

	deltas := []float64{-100, -200, -150}
	var wg sync.WaitGroup
	for _, d := range deltas {
		wg.Add(1)
		go func(delta float64) {
			defer wg.Done()
			g.UpdateRealizedPnL(delta)
		}(d)
	}
	wg.Wait()

	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("expected trading allowed at -4.5%%, blocked: %s", reason)
	}

	g.UpdateRealizedPnL(-60) // total -510 = -5.1%
	if ok, _ := g.CanTrade(); ok {
		t.Fatal("expected block at -5.1%")
	}
}

func TestDrawdown_HaltAndClear(t *testing.T) {
	d := NewDrawdownTracker(10.0, logging.Nop())

	d.Update(10000)
	d.Update(9500) // -5%, fine
	if d.IsHalted() {
		t.Fatal("halted at 5% drawdown with a 10% limit")
	}

	d.Update(8900) // -11%
	if !d.IsHalted() {
		t.Fatal("expected halt beyond 10% drawdown")
	}

	// Recovery below the prior peak does not clear the halt.
	d.Update(9800)
	if !d.IsHalted() {
		t.Fatal("halt cleared before a new peak")
	}

	d.Update(10001)
	if d.IsHalted() {
		t.Fatal("expected halt cleared on new peak")
	}
}

func TestGovernor_CombinedGate(t *testing.T) {
	g := newTestGovernor()
	g.StartSession(10000)

	// Session fine, drawdown breached.
	g.UpdateEquity(8000)
	if ok, _ := g.CanTrade(); ok {
		t.Fatal("expected block while drawdown halted")
	}
	if !g.IsHalted() {
		t.Fatal("expected IsHalted true")
	}

	// New peak clears the drawdown halt.
	g.UpdateEquity(10500)
	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("expected trading allowed after recovery, blocked: %s", reason)
	}

	stats := g.GetDailyStats()
	if stats["can_trade"].(bool) != true {
		t.Error("stats can_trade disagrees with CanTrade")
	}
}
