package metrics

import (
	"fmt"
	"math"
	"sync"
	"testing"
)

func TestUpdateMetrics_SnapshotCopies(t *testing.T) {
	a := NewAggregator()
	a.UpdateMetrics("EURUSD", 3, 150.0, 0.10, 0.67)

	status := a.GetStatus()
	snap := status.Symbols["EURUSD"]
	if snap.TradesCount != 3 || snap.PnL != 150.0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Mutating the returned copy must not touch shared state.
	status.Symbols["EURUSD"] = SymbolSnapshot{Symbol: "EURUSD", PnL: -1}
	if got := a.GetStatus().Symbols["EURUSD"].PnL; got != 150.0 {
		t.Errorf("GetStatus leaked a live reference, pnl became %v", got)
	}
}

func TestUpdateMetrics_ReplacesWholeSnapshot(t *testing.T) {
	a := NewAggregator()
	a.UpdateMetrics("GBPUSD", 5, 100, 0.2, 0.6)
	a.UpdateMetrics("GBPUSD", 6, 80, 0.1, 0.5)

	snap := a.GetStatus().Symbols["GBPUSD"]
	if snap.TradesCount != 6 || snap.PnL != 80 || snap.Exposure != 0.1 || snap.WinRate != 0.5 {
		t.Errorf("snapshot fields did not apply together: %+v", snap)
	}
}

// K concurrent symbols each report M deltas; the totals must sum exactly.
func TestConcurrentUpdatesSumExactly(t *testing.T) {
	const symbols = 8
	const updates = 200

	a := NewAggregator()
	var wg sync.WaitGroup
	for k := 0; k < symbols; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			sym := fmt.Sprintf("SYM%d", k)
			for m := 1; m <= updates; m++ {
				a.AddPnL(sym, float64(m))
			}
		}(k)
	}
	wg.Wait()

	status := a.GetStatus()
	want := float64(symbols) * float64(updates) * float64(updates+1) / 2
	if math.Abs(status.TotalPnL-want) > 1e-6 {
		t.Errorf("total pnl %v, want %v", status.TotalPnL, want)
	}
	if status.TotalTrades != symbols*updates {
		t.Errorf("total trades %d, want %d", status.TotalTrades, symbols*updates)
	}
}

func TestCheckExposureLimit(t *testing.T) {
	a := NewAggregator()
	a.UpdateMetrics("A", 1, 0, 0.4, 0)
	a.UpdateMetrics("B", 1, 0, 0.5, 0)

	if !a.CheckExposureLimit(1.0) {
		t.Error("expected 0.9 aggregate exposure within 1.0 limit")
	}
	if a.CheckExposureLimit(0.8) {
		t.Error("expected 0.9 aggregate exposure to breach 0.8 limit")
	}
}
