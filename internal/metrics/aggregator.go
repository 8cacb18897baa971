// Package metrics aggregates per-symbol trading metrics behind one lock. All
// symbol loops write through UpdateMetrics; readers only ever see copies.
package metrics

import (
	"sync"
	"time"
)

// SymbolSnapshot is the last reported metrics for one symbol.
type SymbolSnapshot struct {
	Symbol      string    `json:"symbol"`
	TradesCount int       `json:"trades_count"`
	PnL         float64   `json:"pnl"`
	Exposure    float64   `json:"exposure"` // fraction of equity committed
	WinRate     float64   `json:"win_rate"`
	LastUpdated time.Time `json:"last_updated"`
}

// Status is the aggregate view across all symbols.
type Status struct {
	TotalTrades   int                       `json:"total_trades"`
	TotalPnL      float64                   `json:"total_pnl"`
	TotalExposure float64                   `json:"total_exposure"`
	Symbols       map[string]SymbolSnapshot `json:"symbols"`
}

// Aggregator holds shared metrics state. Each UpdateMetrics call applies all
// of its fields atomically; updates from different symbols are unordered
// relative to each other but never interleave within a single update.
type Aggregator struct {
	mu      sync.Mutex
	symbols map[string]*SymbolSnapshot
	now     func() time.Time
}

// NewAggregator creates an empty metrics aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		symbols: make(map[string]*SymbolSnapshot),
		now:     time.Now,
	}
}

// UpdateMetrics replaces one symbol's snapshot in a single critical section.
func (a *Aggregator) UpdateMetrics(symbol string, trades int, pnl, exposure, winRate float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.symbols[symbol] = &SymbolSnapshot{
		Symbol:      symbol,
		TradesCount: trades,
		PnL:         pnl,
		Exposure:    exposure,
		WinRate:     winRate,
		LastUpdated: a.now(),
	}
}

// AddPnL accumulates a PnL delta and trade count for a symbol, for callers
// that report incrementally rather than with full snapshots.
func (a *Aggregator) AddPnL(symbol string, delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap, ok := a.symbols[symbol]
	if !ok {
		snap = &SymbolSnapshot{Symbol: symbol}
		a.symbols[symbol] = snap
	}
	snap.TradesCount++
	snap.PnL += delta
	snap.LastUpdated = a.now()
}

// GetStatus sums all snapshots under the lock and returns copies; callers
// never receive a live reference into shared state.
func (a *Aggregator) GetStatus() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := Status{Symbols: make(map[string]SymbolSnapshot, len(a.symbols))}
	for sym, snap := range a.symbols {
		status.TotalTrades += snap.TradesCount
		status.TotalPnL += snap.PnL
		status.TotalExposure += snap.Exposure
		status.Symbols[sym] = *snap
	}
	return status
}

// CheckExposureLimit reports whether aggregate exposure is within the limit.
func (a *Aggregator) CheckExposureLimit(limitPct float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0.0
	for _, snap := range a.symbols {
		total += snap.Exposure
	}
	return total <= limitPct
}
