// Package risk gates trading on session losses and equity drawdown. The
// governor is shared process-wide: every symbol loop consults the same
// instance, constructed explicitly and passed in rather than held as a global.
package risk

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds risk governance limits.
type Config struct {
	DailyLossLimit float64 // negative fraction, trading stops at or below it
	MaxDrawdownPct float64 // percent decline from peak that halts trading
}

// Governor combines the daily session gate and the drawdown tracker. The two
// are independent failure domains; trading requires both to allow it. Breaches
// never raise errors on the hot path; they flip observable state and trading
// resumes once conditions clear or the session rolls over.
type Governor struct {
	session  *DailySession
	drawdown *DrawdownTracker
	logger   zerolog.Logger
}

// NewGovernor creates a governor from limits.
func NewGovernor(cfg Config, logger zerolog.Logger) *Governor {
	return &Governor{
		session:  NewDailySession(cfg.DailyLossLimit, logger),
		drawdown: NewDrawdownTracker(cfg.MaxDrawdownPct, logger),
		logger:   logger.With().Str("component", "risk_governor").Logger(),
	}
}

// OnSessionRollover registers a listener for date rollovers.
func (g *Governor) OnSessionRollover(fn func(from, to time.Time)) {
	g.session.OnRollover(fn)
}

// StartSession begins the trading day; idempotent per date.
func (g *Governor) StartSession(balance float64) {
	g.session.StartSession(balance)
	g.drawdown.Update(balance)
}

// UpdateRealizedPnL records a realized PnL delta.
func (g *Governor) UpdateRealizedPnL(delta float64) {
	g.session.UpdateRealizedPnL(delta)
}

// UpdateUnrealizedPnL replaces the open-position PnL valuation.
func (g *Governor) UpdateUnrealizedPnL(value float64) {
	g.session.UpdateUnrealizedPnL(value)
}

// UpdateEquity feeds the account equity into the drawdown tracker.
func (g *Governor) UpdateEquity(value float64) {
	g.drawdown.Update(value)
}

// CanTrade reports whether trading is allowed, with a reason when it is not.
func (g *Governor) CanTrade() (bool, string) {
	if g.drawdown.IsHalted() {
		return false, fmt.Sprintf("drawdown halt: %.2f%% from peak", g.drawdown.DrawdownPct())
	}
	if !g.session.CanTrade() {
		return false, fmt.Sprintf("daily loss limit reached: %.2f%%", g.session.LossPct()*100)
	}
	return true, ""
}

// IsHalted reports whether the drawdown breaker is engaged.
func (g *Governor) IsHalted() bool {
	return g.drawdown.IsHalted()
}

// ResetSession manually restarts the daily session with a new balance.
func (g *Governor) ResetSession(balance float64) {
	g.session.Reset(balance)
}

// GetDailyStats returns a combined snapshot of session and drawdown state.
func (g *Governor) GetDailyStats() map[string]interface{} {
	stats := g.session.Stats()
	for k, v := range g.drawdown.Stats() {
		stats[k] = v
	}
	canTrade, reason := g.CanTrade()
	stats["can_trade"] = canTrade
	stats["block_reason"] = reason
	return stats
}
