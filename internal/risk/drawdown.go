package risk

import (
	"sync"

	"github.com/rs/zerolog"
)

// DrawdownTracker halts trading when equity falls too far from its running
// peak. The peak only ever rises; a halt clears automatically once a new peak
// exceeds the prior one.
type DrawdownTracker struct {
	mu             sync.Mutex
	maxDrawdownPct float64 // percent, e.g. 10.0
	peak           float64
	value          float64
	halted         bool
	logger         zerolog.Logger
}

// NewDrawdownTracker creates a tracker halting beyond maxDrawdownPct percent.
func NewDrawdownTracker(maxDrawdownPct float64, logger zerolog.Logger) *DrawdownTracker {
	return &DrawdownTracker{
		maxDrawdownPct: maxDrawdownPct,
		logger:         logger.With().Str("component", "drawdown").Logger(),
	}
}

// Update records a new equity value.
func (d *DrawdownTracker) Update(value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = value
	if value > d.peak {
		if d.halted {
			d.logger.Info().Float64("peak", value).Msg("drawdown halt cleared on new peak")
		}
		d.peak = value
		d.halted = false
		return
	}

	if d.peak <= 0 {
		return
	}
	if dd := (d.peak - value) / d.peak * 100; dd > d.maxDrawdownPct {
		if !d.halted {
			d.logger.Warn().
				Float64("drawdown_pct", dd).
				Float64("limit_pct", d.maxDrawdownPct).
				Msg("max drawdown breached, trading halted")
		}
		d.halted = true
	}
}

// IsHalted reports whether the drawdown limit is breached.
func (d *DrawdownTracker) IsHalted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.halted
}

// DrawdownPct returns the current peak-to-value decline in percent.
func (d *DrawdownTracker) DrawdownPct() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.peak <= 0 {
		return 0
	}
	return (d.peak - d.value) / d.peak * 100
}

// Stats returns a snapshot of the tracker state.
func (d *DrawdownTracker) Stats() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	dd := 0.0
	if d.peak > 0 {
		dd = (d.peak - d.value) / d.peak * 100
	}
	return map[string]interface{}{
		"peak":             d.peak,
		"value":            d.value,
		"drawdown_pct":     dd,
		"max_drawdown_pct": d.maxDrawdownPct,
		"is_halted":        d.halted,
	}
}
