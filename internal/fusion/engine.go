package fusion

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownLevel is returned when a signal names a level the engine does not track.
var ErrUnknownLevel = errors.New("unknown signal level")

// Config holds per-level classification thresholds and confidence weights.
type Config struct {
	DailyThreshold  float64
	HourlyThreshold float64
	MinuteThreshold float64
	DailyWeight     float64
	HourlyWeight    float64
	MinuteWeight    float64
}

// DefaultConfig returns the standard thresholds and weights: the daily trend is
// called at 0.55, hourly entries need a stricter 0.65, and confidence weighs
// daily/hourly/minute at 50/35/15.
func DefaultConfig() Config {
	return Config{
		DailyThreshold:  0.55,
		HourlyThreshold: 0.65,
		MinuteThreshold: 0.55,
		DailyWeight:     0.50,
		HourlyWeight:    0.35,
		MinuteWeight:    0.15,
	}
}

// Result is the fused decision across all levels.
type Result struct {
	FinalSignal     Direction `json:"final_signal"`
	DailyDirection  Direction `json:"daily_direction"`
	HourlyDirection Direction `json:"hourly_direction"`
	MinuteDirection Direction `json:"minute_direction"`
	Confidence      float64   `json:"confidence"`
	Reasoning       string    `json:"reasoning"`
}

// Actionable reports whether the decision calls for a position.
func (r Result) Actionable() bool {
	return r.FinalSignal == DirectionLong || r.FinalSignal == DirectionShort
}

// Engine fuses per-timeframe signals into one decision. It keeps only the last
// signal per level with no implicit expiry; the caller resets it on session
// boundaries. The engine is not safe for concurrent use; each symbol owns one.
//
// The hierarchy is strict: the daily level sets the permitted direction, the
// hourly level times the entry, and the minute level only annotates reasoning
// and contributes its weighted share of confidence. Daily/hourly disagreement
// is a conflict and forces NO_TRADE.
type Engine struct {
	config Config
	last   map[Level]TimeframeSignal
}

// NewEngine creates a fusion engine with the given thresholds and weights.
func NewEngine(config Config) *Engine {
	return &Engine{
		config: config,
		last:   make(map[Level]TimeframeSignal),
	}
}

// Reset clears all held signals, typically at a session boundary.
func (e *Engine) Reset() {
	e.last = make(map[Level]TimeframeSignal)
}

// UpdateSignal stores the latest signal for a level and re-fuses. Unknown
// levels are a configuration error; invalid probabilities are absorbed into a
// NO_SIGNAL result without touching held state.
func (e *Engine) UpdateSignal(level Level, longProb, shortProb float64, ts time.Time) (Result, error) {
	switch level {
	case LevelDaily, LevelHourly, LevelMinute:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	sig := TimeframeSignal{Level: level, LongProb: longProb, ShortProb: shortProb, Timestamp: ts}
	if !sig.Valid() {
		return e.noSignal(fmt.Sprintf("invalid probabilities for %s level", level)), nil
	}

	e.last[level] = sig
	return e.fuse(), nil
}

func (e *Engine) fuse() Result {
	daily, hasDaily := e.last[LevelDaily]
	if !hasDaily {
		return e.noSignal("daily signal missing")
	}

	dailyDir := daily.Direction(e.config.DailyThreshold)
	if dailyDir == DirectionNoSignal {
		r := e.noSignal("no daily trend")
		r.DailyDirection = DirectionNoSignal
		return r
	}

	hourly, hasHourly := e.last[LevelHourly]
	if !hasHourly {
		r := e.noSignal("waiting for hourly signal")
		r.DailyDirection = dailyDir
		return r
	}

	hourlyDir := hourly.Direction(e.config.HourlyThreshold)
	if hourlyDir == DirectionNoSignal {
		r := e.noSignal("no hourly entry")
		r.DailyDirection = dailyDir
		r.HourlyDirection = DirectionNoSignal
		return r
	}

	if dailyDir != hourlyDir {
		return Result{
			FinalSignal:     DirectionNoTrade,
			DailyDirection:  dailyDir,
			HourlyDirection: hourlyDir,
			MinuteDirection: DirectionNoSignal,
			Confidence:      0,
			Reasoning:       fmt.Sprintf("conflict: daily %s vs hourly %s", dailyDir, hourlyDir),
		}
	}

	result := Result{
		FinalSignal:     hourlyDir,
		DailyDirection:  dailyDir,
		HourlyDirection: hourlyDir,
		MinuteDirection: DirectionNoSignal,
		Reasoning:       fmt.Sprintf("daily %s confirmed by hourly %s", dailyDir, hourlyDir),
	}

	// The minute level annotates but never flips or nulls the decision.
	minute, hasMinute := e.last[LevelMinute]
	if hasMinute {
		minuteDir := minute.Direction(e.config.MinuteThreshold)
		result.MinuteDirection = minuteDir
		switch {
		case minuteDir == hourlyDir:
			result.Reasoning += "; minute agrees"
		case minuteDir == DirectionNoSignal:
			result.Reasoning += "; minute neutral"
		default:
			result.Reasoning += fmt.Sprintf("; minute disagrees (%s)", minuteDir)
		}
	}

	confidence := e.config.DailyWeight * daily.Strength()
	confidence += e.config.HourlyWeight * hourly.Strength()
	if hasMinute {
		confidence += e.config.MinuteWeight * minute.Strength()
	}
	result.Confidence = clip01(confidence)

	return result
}

func (e *Engine) noSignal(reason string) Result {
	return Result{
		FinalSignal:     DirectionNoSignal,
		DailyDirection:  DirectionNoSignal,
		HourlyDirection: DirectionNoSignal,
		MinuteDirection: DirectionNoSignal,
		Confidence:      0,
		Reasoning:       reason,
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
