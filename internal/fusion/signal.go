package fusion

import (
	"math"
	"time"
)

// Level identifies a signal timeframe level.
type Level string

const (
	LevelDaily  Level = "daily"
	LevelHourly Level = "hourly"
	LevelMinute Level = "minute"
)

// Direction is the directional call of a signal or fused decision.
type Direction string

const (
	DirectionLong     Direction = "LONG"
	DirectionShort    Direction = "SHORT"
	DirectionNoSignal Direction = "NO_SIGNAL"
	// DirectionNoTrade is produced only by fusion, when mandatory levels conflict.
	DirectionNoTrade Direction = "NO_TRADE"
)

// TimeframeSignal is one per-timeframe probability signal produced by the
// upstream model layer. Probabilities need not sum to 1.
type TimeframeSignal struct {
	Level     Level     `json:"level"`
	LongProb  float64   `json:"long_probability"`
	ShortProb float64   `json:"short_probability"`
	Timestamp time.Time `json:"timestamp"`
}

// Strength is the absolute edge between the two probabilities.
func (s TimeframeSignal) Strength() float64 {
	return math.Abs(s.LongProb - s.ShortProb)
}

// Direction classifies the signal against a threshold: the dominant side must
// reach the threshold or the signal is directionless.
func (s TimeframeSignal) Direction(threshold float64) Direction {
	if s.LongProb >= threshold && s.LongProb > s.ShortProb {
		return DirectionLong
	}
	if s.ShortProb >= threshold && s.ShortProb > s.LongProb {
		return DirectionShort
	}
	return DirectionNoSignal
}

// Valid reports whether both probabilities are usable numbers in [0, 1].
func (s TimeframeSignal) Valid() bool {
	for _, p := range []float64{s.LongProb, s.ShortProb} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return false
		}
	}
	return true
}
