package market

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Errors for timeframe configuration
var (
	ErrInvalidTimeframe   = errors.New("timeframe must be a positive multiple of the base period")
	ErrDuplicateTimeframe = errors.New("timeframe already configured")
)

// Aggregator rolls base-period bars into configured higher-period bars. Each
// higher period is sourced from the nearest lower configured period that evenly
// divides it (falling back to the base period), so a 4h bar is built from
// completed 1h bars rather than raw base bars when 1h is configured.
//
// Bars must arrive strictly ordered by timestamp. Out-of-order or duplicate
// bars are logged and dropped; they never corrupt the buffers.
type Aggregator struct {
	basePeriod int // minutes
	periods    []int
	buffers    map[int]*RingBuffer
	counters   map[int]int
	lastBarAt  int64 // unix seconds of last accepted base bar
	logger     zerolog.Logger
}

// NewAggregator creates an aggregator for the given base period in minutes.
func NewAggregator(basePeriodMinutes, lookback int, logger zerolog.Logger) *Aggregator {
	if lookback < 1 {
		lookback = 1
	}
	return &Aggregator{
		basePeriod: basePeriodMinutes,
		buffers: map[int]*RingBuffer{
			basePeriodMinutes: NewRingBuffer(lookback),
		},
		counters: make(map[int]int),
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// AddTimeframe registers a higher period to aggregate into, with its own
// lookback capacity. The period must be a positive multiple of the base period.
func (a *Aggregator) AddTimeframe(periodMinutes, lookback int) error {
	if periodMinutes < a.basePeriod || periodMinutes%a.basePeriod != 0 {
		return fmt.Errorf("%w: %dm with base %dm", ErrInvalidTimeframe, periodMinutes, a.basePeriod)
	}
	if _, exists := a.buffers[periodMinutes]; exists {
		return fmt.Errorf("%w: %dm", ErrDuplicateTimeframe, periodMinutes)
	}
	if lookback < 1 {
		lookback = 1
	}

	a.buffers[periodMinutes] = NewRingBuffer(lookback)
	a.periods = append(a.periods, periodMinutes)
	sort.Ints(a.periods)
	return nil
}

// OnBaseBar ingests one base-period bar and returns the higher-period bars that
// completed on this call, keyed by period. The map is empty on most calls.
// Normal ingestion never returns an error; bad bars are dropped.
func (a *Aggregator) OnBaseBar(bar Bar) map[int]Bar {
	completed := make(map[int]Bar)

	ts := bar.Timestamp.Unix()
	if a.lastBarAt != 0 && ts <= a.lastBarAt {
		a.logger.Warn().
			Time("timestamp", bar.Timestamp).
			Msg("dropping out-of-order or duplicate base bar")
		return completed
	}
	a.lastBarAt = ts

	a.buffers[a.basePeriod].Push(bar)
	a.counters[a.basePeriod]++

	// Ascending order so cascaded periods see their source complete first.
	for _, period := range a.periods {
		source := a.sourceFor(period)
		multiplier := period / source

		if a.counters[source] == 0 || a.counters[source]%multiplier != 0 {
			continue
		}
		buf := a.buffers[source]
		if buf.Len() < multiplier {
			continue
		}

		agg := aggregate(buf.Last(multiplier))
		a.buffers[period].Push(agg)
		a.counters[period]++
		completed[period] = agg
	}

	return completed
}

// sourceFor picks the largest configured period below target that evenly
// divides it, defaulting to the base period.
func (a *Aggregator) sourceFor(target int) int {
	source := a.basePeriod
	for _, p := range a.periods {
		if p >= target {
			break
		}
		if target%p == 0 {
			source = p
		}
	}
	return source
}

// GetBars returns up to n most recent bars for a period in chronological order.
// Unknown periods yield an empty slice rather than an error.
func (a *Aggregator) GetBars(periodMinutes, n int) []Bar {
	buf, ok := a.buffers[periodMinutes]
	if !ok {
		return []Bar{}
	}
	return buf.Last(n)
}

// GetBarCount returns how many bars are held for a period, 0 if unknown.
func (a *Aggregator) GetBarCount(periodMinutes int) int {
	buf, ok := a.buffers[periodMinutes]
	if !ok {
		return 0
	}
	return buf.Len()
}

// BasePeriod returns the base period in minutes.
func (a *Aggregator) BasePeriod() int {
	return a.basePeriod
}

// aggregate collapses ordered source bars into one higher-period bar:
// open from the first, close and timestamp from the last, extreme high/low,
// summed volume.
func aggregate(bars []Bar) Bar {
	agg := Bar{
		Timestamp: bars[len(bars)-1].Timestamp,
		Open:      bars[0].Open,
		Close:     bars[len(bars)-1].Close,
		High:      bars[0].High,
		Low:       bars[0].Low,
	}
	for _, b := range bars {
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Volume += b.Volume
	}
	return agg
}
