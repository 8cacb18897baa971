package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DailySession tracks the running day's PnL against a daily loss limit. All
// operations serialize on one internal lock; concurrent updates sum exactly.
// The session rolls itself over to a fresh state when the calendar date changes.
type DailySession struct {
	mu            sync.Mutex
	lossLimit     float64 // negative fraction, e.g. -0.05
	started       bool
	sessionDate   time.Time // truncated to day
	startBalance  float64
	realizedPnL   float64
	unrealizedPnL float64
	now           func() time.Time
	onRollover    func(from, to time.Time)
	logger        zerolog.Logger
}

// NewDailySession creates a session gate with the given daily loss limit.
func NewDailySession(lossLimit float64, logger zerolog.Logger) *DailySession {
	return &DailySession{
		lossLimit: lossLimit,
		now:       time.Now,
		logger:    logger.With().Str("component", "daily_session").Logger(),
	}
}

// OnRollover registers a listener for date rollovers. Set before the first
// update; the listener runs in its own goroutine.
func (s *DailySession) OnRollover(fn func(from, to time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRollover = fn
}

// StartSession begins the trading day with the given balance. Calling it again
// on the same date is a no-op, so collaborators may call it defensively.
func (s *DailySession) StartSession(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	if s.started && s.sessionDate.Equal(today) {
		return
	}

	s.started = true
	s.sessionDate = today
	s.startBalance = balance
	s.realizedPnL = 0
	s.unrealizedPnL = 0
	s.logger.Info().Float64("balance", balance).Time("date", today).Msg("session started")
}

// UpdateRealizedPnL adds a realized PnL delta. Updates before StartSession are
// logged and dropped rather than treated as fatal.
func (s *DailySession) UpdateRealizedPnL(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.logger.Warn().Float64("delta", delta).Msg("realized pnl update before session start, ignored")
		return
	}
	s.rollIfNeeded()
	s.realizedPnL += delta
}

// UpdateUnrealizedPnL replaces the open-position PnL valuation.
func (s *DailySession) UpdateUnrealizedPnL(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.logger.Warn().Float64("value", value).Msg("unrealized pnl update before session start, ignored")
		return
	}
	s.rollIfNeeded()
	s.unrealizedPnL = value
}

// CanTrade rolls the session over if the date changed, then gates on the loss
// limit: trading stops once the day's loss fraction reaches the limit.
func (s *DailySession) CanTrade() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return true
	}
	s.rollIfNeeded()
	return s.lossPct() > s.lossLimit
}

// LossPct returns the current day's loss as a fraction of the start balance.
func (s *DailySession) LossPct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollIfNeeded()
	return s.lossPct()
}

// Reset manually restarts the session with a new balance.
func (s *DailySession) Reset(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = true
	s.sessionDate = s.today()
	s.startBalance = balance
	s.realizedPnL = 0
	s.unrealizedPnL = 0
}

// Stats returns a snapshot of the session state.
func (s *DailySession) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollIfNeeded()

	return map[string]interface{}{
		"session_date":   s.sessionDate,
		"start_balance":  s.startBalance,
		"realized_pnl":   s.realizedPnL,
		"unrealized_pnl": s.unrealizedPnL,
		"loss_pct":       s.lossPct(),
		"loss_limit":     s.lossLimit,
	}
}

// rollIfNeeded resets PnL when the calendar date changed. Callers hold the lock.
func (s *DailySession) rollIfNeeded() {
	if !s.started {
		return
	}
	today := s.today()
	if s.sessionDate.Equal(today) {
		return
	}

	s.logger.Info().
		Time("from", s.sessionDate).
		Time("to", today).
		Float64("prior_realized", s.realizedPnL).
		Msg("session rolled over")
	if s.onRollover != nil {
		// fired outside the lock so a listener may call back into the session
		go s.onRollover(s.sessionDate, today)
	}
	s.sessionDate = today
	s.realizedPnL = 0
	s.unrealizedPnL = 0
}

func (s *DailySession) lossPct() float64 {
	if s.startBalance <= 0 {
		return 0
	}
	return (s.realizedPnL + s.unrealizedPnL) / s.startBalance
}

func (s *DailySession) today() time.Time {
	return s.now().Truncate(24 * time.Hour)
}
