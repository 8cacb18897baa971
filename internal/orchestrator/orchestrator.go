// Package orchestrator runs one decision loop per symbol. Each loop owns a
// private aggregator and fusion engine; the risk governor and metrics
// aggregator are shared and accessed only through their locked APIs.
package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradecore/internal/broker"
	"tradecore/internal/events"
	"tradecore/internal/fusion"
	"tradecore/internal/market"
	"tradecore/internal/metrics"
	"tradecore/internal/risk"
	"tradecore/internal/sizing"
)

// Errors for orchestration
var (
	ErrUnknownSymbol   = errors.New("symbol not registered")
	ErrAlreadyStarted  = errors.New("orchestrator already started")
	ErrDuplicateSymbol = errors.New("symbol already registered")
)

// SizingParams holds the sizing knobs shared by all symbols.
type SizingParams struct {
	KellyFraction      float64
	MaxRiskPerTrade    float64
	MaxLeverage        float64
	StopLossMultiplier float64
	PayoffRatio        float64
}

// Config holds orchestrator configuration.
type Config struct {
	BasePeriodMinutes int
	TimeframeMinutes  []int
	LookbackBars      int
	Fusion            fusion.Config
	Sizing            SizingParams
	ExposureLimitPct  float64
	BreakerCooldown   time.Duration
	BreakerPoll       time.Duration
	InputBuffer       int // per-symbol channel depth
}

// symbolRunner is the per-symbol state. Only its own goroutine touches the
// aggregator, fusion engine and local counters after Start.
type symbolRunner struct {
	symbol    string
	agg       *market.Aggregator
	engine    *fusion.Engine
	quantizer *broker.LotQuantizer
	bars      chan market.Bar
	signals   chan signalInput

	lastPrice  float64
	volatility float64
	trades     int
	wins       int
	pnl        float64
}

type signalInput struct {
	level     fusion.Level
	longProb  float64
	shortProb float64
	ts        time.Time
}

// Orchestrator coordinates all symbol loops and the shared risk/metrics state.
type Orchestrator struct {
	config   Config
	governor *risk.Governor
	metrics  *metrics.Aggregator
	bus      *events.EventBus
	breaker  *circuitBreaker
	logger   zerolog.Logger

	mu       sync.RWMutex
	runners  map[string]*symbolRunner
	handlers []DecisionHandler
	equity   float64
	started  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an orchestrator. The governor and metrics aggregator are shared
// dependencies constructed by the caller; there are no hidden globals.
func New(cfg Config, governor *risk.Governor, agg *metrics.Aggregator, bus *events.EventBus, logger zerolog.Logger) *Orchestrator {
	if cfg.InputBuffer <= 0 {
		cfg.InputBuffer = 64
	}
	if cfg.BreakerPoll <= 0 {
		cfg.BreakerPoll = 250 * time.Millisecond
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 5 * time.Minute
	}

	o := &Orchestrator{
		config:   cfg,
		governor: governor,
		metrics:  agg,
		bus:      bus,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		runners:  make(map[string]*symbolRunner),
		stopCh:   make(chan struct{}),
	}
	o.breaker = newCircuitBreaker(cfg.BreakerCooldown, func(manual bool) {
		o.logger.Info().Bool("manual", manual).Msg("circuit breaker cleared")
		if bus != nil {
			bus.PublishBreakerReset(manual)
		}
	})
	return o
}

// AddSymbol registers a symbol with its broker constraints. Must be called
// before Start.
func (o *Orchestrator) AddSymbol(info broker.SymbolInfo) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return ErrAlreadyStarted
	}
	if _, exists := o.runners[info.Symbol]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, info.Symbol)
	}

	agg := market.NewAggregator(o.config.BasePeriodMinutes, o.config.LookbackBars, o.logger)
	for _, tf := range o.config.TimeframeMinutes {
		if err := agg.AddTimeframe(tf, o.config.LookbackBars); err != nil {
			return fmt.Errorf("symbol %s: %w", info.Symbol, err)
		}
	}

	o.runners[info.Symbol] = &symbolRunner{
		symbol:    info.Symbol,
		agg:       agg,
		engine:    fusion.NewEngine(o.config.Fusion),
		quantizer: broker.NewLotQuantizer(info),
		bars:      make(chan market.Bar, o.config.InputBuffer),
		signals:   make(chan signalInput, o.config.InputBuffer),
	}
	return nil
}

// OnDecision registers a handler for emitted decisions. Must be called before
// Start.
func (o *Orchestrator) OnDecision(h DecisionHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers = append(o.handlers, h)
}

// Start launches one goroutine per registered symbol.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true

	for _, r := range o.runners {
		o.wg.Add(1)
		go o.runSymbol(r)
	}
	o.logger.Info().Int("symbols", len(o.runners)).Msg("orchestrator started")
	return nil
}

// Shutdown cancels all symbol loops and waits for in-flight iterations to
// finish. It holds no shared lock while waiting.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	select {
	case <-o.stopCh:
	default:
		close(o.stopCh)
	}
	o.mu.Unlock()

	o.wg.Wait()
	o.logger.Info().Msg("orchestrator stopped")
}

// PushBar feeds one base-period bar to a symbol's loop.
func (o *Orchestrator) PushBar(symbol string, bar market.Bar) error {
	r, err := o.runner(symbol)
	if err != nil {
		return err
	}
	select {
	case r.bars <- bar:
		return nil
	case <-o.stopCh:
		return nil
	}
}

// PushSignal feeds one probability signal to a symbol's loop.
func (o *Orchestrator) PushSignal(symbol string, level fusion.Level, longProb, shortProb float64, ts time.Time) error {
	r, err := o.runner(symbol)
	if err != nil {
		return err
	}
	select {
	case r.signals <- signalInput{level: level, longProb: longProb, shortProb: shortProb, ts: ts}:
		return nil
	case <-o.stopCh:
		return nil
	}
}

// UpdateEquity refreshes the shared account equity and feeds the drawdown
// tracker.
func (o *Orchestrator) UpdateEquity(equity float64) {
	o.mu.Lock()
	o.equity = equity
	o.mu.Unlock()
	o.governor.UpdateEquity(equity)
}

// UpdateVolatility refreshes one symbol's ATR. It is read by that symbol's
// loop only at the next sizing decision.
func (o *Orchestrator) UpdateVolatility(symbol string, atr float64) error {
	r, err := o.runner(symbol)
	if err != nil {
		return err
	}
	o.mu.Lock()
	r.volatility = atr
	o.mu.Unlock()
	return nil
}

// ReportTrade records a closed trade's realized PnL against the governor and
// metrics; a resulting risk breach trips the global breaker.
func (o *Orchestrator) ReportTrade(symbol string, pnl float64) error {
	r, err := o.runner(symbol)
	if err != nil {
		return err
	}

	o.governor.UpdateRealizedPnL(pnl)

	o.mu.Lock()
	r.trades++
	if pnl > 0 {
		r.wins++
	}
	r.pnl += pnl
	trades, wins, total := r.trades, r.wins, r.pnl
	o.mu.Unlock()

	winRate := 0.0
	if trades > 0 {
		winRate = float64(wins) / float64(trades)
	}
	o.metrics.UpdateMetrics(symbol, trades, total, o.currentExposure(r), winRate)

	if ok, reason := o.governor.CanTrade(); !ok {
		o.TripBreaker(reason)
	}
	return nil
}

// TripBreaker engages the global circuit breaker.
func (o *Orchestrator) TripBreaker(reason string) {
	if o.breaker.trip(reason) {
		o.logger.Warn().Str("reason", reason).Msg("circuit breaker tripped")
		if o.bus != nil {
			o.bus.PublishBreakerTripped(reason)
		}
	}
}

// ResetBreaker clears the breaker manually.
func (o *Orchestrator) ResetBreaker() {
	o.breaker.reset()
}

// BreakerState returns the engaged flag and trip reason.
func (o *Orchestrator) BreakerState() (bool, string) {
	return o.breaker.state()
}

// Symbols returns the registered symbol names.
func (o *Orchestrator) Symbols() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.runners))
	for s := range o.runners {
		names = append(names, s)
	}
	return names
}

func (o *Orchestrator) runner(symbol string) (*symbolRunner, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runners[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return r, nil
}

// runSymbol is one symbol's decision loop. It suspends only while awaiting
// input or while the breaker is engaged, and checks cancellation at every
// iteration boundary.
func (o *Orchestrator) runSymbol(r *symbolRunner) {
	defer o.wg.Done()

	logger := o.logger.With().Str("symbol", r.symbol).Logger()
	for {
		if o.breaker.active() {
			select {
			case <-o.stopCh:
				return
			case <-time.After(o.config.BreakerPoll):
			}
			continue
		}

		select {
		case <-o.stopCh:
			return
		case bar := <-r.bars:
			o.safely(r, logger, func() { o.handleBar(r, bar) })
		case sig := <-r.signals:
			o.safely(r, logger, func() { o.handleSignal(r, logger, sig) })
		}
	}
}

// safely isolates one iteration: a panic in one symbol's pipeline is logged
// and published, and must never abort sibling loops or corrupt shared state.
func (o *Orchestrator) safely(r *symbolRunner, logger zerolog.Logger, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("symbol loop fault isolated")
			if o.bus != nil {
				o.bus.PublishSymbolFault(r.symbol, rec)
			}
		}
	}()
	fn()
}

func (o *Orchestrator) handleBar(r *symbolRunner, bar market.Bar) {
	o.mu.Lock()
	r.lastPrice = bar.Close
	o.mu.Unlock()
	completed := r.agg.OnBaseBar(bar)
	if len(completed) == 0 || o.bus == nil {
		return
	}
	for period, b := range completed {
		o.bus.Publish(events.Event{
			Type: events.EventBarAggregated,
			Data: map[string]interface{}{
				"symbol": r.symbol,
				"period": period,
				"close":  b.Close,
				"volume": b.Volume,
			},
		})
	}
}

func (o *Orchestrator) handleSignal(r *symbolRunner, logger zerolog.Logger, sig signalInput) {
	result, err := r.engine.UpdateSignal(sig.level, sig.longProb, sig.shortProb, sig.ts)
	if err != nil {
		logger.Error().Err(err).Str("level", string(sig.level)).Msg("signal rejected")
		if o.bus != nil {
			o.bus.PublishError(r.symbol, "signal rejected", err)
		}
		return
	}

	if result.FinalSignal == fusion.DirectionNoTrade {
		logger.Info().Str("reasoning", result.Reasoning).Msg("timeframe conflict, no trade")
		return
	}
	if !result.Actionable() {
		logger.Debug().Str("reasoning", result.Reasoning).Msg("no actionable signal")
		return
	}

	ok, reason := o.governor.CanTrade()
	if !ok {
		logger.Warn().Str("reason", reason).Msg("risk gate blocked decision")
		if o.bus != nil {
			o.bus.PublishRiskBreach(r.symbol, reason)
		}
		return
	}

	if !o.metrics.CheckExposureLimit(o.config.ExposureLimitPct) {
		logger.Warn().Float64("limit_pct", o.config.ExposureLimitPct).Msg("aggregate exposure limit reached")
		if o.bus != nil {
			o.bus.PublishRiskBreach(r.symbol, "aggregate exposure limit reached")
		}
		return
	}

	o.mu.RLock()
	equity := o.equity
	volatility := r.volatility
	lastPrice := r.lastPrice
	trades, pnl, winRate := r.trades, r.pnl, o.winRate(r)
	o.mu.RUnlock()

	// Fusion confidence is the win probability; with no usable confidence
	// there is no trade, never a guessed probability.
	units := sizing.ComputeSize(sizing.Inputs{
		WinProbability:     result.Confidence,
		PayoffRatio:        o.config.Sizing.PayoffRatio,
		KellyFraction:      o.config.Sizing.KellyFraction,
		MaxRiskPerTrade:    o.config.Sizing.MaxRiskPerTrade,
		MaxLeverage:        o.config.Sizing.MaxLeverage,
		AccountEquity:      equity,
		Price:              lastPrice,
		Volatility:         volatility,
		StopLossMultiplier: o.config.Sizing.StopLossMultiplier,
	})
	if units <= 0 {
		logger.Debug().Float64("confidence", result.Confidence).Msg("sized to zero, no trade")
		return
	}

	lots := r.quantizer.Quantize(units)
	if lots <= 0 {
		logger.Debug().Float64("units", units).Msg("below minimum lot, no trade")
		return
	}
	if err := r.quantizer.Validate(lots); err != nil {
		logger.Error().Err(err).Float64("lots", lots).Msg("quantized lot failed validation")
		return
	}

	decision := Decision{
		ID:            uuid.New().String(),
		Symbol:        r.symbol,
		Signal:        result.FinalSignal,
		Confidence:    result.Confidence,
		Price:         lastPrice,
		NotionalUnits: units,
		Lots:          lots,
		Reasoning:     result.Reasoning,
		CreatedAt:     time.Now().UTC(),
	}

	logger.Info().
		Str("signal", string(decision.Signal)).
		Float64("confidence", decision.Confidence).
		Float64("lots", decision.Lots).
		Msg("decision emitted")

	o.metrics.UpdateMetrics(r.symbol, trades, pnl, o.currentExposure(r), winRate)
	if o.bus != nil {
		o.bus.PublishDecision(r.symbol, string(decision.Signal), decision.Reasoning, decision.Confidence, decision.Lots)
	}

	o.mu.RLock()
	handlers := o.handlers
	o.mu.RUnlock()
	for _, h := range handlers {
		h(decision)
	}
}

// currentExposure estimates the fraction of equity a full position in this
// symbol commits, from the last decision's price and constraints.
func (o *Orchestrator) currentExposure(r *symbolRunner) float64 {
	o.mu.RLock()
	equity := o.equity
	price := r.lastPrice
	o.mu.RUnlock()
	if equity <= 0 || price <= 0 {
		return 0
	}
	info := r.quantizer.Info()
	return info.VolumeMin * info.ContractSize * price / equity
}

func (o *Orchestrator) winRate(r *symbolRunner) float64 {
	if r.trades == 0 {
		return 0
	}
	return float64(r.wins) / float64(r.trades)
}
