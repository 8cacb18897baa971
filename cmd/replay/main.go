// Replay drives the full decision pipeline offline with synthetic bars and
// probability signals. Useful for eyeballing fusion behavior and sizing output
// without a market feed.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/internal/broker"
	"tradecore/internal/events"
	"tradecore/internal/fusion"
	"tradecore/internal/logging"
	"tradecore/internal/market"
	"tradecore/internal/metrics"
	"tradecore/internal/orchestrator"
	"tradecore/internal/risk"
)

func main() {
	var (
		symbols = flag.Int("symbols", 3, "number of synthetic symbols")
		bars    = flag.Int("bars", 288, "base bars per symbol (288 = one day of M5)")
		seed    = flag.Int64("seed", 42, "random seed")
		equity  = flag.Float64("equity", 100000, "starting equity")
	)
	flag.Parse()

	runID := uuid.New().String()
	fmt.Printf("replay run %s: %d symbols, %d bars each\n", runID, *symbols, *bars)

	logger := logging.New(logging.Config{Level: "warn"})
	rng := rand.New(rand.NewSource(*seed))

	governor := risk.NewGovernor(risk.Config{DailyLossLimit: -0.05, MaxDrawdownPct: 10.0}, logger)
	governor.StartSession(*equity)
	metricsAgg := metrics.NewAggregator()
	bus := events.NewEventBus()

	orch := orchestrator.New(orchestrator.Config{
		BasePeriodMinutes: 5,
		TimeframeMinutes:  []int{60, 240, 1440},
		LookbackBars:      500,
		Fusion:            fusion.DefaultConfig(),
		Sizing: orchestrator.SizingParams{
			KellyFraction:      0.25,
			MaxRiskPerTrade:    0.02,
			MaxLeverage:        3.0,
			StopLossMultiplier: 2.0,
			PayoffRatio:        2.0,
		},
		ExposureLimitPct: 0.5,
		BreakerCooldown:  time.Minute,
	}, governor, metricsAgg, bus, logger)

	names := make([]string, 0, *symbols)
	for i := 0; i < *symbols; i++ {
		name := fmt.Sprintf("SYM%02d", i+1)
		names = append(names, name)
		err := orch.AddSymbol(broker.SymbolInfo{
			Symbol:       name,
			ContractSize: 100000,
			VolumeMin:    0.01,
			VolumeMax:    100,
			VolumeStep:   0.01,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "add symbol: %v\n", err)
			os.Exit(1)
		}
	}

	var mu sync.Mutex
	decisions := 0
	perSymbol := make(map[string]int)
	orch.OnDecision(func(d orchestrator.Decision) {
		mu.Lock()
		decisions++
		perSymbol[d.Symbol]++
		mu.Unlock()
		fmt.Printf("  %s %s %-5s conf=%.3f lots=%.2f  %s\n",
			d.CreatedAt.Format("15:04:05"), d.Symbol, d.Signal, d.Confidence, d.Lots, d.Reasoning)
	})

	if err := orch.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	orch.UpdateEquity(*equity)

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for _, name := range names {
		price := 1.0 + rng.Float64()
		drift := (rng.Float64() - 0.5) * 0.0002
		orch.UpdateVolatility(name, price*0.002)

		for i := 0; i < *bars; i++ {
			ts := start.Add(time.Duration(i) * 5 * time.Minute)
			open := price
			price += price*drift + price*0.001*(rng.Float64()-0.5)
			high := math.Max(open, price) * (1 + 0.0005*rng.Float64())
			low := math.Min(open, price) * (1 - 0.0005*rng.Float64())
			orch.PushBar(name, market.Bar{
				Timestamp: ts,
				Open:      open,
				High:      high,
				Low:       low,
				Close:     price,
				Volume:    10 + 90*rng.Float64(),
			})

			// trend-following probabilities drift with price direction
			bias := 0.5 + 20*drift + 0.25*(rng.Float64()-0.5)
			bias = math.Max(0.05, math.Min(0.95, bias))

			if i%288 == 0 {
				orch.PushSignal(name, fusion.LevelDaily, bias, 1-bias, ts)
			}
			if i%12 == 0 {
				orch.PushSignal(name, fusion.LevelHourly, bias, 1-bias, ts)
			}
			orch.PushSignal(name, fusion.LevelMinute, bias, 1-bias, ts)
		}
	}

	// let the loops drain
	time.Sleep(500 * time.Millisecond)
	orch.Shutdown()

	fmt.Printf("\nrun %s complete: %d decisions\n", runID, decisions)
	for _, name := range names {
		fmt.Printf("  %s: %d\n", name, perSymbol[name])
	}
	status := metricsAgg.GetStatus()
	fmt.Printf("aggregate: trades=%d pnl=%.2f exposure=%.4f\n",
		status.TotalTrades, status.TotalPnL, status.TotalExposure)
	if ok, reason := governor.CanTrade(); !ok {
		fmt.Printf("risk gate closed: %s\n", reason)
	}
}
