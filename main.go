package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tradecore/config"
	"tradecore/internal/api"
	"tradecore/internal/broker"
	"tradecore/internal/cache"
	"tradecore/internal/database"
	"tradecore/internal/events"
	"tradecore/internal/fusion"
	"tradecore/internal/logging"
	"tradecore/internal/metrics"
	"tradecore/internal/orchestrator"
	"tradecore/internal/risk"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("logging initialized")

	eventBus := events.NewEventBus()

	// Database persistence is optional; the decision core runs without it.
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("database migrations failed")
		}
		cancel()
		repo = database.NewRepository(db)
	}

	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cache disabled")
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}

	governor := risk.NewGovernor(risk.Config{
		DailyLossLimit: cfg.RiskConfig.DailyLossLimit,
		MaxDrawdownPct: cfg.RiskConfig.MaxDrawdownPct,
	}, logger)

	metricsAgg := metrics.NewAggregator()

	orch := orchestrator.New(orchestrator.Config{
		BasePeriodMinutes: cfg.TradingConfig.BasePeriodMinutes,
		TimeframeMinutes:  cfg.TradingConfig.TimeframeMinutes,
		LookbackBars:      cfg.TradingConfig.LookbackBars,
		Fusion: fusion.Config{
			DailyThreshold:  cfg.FusionConfig.DailyThreshold,
			HourlyThreshold: cfg.FusionConfig.HourlyThreshold,
			MinuteThreshold: cfg.FusionConfig.MinuteThreshold,
			DailyWeight:     cfg.FusionConfig.DailyWeight,
			HourlyWeight:    cfg.FusionConfig.HourlyWeight,
			MinuteWeight:    cfg.FusionConfig.MinuteWeight,
		},
		Sizing: orchestrator.SizingParams{
			KellyFraction:      cfg.SizingConfig.KellyFraction,
			MaxRiskPerTrade:    cfg.SizingConfig.MaxRiskPerTrade,
			MaxLeverage:        cfg.SizingConfig.MaxLeverage,
			StopLossMultiplier: cfg.SizingConfig.StopLossMultiplier,
			PayoffRatio:        cfg.SizingConfig.PayoffRatio,
		},
		ExposureLimitPct: cfg.TradingConfig.ExposureLimitPct,
		BreakerCooldown:  time.Duration(cfg.TradingConfig.BreakerCooldownSec) * time.Second,
		BreakerPoll:      time.Duration(cfg.TradingConfig.BreakerPollMs) * time.Millisecond,
	}, governor, metricsAgg, eventBus, logger)

	for _, sc := range cfg.SymbolsConfig {
		err := orch.AddSymbol(broker.SymbolInfo{
			Symbol:       sc.Symbol,
			ContractSize: sc.ContractSize,
			VolumeMin:    sc.VolumeMin,
			VolumeMax:    sc.VolumeMax,
			VolumeStep:   sc.VolumeStep,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("symbol", sc.Symbol).Msg("symbol registration failed")
		}
	}

	if repo != nil {
		orch.OnDecision(func(d orchestrator.Decision) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			rec := &database.DecisionRecord{
				ID:            d.ID,
				Symbol:        d.Symbol,
				Signal:        string(d.Signal),
				Confidence:    d.Confidence,
				Price:         d.Price,
				NotionalUnits: d.NotionalUnits,
				Lots:          d.Lots,
				Reasoning:     d.Reasoning,
				CreatedAt:     d.CreatedAt,
			}
			if err := repo.SaveDecision(ctx, rec); err != nil {
				logger.Error().Err(err).Str("decision_id", d.ID).Msg("failed to persist decision")
			}
		})

		eventBus.Subscribe(events.EventRiskBreach, persistRiskEvent(repo, logger, database.RiskEventBreach))
		eventBus.Subscribe(events.EventBreakerTripped, persistRiskEvent(repo, logger, database.RiskEventBreakerTripped))
		eventBus.Subscribe(events.EventBreakerReset, persistRiskEvent(repo, logger, database.RiskEventBreakerReset))
	}

	if cacheService != nil {
		orch.OnDecision(func(d orchestrator.Decision) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := cacheService.StoreLatestDecision(ctx, d.Symbol, d); err != nil {
				logger.Debug().Err(err).Msg("decision cache write skipped")
			}
		})
	}

	governor.OnSessionRollover(func(from, to time.Time) {
		eventBus.Publish(events.Event{
			Type: events.EventSessionRolled,
			Data: map[string]interface{}{
				"from": from,
				"to":   to,
			},
		})
	})
	governor.StartSession(cfg.RiskConfig.InitialEquity)
	orch.UpdateEquity(cfg.RiskConfig.InitialEquity)

	if err := orch.Start(); err != nil {
		logger.Fatal().Err(err).Msg("orchestrator start failed")
	}

	snapshotStop := make(chan struct{})
	if repo != nil || cacheService != nil {
		go runSnapshotLoop(snapshotStop, metricsAgg, governor, repo, cacheService, logger)
	}

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.ServerConfig{
			Port:            cfg.ServerConfig.Port,
			Host:            cfg.ServerConfig.Host,
			AllowedOrigins:  splitOrigins(cfg.ServerConfig.AllowedOrigins),
			ReadTimeout:     time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
			WriteTimeout:    time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
			ShutdownTimeout: time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second,
		}, orch, governor, metricsAgg, repo, eventBus, logger)

		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	close(snapshotStop)
	if server != nil {
		if err := server.Stop(); err != nil {
			logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}
	orch.Shutdown()
	logger.Info().Msg("shutdown complete")
}

// persistRiskEvent adapts a bus subscription into a risk_events insert.
func persistRiskEvent(repo *database.Repository, logger zerolog.Logger, eventType string) events.Subscriber {
	return func(e events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rec := &database.RiskEventRecord{EventType: eventType}
		if symbol, ok := e.Data["symbol"].(string); ok {
			rec.Symbol = symbol
		}
		if reason, ok := e.Data["reason"].(string); ok {
			rec.Reason = reason
		}
		if err := repo.SaveRiskEvent(ctx, rec); err != nil {
			logger.Error().Err(err).Str("event_type", eventType).Msg("failed to persist risk event")
		}
	}
}

// runSnapshotLoop writes aggregate metrics and risk state once a minute.
func runSnapshotLoop(
	stop <-chan struct{},
	metricsAgg *metrics.Aggregator,
	governor *risk.Governor,
	repo *database.Repository,
	cacheService *cache.CacheService,
	logger zerolog.Logger,
) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			status := metricsAgg.GetStatus()

			if repo != nil {
				symbols, err := json.Marshal(status.Symbols)
				if err != nil {
					logger.Error().Err(err).Msg("failed to encode metrics snapshot")
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err = repo.SaveMetricsSnapshot(ctx, &database.MetricsSnapshotRecord{
					TotalTrades:   status.TotalTrades,
					TotalPnL:      status.TotalPnL,
					TotalExposure: status.TotalExposure,
					Symbols:       symbols,
				})
				cancel()
				if err != nil {
					logger.Error().Err(err).Msg("failed to persist metrics snapshot")
				}
			}

			if cacheService != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := cacheService.StoreStatus(ctx, status); err != nil {
					logger.Debug().Err(err).Msg("status cache write skipped")
				}
				if err := cacheService.StoreRiskState(ctx, governor.GetDailyStats()); err != nil {
					logger.Debug().Err(err).Msg("risk cache write skipped")
				}
				cancel()
			}
		}
	}
}

func splitOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
