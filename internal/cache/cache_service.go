// Package cache provides Redis-based caching for decisions and status
// snapshots. When Redis is unavailable the service degrades: operations return
// errors that callers handle by skipping the cache, never by failing a
// decision.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tradecore/config"
)

// ErrDisabled indicates the cache was not enabled in configuration.
var ErrDisabled = errors.New("redis is not enabled in configuration")

// Key formats for cached values
const (
	KeyLatestDecision = "decision:%s:latest" // per symbol
	KeyStatus         = "status:latest"
	KeyRiskState      = "risk:latest"
)

// Default TTLs
const (
	DecisionTTL = 24 * time.Hour
	StatusTTL   = time.Minute
)

// CacheService wraps a Redis client with failure tracking. After a run of
// failures the service marks itself unhealthy and sheds load until a
// background ping succeeds.
type CacheService struct {
	client *redis.Client
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCacheService connects to Redis. A failed initial connection returns the
// service in degraded mode rather than an error.
func NewCacheService(cfg config.RedisConfig, logger zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:        client,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.logger.Warn().Err(err).Msg("initial Redis connection failed, starting degraded")
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	cs.logger.Info().Str("address", cfg.Address).Msg("Redis connected")
	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

// Close releases the Redis client.
func (cs *CacheService) Close() error {
	return cs.client.Close()
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.logger.Warn().Int("failures", cs.failureCount).Msg("Redis marked unhealthy")
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info().Msg("Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth pings in the background once the recheck interval has passed.
func (cs *CacheService) checkHealth() {
	cs.mu.RLock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	cs.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a raw value. A redis.Nil error is a cache miss, not a failure.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return "", fmt.Errorf("redis unavailable")
	}

	result, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err
		}
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a value with TTL, JSON-encoding anything that is not already a
// string or byte slice.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// StoreLatestDecision caches the most recent decision for a symbol.
func (cs *CacheService) StoreLatestDecision(ctx context.Context, symbol string, decision interface{}) error {
	return cs.Set(ctx, fmt.Sprintf(KeyLatestDecision, symbol), decision, DecisionTTL)
}

// GetLatestDecision retrieves the cached decision for a symbol into out.
func (cs *CacheService) GetLatestDecision(ctx context.Context, symbol string, out interface{}) error {
	raw, err := cs.Get(ctx, fmt.Sprintf(KeyLatestDecision, symbol))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// StoreStatus caches the aggregate status snapshot.
func (cs *CacheService) StoreStatus(ctx context.Context, status interface{}) error {
	return cs.Set(ctx, KeyStatus, status, StatusTTL)
}

// StoreRiskState caches the risk governor's current state.
func (cs *CacheService) StoreRiskState(ctx context.Context, state interface{}) error {
	return cs.Set(ctx, KeyRiskState, state, StatusTTL)
}
