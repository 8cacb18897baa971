package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	TradingConfig  TradingConfig  `json:"trading"`
	FusionConfig   FusionConfig   `json:"fusion"`
	RiskConfig     RiskConfig     `json:"risk"`
	SizingConfig   SizingConfig   `json:"sizing"`
	SymbolsConfig  []SymbolConfig `json:"symbols"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	ServerConfig   ServerConfig   `json:"server"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// TradingConfig holds base-period and orchestration settings shared by all symbols.
type TradingConfig struct {
	BasePeriodMinutes  int     `json:"base_period_minutes"`  // base bar period fed by the data collaborator
	TimeframeMinutes   []int   `json:"timeframe_minutes"`    // higher periods to aggregate, e.g. [60, 1440]
	LookbackBars       int     `json:"lookback_bars"`        // ring buffer capacity per timeframe
	BreakerCooldownSec int     `json:"breaker_cooldown_sec"` // global circuit breaker cooldown
	BreakerPollMs      int     `json:"breaker_poll_ms"`      // poll interval while breaker is engaged
	ExposureLimitPct   float64 `json:"exposure_limit_pct"`   // aggregate exposure cap across symbols
}

// FusionConfig holds signal fusion thresholds and confidence weights.
type FusionConfig struct {
	DailyThreshold  float64 `json:"daily_threshold"`  // min |p_long - p_short| to call a daily trend
	HourlyThreshold float64 `json:"hourly_threshold"` // stricter entry threshold
	MinuteThreshold float64 `json:"minute_threshold"`
	DailyWeight     float64 `json:"daily_weight"`
	HourlyWeight    float64 `json:"hourly_weight"`
	MinuteWeight    float64 `json:"minute_weight"`
}

// RiskConfig holds session and drawdown limits.
type RiskConfig struct {
	DailyLossLimit float64 `json:"daily_loss_limit"` // e.g. -0.05 = stop at -5% on the day
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // peak-to-trough halt threshold, in percent
	InitialEquity  float64 `json:"initial_equity"`   // session starting balance
}

// SizingConfig holds Kelly position sizing parameters.
type SizingConfig struct {
	KellyFraction      float64 `json:"kelly_fraction"`     // fraction of full Kelly to deploy
	MaxRiskPerTrade    float64 `json:"max_risk_per_trade"` // cap on equity fraction risked per trade
	MaxLeverage        float64 `json:"max_leverage"`
	StopLossMultiplier float64 `json:"stop_loss_multiplier"` // ATR multiples to the stop
	PayoffRatio        float64 `json:"payoff_ratio"`         // assumed average win over average loss
}

// SymbolConfig holds broker constraints for one tradable symbol.
type SymbolConfig struct {
	Symbol       string  `json:"symbol"`
	ContractSize float64 `json:"contract_size"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
	VolumeStep   float64 `json:"volume_step"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for decision/status caching.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// ServerConfig holds HTTP status API configuration.
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output instead of console
}

func Load() (*Config, error) {
	// Base config from file; environment overrides take precedence.
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with the recognized defaults.
func applyDefaults(cfg *Config) {
	if cfg.TradingConfig.BasePeriodMinutes == 0 {
		cfg.TradingConfig.BasePeriodMinutes = 5
	}
	if len(cfg.TradingConfig.TimeframeMinutes) == 0 {
		cfg.TradingConfig.TimeframeMinutes = []int{60, 1440}
	}
	if cfg.TradingConfig.LookbackBars == 0 {
		cfg.TradingConfig.LookbackBars = 500
	}
	if cfg.TradingConfig.BreakerCooldownSec == 0 {
		cfg.TradingConfig.BreakerCooldownSec = 300
	}
	if cfg.TradingConfig.BreakerPollMs == 0 {
		cfg.TradingConfig.BreakerPollMs = 250
	}
	if cfg.TradingConfig.ExposureLimitPct == 0 {
		cfg.TradingConfig.ExposureLimitPct = 1.0
	}

	if cfg.FusionConfig.DailyThreshold == 0 {
		cfg.FusionConfig.DailyThreshold = 0.55
	}
	if cfg.FusionConfig.HourlyThreshold == 0 {
		cfg.FusionConfig.HourlyThreshold = 0.65
	}
	if cfg.FusionConfig.MinuteThreshold == 0 {
		cfg.FusionConfig.MinuteThreshold = 0.55
	}
	if cfg.FusionConfig.DailyWeight == 0 && cfg.FusionConfig.HourlyWeight == 0 && cfg.FusionConfig.MinuteWeight == 0 {
		cfg.FusionConfig.DailyWeight = 0.50
		cfg.FusionConfig.HourlyWeight = 0.35
		cfg.FusionConfig.MinuteWeight = 0.15
	}

	if cfg.RiskConfig.DailyLossLimit == 0 {
		cfg.RiskConfig.DailyLossLimit = -0.05
	}
	if cfg.RiskConfig.MaxDrawdownPct == 0 {
		cfg.RiskConfig.MaxDrawdownPct = 10.0
	}
	if cfg.RiskConfig.InitialEquity == 0 {
		cfg.RiskConfig.InitialEquity = 100000
	}

	if cfg.SizingConfig.KellyFraction == 0 {
		cfg.SizingConfig.KellyFraction = 0.25
	}
	if cfg.SizingConfig.MaxRiskPerTrade == 0 {
		cfg.SizingConfig.MaxRiskPerTrade = 0.02
	}
	if cfg.SizingConfig.MaxLeverage == 0 {
		cfg.SizingConfig.MaxLeverage = 3.0
	}
	if cfg.SizingConfig.StopLossMultiplier == 0 {
		cfg.SizingConfig.StopLossMultiplier = 2.0
	}
	if cfg.SizingConfig.PayoffRatio == 0 {
		cfg.SizingConfig.PayoffRatio = 2.0
	}
}

func applyEnvOverrides(cfg *Config) {
	// Trading config
	cfg.TradingConfig.BasePeriodMinutes = getEnvIntOrDefault("TRADING_BASE_PERIOD_MIN", cfg.TradingConfig.BasePeriodMinutes)
	cfg.TradingConfig.LookbackBars = getEnvIntOrDefault("TRADING_LOOKBACK_BARS", cfg.TradingConfig.LookbackBars)
	cfg.TradingConfig.BreakerCooldownSec = getEnvIntOrDefault("TRADING_BREAKER_COOLDOWN_SEC", cfg.TradingConfig.BreakerCooldownSec)
	cfg.TradingConfig.ExposureLimitPct = getEnvFloatOrDefault("TRADING_EXPOSURE_LIMIT_PCT", cfg.TradingConfig.ExposureLimitPct)

	// Risk config
	cfg.RiskConfig.DailyLossLimit = getEnvFloatOrDefault("RISK_DAILY_LOSS_LIMIT", cfg.RiskConfig.DailyLossLimit)
	cfg.RiskConfig.MaxDrawdownPct = getEnvFloatOrDefault("RISK_MAX_DRAWDOWN_PCT", cfg.RiskConfig.MaxDrawdownPct)
	cfg.RiskConfig.InitialEquity = getEnvFloatOrDefault("RISK_INITIAL_EQUITY", cfg.RiskConfig.InitialEquity)

	// Sizing config
	cfg.SizingConfig.KellyFraction = getEnvFloatOrDefault("SIZING_KELLY_FRACTION", cfg.SizingConfig.KellyFraction)
	cfg.SizingConfig.MaxRiskPerTrade = getEnvFloatOrDefault("SIZING_MAX_RISK_PER_TRADE", cfg.SizingConfig.MaxRiskPerTrade)
	cfg.SizingConfig.MaxLeverage = getEnvFloatOrDefault("SIZING_MAX_LEVERAGE", cfg.SizingConfig.MaxLeverage)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", boolString(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	// Server config
	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", boolString(cfg.ServerConfig.Enabled)) == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", defaultString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultString(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"
}

// Validate rejects configurations that would misbehave at runtime rather than
// letting components discover them mid-session.
func (c *Config) Validate() error {
	if c.TradingConfig.BasePeriodMinutes <= 0 {
		return fmt.Errorf("invalid config: base_period_minutes must be positive, got %d", c.TradingConfig.BasePeriodMinutes)
	}
	for _, tf := range c.TradingConfig.TimeframeMinutes {
		if tf < c.TradingConfig.BasePeriodMinutes || tf%c.TradingConfig.BasePeriodMinutes != 0 {
			return fmt.Errorf("invalid config: timeframe %dm is not a positive multiple of base period %dm",
				tf, c.TradingConfig.BasePeriodMinutes)
		}
	}
	if c.RiskConfig.DailyLossLimit >= 0 {
		return fmt.Errorf("invalid config: daily_loss_limit must be negative, got %.4f", c.RiskConfig.DailyLossLimit)
	}
	if c.RiskConfig.MaxDrawdownPct <= 0 {
		return fmt.Errorf("invalid config: max_drawdown_pct must be positive, got %.2f", c.RiskConfig.MaxDrawdownPct)
	}
	for _, s := range c.SymbolsConfig {
		if s.Symbol == "" {
			return fmt.Errorf("invalid config: symbol entry missing name")
		}
		if s.ContractSize <= 0 || s.VolumeStep <= 0 || s.VolumeMin < 0 {
			return fmt.Errorf("invalid config: symbol %s has non-positive contract_size or volume_step", s.Symbol)
		}
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func defaultInt(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}
