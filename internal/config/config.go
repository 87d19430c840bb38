// Package config defines the top-level configuration for the trading bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ALGOBOT_* environment variables.
type Config struct {
	Exchange   ExchangeConfig   `toml:"exchange"`
	Instrument InstrumentConfig `toml:"instrument"`
	Book       BookConfig       `toml:"book"`
	Indicator  IndicatorConfig  `toml:"indicator"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Executor   ExecutorConfig   `toml:"executor"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ExchangeConfig holds venue endpoints and API credentials. The secret may be
// given in plaintext or as an encrypted keyfile plus password.
type ExchangeConfig struct {
	RestURL             string `toml:"rest_url"`
	PublicWsURL         string `toml:"public_ws_url"`
	PrivateWsURL        string `toml:"private_ws_url"`
	Category            string `toml:"category"`
	ApiKey              string `toml:"api_key"`
	ApiSecret           string `toml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
	RecvWindowMs        int64  `toml:"recv_window_ms"`
}

// InstrumentConfig selects the single contract the bot trades.
type InstrumentConfig struct {
	Symbol   string `toml:"symbol"`
	Leverage int    `toml:"leverage"`
}

// BookConfig sizes the local orderbook mirror.
type BookConfig struct {
	// Depth is the subscribed orderbook depth. The venue serves fixed
	// depths only.
	Depth int `toml:"depth"`
	// Store selects the price-level store implementation: "skiplist" or
	// "heap".
	Store string `toml:"store"`
}

// IndicatorConfig holds the trend indicator parameters.
type IndicatorConfig struct {
	AtrPeriod  int     `toml:"atr_period"`
	Multiplier float64 `toml:"multiplier"`
}

// StrategyConfig holds decision-engine parameters.
type StrategyConfig struct {
	Name     string `toml:"name"`
	Interval string `toml:"interval"`
	// CandleLimit is the number of bars backfilled at startup and kept in
	// the indicator window.
	CandleLimit int `toml:"candle_limit"`
	// CycleInterval is the decision-cycle tick.
	CycleInterval        duration `toml:"cycle_interval"`
	OrderSize            float64  `toml:"order_size"`
	MaxPositionSize      float64  `toml:"max_position_size"`
	MaxOpenOrdersPerSide int      `toml:"max_open_orders_per_side"`
	RepriceThresholdPct  float64  `toml:"reprice_threshold_pct"`
	PositionBuffer       float64  `toml:"position_buffer"`
	// Spread is the market maker's quote distance from the touch, as a
	// fraction of price. Ignored by the trend engine.
	Spread float64 `toml:"spread"`
}

// ExecutorConfig holds intent-execution parameters.
type ExecutorConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	RetryDelay  duration `toml:"retry_delay"`
	SettleDelay duration `toml:"settle_delay"`
	DedupTTL    duration `toml:"dedup_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds journal archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
	// AuthToken protects the mutating trading-control endpoints. Empty
	// leaves them open; do that only on a private network.
	AuthToken   string   `toml:"auth_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			RestURL:      "https://api.bybit.com",
			PublicWsURL:  "wss://stream.bybit.com/v5/public/linear",
			PrivateWsURL: "wss://stream.bybit.com/v5/private",
			Category:     "linear",
			RecvWindowMs: 5000,
		},
		Instrument: InstrumentConfig{
			Symbol:   "BTCUSDT",
			Leverage: 1,
		},
		Book: BookConfig{
			Depth: 50,
			Store: "skiplist",
		},
		Indicator: IndicatorConfig{
			AtrPeriod:  10,
			Multiplier: 3.0,
		},
		Strategy: StrategyConfig{
			Name:                 "supertrend",
			Interval:             "1",
			CandleLimit:          200,
			CycleInterval:        duration{1 * time.Second},
			OrderSize:            0.001,
			MaxPositionSize:      0.005,
			MaxOpenOrdersPerSide: 1,
			RepriceThresholdPct:  0.0005,
			PositionBuffer:       0.0005,
			Spread:               0.001,
		},
		Executor: ExecutorConfig{
			MaxAttempts: 3,
			RetryDelay:  duration{500 * time.Millisecond},
			SettleDelay: duration{300 * time.Millisecond},
			DedupTTL:    duration{2 * time.Minute},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "algobot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "algobot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{1 * time.Hour},
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"signal", "fill", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validCategories enumerates the accepted contract categories.
var validCategories = map[string]bool{
	"linear":  true,
	"inverse": true,
}

// validBookStores enumerates the accepted price-level store implementations.
var validBookStores = map[string]bool{
	"skiplist": true,
	"heap":     true,
}

// validBookDepths enumerates the orderbook depths the venue serves.
var validBookDepths = map[int]bool{
	1:   true,
	50:  true,
	200: true,
	500: true,
}

// validStrategies enumerates the built-in decision engines.
var validStrategies = map[string]bool{
	"supertrend":   true,
	"market_maker": true,
}

// validIntervals enumerates the kline interval strings the venue accepts.
var validIntervals = map[string]bool{
	"1": true, "3": true, "5": true, "15": true, "30": true,
	"60": true, "120": true, "240": true, "360": true, "720": true,
	"D": true, "W": true, "M": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange endpoints
	if c.Exchange.RestURL == "" {
		errs = append(errs, "exchange: rest_url must not be empty")
	}
	if c.Exchange.PublicWsURL == "" {
		errs = append(errs, "exchange: public_ws_url must not be empty")
	}
	if !validCategories[c.Exchange.Category] {
		errs = append(errs, fmt.Sprintf("exchange: category must be linear or inverse, got %q", c.Exchange.Category))
	}
	if c.Exchange.RecvWindowMs <= 0 {
		errs = append(errs, "exchange: recv_window_ms must be > 0")
	}

	// Exchange credentials, required for trading modes.
	needsKeys := c.Mode == "trade" || c.Mode == "full"
	if needsKeys {
		if c.Exchange.ApiKey == "" {
			errs = append(errs, "exchange: api_key must be set for mode "+c.Mode)
		}
		if c.Exchange.ApiSecret == "" && c.Exchange.EncryptedSecretPath == "" {
			errs = append(errs, "exchange: either api_secret or encrypted_secret_path must be set for mode "+c.Mode)
		}
		if c.Exchange.EncryptedSecretPath != "" && c.Exchange.SecretPassword == "" {
			errs = append(errs, "exchange: secret_password is required when encrypted_secret_path is set")
		}
		if c.Exchange.PrivateWsURL == "" {
			errs = append(errs, "exchange: private_ws_url must not be empty for mode "+c.Mode)
		}
	}

	// Instrument
	if c.Instrument.Symbol == "" {
		errs = append(errs, "instrument: symbol must not be empty")
	}
	if c.Instrument.Leverage < 1 || c.Instrument.Leverage > 100 {
		errs = append(errs, fmt.Sprintf("instrument: leverage must be 1-100, got %d", c.Instrument.Leverage))
	}

	// Book
	if !validBookDepths[c.Book.Depth] {
		errs = append(errs, fmt.Sprintf("book: depth must be one of 1, 50, 200, 500, got %d", c.Book.Depth))
	}
	if !validBookStores[c.Book.Store] {
		errs = append(errs, fmt.Sprintf("book: store must be skiplist or heap, got %q", c.Book.Store))
	}

	// Indicator
	if c.Indicator.AtrPeriod < 1 {
		errs = append(errs, "indicator: atr_period must be >= 1")
	}
	if c.Indicator.Multiplier <= 0 {
		errs = append(errs, "indicator: multiplier must be > 0")
	}

	// Strategy
	if !validStrategies[c.Strategy.Name] {
		errs = append(errs, fmt.Sprintf("strategy: unknown name %q (valid: supertrend, market_maker)", c.Strategy.Name))
	}
	if c.Strategy.Interval != "" && !validIntervals[c.Strategy.Interval] {
		errs = append(errs, fmt.Sprintf("strategy: unknown interval %q", c.Strategy.Interval))
	}
	if c.Strategy.Name == "supertrend" {
		if c.Strategy.Interval == "" {
			errs = append(errs, "strategy: interval must be set for the supertrend engine")
		}
		if c.Strategy.CandleLimit < c.Indicator.AtrPeriod+1 {
			errs = append(errs, fmt.Sprintf("strategy: candle_limit %d is below atr_period+1 (%d); the indicator could never become ready",
				c.Strategy.CandleLimit, c.Indicator.AtrPeriod+1))
		}
	}
	if c.Strategy.Name == "market_maker" && c.Strategy.Spread <= 0 {
		errs = append(errs, "strategy: spread must be > 0 for the market_maker engine")
	}
	if c.Strategy.CycleInterval.Duration < 100*time.Millisecond {
		errs = append(errs, "strategy: cycle_interval must be >= 100ms")
	}
	if c.Strategy.OrderSize <= 0 {
		errs = append(errs, "strategy: order_size must be > 0")
	}
	if c.Strategy.MaxPositionSize < c.Strategy.OrderSize {
		errs = append(errs, "strategy: max_position_size must be >= order_size")
	}
	if c.Strategy.MaxOpenOrdersPerSide < 1 {
		errs = append(errs, "strategy: max_open_orders_per_side must be >= 1")
	}
	if c.Strategy.RepriceThresholdPct < 0 {
		errs = append(errs, "strategy: reprice_threshold_pct must be >= 0")
	}
	if c.Strategy.PositionBuffer < 0 {
		errs = append(errs, "strategy: position_buffer must be >= 0")
	}

	// Executor
	if c.Executor.MaxAttempts < 1 {
		errs = append(errs, "executor: max_attempts must be >= 1")
	}
	if c.Executor.RetryDelay.Duration < 0 {
		errs = append(errs, "executor: retry_delay must be >= 0")
	}
	if c.Executor.SettleDelay.Duration < 0 {
		errs = append(errs, "executor: settle_delay must be >= 0")
	}
	if c.Executor.DedupTTL.Duration <= 0 {
		errs = append(errs, "executor: dedup_ttl must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.Interval.Duration < time.Minute {
			errs = append(errs, "archive: interval must be >= 1m")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
