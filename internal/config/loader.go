package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ALGOBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ALGOBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.RestURL, "ALGOBOT_EXCHANGE_REST_URL")
	setStr(&cfg.Exchange.PublicWsURL, "ALGOBOT_EXCHANGE_PUBLIC_WS_URL")
	setStr(&cfg.Exchange.PrivateWsURL, "ALGOBOT_EXCHANGE_PRIVATE_WS_URL")
	setStr(&cfg.Exchange.Category, "ALGOBOT_EXCHANGE_CATEGORY")
	setStr(&cfg.Exchange.ApiKey, "ALGOBOT_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.ApiSecret, "ALGOBOT_EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.EncryptedSecretPath, "ALGOBOT_EXCHANGE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Exchange.SecretPassword, "ALGOBOT_EXCHANGE_SECRET_PASSWORD")
	setInt64(&cfg.Exchange.RecvWindowMs, "ALGOBOT_EXCHANGE_RECV_WINDOW_MS")

	// ── Instrument ──
	setStr(&cfg.Instrument.Symbol, "ALGOBOT_INSTRUMENT_SYMBOL")
	setInt(&cfg.Instrument.Leverage, "ALGOBOT_INSTRUMENT_LEVERAGE")

	// ── Book ──
	setInt(&cfg.Book.Depth, "ALGOBOT_BOOK_DEPTH")
	setStr(&cfg.Book.Store, "ALGOBOT_BOOK_STORE")

	// ── Indicator ──
	setInt(&cfg.Indicator.AtrPeriod, "ALGOBOT_INDICATOR_ATR_PERIOD")
	setFloat64(&cfg.Indicator.Multiplier, "ALGOBOT_INDICATOR_MULTIPLIER")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "ALGOBOT_STRATEGY_NAME")
	setStr(&cfg.Strategy.Interval, "ALGOBOT_STRATEGY_INTERVAL")
	setInt(&cfg.Strategy.CandleLimit, "ALGOBOT_STRATEGY_CANDLE_LIMIT")
	setDuration(&cfg.Strategy.CycleInterval, "ALGOBOT_STRATEGY_CYCLE_INTERVAL")
	setFloat64(&cfg.Strategy.OrderSize, "ALGOBOT_STRATEGY_ORDER_SIZE")
	setFloat64(&cfg.Strategy.MaxPositionSize, "ALGOBOT_STRATEGY_MAX_POSITION_SIZE")
	setInt(&cfg.Strategy.MaxOpenOrdersPerSide, "ALGOBOT_STRATEGY_MAX_OPEN_ORDERS_PER_SIDE")
	setFloat64(&cfg.Strategy.RepriceThresholdPct, "ALGOBOT_STRATEGY_REPRICE_THRESHOLD_PCT")
	setFloat64(&cfg.Strategy.PositionBuffer, "ALGOBOT_STRATEGY_POSITION_BUFFER")
	setFloat64(&cfg.Strategy.Spread, "ALGOBOT_STRATEGY_SPREAD")

	// ── Executor ──
	setInt(&cfg.Executor.MaxAttempts, "ALGOBOT_EXECUTOR_MAX_ATTEMPTS")
	setDuration(&cfg.Executor.RetryDelay, "ALGOBOT_EXECUTOR_RETRY_DELAY")
	setDuration(&cfg.Executor.SettleDelay, "ALGOBOT_EXECUTOR_SETTLE_DELAY")
	setDuration(&cfg.Executor.DedupTTL, "ALGOBOT_EXECUTOR_DEDUP_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ALGOBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ALGOBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ALGOBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ALGOBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ALGOBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ALGOBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ALGOBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ALGOBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ALGOBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ALGOBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ALGOBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ALGOBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ALGOBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ALGOBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ALGOBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ALGOBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ALGOBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ALGOBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ALGOBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ALGOBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ALGOBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ALGOBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ALGOBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ALGOBOT_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "ALGOBOT_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "ALGOBOT_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ALGOBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ALGOBOT_SERVER_PORT")
	setStr(&cfg.Server.AuthToken, "ALGOBOT_SERVER_AUTH_TOKEN")
	setStringSlice(&cfg.Server.CORSOrigins, "ALGOBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ALGOBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ALGOBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ALGOBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ALGOBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ALGOBOT_MODE")
	setStr(&cfg.LogLevel, "ALGOBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
