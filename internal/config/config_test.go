package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidateForMonitorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("monitor-mode defaults should validate, got: %v", err)
	}
}

func TestDefaultsRequireCredentialsForTrading(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("trade mode without credentials must not validate")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("error should name the missing api_key, got: %v", err)
	}

	cfg.Exchange.ApiKey = "key"
	cfg.Exchange.ApiSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("credentialed trade config should validate, got: %v", err)
	}
}

func TestValidateEncryptedSecretNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Exchange.ApiKey = "key"
	cfg.Exchange.EncryptedSecretPath = "/etc/algobot/secret.json"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "secret_password") {
		t.Fatalf("want secret_password error, got: %v", err)
	}

	cfg.Exchange.SecretPassword = "pw"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("keyfile config should validate, got: %v", err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "warp"
	cfg.LogLevel = "loud"
	cfg.Book.Depth = 42
	cfg.Book.Store = "btree"
	cfg.Indicator.AtrPeriod = 0
	cfg.Strategy.OrderSize = 0
	cfg.Executor.DedupTTL.Duration = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("broken config validated")
	}
	for _, want := range []string{
		"unknown mode", "unknown log_level",
		"depth must be one of", "store must be skiplist or heap",
		"atr_period", "order_size", "dedup_ttl",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateCandleLimitCoversAtrPeriod(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Indicator.AtrPeriod = 14
	cfg.Strategy.CandleLimit = 10

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "candle_limit") {
		t.Fatalf("want candle_limit error, got: %v", err)
	}
}

func TestValidateMarketMakerNeedsSpread(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Strategy.Name = "market_maker"
	cfg.Strategy.Spread = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "spread") {
		t.Fatalf("want spread error, got: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "monitor"
log_level = "debug"

[instrument]
symbol = "ETHUSDT"

[strategy]
cycle_interval = "2s"
order_size = 0.01
max_position_size = 0.05

[book]
depth = 200
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Instrument.Symbol != "ETHUSDT" {
		t.Errorf("symbol got %q", cfg.Instrument.Symbol)
	}
	if cfg.Strategy.CycleInterval.Duration != 2*time.Second {
		t.Errorf("cycle_interval got %v", cfg.Strategy.CycleInterval.Duration)
	}
	if cfg.Book.Depth != 200 {
		t.Errorf("depth got %d", cfg.Book.Depth)
	}
	// Untouched sections keep their defaults.
	if cfg.Exchange.RestURL != "https://api.bybit.com" {
		t.Errorf("rest_url default lost: %q", cfg.Exchange.RestURL)
	}
	if cfg.Redis.PoolSize != 20 {
		t.Errorf("redis pool_size default lost: %d", cfg.Redis.PoolSize)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate, got: %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"monitor\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ALGOBOT_EXCHANGE_API_KEY", "env-key")
	t.Setenv("ALGOBOT_INSTRUMENT_LEVERAGE", "7")
	t.Setenv("ALGOBOT_STRATEGY_CYCLE_INTERVAL", "250ms")
	t.Setenv("ALGOBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ALGOBOT_POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Exchange.ApiKey != "env-key" {
		t.Errorf("api_key got %q", cfg.Exchange.ApiKey)
	}
	if cfg.Instrument.Leverage != 7 {
		t.Errorf("leverage got %d", cfg.Instrument.Leverage)
	}
	if cfg.Strategy.CycleInterval.Duration != 250*time.Millisecond {
		t.Errorf("cycle_interval got %v", cfg.Strategy.CycleInterval.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("cors origins got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Postgres.RunMigrations {
		t.Error("run_migrations override ignored")
	}
}

func TestLoadIgnoresMalformedEnvNumbers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"monitor\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ALGOBOT_INSTRUMENT_LEVERAGE", "lots")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Instrument.Leverage != 1 {
		t.Errorf("malformed env override changed leverage: %d", cfg.Instrument.Leverage)
	}
}

func TestRedactedConfigHidesSecretsOnly(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.ApiKey = "key"
	cfg.Exchange.ApiSecret = "hunter2"
	cfg.Postgres.Password = "pgpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.AuthToken = "bearer-token"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"exchange.api_secret":        red.Exchange.ApiSecret,
		"postgres.password":          red.Postgres.Password,
		"redis.password":             red.Redis.Password,
		"s3.secret_key":              red.S3.SecretKey,
		"server.auth_token":          red.Server.AuthToken,
		"notify.discord_webhook_url": red.Notify.DiscordWebhookURL,
	} {
		if got != "***" {
			t.Errorf("%s not redacted: %q", name, got)
		}
	}

	if red.Exchange.ApiKey != "key" {
		t.Errorf("api_key should survive redaction, got %q", red.Exchange.ApiKey)
	}
	if red.Instrument.Symbol != cfg.Instrument.Symbol {
		t.Error("non-secret fields must be copied verbatim")
	}
	if cfg.Exchange.ApiSecret != "hunter2" {
		t.Error("redaction mutated the original")
	}

	// The redacted copy's slices are independent.
	red.Server.CORSOrigins[0] = "mutated"
	if cfg.Server.CORSOrigins[0] == "mutated" {
		t.Error("redacted copy shares the CORS origins slice")
	}
}
