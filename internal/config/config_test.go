package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	ConfigFileEnv, "HTTP_PORT", "LOG_LEVEL", "API_KEY", "DATABASE_URL", "REDIS_URL",
	"REDIS_ENABLED", "TELEGRAM_BOT_TOKEN", "BINANCE_BASE_URL", "QUOTE_SUFFIX",
	"MAX_TICKERS", "FETCH_TIMEOUT_SECS", "AGGREGATE_TIMEOUT_SECS", "PRICE_CACHE_TTL_MS",
	"RATE_LIMIT_PER_MIN", "RATE_LIMIT_BACKOFF_MS", "GOLD_PRICE_USD", "POLL_SECS",
	"WRITER_QUEUE_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.HTTPPort != 8080 || cfg.RedisURL != "localhost:6379" || !cfg.RedisEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BinanceBaseURL != "https://api.binance.com" || cfg.QuoteSuffix != "USDT" || cfg.MaxTickers != 200 {
		t.Fatalf("unexpected binance defaults: %+v", cfg)
	}
	if cfg.FetchTimeout() != 8*time.Second || cfg.AggregateTimeout() != 15*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.FetchTimeout(), cfg.AggregateTimeout())
	}
	if cfg.CacheTTL() != 5*time.Second || cfg.RateLimitBackoff() != time.Second {
		t.Fatalf("unexpected cache settings: %v %v", cfg.CacheTTL(), cfg.RateLimitBackoff())
	}
	if cfg.RateLimitPerMin != 1000 || cfg.GoldPriceUSD != 2050 || cfg.PollSecs != 10 || cfg.WriterQueueSize != 64 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("QUOTE_SUFFIX", "busd")
	t.Setenv("PRICE_CACHE_TTL_MS", "250")
	t.Setenv("GOLD_PRICE_USD", "2100.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.TelegramBotToken != "token" || cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RedisEnabled {
		t.Fatal("expected redis disabled")
	}
	if cfg.QuoteSuffix != "BUSD" {
		t.Fatalf("expected upper-cased suffix, got %s", cfg.QuoteSuffix)
	}
	if cfg.CacheTTL() != 250*time.Millisecond || cfg.GoldPriceUSD != 2100.5 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.SlogLevel())
	}
}

func TestLoadInvalidValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_SECS", "bad")
	t.Setenv("MAX_TICKERS", "-1")
	t.Setenv("GOLD_PRICE_USD", "0")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg := Load()
	if cfg.PollSecs != 10 || cfg.MaxTickers != 200 || cfg.GoldPriceUSD != 2050 || !cfg.RedisEnabled {
		t.Fatalf("invalid values should fall back to defaults, got %+v", cfg)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "pricefeed.yaml")
	content := "http_port: 9090\nmax_tickers: 50\nbinance_base_url: ${TEST_BINANCE_HOST}\npoll_secs: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_BINANCE_HOST", "http://binance.local")
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("POLL_SECS", "5")

	cfg := Load()
	if cfg.HTTPPort != 9090 || cfg.MaxTickers != 50 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.BinanceBaseURL != "http://binance.local" {
		t.Fatalf("expected expanded base url, got %s", cfg.BinanceBaseURL)
	}
	if cfg.PollSecs != 5 {
		t.Fatalf("env should override file, got %d", cfg.PollSecs)
	}
	if cfg.FetchTimeoutSecs != 8 {
		t.Fatalf("unset file keys keep defaults, got %d", cfg.FetchTimeoutSecs)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected defaults when file is missing, got %+v", cfg)
	}
}

func TestLoadYAMLInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pricefeed.yaml")
	content := "http_port: -5\nrate_limit_per_min: -1\npoll_secs: 0\ngold_price_usd: -3\nquote_suffix: \"\"\nmax_tickers: 25\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)

	cfg := Load()
	if cfg.HTTPPort != 8080 || cfg.RateLimitPerMin != 1000 || cfg.PollSecs != 10 {
		t.Fatalf("invalid file values should fall back to defaults, got %+v", cfg)
	}
	if cfg.GoldPriceUSD != 2050 || cfg.QuoteSuffix != "USDT" {
		t.Fatalf("invalid file values should fall back to defaults, got %+v", cfg)
	}
	if cfg.MaxTickers != 25 {
		t.Fatalf("valid file values must be kept, got %d", cfg.MaxTickers)
	}
}
