package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names an optional YAML file applied before the environment.
const ConfigFileEnv = "PRICEFEED_CONFIG"

type Config struct {
	HTTPPort int    `yaml:"http_port"`
	LogLevel string `yaml:"log_level"`
	APIKey   string `yaml:"api_key"`

	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	RedisEnabled bool   `yaml:"redis_enabled"`

	TelegramBotToken string `yaml:"telegram_bot_token"`

	BinanceBaseURL       string  `yaml:"binance_base_url"`
	QuoteSuffix          string  `yaml:"quote_suffix"`
	MaxTickers           int     `yaml:"max_tickers"`
	FetchTimeoutSecs     int     `yaml:"fetch_timeout_secs"`
	AggregateTimeoutSecs int     `yaml:"aggregate_timeout_secs"`
	PriceCacheTTLMs      int     `yaml:"price_cache_ttl_ms"`
	RateLimitPerMin      int     `yaml:"rate_limit_per_min"`
	RateLimitBackoffMs   int     `yaml:"rate_limit_backoff_ms"`
	GoldPriceUSD         float64 `yaml:"gold_price_usd"`

	PollSecs        int `yaml:"poll_secs"`
	WriterQueueSize int `yaml:"writer_queue_size"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:             8080,
		LogLevel:             "info",
		RedisURL:             "localhost:6379",
		RedisEnabled:         true,
		BinanceBaseURL:       "https://api.binance.com",
		QuoteSuffix:          "USDT",
		MaxTickers:           200,
		FetchTimeoutSecs:     8,
		AggregateTimeoutSecs: 15,
		PriceCacheTTLMs:      5000,
		RateLimitPerMin:      1000,
		RateLimitBackoffMs:   1000,
		GoldPriceUSD:         2050,
		PollSecs:             10,
		WriterQueueSize:      64,
	}
}

// Load builds the config from defaults, the optional YAML file and the
// environment, in that order. Invalid values keep the previous value.
func Load() *Config {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			slog.Warn("ignoring config file", slog.String("path", path), slog.Any("err", err))
		}
		cfg.resetInvalid(defaults())
	}

	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("API_KEY", &cfg.APIKey)
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("REDIS_URL", &cfg.RedisURL)
	envBool("REDIS_ENABLED", &cfg.RedisEnabled)
	envString("TELEGRAM_BOT_TOKEN", &cfg.TelegramBotToken)
	envString("BINANCE_BASE_URL", &cfg.BinanceBaseURL)
	envString("QUOTE_SUFFIX", &cfg.QuoteSuffix)

	envPositiveInt("HTTP_PORT", &cfg.HTTPPort)
	envPositiveInt("MAX_TICKERS", &cfg.MaxTickers)
	envPositiveInt("FETCH_TIMEOUT_SECS", &cfg.FetchTimeoutSecs)
	envPositiveInt("AGGREGATE_TIMEOUT_SECS", &cfg.AggregateTimeoutSecs)
	envPositiveInt("PRICE_CACHE_TTL_MS", &cfg.PriceCacheTTLMs)
	envPositiveInt("RATE_LIMIT_PER_MIN", &cfg.RateLimitPerMin)
	envPositiveInt("RATE_LIMIT_BACKOFF_MS", &cfg.RateLimitBackoffMs)
	envPositiveInt("POLL_SECS", &cfg.PollSecs)
	envPositiveInt("WRITER_QUEUE_SIZE", &cfg.WriterQueueSize)
	envPositiveFloat("GOLD_PRICE_USD", &cfg.GoldPriceUSD)

	cfg.QuoteSuffix = strings.ToUpper(cfg.QuoteSuffix)
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, price history disabled")
	}
	if cfg.TelegramBotToken == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN not set")
	}
	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// resetInvalid puts non-positive numeric values from the config file back to
// their defaults.
func (c *Config) resetInvalid(def *Config) {
	ints := []struct {
		key      string
		val, def *int
	}{
		{"http_port", &c.HTTPPort, &def.HTTPPort},
		{"max_tickers", &c.MaxTickers, &def.MaxTickers},
		{"fetch_timeout_secs", &c.FetchTimeoutSecs, &def.FetchTimeoutSecs},
		{"aggregate_timeout_secs", &c.AggregateTimeoutSecs, &def.AggregateTimeoutSecs},
		{"price_cache_ttl_ms", &c.PriceCacheTTLMs, &def.PriceCacheTTLMs},
		{"rate_limit_per_min", &c.RateLimitPerMin, &def.RateLimitPerMin},
		{"rate_limit_backoff_ms", &c.RateLimitBackoffMs, &def.RateLimitBackoffMs},
		{"poll_secs", &c.PollSecs, &def.PollSecs},
		{"writer_queue_size", &c.WriterQueueSize, &def.WriterQueueSize},
	}
	for _, f := range ints {
		if *f.val <= 0 {
			slog.Warn("invalid config value, using default",
				slog.String("key", f.key), slog.Int("value", *f.val), slog.Int("default", *f.def))
			*f.val = *f.def
		}
	}
	if c.GoldPriceUSD <= 0 {
		slog.Warn("invalid config value, using default",
			slog.String("key", "gold_price_usd"), slog.Float64("value", c.GoldPriceUSD))
		c.GoldPriceUSD = def.GoldPriceUSD
	}
	if strings.TrimSpace(c.BinanceBaseURL) == "" {
		c.BinanceBaseURL = def.BinanceBaseURL
	}
	if strings.TrimSpace(c.QuoteSuffix) == "" {
		c.QuoteSuffix = def.QuoteSuffix
	}
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

func (c *Config) AggregateTimeout() time.Duration {
	return time.Duration(c.AggregateTimeoutSecs) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.PriceCacheTTLMs) * time.Millisecond
}

func (c *Config) RateLimitBackoff() time.Duration {
	return time.Duration(c.RateLimitBackoffMs) * time.Millisecond
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean, keeping default", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = b
}

func envPositiveInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer, keeping default", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = n
}

func envPositiveFloat(key string, dst *float64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("invalid number, keeping default", slog.String("key", key), slog.String("value", v))
		return
	}
	*dst = f
}
