// Package config loads the platform's runtime configuration from the
// environment, following the teacher's env-var-with-typed-fallback style.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every option named in spec.md §6.
type Config struct {
	DataDir string
	LogLevel string
	Port    int

	// Screening band
	TickerPriceMin float64
	TickerPriceMax float64
	MinSessionVolume int64

	// Recommender rails
	RRThreshold       float64
	MinExpectedMove   float64
	PositionSizePercent    float64
	MaxPositionSizePercent float64

	// Trading window
	TradingStartTime string
	TradingEndTime   string
	MaxDailyTrades   int
	MaxDailyLossPercent float64

	// Mode selection
	PaperTrading                bool
	AutoTradingEnabled          bool
	InteractiveTradingEnabled   bool
	TradeConfirmationTimeoutSeconds int

	// Adaptive thresholds seed
	RSIOversold           float64
	RSIOverbought         float64
	VolumeSpikeMultiplier float64
	MinConfidenceScore    float64

	// Domain-stack wiring
	RedisURL       string
	MetricsAddr    string
	MarketDataWSURL string

	MarketTimezone   string
	MarketDataBaseURL string
	MarketDataAPIKey  string
	QuoteCacheTTLMs   int

	BrokerBaseURL string
	BrokerAPIKey  string
	BrokerAPISecret string

	NotifierWebhookURL string
	NotifierPollSeconds int

	SentimentFeedBaseURL string
	SentimentFeedAPIKey  string
}

// Load reads configuration from the environment, optionally seeded by a
// .env file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("./data"); err == nil {
			dataDir = "./data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir: dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),

		TickerPriceMin:   getEnvAsFloat("TICKER_PRICE_MIN", 0.75),
		TickerPriceMax:   getEnvAsFloat("TICKER_PRICE_MAX", 10.0),
		MinSessionVolume: getEnvAsInt64("MIN_SESSION_VOLUME", 100_000),

		RRThreshold:            getEnvAsFloat("RR_THRESHOLD", 2.0),
		MinExpectedMove:        getEnvAsFloat("MIN_EXPECTED_MOVE", 0.03),
		PositionSizePercent:    getEnvAsFloat("POSITION_SIZE_PERCENT", 0.05),
		MaxPositionSizePercent: getEnvAsFloat("MAX_POSITION_SIZE_PERCENT", 0.15),

		TradingStartTime:   getEnv("TRADING_START_TIME", "09:30"),
		TradingEndTime:     getEnv("TRADING_END_TIME", "16:00"),
		MaxDailyTrades:     getEnvAsInt("MAX_DAILY_TRADES", 20),
		MaxDailyLossPercent: getEnvAsFloat("MAX_DAILY_LOSS_PERCENT", 0.15),

		PaperTrading:                    getEnvAsBool("PAPER_TRADING", true),
		AutoTradingEnabled:              getEnvAsBool("AUTO_TRADING_ENABLED", false),
		InteractiveTradingEnabled:       getEnvAsBool("INTERACTIVE_TRADING_ENABLED", true),
		TradeConfirmationTimeoutSeconds: getEnvAsInt("TRADE_CONFIRMATION_TIMEOUT_SECONDS", 30),

		RSIOversold:           getEnvAsFloat("RSI_OVERSOLD", 30.0),
		RSIOverbought:         getEnvAsFloat("RSI_OVERBOUGHT", 70.0),
		VolumeSpikeMultiplier: getEnvAsFloat("VOLUME_SPIKE_MULTIPLIER", 1.2),
		MinConfidenceScore:    getEnvAsFloat("MIN_CONFIDENCE_SCORE", 7.0),

		RedisURL:        getEnv("REDIS_URL", ""),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
		MarketDataWSURL: getEnv("MARKET_DATA_WS_URL", ""),

		MarketTimezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://data.example.invalid"),
		MarketDataAPIKey:  getEnv("MARKET_DATA_API_KEY", ""),
		QuoteCacheTTLMs:   getEnvAsInt("QUOTE_CACHE_TTL_MS", 2000),

		BrokerBaseURL:   getEnv("BROKER_BASE_URL", "https://broker.example.invalid"),
		BrokerAPIKey:    getEnv("BROKER_API_KEY", ""),
		BrokerAPISecret: getEnv("BROKER_API_SECRET", ""),

		NotifierWebhookURL:  getEnv("NOTIFIER_WEBHOOK_URL", ""),
		NotifierPollSeconds: getEnvAsInt("NOTIFIER_POLL_SECONDS", 5),

		SentimentFeedBaseURL: getEnv("SENTIMENT_FEED_BASE_URL", ""),
		SentimentFeedAPIKey:  getEnv("SENTIMENT_FEED_API_KEY", ""),
	}

	if cfg.AutoTradingEnabled && cfg.InteractiveTradingEnabled {
		return nil, fmt.Errorf("config: AUTO_TRADING_ENABLED and INTERACTIVE_TRADING_ENABLED are mutually exclusive")
	}

	return cfg, nil
}

// ConfirmationTimeout is the typed duration form of TradeConfirmationTimeoutSeconds.
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.TradeConfirmationTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
