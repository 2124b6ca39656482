// Package config holds monitor configuration: environment defaults that CLI
// flags may override, plus the YAML credentials file for the brokerage API.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantrelay/arbmon/internal/alpaca"
)

// Config holds all monitor settings.
type Config struct {
	// Market selection
	Symbol       string // Alpaca data symbol, e.g. BTC/USD
	TagSlug      string // gamma tag filter, e.g. 5m
	TargetPhrase string // market question filter

	// Loop
	Interval time.Duration
	Polls    int // 0 = run until stopped

	// Model / gate
	FeeRate     float64
	HistoryBars int
	Neighbors   int

	// Auto-trading
	AutoTrade   bool
	NotionalUSD float64
	Cooldown    time.Duration

	// Output
	JSONOutput bool
	OutputPath string
	PIDFile    string

	// Optional record store (SQLite path or postgres:// DSN); empty disables.
	DatabasePath string

	// Optional Telegram alerts
	TelegramToken  string
	TelegramChatID int64

	// Credentials file
	ConfigPath string

	Debug bool
}

// Load builds a Config from environment variables. Flags applied in main
// take precedence over these values.
func Load() (*Config, error) {
	cfg := &Config{
		Symbol:       getEnv("ARBMON_SYMBOL", "BTC/USD"),
		TagSlug:      getEnv("ARBMON_TAG_SLUG", "5m"),
		TargetPhrase: getEnv("ARBMON_TARGET_PHRASE", "bitcoin up or down"),

		Interval: getEnvDuration("ARBMON_INTERVAL", 30*time.Second),
		Polls:    getEnvInt("ARBMON_POLLS", 0),

		FeeRate:     getEnvFloat("ARBMON_FEE_RATE", 0.0015),
		HistoryBars: getEnvInt("ARBMON_HISTORY_BARS", 300),
		Neighbors:   getEnvInt("ARBMON_NEIGHBORS", 80),

		AutoTrade:   getEnvBool("ARBMON_AUTO_TRADE", false),
		NotionalUSD: getEnvFloat("ARBMON_TRADE_NOTIONAL_USD", 100),
		Cooldown:    getEnvDuration("ARBMON_TRADE_COOLDOWN", 300*time.Second),

		JSONOutput: getEnvBool("ARBMON_JSON", false),
		OutputPath: getEnv("ARBMON_OUTPUT_JSONL", "data/arb_monitor.jsonl"),
		PIDFile:    getEnv("ARBMON_PID_FILE", "data/monitor.pid"),

		DatabasePath: getEnv("ARBMON_DATABASE_PATH", ""),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		ConfigPath: getEnv("ARBMON_CONFIG", "config.yaml"),

		Debug: getEnvBool("DEBUG", false),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// Validate rejects parameter combinations the loop must never start with.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", c.Interval)
	}
	if c.FeeRate <= 0 {
		return fmt.Errorf("fee rate must be > 0, got %v", c.FeeRate)
	}
	if c.Neighbors <= 0 {
		return fmt.Errorf("neighbors must be > 0, got %d", c.Neighbors)
	}
	if c.HistoryBars < alpaca.MinHistoryBars {
		return fmt.Errorf("history bars must be >= %d, got %d", alpaca.MinHistoryBars, c.HistoryBars)
	}
	if c.NotionalUSD <= 0 {
		return fmt.Errorf("trade notional must be > 0, got %v", c.NotionalUSD)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("trade cooldown must be >= 0, got %s", c.Cooldown)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.PIDFile == "" {
		return fmt.Errorf("pid file path is required")
	}
	return nil
}

type credentialsFile struct {
	Alpaca alpaca.Credentials `yaml:"alpaca"`
}

// LoadCredentials reads the Alpaca credentials from the YAML config file.
func LoadCredentials(path string) (alpaca.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return alpaca.Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}

	var f credentialsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return alpaca.Credentials{}, fmt.Errorf("parsing credentials file: %w", err)
	}

	if f.Alpaca.APIKey == "" || f.Alpaca.SecretKey == "" {
		return alpaca.Credentials{}, fmt.Errorf("missing alpaca.api_key / alpaca.secret_key in %s", path)
	}
	return f.Alpaca, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
