package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	HTTPAddr        string
	ChatAPIURL      string
	LogLevel        string
	Environment     string

	CronSpecTick      string // per-minute scheduler tick
	CronSpecRetention string // low-frequency retention cleanup

	MaxExecution  time.Duration
	DueWindow     time.Duration
	RetentionDays int
	SnoozeMinutes []int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.ChatAPIURL = os.Getenv("CHAT_API_URL")
	if cfg.ChatAPIURL == "" {
		cfg.ChatAPIURL = "http://localhost:3000/api/chat/messages"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecTick = os.Getenv("CRON_SPEC_TICK")
	if cfg.CronSpecTick == "" {
		cfg.CronSpecTick = "* * * * *" // Default: every minute
	}

	cfg.CronSpecRetention = os.Getenv("CRON_SPEC_RETENTION")
	if cfg.CronSpecRetention == "" {
		cfg.CronSpecRetention = "0 3 * * *" // Default: 03:00 daily
	}

	maxExecSeconds, err := intFromEnv("MAX_EXECUTION_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.MaxExecution = time.Duration(maxExecSeconds) * time.Second

	windowMinutes, err := intFromEnv("DUE_WINDOW_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	cfg.DueWindow = time.Duration(windowMinutes) * time.Minute

	cfg.RetentionDays, err = intFromEnv("RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}

	cfg.SnoozeMinutes, err = minutesFromEnv("SNOOZE_MINUTES", []int{15, 30, 60})
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func intFromEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func minutesFromEnv(name string, fallback []int) ([]int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	parts := strings.Split(raw, ",")
	minutes := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid %s entry: %q", name, p)
		}
		minutes = append(minutes, v)
	}
	return minutes, nil
}
