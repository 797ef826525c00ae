package logger

import (
	"os"

	"ritual_notification_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Components derive their own entries
// from it via WithField("component", ...).
var Log = logrus.New()

// Init configures the global logger from the application config: level
// from LOG_LEVEL, JSON output in production and staging, colored text
// everywhere else. Load() lowercases both fields.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		Log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	switch cfg.Environment {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	Log.WithField("level", Log.GetLevel()).Info("Logger initialized")
}

// Get returns the configured global logger.
func Get() *logrus.Logger {
	return Log
}
