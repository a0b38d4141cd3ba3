// Package probelog centralises the structured logger used across the
// agent, the way internal/httpx.Logger centralised log.Default() in the
// teacher repo.
package probelog

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	logger *zap.SugaredLogger
)

// L returns the process-wide sugared logger, built lazily on first use so
// importing this package never has a side effect at init time.
func L() *zap.SugaredLogger {
	once.Do(func() {
		logger = build().Sugar()
	})
	return logger
}

// Named returns a child logger scoped to a component name, e.g.
// probelog.Named("socket").
func Named(name string) *zap.SugaredLogger {
	return L().Named(name)
}

func build() *zap.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		// Logging must never abort the host program.
		return zap.NewNop()
	}
	return logger
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}
