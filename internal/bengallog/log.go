// Package bengallog provides the single structured logger used across all
// Bengal components.
package bengallog

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	global *zap.Logger
)

// Level names recognised by BENGAL_LOG_LEVEL.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// L returns the process-wide logger, constructing it from the environment
// on first use. BENGAL_LOG_LEVEL selects the minimum level (default info);
// BENGAL_NO_COLOR disables ANSI color in the console encoder.
func L() *zap.Logger {
	once.Do(func() {
		global = newFromEnv()
	})
	return global
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

func newFromEnv() *zap.Logger {
	level := parseLevel(os.Getenv("BENGAL_LOG_LEVEL"))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("BENGAL_NO_COLOR") == "" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ForTest returns a logger suitable for use in unit tests (no color, debug
// level, writes through zaptest-free plain encoder to avoid import cycles).
func ForTest() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build()
	return logger
}
