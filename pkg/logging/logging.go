// Package logging holds the process-wide zap logger used by the harness,
// the strategies and the CLI.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level (debug, info, warn, error) and the output
// format (console or json).
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig is info level, console output.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
	}
}

// ConfigFromEnv reads LOG_LEVEL and LOG_FORMAT, falling back to the defaults.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	return cfg
}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init builds the global logger from cfg. Until Init is called every log
// call is discarded.
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// New builds a logger from cfg without touching the global one.
func New(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	zcfg := zap.NewProductionConfig()

	switch strings.ToLower(cfg.Level) {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "", "info":
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zcfg.Development = true
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.TimeKey = ""
		zcfg.EncoderConfig.CallerKey = ""
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zcfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	// Benchmark runs print a lot of samples at debug; sampling would hide
	// the failures we care about.
	zcfg.Sampling = nil

	return zcfg.Build()
}

// L returns the current global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = L().Sync()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }
