// Package logging builds the zap loggers used across logincheck.
// Each subsystem gets a named child logger that can be switched off per
// category from the logging section of the config file.
package logging

import (
	"fmt"
	"strings"

	"logincheck/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // CLI startup, config resolution
	CategoryFlow    Category = "flow"    // Login verification steps
	CategoryBrowser Category = "browser" // Chrome launch, CDP session lifecycle
	CategoryStore   Category = "store"   // Run history database
)

// Logger is the root logger plus the category toggles.
type Logger struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// New builds a logger from cfg. Format "json" selects the production JSON
// encoder; anything else renders human readable console lines. verbose
// forces the debug level regardless of cfg.Level.
func New(cfg config.LoggingConfig, verbose bool) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	switch cfg.Format {
	case "json":
	case "", "console", "text":
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q (valid: json, console)", cfg.Format)
	}

	root, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{root: root, cfg: cfg}, nil
}

// Wrap adapts an existing zap logger, typically one from zaptest.
func Wrap(root *zap.Logger, cfg config.LoggingConfig) *Logger {
	if root == nil {
		root = zap.NewNop()
	}
	return &Logger{root: root, cfg: cfg}
}

// Root returns the unnamed root logger.
func (l *Logger) Root() *zap.Logger {
	return l.root
}

// Get returns the named logger for category, or a no-op logger when the
// category is disabled.
func (l *Logger) Get(category Category) *zap.Logger {
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Sync flushes buffered entries. Errors from syncing a terminal are
// expected on some platforms and ignored by callers.
func (l *Logger) Sync() error {
	return l.root.Sync()
}
