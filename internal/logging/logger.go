// Package logging provides config-driven categorized logging for padic.
// Each category gets a named zap logger. Debug output is controlled by
// debug_mode in the config: when it is false, categories only report
// warnings and errors.
package logging

import (
	"fmt"
	"sync"
	"time"

	"padiclattice/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategoryDomain  Category = "domain"  // Domain and tracker creation
	CategoryTracker Category = "tracker" // Registration, lifts, evictions
	CategoryCLI     Category = "cli"     // Command execution
)

var (
	base    = zap.NewNop()
	cfg     config.LoggingConfig
	loggers = make(map[Category]*zap.Logger)
	mu      sync.RWMutex
)

// Initialize builds the root logger from c. It may be called again to
// reconfigure; previously returned loggers keep their old core.
func Initialize(c config.LoggingConfig) error {
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if c.File != "" {
		zc.OutputPaths = []string{c.File}
	}
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.Set(c.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l, c)
	Get(CategoryBoot).Debug("logging initialized",
		zap.String("level", level.String()),
		zap.Bool("debug_mode", c.DebugMode))
	return nil
}

// SetLogger replaces the root logger. Tests use it with zaptest loggers.
func SetLogger(l *zap.Logger, c config.LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	cfg = c
	loggers = make(map[Category]*zap.Logger)
}

// IsCategoryEnabled returns whether debug output is enabled for a category.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or creates) the logger for a category. Disabled categories
// drop everything below warn.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	l := base.Named(string(category))
	if !cfg.IsCategoryEnabled(string(category)) {
		l = l.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("operation slow",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		Get(t.category).Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
