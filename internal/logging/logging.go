// Package logging provides category-scoped structured logging for graphkb,
// built on zap. Every component logs through a Category logger rather than
// the standard library log package, so operators can turn a single
// subsystem's debug output on or off without recompiling.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies the subsystem a log line belongs to.
type Category string

const (
	CategoryStore        Category = "store"
	CategoryDatalog      Category = "datalog"
	CategoryServer       Category = "server"
	CategoryOrchestrator Category = "orchestrator"
	CategoryPlugin       Category = "plugin"
	CategoryClient       Category = "client"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger = zap.NewNop()
	loggers             = make(map[Category]*zap.Logger)
)

// Configure installs the base zap logger used by all categories. Call once
// at process start; subsequent Get calls pick up the new base lazily.
func Configure(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = logger
	loggers = make(map[Category]*zap.Logger)
}

// Default builds a production zap logger, or a debug one when debug is true.
// Mirrors the verbosity switch the teacher's CLI applies on --verbose.
func Default(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Get returns the logger scoped to category, tagging every line with it.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := base.With(zap.String("category", string(category)))
	loggers[category] = l
	return l
}

// Sync flushes the base logger. Safe to call even when Configure was never
// called (no-op logger syncs cleanly).
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Timer measures an operation's wall-clock duration and logs it at debug
// level on Stop, matching the teacher's logging.StartTimer/Stop pattern
// used throughout its store layer.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing op within category.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop logs the elapsed duration and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("operation timing",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed),
	)
	return elapsed
}
