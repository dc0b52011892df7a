// Package logging provides categorized file-based logging for deepscout.
// Logs are written to .deepscout/logs/ with a separate file per category.
// When debug mode is off every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a subsystem log stream.
type Category string

const (
	CategorySession    Category = "session"    // session lifecycle, checkpoints, resume
	CategoryPipeline   Category = "pipeline"   // phase transitions, orchestration loop
	CategoryProviders  Category = "providers"  // provider gates, circuits, retries
	CategoryRouter     Category = "router"     // model selection, completions, streams
	CategoryMemory     Category = "memory"     // store operations, effectiveness updates
	CategorySaturation Category = "saturation" // stop decisions, cycle metrics
)

// Config controls which categories emit and at what level.
type Config struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Categories map[string]bool // empty = all enabled
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*zap.SugaredLogger)
	cfg      Config
	logsDir  string
	nop      = zap.NewNop().Sugar()
	initDone bool
)

// Initialize sets up the log directory and config. Safe to call once at
// startup; before it runs every Get returns a no-op logger.
func Initialize(workdir string, c Config) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	initDone = true
	if !cfg.DebugMode {
		return nil
	}

	logsDir = filepath.Join(workdir, ".deepscout", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// Close flushes and drops all category loggers.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
	loggers = make(map[Category]*zap.SugaredLogger)
	initDone = false
}

func level() zapcore.Level {
	switch cfg.Level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func enabled(cat Category) bool {
	if !cfg.DebugMode {
		return false
	}
	if len(cfg.Categories) == 0 {
		return true
	}
	return cfg.Categories[string(cat)]
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	if !initDone || !enabled(cat) {
		loggers[cat] = nop
		return nop
	}

	path := filepath.Join(logsDir, string(cat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		loggers[cat] = nop
		return nop
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level())
	l := zap.New(core).Sugar().Named(string(cat))
	loggers[cat] = l
	return l
}

// Convenience helpers matching the dominant call shape at call sites.

func Session(format string, args ...interface{})  { Get(CategorySession).Infof(format, args...) }
func Pipeline(format string, args ...interface{}) { Get(CategoryPipeline).Infof(format, args...) }
func Providers(format string, args ...interface{}) {
	Get(CategoryProviders).Infof(format, args...)
}
func Router(format string, args ...interface{}) { Get(CategoryRouter).Infof(format, args...) }
func Memory(format string, args ...interface{}) { Get(CategoryMemory).Infof(format, args...) }
func Saturation(format string, args ...interface{}) {
	Get(CategorySaturation).Infof(format, args...)
}

func ProvidersDebug(format string, args ...interface{}) {
	Get(CategoryProviders).Debugf(format, args...)
}
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debugf(format, args...)
}
func MemoryDebug(format string, args ...interface{}) {
	Get(CategoryMemory).Debugf(format, args...)
}
