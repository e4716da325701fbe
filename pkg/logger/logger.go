package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	mu          sync.Mutex
	globalSugar *zap.SugaredLogger
	globalBase  *zap.Logger
)

// Init initializes a global zap logger. The env can be "production" or "development" (default).
// It also redirects the stdlib log output to zap so existing log.Printf calls are captured.
func Init(env string) (*zap.SugaredLogger, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalSugar != nil && globalBase != nil {
		return globalSugar, nil
	}

	var cfg zap.Config
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(base)
	_ = zap.RedirectStdLog(base)

	globalBase = base
	globalSugar = base.Sugar()
	return globalSugar, nil
}

// L returns the global sugared logger, initializing it on first use.
func L() *zap.SugaredLogger {
	return Base().Sugar()
}

// Base returns the base *zap.Logger (non-sugared).
func Base() *zap.Logger {
	mu.Lock()
	base := globalBase
	mu.Unlock()
	if base != nil {
		return base
	}
	if _, err := Init(os.Getenv("LOG_ENV")); err != nil {
		fallback, _ := zap.NewDevelopment()
		mu.Lock()
		globalBase = fallback
		globalSugar = fallback.Sugar()
		mu.Unlock()
		return fallback
	}
	return globalBase
}

// ForCall returns a logger that tags every entry with the call id.
func ForCall(callID string) *zap.Logger {
	return Base().With(zap.String("call_id", callID))
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if globalBase != nil {
		_ = globalBase.Sync()
	}
}

// GORMWriter adapts the zap logger to gorm's logger.Writer.
type GORMWriter struct{}

// Printf implements gorm.io/gorm/logger.Writer.
func (w GORMWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, v...), "\r\n")
	Base().Warn(msg, zap.String("component", "gorm"))
}

// NewGORMWriter creates a new GORM writer adapter
func NewGORMWriter() GORMWriter {
	return GORMWriter{}
}
