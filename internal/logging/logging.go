// Package logging wraps a zap logger behind the printf-style Logf helper used
// throughout the service. Messages carry a bracketed component tag, e.g.
// "[MERGE] wrote 4 pages".
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init builds the process logger. debug lowers the level to Debug and
// switches to the human readable development encoder.
func Init(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.DisableStacktrace = !debug

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	Set(l)
	return nil
}

// Set replaces the process logger. Tests use it with zaptest or zap.NewNop.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
}

// L returns the current sugared logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

// Logf logs at info level, or warn/error level when the message starts with a
// [WARNING] or [ERROR] tag.
func Logf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l := L()
	switch {
	case strings.HasPrefix(msg, "[ERROR]"):
		l.Error(msg)
	case strings.HasPrefix(msg, "[WARNING]"):
		l.Warn(msg)
	default:
		l.Info(msg)
	}
}

// Debugf logs at debug level.
func Debugf(format string, v ...interface{}) {
	L().Debugf(format, v...)
}

// GinLogger is a request logging middleware replacing gin.Logger().
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []interface{}{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			L().Errorw("[HTTP] request", fields...)
		case status >= 400:
			L().Warnw("[HTTP] request", fields...)
		default:
			L().Infow("[HTTP] request", fields...)
		}
	}
}
