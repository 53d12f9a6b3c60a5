package logging

import (
	"testing"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the key/value logging method set shared by the Grafana SDK
// logger and the zap adapter below. Args alternate key, value.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Default returns the Grafana plugin SDK logger.
func Default() Logger {
	return log.DefaultLogger
}

// New builds a zap-backed Logger. format is "json" or "console"; a non-empty
// file sends output there instead of stderr.
func New(levelStr, format, file string) (Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(levelStr))
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: l.Sugar()}, nil
}

// NewTest creates a Logger that writes through testing.TB.
func NewTest(t testing.TB) Logger {
	return &zapLogger{s: zaptest.NewLogger(t).Sugar()}
}

// Nop discards everything.
func Nop() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

// OrDefault returns l, or the SDK default logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}

func parseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// zapLogger adapts zap's sugared logger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (z *zapLogger) Debug(msg string, args ...interface{}) { z.s.Debugw(msg, args...) }

func (z *zapLogger) Info(msg string, args ...interface{}) { z.s.Infow(msg, args...) }

func (z *zapLogger) Warn(msg string, args ...interface{}) { z.s.Warnw(msg, args...) }

func (z *zapLogger) Error(msg string, args ...interface{}) { z.s.Errorw(msg, args...) }

// Sync flushes buffered entries when l is zap-backed.
func Sync(l Logger) {
	if z, ok := l.(*zapLogger); ok {
		_ = z.s.Sync()
	}
}
