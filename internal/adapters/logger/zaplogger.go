package logger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements the ports.Logger interface on top of a zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a zap logger for the given level and encoding ("json" or "console").
func NewZapLogger(level LogLevel, encoding string) (*ZapLogger, error) {
	enc := strings.ToLower(encoding)
	if enc != "console" {
		enc = "json"
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(toZapLevel(level)),
		Development:       false,
		Encoding:          enc,
		DisableStacktrace: true,
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if enc == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return &ZapLogger{logger: l}, nil
}

// NewZapAdapter wraps an existing zap logger (e.g. zaptest.NewLogger in tests).
func NewZapAdapter(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{logger: l}
}

// Named returns a child logger with the given component name.
func (z *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{logger: z.logger.Named(name)}
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

// Debug logs a message at Debug level.
func (z *ZapLogger) Debug(_ context.Context, msg string, fields ...map[string]interface{}) {
	z.logger.Debug(msg, toZapFields(fields...)...)
}

// Info logs a message at Info level.
func (z *ZapLogger) Info(_ context.Context, msg string, fields ...map[string]interface{}) {
	z.logger.Info(msg, toZapFields(fields...)...)
}

// Warn logs a message at Warning level.
func (z *ZapLogger) Warn(_ context.Context, msg string, fields ...map[string]interface{}) {
	z.logger.Warn(msg, toZapFields(fields...)...)
}

// Error logs an error message at Error level.
func (z *ZapLogger) Error(_ context.Context, err error, msg string, fields ...map[string]interface{}) {
	zf := toZapFields(fields...)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	z.logger.Error(msg, zf...)
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
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

func toZapFields(fields ...map[string]interface{}) []zap.Field {
	merged := mergeFields(fields...)
	if len(merged) == 0 {
		return nil
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, merged[k]))
	}
	return out
}
