package logger

import (
	"fmt"
	"strings"

	"solSniperBot/internal/ports"
)

// New returns the logger for a LOG_FORMAT value: json and console build a
// zap logger, text the standard library logger. The returned flush function
// must be called before exit.
func New(level LogLevel, format string) (ports.Logger, func(), error) {
	switch strings.ToLower(format) {
	case "text":
		return NewStdLogger(level), func() {}, nil
	case "json", "console", "":
		z, err := NewZapLogger(level, format)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", format)
	}
}
