package logger

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"solSniperBot/internal/ports"
)

// cronLogger adapts ports.Logger to the cron.Logger interface.
type cronLogger struct {
	logger ports.Logger
}

// NewCronLogger returns a cron.Logger that forwards to l.
// Cron's periodic Info chatter is demoted to Debug.
func NewCronLogger(l ports.Logger) cron.Logger {
	return &cronLogger{logger: l}
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(context.Background(), "cron: "+msg, kvToFields(keysAndValues))
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(context.Background(), err, "cron: "+msg, kvToFields(keysAndValues))
}

func kvToFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		fields["extra"] = kv[len(kv)-1]
	}
	return fields
}
