package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey string

const loggerKey = contextKey("logger")

// Format selects the logrus formatter
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// NewLogger creates a logger writing to out at the given level.
// A nil out writes to stderr so that stdout stays free for reports.
func NewLogger(level logrus.Level, format Format, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)

	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	if format == FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// ParseLevel parses a level name, falling back to info on unknown names
func ParseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// WithLogger stores logger in ctx
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Lookup returns the logger stored in ctx, if any
func Lookup(ctx context.Context) (logrus.FieldLogger, bool) {
	logger, ok := ctx.Value(loggerKey).(logrus.FieldLogger)
	return logger, ok
}
