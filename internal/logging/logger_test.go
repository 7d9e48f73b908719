package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.DebugLevel, FormatJSON, &buf)

	logger.WithField("month", 3).Debug("simulating month")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "simulating month", entry["msg"])
	assert.Equal(t, float64(3), entry["month"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.WarnLevel, FormatText, &buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("nonsense"))
}

func TestContextRoundTrip(t *testing.T) {
	logger := NewLogger(logrus.ErrorLevel, FormatText, &bytes.Buffer{})
	ctx := WithLogger(context.Background(), logger)

	_, ok := Lookup(context.Background())
	assert.False(t, ok)
	found, ok := Lookup(ctx)
	assert.True(t, ok)
	assert.Same(t, logger, found)
}
