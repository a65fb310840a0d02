package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONWithEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", AppEnv: "staging"}, &buf)
	logger.Info("dispatch finished", "operation", "getTenderInformation")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatch finished", line["msg"])
	assert.Equal(t, "staging", line["env"])
	assert.Equal(t, "getTenderInformation", line["operation"])
	assert.Contains(t, line, "source")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(nil, &buf).Debug("hidden")
	assert.Empty(t, buf.String())
}
