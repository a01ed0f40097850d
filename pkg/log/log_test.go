package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestContextLoggers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithOrderID("o-1")
	logger.Warn().Str("item_id", "flour").Msg("stock clamped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, "flour", entry["item_id"])
	assert.Equal(t, "stock clamped", entry["message"])

	buf.Reset()
	logger = WithComponent("alerts")
	logger.Debug().Msg("routed")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alerts", entry["component"])

	buf.Reset()
	logger = WithAlertID("a-1")
	logger.Error().Msg("not persisted")
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "a-1", entry["alert_id"])

	buf.Reset()
	logger = WithItemID("milk")
	logger.Info().Msg("movement recorded")
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "milk", entry["item_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: ErrorLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}})

	Info("hidden")
	assert.Empty(t, buf.String())

	Error("shown")
	assert.Contains(t, buf.String(), "shown")
}
