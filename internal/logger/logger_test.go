package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestAsynqLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, AsynqLevel("debug"))
	assert.Equal(t, asynq.WarnLevel, AsynqLevel("warn"))
	assert.Equal(t, asynq.InfoLevel, AsynqLevel("anything"))
}

func TestNewWithWriter_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "production", "info")

	l.Debug().Msg("hidden")
	l.Info().Str("job_id", "j1").Msg("visible")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "j1", entry["job_id"])
}

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewAsynqLogger(NewWithWriter(&buf, "production", "debug"))

	l.Warn("queue ", "paused")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "queue paused", entry["message"])
	assert.Equal(t, "asynq", entry["component"])
}
