package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevLogger, prevLevel, prevFormat := log.Logger, zerolog.GlobalLevel(), zerolog.TimeFieldFormat
	t.Cleanup(func() {
		mu.Lock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
		mu.Unlock()
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
		zerolog.TimeFieldFormat = prevFormat
	})
}

func TestSetup_JSONFile(t *testing.T) {
	restoreGlobals(t)
	path := filepath.Join(t.TempDir(), "portal.log")

	require.NoError(t, Setup(LogConfig{Level: "info", Format: "json", Output: path}))

	reqLog := WithRequestID("api", "req-1")
	reqLog.Info().Str("invoice_number", "4410029384").Msg("Invoice approved")
	intakeLog := WithComponent("intake")
	intakeLog.Debug().Msg("below level")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, ServiceName, event["service"])
	assert.Equal(t, "api", event["component"])
	assert.Equal(t, "req-1", event["request_id"])
	assert.Equal(t, "Invoice approved", event["message"])

	SetVerbose()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_Invalid(t *testing.T) {
	restoreGlobals(t)

	tests := []struct {
		name   string
		config LogConfig
		want   string
	}{
		{"level", LogConfig{Level: "loud", Format: "json"}, "invalid log level"},
		{"format", LogConfig{Level: "info", Format: "xml"}, "invalid log format"},
		{"file", LogConfig{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "portal.log")}, "open log file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Setup(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
