package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"", log.InfoLevel},
		{"chatty", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestConfigure_FlagBeatsEnv(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })
	t.Setenv(LevelEnvVar, "error")

	require.NoError(t, Configure("debug", ""))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	require.NoError(t, Configure("", ""))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })
	path := filepath.Join(t.TempDir(), "run.log")

	require.NoError(t, Configure("info", path))
	Info("trial finished", "trial", "1-base_Array1k_100hz")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "trial finished")
}

func TestNewStyledLogger_SharesOutputAndLevel(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })
	var buf bytes.Buffer
	SetOutput(&buf)
	Logger.SetLevel(log.WarnLevel)
	t.Cleanup(func() { Logger.SetLevel(log.InfoLevel) })

	l := NewStyledLogger("tracing")
	l.Info("hidden")
	l.Warn("stop failed", "session", "s1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "stop failed")
	assert.Contains(t, buf.String(), "tracing")
}
