package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDevelopment(t *testing.T) {
	for _, env := range []string{"", "dev", "development", "DEV"} {
		assert.True(t, IsDevelopment(env), env)
	}
	for _, env := range []string{"production", "prod", "staging"} {
		assert.False(t, IsDevelopment(env), env)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestNewAppliesLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, New("production", "error").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, New("dev", "debug").GetLevel())
}

func TestConsoleLevelLabels(t *testing.T) {
	var buf bytes.Buffer
	log := NewDevelopment(&buf)
	log.Warn().Msg("session expired")

	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "session expired")
	assert.Equal(t, colorize("NOT", colorBold), formatLevel("notice"))
}

func TestProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewProduction(&buf)
	log.Info().Str("grant", "refresh_token").Msg("refreshed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "refresh_token", entry["grant"])
	assert.IsType(t, float64(0), entry["time"])
}
