package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "warn", "json"))

	log.Info().Msg("dropped")
	log.Warn().Str("symbol", "NVDA").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "NVDA", entry["symbol"])
	assert.Equal(t, "prediction-ledger", entry["service"])
}

func TestSetupWriter_InvalidLevel(t *testing.T) {
	assert.Error(t, SetupWriter(&bytes.Buffer{}, "loud", "json"))
}
