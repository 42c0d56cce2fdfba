package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionLedger/internal/model"
)

var day0 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func bar(dayOffset int, close float64) model.OhlcvPoint {
	return model.OhlcvPoint{
		Symbol:    "NVDA",
		Timestamp: day0.AddDate(0, 0, dayOffset),
		Open:      close * 0.99,
		High:      close * 1.01,
		Low:       close * 0.98,
		Close:     close,
		Volume:    1_000_000,
	}
}

func TestNormalize_ThreeDayScenario(t *testing.T) {
	series, err := Normalize([]model.OhlcvPoint{bar(0, 100), bar(1, 110), bar(2, 99)})
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, 99.0, series[0].Close)
	assert.InDelta(t, -10.0, series[0].ChangePercent, 1e-9)
	assert.Equal(t, 110.0, series[1].Close)
	assert.InDelta(t, 10.0, series[1].ChangePercent, 1e-9)
	assert.Equal(t, 100.0, series[2].Close)
	assert.Equal(t, 0.0, series[2].ChangePercent)
}

func TestNormalize_Empty(t *testing.T) {
	series, err := Normalize(nil)
	require.NoError(t, err)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestNormalize_DuplicateTimestampLastWriteWins(t *testing.T) {
	first := bar(1, 105)
	second := bar(1, 108)
	second.Volume = 42

	series, err := Normalize([]model.OhlcvPoint{bar(0, 100), first, bar(2, 120), second})
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, 108.0, series[1].Close)
	assert.Equal(t, int64(42), series[1].Volume)
	assert.InDelta(t, 8.0, series[1].ChangePercent, 1e-9)
}

func TestNormalize_UnsortedInputComesOutDescending(t *testing.T) {
	series, err := Normalize([]model.OhlcvPoint{bar(3, 4), bar(0, 1), bar(2, 3), bar(1, 2)})
	require.NoError(t, err)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Timestamp.After(series[i].Timestamp))
	}
	assert.Equal(t, 0.0, series[len(series)-1].ChangePercent)
}

func TestNormalize_ZeroPriorCloseMapsToZero(t *testing.T) {
	series, err := Normalize([]model.OhlcvPoint{bar(0, 0), bar(1, 50)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, series[0].ChangePercent)
}

func TestNormalize_MixedSymbols(t *testing.T) {
	other := bar(1, 10)
	other.Symbol = "TSLA"
	_, err := Normalize([]model.OhlcvPoint{bar(0, 10), other})
	assert.ErrorIs(t, err, ErrMixedSymbols)
}

func TestNormalize_Idempotent(t *testing.T) {
	input := []model.OhlcvPoint{bar(4, 12), bar(0, 10), bar(2, 11), bar(2, 11.5), bar(1, 9)}
	once, err := Normalize(input)
	require.NoError(t, err)
	assert.Len(t, once, 4) // distinct timestamps

	twice, err := Normalize(Points(once))
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
