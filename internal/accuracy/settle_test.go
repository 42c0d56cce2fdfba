package accuracy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionLedger/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name              string
		current, previous float64
		band              float64
		want              model.Direction
	}{
		{"up beyond band", 101, 100, 0.001, model.DirectionUp},
		{"down beyond band", 99, 100, 0.001, model.DirectionDown},
		{"inside band", 100.05, 100, 0.001, model.DirectionHold},
		{"default band", 100.05, 100, 0, model.DirectionHold},
		{"wide band", 100.5, 100, 0.01, model.DirectionHold},
		{"zero previous", 5, 0, 0.001, model.DirectionHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.current, tt.previous, tt.band))
		})
	}
}

func TestSettle(t *testing.T) {
	now := time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC)
	pending := model.PredictionOutcome{
		Symbol:         "NVDA",
		PredictionDate: monday,
		PredictedPrice: f(105),
		PriorClose:     f(100),
	}

	settled, err := Settle(pending, 102, DefaultHoldBand, now)
	require.NoError(t, err)

	require.NotNil(t, settled.AccuracyMape)
	assert.InDelta(t, 3/102.0*100, *settled.AccuracyMape, 1e-9)
	require.NotNil(t, settled.DirectionCorrect)
	assert.True(t, *settled.DirectionCorrect)
	assert.Equal(t, now, *settled.SettledAt)
	assert.False(t, pending.Settled(), "input must not be mutated")

	_, err = Settle(settled, 103, DefaultHoldBand, now)
	assert.ErrorIs(t, err, model.ErrAlreadySettled)
	assert.ErrorIs(t, err, model.ErrSettlement)
}

func TestSettle_WrongDirection(t *testing.T) {
	pending := model.PredictionOutcome{Symbol: "TSLA", PredictedPrice: f(110), PriorClose: f(100)}
	settled, err := Settle(pending, 95, DefaultHoldBand, monday)
	require.NoError(t, err)
	assert.False(t, *settled.DirectionCorrect)
}

func TestSettle_FallsBackToPredictedDirection(t *testing.T) {
	down := model.DirectionDown
	pending := model.PredictionOutcome{Symbol: "TSLA", PredictedDirection: &down, PriorClose: f(100)}
	settled, err := Settle(pending, 95, DefaultHoldBand, monday)
	require.NoError(t, err)
	assert.Nil(t, settled.AccuracyMape)
	require.NotNil(t, settled.DirectionCorrect)
	assert.True(t, *settled.DirectionCorrect)
}

func TestSettle_NoPriorCloseLeavesDirectionUnset(t *testing.T) {
	pending := model.PredictionOutcome{Symbol: "AAPL", PredictedPrice: f(100)}
	settled, err := Settle(pending, 100, DefaultHoldBand, monday)
	require.NoError(t, err)
	assert.Nil(t, settled.DirectionCorrect)
	assert.Equal(t, 0.0, *settled.AccuracyMape)
}

func TestSettle_InvalidActual(t *testing.T) {
	_, err := Settle(model.PredictionOutcome{Symbol: "AAPL"}, 0, DefaultHoldBand, monday)
	assert.ErrorIs(t, err, ErrInvalidActual)
	assert.ErrorIs(t, err, model.ErrSettlement)
}
