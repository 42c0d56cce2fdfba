package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionLedger/internal/model"
)

func f(v float64) *float64 { return &v }

var day0 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func pending(symbol string, day int, predicted float64) *model.PredictionOutcome {
	dir := model.DirectionUp
	return &model.PredictionOutcome{
		Symbol:             symbol,
		PredictionDate:     day0.AddDate(0, 0, day),
		PredictedPrice:     f(predicted),
		PredictedDirection: &dir,
		Confidence:         f(0.8),
		PriorClose:         f(100),
		MarketWasOpen:      true,
		PredictedAt:        day0.AddDate(0, 0, day).Add(time.Hour),
	}
}

func settle(o model.PredictionOutcome, actual, mape float64, correct bool) model.PredictionOutcome {
	settledAt := o.PredictionDate.Add(24 * time.Hour)
	o.ActualClose = f(actual)
	o.AccuracyMape = f(mape)
	o.DirectionCorrect = &correct
	o.SettledAt = &settledAt
	return o
}

func implementations(t *testing.T) map[string]Recorder {
	sqlite, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Recorder{
		"sqlite": sqlite,
		"memory": NewMemoryRecorder(),
	}
}

func TestRecorder_SaveAndGet(t *testing.T) {
	for name, r := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			o := pending("NVDA", 0, 105)
			require.NoError(t, r.SaveOutcome(o))
			assert.NotZero(t, o.ID)

			got, err := r.GetOutcome("NVDA", day0.Add(15*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
			assert.Equal(t, day0, got.PredictionDate)
			assert.Equal(t, 105.0, *got.PredictedPrice)
			assert.Equal(t, model.DirectionUp, *got.PredictedDirection)
			assert.True(t, got.MarketWasOpen)
			assert.False(t, got.Settled())
			assert.True(t, o.PredictedAt.Equal(got.PredictedAt))

			_, err = r.GetOutcome("TSLA", day0)
			assert.ErrorIs(t, err, model.ErrPredictionNotFound)
		})
	}
}

func TestRecorder_SamedayUpsertReplacesPending(t *testing.T) {
	for name, r := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			first := pending("NVDA", 0, 105)
			require.NoError(t, r.SaveOutcome(first))
			second := pending("NVDA", 0, 110)
			require.NoError(t, r.SaveOutcome(second))
			assert.Equal(t, first.ID, second.ID)

			got, err := r.GetOutcome("NVDA", day0)
			require.NoError(t, err)
			assert.Equal(t, 110.0, *got.PredictedPrice)

			all, err := r.ListOutcomes(model.OutcomeQuery{})
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestRecorder_SettleOnce(t *testing.T) {
	for name, r := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			o := pending("NVDA", 0, 105)
			require.NoError(t, r.SaveOutcome(o))

			settled := settle(*o, 100, 5, true)
			require.NoError(t, r.SettleOutcome(settled))

			got, err := r.GetOutcome("NVDA", day0)
			require.NoError(t, err)
			require.True(t, got.Settled())
			assert.Equal(t, 100.0, *got.ActualClose)
			assert.Equal(t, 5.0, *got.AccuracyMape)
			assert.True(t, *got.DirectionCorrect)
			require.NotNil(t, got.SettledAt)

			// settled outcomes are frozen
			err = r.SettleOutcome(settle(*o, 90, 10, false))
			assert.ErrorIs(t, err, model.ErrAlreadySettled)
			assert.ErrorIs(t, err, model.ErrSettlement)
			err = r.SaveOutcome(pending("NVDA", 0, 120))
			assert.ErrorIs(t, err, model.ErrAlreadySettled)

			got, err = r.GetOutcome("NVDA", day0)
			require.NoError(t, err)
			assert.Equal(t, 100.0, *got.ActualClose)
			assert.Equal(t, 105.0, *got.PredictedPrice)

			err = r.SettleOutcome(settle(*pending("AAPL", 0, 1), 1, 0, true))
			assert.ErrorIs(t, err, model.ErrPredictionNotFound)
		})
	}
}

func TestRecorder_PendingOutcomes(t *testing.T) {
	for name, r := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			for day := 0; day < 4; day++ {
				require.NoError(t, r.SaveOutcome(pending("NVDA", day, 100)))
			}
			require.NoError(t, r.SaveOutcome(pending("TSLA", 0, 100)))
			o, err := r.GetOutcome("NVDA", day0.AddDate(0, 0, 1))
			require.NoError(t, err)
			require.NoError(t, r.SettleOutcome(settle(o, 100, 0, true)))

			got, err := r.PendingOutcomes("NVDA", day0.AddDate(0, 0, 3))
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, day0, got[0].PredictionDate)
			assert.Equal(t, day0.AddDate(0, 0, 2), got[1].PredictionDate)
		})
	}
}

func TestRecorder_ListOutcomes(t *testing.T) {
	for name, r := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			mapes := []float64{4, 1, 3}
			for day, mape := range mapes {
				o := pending("NVDA", day, 100)
				require.NoError(t, r.SaveOutcome(o))
				require.NoError(t, r.SettleOutcome(settle(*o, 100, mape, true)))
			}
			require.NoError(t, r.SaveOutcome(pending("NVDA", 3, 100)))
			require.NoError(t, r.SaveOutcome(pending("TSLA", 0, 100)))

			byDate, err := r.ListOutcomes(model.OutcomeQuery{Symbol: "NVDA", Descending: true})
			require.NoError(t, err)
			require.Len(t, byDate, 4)
			assert.Equal(t, day0.AddDate(0, 0, 3), byDate[0].PredictionDate)

			byAccuracy, err := r.ListOutcomes(model.OutcomeQuery{Symbol: "NVDA", OrderBy: OrderByAccuracy})
			require.NoError(t, err)
			require.Len(t, byAccuracy, 4)
			assert.Equal(t, 1.0, *byAccuracy[0].AccuracyMape)
			assert.Equal(t, 4.0, *byAccuracy[2].AccuracyMape)
			assert.Nil(t, byAccuracy[3].AccuracyMape)

			from := day0.AddDate(0, 0, 1)
			to := day0.AddDate(0, 0, 2)
			ranged, err := r.ListOutcomes(model.OutcomeQuery{From: &from, To: &to, SettledOnly: true})
			require.NoError(t, err)
			assert.Len(t, ranged, 2)

			paged, err := r.ListOutcomes(model.OutcomeQuery{Limit: 2, Offset: 1})
			require.NoError(t, err)
			require.Len(t, paged, 2)
			assert.Equal(t, "TSLA", paged[0].Symbol)

			_, err = r.ListOutcomes(model.OutcomeQuery{OrderBy: "volume"})
			assert.ErrorIs(t, err, model.ErrInvalidRange)

			symbols, err := r.Symbols()
			require.NoError(t, err)
			assert.Equal(t, []string{"NVDA", "TSLA"}, symbols)
		})
	}
}

func TestRecorder_ExecutionLogs(t *testing.T) {
	for name, r := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2025, 3, 4, 1, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c"} {
				started := start.AddDate(0, 0, i)
				completed := started.Add(90 * time.Second)
				require.NoError(t, r.AppendExecutionLog(model.DailyExecutionLog{
					ID:               id,
					ExecutionDate:    day0.AddDate(0, 0, i+1),
					Type:             model.ExecutionScheduled,
					ProcessedSymbols: []string{"NVDA", "TSLA"},
					SucceededSymbols: []string{"NVDA"},
					FailedSymbols:    []string{"TSLA"},
					SymbolErrors:     map[string]string{"TSLA": "timeout"},
					DurationMs:       90000,
					Status:           model.RunCompleted,
					ErrorMessage:     "partial success",
					StartedAt:        started,
					CompletedAt:      &completed,
				}))
			}

			logs, err := r.ListExecutionLogs(2)
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Equal(t, "c", logs[0].ID)
			assert.Equal(t, "b", logs[1].ID)
			assert.Equal(t, []string{"NVDA", "TSLA"}, logs[0].ProcessedSymbols)
			assert.Equal(t, "timeout", logs[0].SymbolErrors["TSLA"])
			assert.Equal(t, model.RunCompleted, logs[0].Status)
			require.NotNil(t, logs[0].CompletedAt)
			assert.True(t, start.AddDate(0, 0, 2).Equal(logs[0].StartedAt))

			all, err := r.ListExecutionLogs(0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}
