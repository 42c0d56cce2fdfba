package accuracy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionLedger/internal/model"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func settledOutcome(symbol string, day int, mape float64, correct bool) model.PredictionOutcome {
	return model.PredictionOutcome{
		Symbol:           symbol,
		PredictionDate:   monday.AddDate(0, 0, day),
		PredictedPrice:   f(100),
		ActualClose:      f(100),
		AccuracyMape:     f(mape),
		DirectionCorrect: b(correct),
	}
}

func pendingOutcome(symbol string, day int) model.PredictionOutcome {
	return model.PredictionOutcome{
		Symbol:         symbol,
		PredictionDate: monday.AddDate(0, 0, day),
		PredictedPrice: f(100),
	}
}

func TestSummarize_MixedScenario(t *testing.T) {
	outcomes := []model.PredictionOutcome{
		settledOutcome("NVDA", 0, 2, true),
		settledOutcome("NVDA", 1, 6, false),
		pendingOutcome("NVDA", 2),
	}

	s, err := Summarize("NVDA", outcomes)
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalPredictions)
	assert.Equal(t, 2, s.SettledPredictions)
	assert.InDelta(t, 4.0, s.AverageMape, 1e-9)
	assert.InDelta(t, 50.0, s.DirectionAccuracyRate, 1e-9)
	assert.True(t, s.HasDirectionData)
	assert.Equal(t, 2.0, s.BestMape)
	assert.Equal(t, 6.0, s.WorstMape)
	require.NotNil(t, s.LastPredictionDate)
	assert.Equal(t, monday.AddDate(0, 0, 2), *s.LastPredictionDate)
}

func TestSummarize_AllPendingIsNoData(t *testing.T) {
	p1 := pendingOutcome("TSLA", 0)
	p1.Confidence = f(0.6)
	p2 := pendingOutcome("TSLA", 1)
	p2.Confidence = f(0.8)

	s, err := Summarize("TSLA", []model.PredictionOutcome{p1, p2})
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalPredictions)
	assert.Equal(t, 0, s.SettledPredictions)
	assert.False(t, s.HasDirectionData)
	assert.False(t, s.HasMapeData)
	assert.Equal(t, 0.0, s.DirectionAccuracyRate)
	assert.Equal(t, RatingNone, RateDirection(s))
	assert.Equal(t, RatingNone, RateMape(s))

	// confidence is known at prediction time, so pending outcomes count
	assert.True(t, s.HasConfidenceData)
	assert.InDelta(t, 0.7, s.AverageConfidence, 1e-9)
}

func TestSummarize_ZeroPercentIsNotNoData(t *testing.T) {
	s, err := Summarize("AAPL", []model.PredictionOutcome{settledOutcome("AAPL", 0, 1, false)})
	require.NoError(t, err)
	assert.True(t, s.HasDirectionData)
	assert.Equal(t, 0.0, s.DirectionAccuracyRate)
	assert.Equal(t, RatingPoor, RateDirection(s))
}

func TestSummarize_Empty(t *testing.T) {
	s, err := Summarize("AAPL", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalPredictions)
	assert.Nil(t, s.LastPredictionDate)
}

func TestSummarize_SymbolMismatch(t *testing.T) {
	_, err := Summarize("AAPL", []model.PredictionOutcome{pendingOutcome("MSFT", 0)})
	assert.ErrorIs(t, err, ErrSymbolMismatch)
}

func TestOverall(t *testing.T) {
	outcomes := []model.PredictionOutcome{
		settledOutcome("NVDA", 0, 2, true),
		settledOutcome("AAPL", 0, 4, true),
		settledOutcome("AAPL", 1, 6, false),
		pendingOutcome("TSLA", 1),
	}
	lastRun := &model.DailyExecutionLog{ExecutionDate: monday, Status: model.RunCompleted}

	m := Overall(outcomes, lastRun)
	assert.Equal(t, 3, m.TotalSymbols)
	assert.Equal(t, 4, m.TotalPredictions)
	assert.Equal(t, 3, m.SettledPredictions)
	assert.InDelta(t, 4.0, m.OverallMape, 1e-9)
	assert.InDelta(t, 200.0/3, m.OverallDirectionAccuracy, 1e-9)
	require.Len(t, m.SymbolSummaries, 3)
	assert.Equal(t, "AAPL", m.SymbolSummaries[0].Symbol)
	assert.Equal(t, model.RunCompleted, m.LastExecutionStatus)
}

func TestTopPerformers(t *testing.T) {
	summaries := []model.AccuracySummary{
		{Symbol: "A", SettledPredictions: 6, HasMapeData: true, AverageMape: 3, DirectionAccuracyRate: 60},
		{Symbol: "B", SettledPredictions: 9, HasMapeData: true, AverageMape: 1.5, DirectionAccuracyRate: 55},
		{Symbol: "C", SettledPredictions: 2, HasMapeData: true, AverageMape: 0.5},
		{Symbol: "D", SettledPredictions: 5, HasMapeData: true, AverageMape: 3, DirectionAccuracyRate: 80},
	}
	top := TopPerformers(summaries, 0, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "B", top[0].Symbol)
	assert.Equal(t, "D", top[1].Symbol)
}

func TestTrends(t *testing.T) {
	outcomes := []model.PredictionOutcome{
		settledOutcome("NVDA", 0, 2, true),
		settledOutcome("AAPL", 0, 4, false),
		pendingOutcome("NVDA", 1),
	}
	trends := Trends(outcomes)
	require.Len(t, trends, 2)

	assert.Equal(t, monday.AddDate(0, 0, 1), trends[0].Date)
	assert.Nil(t, trends[0].AverageMape)
	assert.Nil(t, trends[0].DirectionAccuracy)

	require.NotNil(t, trends[1].AverageMape)
	assert.InDelta(t, 3.0, *trends[1].AverageMape, 1e-9)
	assert.InDelta(t, 50.0, *trends[1].DirectionAccuracy, 1e-9)
}

func TestRatings(t *testing.T) {
	mape := []struct {
		v    float64
		want Rating
	}{{0.5, RatingGood}, {2, RatingGood}, {2.01, RatingFair}, {5, RatingFair}, {5.5, RatingPoor}}
	for _, tt := range mape {
		assert.Equal(t, tt.want, RateMapeValue(tt.v), "mape %.2f", tt.v)
	}

	dir := []struct {
		v    float64
		want Rating
	}{{100, RatingGood}, {70, RatingGood}, {69.9, RatingFair}, {50, RatingFair}, {49, RatingPoor}}
	for _, tt := range dir {
		assert.Equal(t, tt.want, RateDirectionValue(tt.v), "direction %.1f", tt.v)
	}
}
