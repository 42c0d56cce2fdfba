package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"PredictionLedger/internal/model"
)

// ErrNotDescending is returned when a series is not ordered most recent first.
var ErrNotDescending = errors.New("series must be ordered by timestamp descending")

// Summarize computes descriptive statistics over a normalized series.
// The series must be non-empty and ordered as Normalize returns it.
func Summarize(series []model.NormalizedPoint) (model.SeriesSummary, error) {
	if len(series) == 0 {
		return model.SeriesSummary{}, fmt.Errorf("summarize: %w", model.ErrInsufficientData)
	}
	if !isDescending(series) {
		return model.SeriesSummary{}, fmt.Errorf("summarize %s: %w", series[0].Symbol, ErrNotDescending)
	}

	newest := series[0]
	oldest := series[len(series)-1]
	s := model.SeriesSummary{
		Symbol:      newest.Symbol,
		Points:      len(series),
		MaxClose:    math.Inf(-1),
		MinClose:    math.Inf(1),
		TotalVolume: decimal.Zero,
		From:        oldest.Timestamp,
		To:          newest.Timestamp,
	}

	sum := 0.0
	for _, p := range series {
		sum += p.Close
		if p.Close > s.MaxClose {
			s.MaxClose = p.Close
		}
		if p.Close < s.MinClose {
			s.MinClose = p.Close
		}
		s.TotalVolume = s.TotalVolume.Add(decimal.NewFromInt(p.Volume))
	}
	s.AvgClose = sum / float64(len(series))

	if len(series) > 1 {
		s.PeriodChange = newest.Close - oldest.Close
		if oldest.Close != 0 {
			s.PeriodChangePercent = s.PeriodChange / oldest.Close * 100
		}
		s.Volatility = CalculateVolatility(series)
	}
	return s, nil
}
