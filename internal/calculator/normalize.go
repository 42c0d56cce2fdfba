package calculator

import (
	"errors"
	"fmt"
	"sort"

	"PredictionLedger/internal/model"
)

// ErrMixedSymbols is returned when a series contains more than one symbol.
var ErrMixedSymbols = errors.New("series contains more than one symbol")

// Normalize de-duplicates, orders and change-annotates a raw series.
//
// Points sharing a timestamp are collapsed with the later input winning, since
// upstream may re-deliver a partially updated day. The result is ordered most
// recent first. ChangePercent is relative to the chronologically prior close and
// is 0 for the oldest point or when the prior close is 0.
// Empty input yields an empty series and no error.
func Normalize(points []model.OhlcvPoint) ([]model.NormalizedPoint, error) {
	if len(points) == 0 {
		return []model.NormalizedPoint{}, nil
	}

	symbol := points[0].Symbol
	latest := make(map[int64]int, len(points)) // unix nanos -> index of last write
	for i, p := range points {
		if p.Symbol != symbol {
			return nil, fmt.Errorf("normalize %s: %w (found %s)", symbol, ErrMixedSymbols, p.Symbol)
		}
		latest[p.Timestamp.UnixNano()] = i
	}

	out := make([]model.NormalizedPoint, 0, len(latest))
	for _, idx := range latest {
		out = append(out, model.NormalizedPoint{OhlcvPoint: points[idx]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	for i := range out {
		if i == len(out)-1 {
			out[i].ChangePercent = 0
			continue
		}
		out[i].ChangePercent = changePercent(out[i+1].Close, out[i].Close)
	}
	return out, nil
}

// Points strips the derived fields so a normalized series can be normalized again.
func Points(series []model.NormalizedPoint) []model.OhlcvPoint {
	pts := make([]model.OhlcvPoint, len(series))
	for i, p := range series {
		pts[i] = p.OhlcvPoint
	}
	return pts
}

func changePercent(prior, current float64) float64 {
	if prior == 0 {
		return 0
	}
	return (current - prior) / prior * 100
}

// isDescending reports whether timestamps strictly decrease.
func isDescending(series []model.NormalizedPoint) bool {
	for i := 1; i < len(series); i++ {
		if !series[i-1].Timestamp.After(series[i].Timestamp) {
			return false
		}
	}
	return true
}
