// Package accuracy turns prediction outcomes into accuracy summaries.
// Everything here is a pure function of its inputs.
package accuracy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"PredictionLedger/internal/model"
)

// DefaultMinSettled is the settled-outcome floor for TopPerformers.
const DefaultMinSettled = 5

// ErrSymbolMismatch is returned when outcomes of another symbol are mixed in.
var ErrSymbolMismatch = errors.New("outcome belongs to a different symbol")

// tally accumulates the optional fields of a set of outcomes.
type tally struct {
	total, settled       int
	mapeSum              float64
	mapeCount            int
	best, worst          float64
	correct, directional int
	confSum              float64
	confCount            int
	last                 *time.Time
}

func newTally() *tally {
	return &tally{best: math.Inf(1), worst: math.Inf(-1)}
}

func (t *tally) add(o *model.PredictionOutcome) {
	t.total++
	if o.Settled() {
		t.settled++
	}
	if o.AccuracyMape != nil {
		m := *o.AccuracyMape
		t.mapeSum += m
		t.mapeCount++
		t.best = math.Min(t.best, m)
		t.worst = math.Max(t.worst, m)
	}
	if o.DirectionCorrect != nil {
		t.directional++
		if *o.DirectionCorrect {
			t.correct++
		}
	}
	if o.Confidence != nil {
		t.confSum += *o.Confidence
		t.confCount++
	}
	if t.last == nil || o.PredictionDate.After(*t.last) {
		d := o.PredictionDate
		t.last = &d
	}
}

func (t *tally) summary(symbol string) model.AccuracySummary {
	s := model.AccuracySummary{
		Symbol:             symbol,
		TotalPredictions:   t.total,
		SettledPredictions: t.settled,
		LastPredictionDate: t.last,
	}
	if t.mapeCount > 0 {
		s.HasMapeData = true
		s.AverageMape = t.mapeSum / float64(t.mapeCount)
		s.BestMape = t.best
		s.WorstMape = t.worst
	}
	if t.directional > 0 {
		s.HasDirectionData = true
		s.DirectionAccuracyRate = float64(t.correct) / float64(t.directional) * 100
	}
	if t.confCount > 0 {
		s.HasConfidenceData = true
		s.AverageConfidence = t.confSum / float64(t.confCount)
	}
	return s
}

// Summarize aggregates the outcomes of one symbol.
//
// Pending outcomes count toward TotalPredictions and AverageConfidence only.
// When nothing has settled the direction rate is 0 with HasDirectionData false.
func Summarize(symbol string, outcomes []model.PredictionOutcome) (model.AccuracySummary, error) {
	t := newTally()
	for i := range outcomes {
		if outcomes[i].Symbol != symbol {
			return model.AccuracySummary{}, fmt.Errorf("summarize %s: %w (got %s)", symbol, ErrSymbolMismatch, outcomes[i].Symbol)
		}
		t.add(&outcomes[i])
	}
	return t.summary(symbol), nil
}

// Overall aggregates outcomes across symbols. lastRun may be nil.
func Overall(outcomes []model.PredictionOutcome, lastRun *model.DailyExecutionLog) model.PerformanceMetrics {
	all := newTally()
	bySymbol := make(map[string]*tally)
	for i := range outcomes {
		o := &outcomes[i]
		all.add(o)
		st, ok := bySymbol[o.Symbol]
		if !ok {
			st = newTally()
			bySymbol[o.Symbol] = st
		}
		st.add(o)
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	overall := all.summary("")
	m := model.PerformanceMetrics{
		TotalSymbols:             len(symbols),
		TotalPredictions:         overall.TotalPredictions,
		SettledPredictions:       overall.SettledPredictions,
		OverallMape:              overall.AverageMape,
		OverallDirectionAccuracy: overall.DirectionAccuracyRate,
		HasDirectionData:         overall.HasDirectionData,
		SymbolSummaries:          make([]model.AccuracySummary, 0, len(symbols)),
	}
	for _, sym := range symbols {
		m.SymbolSummaries = append(m.SymbolSummaries, bySymbol[sym].summary(sym))
	}
	if lastRun != nil {
		d := lastRun.ExecutionDate
		m.LastExecutionDate = &d
		m.LastExecutionStatus = lastRun.Status
	}
	return m
}

// TopPerformers ranks symbols with at least minSettled settled outcomes by
// average MAPE ascending, then direction accuracy descending.
func TopPerformers(summaries []model.AccuracySummary, minSettled, limit int) []model.AccuracySummary {
	if minSettled <= 0 {
		minSettled = DefaultMinSettled
	}
	ranked := make([]model.AccuracySummary, 0, len(summaries))
	for _, s := range summaries {
		if s.SettledPredictions >= minSettled && s.HasMapeData {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AverageMape != ranked[j].AverageMape {
			return ranked[i].AverageMape < ranked[j].AverageMape
		}
		return ranked[i].DirectionAccuracyRate > ranked[j].DirectionAccuracyRate
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Trends groups outcomes by prediction day, newest day first.
func Trends(outcomes []model.PredictionOutcome) []model.AccuracyTrend {
	byDay := make(map[time.Time]*tally)
	for i := range outcomes {
		o := &outcomes[i]
		d := o.PredictionDate
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		t, ok := byDay[day]
		if !ok {
			t = newTally()
			byDay[day] = t
		}
		t.add(o)
	}

	trends := make([]model.AccuracyTrend, 0, len(byDay))
	for day, t := range byDay {
		s := t.summary("")
		tr := model.AccuracyTrend{
			Date:               day,
			TotalPredictions:   s.TotalPredictions,
			SettledPredictions: s.SettledPredictions,
		}
		if s.HasMapeData {
			v := s.AverageMape
			tr.AverageMape = &v
		}
		if s.HasDirectionData {
			v := s.DirectionAccuracyRate
			tr.DirectionAccuracy = &v
		}
		trends = append(trends, tr)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date.After(trends[j].Date) })
	return trends
}
