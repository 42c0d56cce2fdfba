// Package service is the read/query facade over the ledger: historical series,
// accuracy reporting, manual settlement and daily-run control.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"PredictionLedger/internal/accuracy"
	"PredictionLedger/internal/calculator"
	"PredictionLedger/internal/collector"
	"PredictionLedger/internal/model"
	"PredictionLedger/internal/recorder"
	"PredictionLedger/internal/tracker"
)

const (
	DefaultDays     = 30
	DefaultPageSize = 10
)

// Runner executes a daily run. *scheduler.Scheduler satisfies it.
type Runner interface {
	RunDaily(ctx context.Context, req model.DailyRunRequest) (model.DailyExecutionLog, error)
}

// Service answers the questions the presentation layer asks.
type Service struct {
	Fetcher  collector.Fetcher
	Recorder recorder.Recorder
	Tracker  *tracker.Tracker
	Runner   Runner

	HoldBand   float64
	MinSettled int
	Now        func() time.Time
}

// New creates a Service with the default hold band and settled floor.
func New(fetcher collector.Fetcher, rec recorder.Recorder, tr *tracker.Tracker, runner Runner) *Service {
	return &Service{
		Fetcher:    fetcher,
		Recorder:   rec,
		Tracker:    tr,
		Runner:     runner,
		HoldBand:   accuracy.DefaultHoldBand,
		MinSettled: accuracy.DefaultMinSettled,
		Now:        time.Now,
	}
}

// SeriesRequest selects a page of a symbol's history.
type SeriesRequest struct {
	Symbol   string
	Days     int
	Sort     calculator.SortState
	Page     int
	PageSize int
}

// SeriesView is one rendered page of a historical series with its statistics.
// Summary and Indicators are nil when the series is empty.
type SeriesView struct {
	Symbol     string                 `json:"symbol"`
	Summary    *model.SeriesSummary   `json:"summary,omitempty"`
	Indicators *calculator.Indicators `json:"indicators,omitempty"`
	Sort       calculator.SortState   `json:"sort"`
	Page       calculator.Page        `json:"page"`
	PageLinks  []int                  `json:"page_links"`
}

// Series fetches, normalizes and summarizes a symbol's history and returns the
// requested sorted page. Defaults: 30 days, timestamp descending, page 1 of 10.
func (s *Service) Series(ctx context.Context, req SeriesRequest) (SeriesView, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return SeriesView{}, errors.New("symbol is required")
	}
	if req.Days <= 0 {
		req.Days = DefaultDays
	}
	if req.Sort.Column == "" {
		req.Sort = calculator.SortState{Column: calculator.ColumnTimestamp, Direction: calculator.Desc}
	}
	if req.Sort.Direction == "" {
		req.Sort.Direction = calculator.Asc
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = DefaultPageSize
	}

	points, err := s.Fetcher.FetchOhlcv(ctx, symbol, req.Days)
	if err != nil {
		return SeriesView{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	series, err := calculator.Normalize(points)
	if err != nil {
		return SeriesView{}, fmt.Errorf("normalize %s: %w", symbol, err)
	}

	view := SeriesView{Symbol: symbol, Sort: req.Sort}
	if len(series) > 0 {
		sum, err := calculator.Summarize(series)
		if err != nil {
			return SeriesView{}, err
		}
		view.Summary = &sum
		ind, err := calculator.CalculateIndicators(series)
		if err != nil {
			return SeriesView{}, err
		}
		view.Indicators = &ind
	}

	sorted, err := calculator.SortBy(series, req.Sort.Column, req.Sort.Direction)
	if err != nil {
		return SeriesView{}, err
	}
	page, err := calculator.Paginate(sorted, req.Page, req.PageSize)
	if err != nil {
		return SeriesView{}, err
	}
	view.Page = page
	view.PageLinks = calculator.PageWindow(page.Page, page.TotalPages, calculator.DefaultPageWindow)
	return view, nil
}

// AccuracySummary aggregates one symbol's outcomes dated within [from, to].
// Either bound may be nil.
func (s *Service) AccuracySummary(symbol string, from, to *time.Time) (model.AccuracySummary, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	outcomes, err := s.Recorder.ListOutcomes(model.OutcomeQuery{Symbol: symbol, From: from, To: to})
	if err != nil {
		return model.AccuracySummary{}, fmt.Errorf("accuracy %s: %w", symbol, err)
	}
	return accuracy.Summarize(symbol, outcomes)
}

// Overall aggregates every recorded outcome together with the latest run.
func (s *Service) Overall() (model.PerformanceMetrics, error) {
	outcomes, err := s.Recorder.ListOutcomes(model.OutcomeQuery{})
	if err != nil {
		return model.PerformanceMetrics{}, fmt.Errorf("overall accuracy: %w", err)
	}
	var last *model.DailyExecutionLog
	if s.Tracker != nil {
		if l, ok := s.Tracker.Latest(); ok {
			last = &l
		}
	}
	return accuracy.Overall(outcomes, last), nil
}

// TopPerformers ranks symbols with enough settled outcomes.
func (s *Service) TopPerformers(limit int) ([]model.AccuracySummary, error) {
	m, err := s.Overall()
	if err != nil {
		return nil, err
	}
	return accuracy.TopPerformers(m.SymbolSummaries, s.MinSettled, limit), nil
}

// Trends returns per-day accuracy for outcomes within [from, to], newest first.
func (s *Service) Trends(symbol string, from, to *time.Time) ([]model.AccuracyTrend, error) {
	outcomes, err := s.Recorder.ListOutcomes(model.OutcomeQuery{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, fmt.Errorf("accuracy trends: %w", err)
	}
	return accuracy.Trends(outcomes), nil
}

// Symbols lists every symbol with a recorded prediction.
func (s *Service) Symbols() ([]string, error) {
	return s.Recorder.Symbols()
}

// History lists recorded predictions.
func (s *Service) History(q model.OutcomeQuery) ([]model.PredictionOutcome, error) {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	return s.Recorder.ListOutcomes(q)
}

// SettleManual attaches an actual close to the pending prediction of symbol on
// date. A missing prediction yields model.ErrPredictionNotFound and a settled
// one model.ErrAlreadySettled.
func (s *Service) SettleManual(symbol string, date time.Time, actualClose float64) (model.PredictionOutcome, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	o, err := s.Recorder.GetOutcome(symbol, date)
	if err != nil {
		return model.PredictionOutcome{}, err
	}
	settled, err := accuracy.Settle(o, actualClose, s.HoldBand, s.Now())
	if err != nil {
		return model.PredictionOutcome{}, err
	}
	if err := s.Recorder.SettleOutcome(settled); err != nil {
		return model.PredictionOutcome{}, err
	}
	log.Info().Str("symbol", symbol).Str("prediction_date", date.Format(time.DateOnly)).
		Float64("actual", actualClose).Msg("prediction settled manually")
	return settled, nil
}

// DailyStatus returns the published status of the last finished run.
func (s *Service) DailyStatus() model.DailyRunStatus {
	return s.Tracker.Status()
}

// DailyHistory returns up to limit finished runs, newest first.
func (s *Service) DailyHistory(limit int) []model.DailyExecutionLog {
	return s.Tracker.History(limit)
}

// TriggerDailyRun starts a manual run and waits for it to finish.
func (s *Service) TriggerDailyRun(ctx context.Context, req model.DailyRunRequest) (model.DailyExecutionLog, error) {
	if req.Type == "" {
		req.Type = model.ExecutionManual
	}
	return s.Runner.RunDaily(ctx, req)
}
