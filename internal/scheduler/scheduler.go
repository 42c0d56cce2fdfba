package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"PredictionLedger/internal/calendar"
	"PredictionLedger/internal/collector"
	"PredictionLedger/internal/metrics"
	"PredictionLedger/internal/model"
	"PredictionLedger/internal/notifier"
	"PredictionLedger/internal/recorder"
	"PredictionLedger/internal/tracker"
)

// ErrMarketClosed fails a run whose previous session had no trading.
var ErrMarketClosed = errors.New("market was closed")

// Deps are the collaborators of a Scheduler. Notifier and Metrics are optional.
type Deps struct {
	Tracker   *tracker.Tracker
	Fetcher   collector.Fetcher
	Predictor collector.Predictor
	Recorder  recorder.Recorder
	Calendar  *calendar.Calendar
	Notifier  notifier.Notifier
	Metrics   *metrics.Recorder
}

// Options tune the daily run.
type Options struct {
	Symbols   []string
	RangeDays int
	HoldBand  float64
	Location  *time.Location
	Limiter   *rate.Limiter
	Now       func() time.Time
}

// Scheduler manages the cron task and executes daily prediction runs.
type Scheduler struct {
	Cron *cron.Cron
	Deps
	opts Options
	Ctx  context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RangeDays <= 0 {
		opts.RangeDays = 30
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Calendar == nil {
		deps.Calendar = calendar.New()
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds(), cron.WithLocation(opts.Location)),
		Deps: deps,
		opts: opts,
		Ctx:  ctx,
	}
}

// RegisterDaily registers the scheduled daily run.
func (s *Scheduler) RegisterDaily(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) dailyTask() {
	_, err := s.RunDaily(s.Ctx, model.DailyRunRequest{Type: model.ExecutionScheduled})
	if errors.Is(err, model.ErrAlreadyRunning) {
		log.Warn().Msg("scheduled run skipped: a run is already in progress")
	} else if err != nil {
		log.Error().Err(err).Msg("scheduled run")
	}
}

// RunDaily executes one daily run: settle the previous predictions and record
// a new one per symbol. Per-symbol failures are logged in the run; only a
// closed market or an unreachable prediction service fail the whole run.
// A run already in progress yields model.ErrAlreadyRunning.
func (s *Scheduler) RunDaily(ctx context.Context, req model.DailyRunRequest) (model.DailyExecutionLog, error) {
	symbols := normalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		symbols = normalizeSymbols(s.opts.Symbols)
	}
	execType := req.Type
	if execType == "" {
		execType = model.ExecutionManual
	}

	start := s.opts.Now()
	local := start.In(s.opts.Location)
	if req.Date != nil {
		local = req.Date.In(s.opts.Location)
	}
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	run, err := s.Tracker.BeginOn(execType, date, symbols, start)
	if err != nil {
		return model.DailyExecutionLog{}, err
	}

	prev := date.AddDate(0, 0, -1)
	marketWasOpen := s.Calendar.IsTradingDay(prev)
	if !marketWasOpen && !req.Force {
		reason := "weekend"
		if name, ok := s.Calendar.Holiday(prev); ok {
			reason = name
		}
		cause := fmt.Errorf("%w on %s (%s), skipping execution", ErrMarketClosed, prev.Format(time.DateOnly), reason)
		if last, err := s.Calendar.PreviousTradingDay(date); err == nil {
			cause = fmt.Errorf("%w on %s (%s), last session %s, skipping execution",
				ErrMarketClosed, prev.Format(time.DateOnly), reason, last.Format(time.DateOnly))
		}
		return s.fail(ctx, run, cause)
	}

	if err := s.Predictor.Ping(ctx); err != nil {
		return s.fail(ctx, run, fmt.Errorf("prediction service unavailable: %w", err))
	}

	for _, symbol := range run.Symbols() {
		if err := s.processSymbol(ctx, symbol, date, marketWasOpen); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Str("run_id", run.ID()).Msg("symbol failed")
			_ = run.Failed(symbol, err)
			continue
		}
		_ = run.Succeed(symbol)
	}

	entry, err := run.Complete(s.opts.Now())
	if err != nil {
		return model.DailyExecutionLog{}, err
	}
	s.report(ctx, entry)
	return entry, nil
}

func (s *Scheduler) fail(ctx context.Context, run *tracker.Run, cause error) (model.DailyExecutionLog, error) {
	entry, err := run.Fail(s.opts.Now(), cause)
	if err != nil {
		return model.DailyExecutionLog{}, err
	}
	s.report(ctx, entry)
	return entry, nil
}

func (s *Scheduler) report(ctx context.Context, entry model.DailyExecutionLog) {
	s.Metrics.RecordRun(entry)
	s.trySend(ctx, notifier.FormatRunReport(entry))
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
