// Package tracker models daily prediction runs and publishes their status.
//
// Only one run may hold the slot at a time. A run's progress is private to
// its Run handle; readers of Status only ever see the snapshot of the last
// finished run, swapped in as a whole when the next one finishes.
package tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"PredictionLedger/internal/model"
)

// DefaultHistoryLimit bounds the in-memory execution history.
const DefaultHistoryLimit = 100

var (
	ErrIncompleteRun = errors.New("run has unprocessed symbols")
	ErrRunFinished   = errors.New("run already finished")
	ErrUnknownSymbol = errors.New("symbol is not part of this run")
	ErrMissingCause  = errors.New("failing a run requires an error")
)

// LogSink receives every finished execution log, e.g. for persistence.
type LogSink interface {
	AppendExecutionLog(entry model.DailyExecutionLog) error
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSchedule sets the cron schedule used for NextScheduledRun.
func WithSchedule(s cron.Schedule) Option { return func(t *Tracker) { t.schedule = s } }

// WithEnabled marks whether scheduled runs are enabled.
func WithEnabled(enabled bool) Option { return func(t *Tracker) { t.enabled = enabled } }

// WithSink forwards finished logs to sink.
func WithSink(sink LogSink) Option { return func(t *Tracker) { t.sink = sink } }

// WithHistoryLimit bounds how many logs are kept in memory.
func WithHistoryLimit(n int) Option { return func(t *Tracker) { t.historyLimit = n } }

// WithClock overrides time.Now for the initial snapshot.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// Tracker owns the run slot, the published status and the execution history.
type Tracker struct {
	mu           sync.Mutex // serializes finishing runs and history access
	running      atomic.Bool
	status       atomic.Pointer[model.DailyRunStatus]
	history      []model.DailyExecutionLog // newest first
	historyLimit int
	enabled      bool
	schedule     cron.Schedule
	sink         LogSink
	now          func() time.Time
}

// New creates a Tracker with an initial pending status.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		historyLimit: DefaultHistoryLimit,
		enabled:      true,
		now:          time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	initial := &model.DailyRunStatus{
		LastStatus:       model.RunPending,
		Enabled:          t.enabled,
		NextScheduledRun: t.nextRun(t.now()),
	}
	t.status.Store(initial)
	return t
}

// Status returns the last published snapshot. The returned value is a copy.
func (t *Tracker) Status() model.DailyRunStatus {
	return *t.status.Load()
}

// Running reports whether a run currently holds the slot.
func (t *Tracker) Running() bool {
	return t.running.Load()
}

// History returns up to limit finished logs, newest first. limit <= 0 means all.
func (t *Tracker) History(limit int) []model.DailyExecutionLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.DailyExecutionLog, n)
	copy(out, t.history[:n])
	return out
}

// Latest returns the most recent finished log.
func (t *Tracker) Latest() (model.DailyExecutionLog, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return model.DailyExecutionLog{}, false
	}
	return t.history[0], true
}

// Restore seeds history and status from persisted logs (newest first).
// It is a no-op once any run has finished in this process.
func (t *Tracker) Restore(logs []model.DailyExecutionLog) {
	if len(logs) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) > 0 {
		return
	}
	t.history = append(t.history, logs...)
	t.trimLocked()
	t.publishLocked(t.history[0])
}

// Begin claims the run slot and starts a run over symbols dated now.
// A second Begin while a run is in progress fails with model.ErrAlreadyRunning.
func (t *Tracker) Begin(execType model.ExecutionType, symbols []string, now time.Time) (*Run, error) {
	return t.BeginOn(execType, now, symbols, now)
}

// BeginOn is Begin for a run processing the session of date, which may differ
// from the wall-clock start.
func (t *Tracker) BeginOn(execType model.ExecutionType, date time.Time, symbols []string, now time.Time) (*Run, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, model.ErrAlreadyRunning
	}
	if execType == "" {
		execType = model.ExecutionManual
	}

	targets := make(map[string]bool, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !targets[s] {
			targets[s] = true
			unique = append(unique, s)
		}
	}

	r := &Run{
		tracker: t,
		targets: targets,
		done:    make(map[string]bool, len(unique)),
		entry: model.DailyExecutionLog{
			ID:               uuid.NewString(),
			ExecutionDate:    time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()),
			Type:             execType,
			ProcessedSymbols: unique,
			SucceededSymbols: []string{},
			FailedSymbols:    []string{},
			SymbolErrors:     map[string]string{},
			Status:           model.RunRunning,
			StartedAt:        now,
		},
	}
	log.Info().Str("run_id", r.entry.ID).Str("type", string(execType)).Int("symbols", len(unique)).Msg("daily run started")
	return r, nil
}

// finish records a terminal log, publishes its status and frees the slot.
func (t *Tracker) finish(entry model.DailyExecutionLog) {
	t.mu.Lock()
	t.history = append([]model.DailyExecutionLog{entry}, t.history...)
	t.trimLocked()
	t.publishLocked(entry)
	t.mu.Unlock()

	t.running.Store(false)

	ev := log.Info()
	if entry.Status == model.RunFailed {
		ev = log.Error().Str("error", entry.ErrorMessage)
	}
	ev.Str("run_id", entry.ID).
		Str("status", string(entry.Status)).
		Int("succeeded", len(entry.SucceededSymbols)).
		Int("failed", len(entry.FailedSymbols)).
		Int64("duration_ms", entry.DurationMs).
		Msg("daily run finished")

	if t.sink != nil {
		if err := t.sink.AppendExecutionLog(entry); err != nil {
			log.Error().Err(err).Str("run_id", entry.ID).Msg("persist execution log")
		}
	}
}

func (t *Tracker) publishLocked(entry model.DailyExecutionLog) {
	date := entry.ExecutionDate
	duration := entry.DurationMs
	st := &model.DailyRunStatus{
		LastExecutionDate: &date,
		LastStatus:        entry.Status,
		Enabled:           t.enabled,
		TotalSymbols:      len(entry.ProcessedSymbols),
		SuccessCount:      len(entry.SucceededSymbols),
		FailureCount:      len(entry.FailedSymbols),
		DurationMs:        &duration,
	}
	if entry.ErrorMessage != "" {
		msg := entry.ErrorMessage
		st.ErrorMessage = &msg
	}
	// a restored log may be old; never schedule before the clock
	from := entry.StartedAt
	if entry.CompletedAt != nil {
		from = *entry.CompletedAt
	}
	if now := t.now(); now.After(from) {
		from = now
	}
	st.NextScheduledRun = t.nextRun(from)
	t.status.Store(st)
}

func (t *Tracker) trimLocked() {
	if t.historyLimit > 0 && len(t.history) > t.historyLimit {
		t.history = t.history[:t.historyLimit]
	}
}

func (t *Tracker) nextRun(from time.Time) *time.Time {
	if t.schedule == nil || !t.enabled {
		return nil
	}
	next := t.schedule.Next(from)
	if next.IsZero() {
		return nil
	}
	return &next
}
