package tracker

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"PredictionLedger/internal/model"
)

// Run is the handle of one in-progress execution.
type Run struct {
	tracker *Tracker

	mu       sync.Mutex
	entry    model.DailyExecutionLog
	targets  map[string]bool
	done     map[string]bool
	finished bool
}

// ID returns the execution log id.
func (r *Run) ID() string { return r.entry.ID }

// Symbols returns the de-duplicated target symbols in request order.
func (r *Run) Symbols() []string {
	out := make([]string, len(r.entry.ProcessedSymbols))
	copy(out, r.entry.ProcessedSymbols)
	return out
}

// Succeed records a successfully processed symbol.
func (r *Run) Succeed(symbol string) error {
	return r.record(symbol, nil)
}

// Failed records a per-symbol failure. It never aborts the run.
func (r *Run) Failed(symbol string, cause error) error {
	if cause == nil {
		cause = errors.New("unspecified failure")
	}
	return r.record(symbol, cause)
}

func (r *Run) record(symbol string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return ErrRunFinished
	}
	if !r.targets[symbol] {
		return fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	if r.done[symbol] {
		return fmt.Errorf("%s: already recorded", symbol)
	}
	r.done[symbol] = true
	if cause != nil {
		r.entry.FailedSymbols = append(r.entry.FailedSymbols, symbol)
		r.entry.SymbolErrors[symbol] = cause.Error()
		return nil
	}
	r.entry.SucceededSymbols = append(r.entry.SucceededSymbols, symbol)
	return nil
}

// Complete ends the run once every symbol is accounted for. Symbols that
// failed individually are listed in the error message but do not fail the run.
func (r *Run) Complete(now time.Time) (model.DailyExecutionLog, error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return model.DailyExecutionLog{}, ErrRunFinished
	}
	if len(r.done) != len(r.targets) {
		pending := len(r.targets) - len(r.done)
		r.mu.Unlock()
		return model.DailyExecutionLog{}, fmt.Errorf("complete run %s: %d pending: %w", r.entry.ID, pending, ErrIncompleteRun)
	}
	r.entry.Status = model.RunCompleted
	if n := len(r.entry.FailedSymbols); n > 0 {
		r.entry.ErrorMessage = fmt.Sprintf("partial success: %d of %d symbols failed (%s)",
			n, len(r.targets), strings.Join(r.entry.FailedSymbols, ", "))
	}
	entry := r.closeLocked(now)
	r.mu.Unlock()

	r.tracker.finish(entry)
	return entry, nil
}

// Fail aborts the run with a fatal, run-level error.
// Symbols already recorded stay in the log.
func (r *Run) Fail(now time.Time, cause error) (model.DailyExecutionLog, error) {
	if cause == nil {
		return model.DailyExecutionLog{}, ErrMissingCause
	}
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return model.DailyExecutionLog{}, ErrRunFinished
	}
	r.entry.Status = model.RunFailed
	r.entry.ErrorMessage = cause.Error()
	entry := r.closeLocked(now)
	r.mu.Unlock()

	r.tracker.finish(entry)
	return entry, nil
}

func (r *Run) closeLocked(now time.Time) model.DailyExecutionLog {
	r.finished = true
	completed := now
	r.entry.CompletedAt = &completed
	r.entry.DurationMs = now.Sub(r.entry.StartedAt).Milliseconds()
	return cloneLog(r.entry)
}

func cloneLog(e model.DailyExecutionLog) model.DailyExecutionLog {
	e.ProcessedSymbols = append([]string{}, e.ProcessedSymbols...)
	e.SucceededSymbols = append([]string{}, e.SucceededSymbols...)
	e.FailedSymbols = append([]string{}, e.FailedSymbols...)
	errs := make(map[string]string, len(e.SymbolErrors))
	for k, v := range e.SymbolErrors {
		errs[k] = v
	}
	e.SymbolErrors = errs
	if e.CompletedAt != nil {
		c := *e.CompletedAt
		e.CompletedAt = &c
	}
	return e
}
