package recorder

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"PredictionLedger/internal/model"
)

// MemoryRecorder keeps everything in process memory. It is used when no
// database is configured and in tests.
type MemoryRecorder struct {
	mu       sync.Mutex
	nextID   int64
	outcomes map[string]model.PredictionOutcome
	logs     []model.DailyExecutionLog
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{outcomes: make(map[string]model.PredictionOutcome)}
}

func outcomeKey(symbol string, date time.Time) string {
	return symbol + "|" + dayKey(date)
}

func normalizeDay(t time.Time) time.Time {
	d, _ := parseDay(dayKey(t))
	return d
}

func (m *MemoryRecorder) SaveOutcome(o *model.PredictionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := outcomeKey(o.Symbol, o.PredictionDate)
	if o.Settled() {
		return fmt.Errorf("save %s: %w", o.Symbol, model.ErrAlreadySettled)
	}
	if prev, ok := m.outcomes[key]; ok {
		if prev.Settled() {
			return fmt.Errorf("save %s %s: %w", o.Symbol, dayKey(o.PredictionDate), model.ErrAlreadySettled)
		}
		o.ID = prev.ID
	} else {
		m.nextID++
		o.ID = m.nextID
	}

	stored := *o
	stored.PredictionDate = normalizeDay(o.PredictionDate)
	stored.PredictedAt = o.PredictedAt.UTC()
	m.outcomes[key] = stored
	return nil
}

func (m *MemoryRecorder) SettleOutcome(o model.PredictionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(o.PredictionDate)
	if !o.Settled() {
		return fmt.Errorf("settle %s %s: actual close missing: %w", o.Symbol, day, model.ErrSettlement)
	}
	key := outcomeKey(o.Symbol, o.PredictionDate)
	prev, ok := m.outcomes[key]
	if !ok {
		return fmt.Errorf("settle %s %s: %w", o.Symbol, day, model.ErrPredictionNotFound)
	}
	if prev.Settled() {
		return fmt.Errorf("settle %s %s: %w", o.Symbol, day, model.ErrAlreadySettled)
	}

	prev.ActualClose = o.ActualClose
	prev.AccuracyMape = o.AccuracyMape
	prev.DirectionCorrect = o.DirectionCorrect
	if o.SettledAt != nil {
		t := o.SettledAt.UTC()
		prev.SettledAt = &t
	}
	m.outcomes[key] = prev
	return nil
}

func (m *MemoryRecorder) GetOutcome(symbol string, date time.Time) (model.PredictionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.outcomes[outcomeKey(symbol, date)]
	if !ok {
		return model.PredictionOutcome{}, fmt.Errorf("get %s %s: %w", symbol, dayKey(date), model.ErrPredictionNotFound)
	}
	return o, nil
}

func (m *MemoryRecorder) PendingOutcomes(symbol string, before time.Time) ([]model.PredictionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := dayKey(before)
	var out []model.PredictionOutcome
	for _, o := range m.outcomes {
		if o.Symbol == symbol && !o.Settled() && dayKey(o.PredictionDate) < cutoff {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PredictionDate.Before(out[j].PredictionDate) })
	return out, nil
}

func (m *MemoryRecorder) ListOutcomes(q model.OutcomeQuery) ([]model.PredictionOutcome, error) {
	if !validOrder(q.OrderBy) {
		return nil, fmt.Errorf("order by %q: %w", q.OrderBy, model.ErrInvalidRange)
	}

	m.mu.Lock()
	var out []model.PredictionOutcome
	for _, o := range m.outcomes {
		if q.Symbol != "" && o.Symbol != q.Symbol {
			continue
		}
		if q.From != nil && dayKey(o.PredictionDate) < dayKey(*q.From) {
			continue
		}
		if q.To != nil && dayKey(o.PredictionDate) > dayKey(*q.To) {
			continue
		}
		if q.SettledOnly && !o.Settled() {
			continue
		}
		out = append(out, o)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := compareOutcomes(a, b, q.OrderBy, q.Descending); c != 0 {
			return c < 0
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ID < b.ID
	})

	offset := max(q.Offset, 0)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// compareOutcomes orders by the query key; missing values always sort last.
func compareOutcomes(a, b model.PredictionOutcome, orderBy string, desc bool) int {
	var av, bv *float64
	switch orderBy {
	case OrderByAccuracy:
		av, bv = a.AccuracyMape, b.AccuracyMape
	case OrderByConfidence:
		av, bv = a.Confidence, b.Confidence
	default:
		c := a.PredictionDate.Compare(b.PredictionDate)
		if desc {
			c = -c
		}
		return c
	}

	switch {
	case av == nil && bv == nil:
		return 0
	case av == nil:
		return 1
	case bv == nil:
		return -1
	}
	c := 0
	if *av < *bv {
		c = -1
	} else if *av > *bv {
		c = 1
	}
	if desc {
		c = -c
	}
	return c
}

func (m *MemoryRecorder) Symbols() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, o := range m.outcomes {
		if !seen[o.Symbol] {
			seen[o.Symbol] = true
			out = append(out, o.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryRecorder) AppendExecutionLog(e model.DailyExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append([]model.DailyExecutionLog{e}, m.logs...)
	return nil
}

func (m *MemoryRecorder) ListExecutionLogs(limit int) ([]model.DailyExecutionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.logs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.DailyExecutionLog, n)
	copy(out, m.logs[:n])
	return out, nil
}

func (m *MemoryRecorder) Close() error { return nil }
