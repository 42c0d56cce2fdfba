package tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionLedger/internal/model"
)

var start = time.Date(2025, 3, 4, 1, 0, 0, 0, time.UTC)

type memorySink struct {
	mu   sync.Mutex
	logs []model.DailyExecutionLog
}

func (m *memorySink) AppendExecutionLog(e model.DailyExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

func TestTracker_InitialStatus(t *testing.T) {
	sched, err := cron.ParseStandard("CRON_TZ=UTC 0 1 * * 1-5")
	require.NoError(t, err)

	tr := New(WithSchedule(sched), WithClock(func() time.Time { return start }))
	st := tr.Status()
	assert.Equal(t, model.RunPending, st.LastStatus)
	assert.True(t, st.Enabled)
	assert.Nil(t, st.LastExecutionDate)
	require.NotNil(t, st.NextScheduledRun)
	assert.True(t, start.AddDate(0, 0, 1).Equal(*st.NextScheduledRun), "next run %s", st.NextScheduledRun)
	assert.False(t, tr.Running())
}

func TestTracker_CompleteWithPerSymbolFailure(t *testing.T) {
	sink := &memorySink{}
	tr := New(WithSink(sink))

	run, err := tr.Begin(model.ExecutionScheduled, []string{"NVDA", "TSLA", "AAPL", "NVDA"}, start)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "TSLA", "AAPL"}, run.Symbols())

	require.NoError(t, run.Succeed("NVDA"))
	require.NoError(t, run.Failed("TSLA", errors.New("fetch ohlcv: timeout")))

	// not every symbol processed yet
	_, err = run.Complete(start.Add(time.Second))
	assert.ErrorIs(t, err, ErrIncompleteRun)
	assert.True(t, tr.Running())

	require.NoError(t, run.Succeed("AAPL"))
	entry, err := run.Complete(start.Add(2 * time.Second))
	require.NoError(t, err)

	assert.Equal(t, model.RunCompleted, entry.Status)
	assert.Equal(t, int64(2000), entry.DurationMs)
	assert.Equal(t, "fetch ohlcv: timeout", entry.SymbolErrors["TSLA"])
	assert.Contains(t, entry.ErrorMessage, "TSLA")

	st := tr.Status()
	assert.Equal(t, model.RunCompleted, st.LastStatus)
	assert.Equal(t, st.TotalSymbols, st.SuccessCount+st.FailureCount)
	assert.Equal(t, 3, st.TotalSymbols)
	assert.Equal(t, 1, st.FailureCount)
	assert.False(t, tr.Running())

	require.Len(t, sink.logs, 1)
	assert.Equal(t, entry.ID, sink.logs[0].ID)

	_, err = run.Complete(start.Add(3 * time.Second))
	assert.ErrorIs(t, err, ErrRunFinished)
	assert.ErrorIs(t, run.Succeed("AAPL"), ErrRunFinished)
}

func TestTracker_FailRequiresMessage(t *testing.T) {
	tr := New()
	run, err := tr.Begin(model.ExecutionManual, []string{"NVDA", "TSLA"}, start)
	require.NoError(t, err)
	require.NoError(t, run.Succeed("NVDA"))

	_, err = run.Fail(start, nil)
	assert.ErrorIs(t, err, ErrMissingCause)

	entry, err := run.Fail(start.Add(time.Second), errors.New("prediction service unreachable"))
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, entry.Status)
	assert.Equal(t, []string{"NVDA"}, entry.SucceededSymbols)

	st := tr.Status()
	assert.Equal(t, model.RunFailed, st.LastStatus)
	require.NotNil(t, st.ErrorMessage)
	assert.Equal(t, "prediction service unreachable", *st.ErrorMessage)
}

func TestTracker_RejectsConcurrentBegin(t *testing.T) {
	tr := New()
	run, err := tr.Begin(model.ExecutionScheduled, []string{"NVDA"}, start)
	require.NoError(t, err)

	_, err = tr.Begin(model.ExecutionManual, []string{"NVDA"}, start)
	assert.ErrorIs(t, err, model.ErrAlreadyRunning)

	require.NoError(t, run.Succeed("NVDA"))
	_, err = run.Complete(start)
	require.NoError(t, err)

	_, err = tr.Begin(model.ExecutionManual, []string{"NVDA"}, start)
	assert.NoError(t, err)
}

func TestTracker_OnlyOneOfManyRacingBeginsWins(t *testing.T) {
	tr := New()
	var wins, rejects atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Begin(model.ExecutionManual, []string{"SPY"}, start); err != nil {
				assert.ErrorIs(t, err, model.ErrAlreadyRunning)
				rejects.Add(1)
				return
			}
			wins.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), rejects.Load())
}

func TestTracker_StatusHidesRunInProgress(t *testing.T) {
	tr := New()
	run, err := tr.Begin(model.ExecutionManual, []string{"NVDA", "TSLA"}, start)
	require.NoError(t, err)
	require.NoError(t, run.Succeed("NVDA"))

	st := tr.Status()
	assert.Equal(t, model.RunPending, st.LastStatus)
	assert.Equal(t, 0, st.SuccessCount)
}

func TestTracker_ReadersSeeConsistentSnapshots(t *testing.T) {
	tr := New()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := tr.Status()
				assert.NotEqual(t, model.RunRunning, st.LastStatus)
				if st.LastStatus == model.RunCompleted {
					assert.Equal(t, st.TotalSymbols, st.SuccessCount+st.FailureCount)
				}
			}
		}()
	}

	symbols := []string{"A", "B", "C", "D"}
	for i := 0; i < 50; i++ {
		run, err := tr.Begin(model.ExecutionScheduled, symbols, start)
		require.NoError(t, err)
		for j, s := range symbols {
			if (i+j)%3 == 0 {
				require.NoError(t, run.Failed(s, errors.New("boom")))
			} else {
				require.NoError(t, run.Succeed(s))
			}
		}
		_, err = run.Complete(start.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Len(t, tr.History(0), 50)
	assert.Len(t, tr.History(5), 5)
}

func TestTracker_HistoryLimitAndOrder(t *testing.T) {
	tr := New(WithHistoryLimit(2))
	var ids []string
	for i := 0; i < 3; i++ {
		run, err := tr.Begin(model.ExecutionManual, nil, start)
		require.NoError(t, err)
		entry, err := run.Complete(start)
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}
	h := tr.History(0)
	require.Len(t, h, 2)
	assert.Equal(t, ids[2], h[0].ID)
	assert.Equal(t, ids[1], h[1].ID)

	latest, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, ids[2], latest.ID)
}

func TestTracker_Restore(t *testing.T) {
	completed := start.Add(time.Minute)
	persisted := []model.DailyExecutionLog{{
		ID:               "prev",
		ExecutionDate:    start,
		Status:           model.RunCompleted,
		ProcessedSymbols: []string{"NVDA", "TSLA"},
		SucceededSymbols: []string{"NVDA", "TSLA"},
		FailedSymbols:    []string{},
		StartedAt:        start,
		CompletedAt:      &completed,
		DurationMs:       60000,
	}}

	tr := New(WithEnabled(false))
	tr.Restore(persisted)

	st := tr.Status()
	assert.Equal(t, model.RunCompleted, st.LastStatus)
	assert.Equal(t, 2, st.SuccessCount)
	assert.False(t, st.Enabled)
	assert.Nil(t, st.NextScheduledRun)
	assert.Len(t, tr.History(0), 1)
}

func TestTracker_RestoreSchedulesFromClock(t *testing.T) {
	completed := time.Date(2025, 6, 1, 1, 5, 0, 0, time.UTC)
	clock := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	sched, err := cron.ParseStandard("CRON_TZ=UTC 0 1 * * *")
	require.NoError(t, err)

	tr := New(WithSchedule(sched), WithClock(func() time.Time { return clock }))
	tr.Restore([]model.DailyExecutionLog{{
		ID:            "old",
		ExecutionDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:        model.RunCompleted,
		StartedAt:     completed.Add(-time.Minute),
		CompletedAt:   &completed,
	}})

	st := tr.Status()
	require.NotNil(t, st.NextScheduledRun)
	assert.True(t, st.NextScheduledRun.After(clock))
	assert.True(t, time.Date(2025, 6, 11, 1, 0, 0, 0, time.UTC).Equal(*st.NextScheduledRun))
}

func TestTracker_BeginOnKeepsRequestedDate(t *testing.T) {
	tr := New()
	date := time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC)
	run, err := tr.BeginOn(model.ExecutionManual, date, []string{"NVDA"}, start)
	require.NoError(t, err)
	require.NoError(t, run.Succeed("NVDA"))

	entry, err := run.Complete(start.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, date, entry.ExecutionDate)
	assert.Equal(t, start, entry.StartedAt)
}
