package recorder

import (
	"time"

	"PredictionLedger/internal/model"
)

// Recorder persists prediction outcomes and daily execution logs.
//
// Outcomes are keyed by (symbol, prediction date). Saving a prediction for a
// key that is still pending replaces it; once settled, an outcome is frozen and
// both SaveOutcome and SettleOutcome fail with model.ErrAlreadySettled.
type Recorder interface {
	SaveOutcome(o *model.PredictionOutcome) error
	SettleOutcome(o model.PredictionOutcome) error
	GetOutcome(symbol string, date time.Time) (model.PredictionOutcome, error)
	PendingOutcomes(symbol string, before time.Time) ([]model.PredictionOutcome, error)
	ListOutcomes(q model.OutcomeQuery) ([]model.PredictionOutcome, error)
	Symbols() ([]string, error)

	AppendExecutionLog(entry model.DailyExecutionLog) error
	ListExecutionLogs(limit int) ([]model.DailyExecutionLog, error)

	Close() error
}

// Order keys accepted by OutcomeQuery.OrderBy.
const (
	OrderByDate       = "date"
	OrderByAccuracy   = "accuracy"
	OrderByConfidence = "confidence"
)

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

func validOrder(orderBy string) bool {
	switch orderBy {
	case "", OrderByDate, OrderByAccuracy, OrderByConfidence:
		return true
	}
	return false
}
