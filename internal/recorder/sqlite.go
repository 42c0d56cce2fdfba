package recorder

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"PredictionLedger/internal/model"
)

// SQLiteRecorder persists outcomes and execution logs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prediction_outcomes (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol              TEXT NOT NULL,
			prediction_date     TEXT NOT NULL,
			predicted_price     REAL,
			predicted_direction TEXT,
			confidence          REAL,
			prior_close         REAL,
			actual_close        REAL,
			accuracy_mape       REAL,
			direction_correct   INTEGER,
			market_was_open     INTEGER NOT NULL DEFAULT 1,
			predicted_at        INTEGER NOT NULL,
			settled_at          INTEGER,
			UNIQUE(symbol, prediction_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_date ON prediction_outcomes(prediction_date)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_pending ON prediction_outcomes(symbol) WHERE actual_close IS NULL`,

		`CREATE TABLE IF NOT EXISTS execution_logs (
			id                TEXT PRIMARY KEY,
			execution_date    TEXT NOT NULL,
			execution_type    TEXT NOT NULL,
			processed_symbols TEXT NOT NULL,
			succeeded_symbols TEXT NOT NULL,
			failed_symbols    TEXT NOT NULL,
			symbol_errors     TEXT NOT NULL,
			duration_ms       INTEGER NOT NULL,
			status            TEXT NOT NULL,
			error_message     TEXT,
			started_at        INTEGER NOT NULL,
			completed_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_started ON execution_logs(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

const outcomeColumns = `id, symbol, prediction_date, predicted_price, predicted_direction,
	confidence, prior_close, actual_close, accuracy_mape, direction_correct,
	market_was_open, predicted_at, settled_at`

// SaveOutcome inserts a pending outcome or replaces the pending one for the
// same symbol and day. o.ID is set on success.
func (r *SQLiteRecorder) SaveOutcome(o *model.PredictionOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.Settled() {
		return fmt.Errorf("save %s: %w", o.Symbol, model.ErrAlreadySettled)
	}

	var direction any
	if o.PredictedDirection != nil {
		direction = string(*o.PredictedDirection)
	}
	day := dayKey(o.PredictionDate)

	res, err := r.db.Exec(`INSERT INTO prediction_outcomes
		(symbol, prediction_date, predicted_price, predicted_direction, confidence,
		 prior_close, market_was_open, predicted_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol, prediction_date) DO UPDATE SET
			predicted_price     = excluded.predicted_price,
			predicted_direction = excluded.predicted_direction,
			confidence          = excluded.confidence,
			prior_close         = excluded.prior_close,
			market_was_open     = excluded.market_was_open,
			predicted_at        = excluded.predicted_at
		WHERE prediction_outcomes.actual_close IS NULL`,
		o.Symbol, day, nullFloat(o.PredictedPrice), direction, nullFloat(o.Confidence),
		nullFloat(o.PriorClose), o.MarketWasOpen, o.PredictedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", o.Symbol, day, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save %s %s: %w", o.Symbol, day, model.ErrAlreadySettled)
	}

	if err := r.db.QueryRow(`SELECT id FROM prediction_outcomes WHERE symbol = ? AND prediction_date = ?`,
		o.Symbol, day).Scan(&o.ID); err != nil {
		return fmt.Errorf("save %s %s: read id: %w", o.Symbol, day, err)
	}
	return nil
}

// SettleOutcome writes the settlement fields of o. It only touches a pending
// row, so a concurrent or repeated settlement fails with ErrAlreadySettled.
func (r *SQLiteRecorder) SettleOutcome(o model.PredictionOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := dayKey(o.PredictionDate)
	if !o.Settled() {
		return fmt.Errorf("settle %s %s: actual close missing: %w", o.Symbol, day, model.ErrSettlement)
	}

	var correct any
	if o.DirectionCorrect != nil {
		correct = *o.DirectionCorrect
	}
	var settledAt any
	if o.SettledAt != nil {
		settledAt = o.SettledAt.UnixMilli()
	}

	res, err := r.db.Exec(`UPDATE prediction_outcomes
		SET actual_close = ?, accuracy_mape = ?, direction_correct = ?, settled_at = ?
		WHERE symbol = ? AND prediction_date = ? AND actual_close IS NULL`,
		*o.ActualClose, nullFloat(o.AccuracyMape), correct, settledAt, o.Symbol, day,
	)
	if err != nil {
		return fmt.Errorf("settle %s %s: %w", o.Symbol, day, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle %s %s: %w", o.Symbol, day, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRow(`SELECT COUNT(*) FROM prediction_outcomes WHERE symbol = ? AND prediction_date = ?`,
		o.Symbol, day).Scan(&exists)
	if err != nil {
		return fmt.Errorf("settle %s %s: %w", o.Symbol, day, err)
	}
	if exists == 0 {
		return fmt.Errorf("settle %s %s: %w", o.Symbol, day, model.ErrPredictionNotFound)
	}
	return fmt.Errorf("settle %s %s: %w", o.Symbol, day, model.ErrAlreadySettled)
}

// GetOutcome returns the outcome for symbol on date.
func (r *SQLiteRecorder) GetOutcome(symbol string, date time.Time) (model.PredictionOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.db.QueryRow(`SELECT `+outcomeColumns+` FROM prediction_outcomes
		WHERE symbol = ? AND prediction_date = ?`, symbol, dayKey(date))
	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PredictionOutcome{}, fmt.Errorf("get %s %s: %w", symbol, dayKey(date), model.ErrPredictionNotFound)
	}
	return o, err
}

// PendingOutcomes returns unsettled outcomes of symbol dated strictly before
// before, oldest first.
func (r *SQLiteRecorder) PendingOutcomes(symbol string, before time.Time) ([]model.PredictionOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT `+outcomeColumns+` FROM prediction_outcomes
		WHERE symbol = ? AND prediction_date < ? AND actual_close IS NULL
		ORDER BY prediction_date ASC`, symbol, dayKey(before))
	if err != nil {
		return nil, fmt.Errorf("pending %s: %w", symbol, err)
	}
	return collectOutcomes(rows)
}

// ListOutcomes returns outcomes filtered and ordered by q.
func (r *SQLiteRecorder) ListOutcomes(q model.OutcomeQuery) ([]model.PredictionOutcome, error) {
	if !validOrder(q.OrderBy) {
		return nil, fmt.Errorf("order by %q: %w", q.OrderBy, model.ErrInvalidRange)
	}

	var where []string
	var args []any
	if q.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, q.Symbol)
	}
	if q.From != nil {
		where = append(where, "prediction_date >= ?")
		args = append(args, dayKey(*q.From))
	}
	if q.To != nil {
		where = append(where, "prediction_date <= ?")
		args = append(args, dayKey(*q.To))
	}
	if q.SettledOnly {
		where = append(where, "actual_close IS NOT NULL")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + outcomeColumns + ` FROM prediction_outcomes`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	switch q.OrderBy {
	case OrderByAccuracy:
		sb.WriteString(" ORDER BY accuracy_mape IS NULL, accuracy_mape " + dir)
	case OrderByConfidence:
		sb.WriteString(" ORDER BY confidence IS NULL, confidence " + dir)
	default:
		sb.WriteString(" ORDER BY prediction_date " + dir)
	}
	sb.WriteString(", symbol ASC, id ASC")

	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, max(q.Offset, 0))

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return collectOutcomes(rows)
}

// Symbols returns every symbol with at least one recorded outcome.
func (r *SQLiteRecorder) Symbols() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM prediction_outcomes ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AppendExecutionLog stores a finished run. Logs are append-only.
func (r *SQLiteRecorder) AppendExecutionLog(e model.DailyExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	processed, err := json.Marshal(nonNil(e.ProcessedSymbols))
	if err != nil {
		return err
	}
	succeeded, err := json.Marshal(nonNil(e.SucceededSymbols))
	if err != nil {
		return err
	}
	failed, err := json.Marshal(nonNil(e.FailedSymbols))
	if err != nil {
		return err
	}
	symbolErrors := e.SymbolErrors
	if symbolErrors == nil {
		symbolErrors = map[string]string{}
	}
	errs, err := json.Marshal(symbolErrors)
	if err != nil {
		return err
	}
	var completed any
	if e.CompletedAt != nil {
		completed = e.CompletedAt.UnixMilli()
	}

	_, err = r.db.Exec(`INSERT INTO execution_logs
		(id, execution_date, execution_type, processed_symbols, succeeded_symbols,
		 failed_symbols, symbol_errors, duration_ms, status, error_message,
		 started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, dayKey(e.ExecutionDate), string(e.Type), string(processed), string(succeeded),
		string(failed), string(errs), e.DurationMs, string(e.Status), e.ErrorMessage,
		e.StartedAt.UnixMilli(), completed,
	)
	if err != nil {
		return fmt.Errorf("append execution log %s: %w", e.ID, err)
	}
	return nil
}

// ListExecutionLogs returns up to limit logs, newest first. limit <= 0 means all.
func (r *SQLiteRecorder) ListExecutionLogs(limit int) ([]model.DailyExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT id, execution_date, execution_type, processed_symbols,
		succeeded_symbols, failed_symbols, symbol_errors, duration_ms, status,
		error_message, started_at, completed_at
		FROM execution_logs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var out []model.DailyExecutionLog
	for rows.Next() {
		var (
			e                                  model.DailyExecutionLog
			date, execType, status             string
			processed, succeeded, failed, errs string
			message                            sql.NullString
			started                            int64
			completed                          sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &date, &execType, &processed, &succeeded, &failed,
			&errs, &e.DurationMs, &status, &message, &started, &completed); err != nil {
			return nil, err
		}
		if e.ExecutionDate, err = parseDay(date); err != nil {
			return nil, fmt.Errorf("log %s: %w", e.ID, err)
		}
		e.Type = model.ExecutionType(execType)
		e.Status = model.RunStatus(status)
		e.ErrorMessage = message.String
		e.StartedAt = time.UnixMilli(started).UTC()
		if completed.Valid {
			t := time.UnixMilli(completed.Int64).UTC()
			e.CompletedAt = &t
		}
		for _, f := range []struct {
			raw string
			dst any
		}{
			{processed, &e.ProcessedSymbols},
			{succeeded, &e.SucceededSymbols},
			{failed, &e.FailedSymbols},
			{errs, &e.SymbolErrors},
		} {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return nil, fmt.Errorf("log %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (model.PredictionOutcome, error) {
	var (
		o                                          model.PredictionOutcome
		date                                       string
		predicted, confidence, prior, actual, mape sql.NullFloat64
		direction                                  sql.NullString
		correct                                    sql.NullBool
		predictedAt                                int64
		settledAt                                  sql.NullInt64
	)
	if err := row.Scan(&o.ID, &o.Symbol, &date, &predicted, &direction, &confidence,
		&prior, &actual, &mape, &correct, &o.MarketWasOpen, &predictedAt, &settledAt); err != nil {
		return o, err
	}

	d, err := parseDay(date)
	if err != nil {
		return o, fmt.Errorf("outcome %d: %w", o.ID, err)
	}
	o.PredictionDate = d
	o.PredictedAt = time.UnixMilli(predictedAt).UTC()
	o.PredictedPrice = floatPtr(predicted)
	o.Confidence = floatPtr(confidence)
	o.PriorClose = floatPtr(prior)
	o.ActualClose = floatPtr(actual)
	o.AccuracyMape = floatPtr(mape)
	if direction.Valid {
		dir := model.Direction(direction.String)
		o.PredictedDirection = &dir
	}
	if correct.Valid {
		c := correct.Bool
		o.DirectionCorrect = &c
	}
	if settledAt.Valid {
		t := time.UnixMilli(settledAt.Int64).UTC()
		o.SettledAt = &t
	}
	return o, nil
}

func collectOutcomes(rows *sql.Rows) ([]model.PredictionOutcome, error) {
	defer rows.Close()
	var out []model.PredictionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
