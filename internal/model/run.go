package model

import "time"

// RunStatus is the lifecycle state of a daily prediction run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// ExecutionType indicates what triggered the run.
type ExecutionType string

const (
	ExecutionScheduled ExecutionType = "scheduled"
	ExecutionManual    ExecutionType = "manual"
)

// DailyRunStatus is a read-only snapshot of the latest finished run.
// It is replaced as a whole, never edited in place.
type DailyRunStatus struct {
	LastExecutionDate *time.Time `json:"last_execution_date,omitempty"`
	LastStatus        RunStatus  `json:"last_status"`
	NextScheduledRun  *time.Time `json:"next_scheduled_run,omitempty"`
	Enabled           bool       `json:"enabled"`
	TotalSymbols      int        `json:"total_symbols"`
	SuccessCount      int        `json:"success_count"`
	FailureCount      int        `json:"failure_count"`
	DurationMs        *int64     `json:"duration_ms,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
}

// DailyExecutionLog is the append-only record of one run.
type DailyExecutionLog struct {
	ID               string            `json:"id"`
	ExecutionDate    time.Time         `json:"execution_date"`
	Type             ExecutionType     `json:"type"`
	ProcessedSymbols []string          `json:"processed_symbols"`
	SucceededSymbols []string          `json:"succeeded_symbols"`
	FailedSymbols    []string          `json:"failed_symbols"`
	SymbolErrors     map[string]string `json:"symbol_errors,omitempty"`
	DurationMs       int64             `json:"duration_ms"`
	Status           RunStatus         `json:"status"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// DailyRunRequest asks for a daily run.
type DailyRunRequest struct {
	Symbols []string      `json:"symbols"` // empty means the configured universe
	Date    *time.Time    `json:"date"`    // empty means today
	Force   bool          `json:"force"`   // run even if the market was closed
	Type    ExecutionType `json:"type"`
}
