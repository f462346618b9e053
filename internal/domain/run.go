package domain

import (
	"errors"
	"time"
)

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusTimeout   RunStatus = "timeout"
)

// IsTerminal reports whether the status is one a Run never leaves once
// reached (completed, failed, cancelled, timeout).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusTimeout:
		return true
	default:
		return false
	}
}

var ErrRunNotFound = errors.New("run not found")

// Run is one execution (scheduled or ad-hoc) of a Query against its
// Datasource. Once a Run reaches a terminal status it is never mutated
// again.
type Run struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organization_id"`
	QueryID         string     `json:"query_id"`
	DatasourceID    string     `json:"datasource_id"`
	ScheduleID      *string    `json:"schedule_id,omitempty"`
	Status          RunStatus  `json:"status"`
	ExecutedSQL     string     `json:"executed_sql"`     // positional SQL ($1, $2, ...) bound at create time, immutable thereafter
	Params          []byte     `json:"-"`                // JSON-encoded []params.TypedValue, positionally matching ExecutedSQL's placeholders
	TimeoutSeconds  int        `json:"timeout_seconds"`
	MaxRows         int        `json:"max_rows"`
	RunnerID        *string    `json:"runner_id,omitempty"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

// ColumnDef describes one output column of a RunResult by name and its
// source data type, mirroring connector.ColumnDef without depending on
// the connector package from domain.
type ColumnDef struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// RunResult holds the query output for a completed Run. Results expire
// and may be garbage-collected after ExpiresAt (7 days, matching the
// retention period the metadata store was grounded on).
type RunResult struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Columns     []ColumnDef `json:"columns"`
	Rows        [][]any     `json:"rows"`
	RowCount    int         `json:"row_count"`
	ByteCount   int64       `json:"byte_count"`
	ExecutionMs float64     `json:"execution_ms"`
	Truncated   bool        `json:"truncated"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

const RunResultRetention = 7 * 24 * time.Hour
