// Package connector executes validated, parameter-bound SQL against a
// tenant's own datasource and normalizes the result into JSON-friendly
// rows, independent of the underlying column types.
package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brightmesh/querycore/internal/params"
)

// ColumnDef describes one output column of a query result.
type ColumnDef struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Output is the normalized result of executing a query.
type Output struct {
	Columns       []ColumnDef `json:"columns"`
	Rows          [][]any     `json:"rows"`
	RowCount      int         `json:"row_count"`
	ExecutionTime time.Duration
}

// TableSchema describes one table (or view) and its columns.
type TableSchema struct {
	Schema  string         `json:"schema"`
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// ColumnSchema describes one column of a TableSchema.
type ColumnSchema struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// Connector runs queries against a tenant's datasource. Implementations own
// a connection pool to that datasource, separate from the control-plane
// Postgres pool used for Run/Query/Schedule bookkeeping.
type Connector interface {
	TestConnection(ctx context.Context) (time.Duration, error)
	Execute(ctx context.Context, sql string, timeout time.Duration, maxRows int) (*Output, error)
	ExecuteWithParams(ctx context.Context, sql string, values []params.TypedValue, timeout time.Duration, maxRows int) (*Output, error)
	GetSchema(ctx context.Context) ([]TableSchema, error)
	Close()
}

// wrapWithLimit bounds a validated SELECT statement so a runaway query
// cannot return more rows than the caller's configured max, regardless of
// what the statement itself does (ORDER BY, aggregates, subqueries).
func wrapWithLimit(sql string, maxRows int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	return fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", trimmed, maxRows)
}
