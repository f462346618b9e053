package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightmesh/querycore/internal/params"
)

// PostgresConnector executes queries against a tenant's own Postgres
// database, using a small dedicated pool distinct from the control-plane
// pool that owns Run/Query/Schedule bookkeeping.
type PostgresConnector struct {
	pool *pgxpool.Pool
}

// NewPostgresConnector dials connectionString with a pool sized for
// per-datasource query traffic rather than application-wide load.
func NewPostgresConnector(ctx context.Context, connectionString string) (*PostgresConnector, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("parsing datasource connection string: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to datasource: %w", err)
	}

	return &PostgresConnector{pool: pool}, nil
}

func (c *PostgresConnector) Close() {
	c.pool.Close()
}

func (c *PostgresConnector) TestConnection(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	if err := c.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return 0, fmt.Errorf("connection test failed: %w", err)
	}
	return time.Since(start), nil
}

func (c *PostgresConnector) Execute(ctx context.Context, sql string, timeout time.Duration, maxRows int) (*Output, error) {
	return c.run(ctx, wrapWithLimit(sql, maxRows), nil, timeout)
}

func (c *PostgresConnector) ExecuteWithParams(ctx context.Context, sql string, values []params.TypedValue, timeout time.Duration, maxRows int) (*Output, error) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v.Value()
	}
	return c.run(ctx, wrapWithLimit(sql, maxRows), args, timeout)
}

func (c *PostgresConnector) run(ctx context.Context, sql string, args []any, timeout time.Duration) (*Output, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query timed out after %s", timeout)
		}
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]ColumnDef, len(fields))
	typeMap := c.pool.Config().ConnConfig.TypeMap()
	for i, f := range fields {
		dt, ok := typeMap.TypeForOID(f.DataTypeOID)
		name := "unknown"
		if ok {
			name = dt.Name
		}
		columns[i] = ColumnDef{Name: string(f.Name), DataType: name}
	}

	var resultRows [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("query timed out after %s", timeout)
			}
			return nil, fmt.Errorf("reading row: %w", err)
		}
		resultRows = append(resultRows, normalizeRow(vals, columns))
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query timed out after %s", timeout)
		}
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	return &Output{
		Columns:       columns,
		Rows:          resultRows,
		RowCount:      len(resultRows),
		ExecutionTime: time.Since(start),
	}, nil
}

// normalizeRow converts driver-native values (time.Time, pgtype.Numeric,
// [16]byte UUIDs, etc.) to JSON-friendly equivalents. pgx already decodes
// most scalar types for us; this mainly stringifies types that don't
// marshal cleanly to JSON on their own.
func normalizeRow(vals []any, columns []ColumnDef) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if v == nil {
			out[i] = nil
			continue
		}

		switch tv := v.(type) {
		case time.Time:
			dt := strings.ToLower(columns[i].DataType)
			if dt == "date" {
				out[i] = tv.Format("2006-01-02")
			} else {
				out[i] = tv.UTC().Format(time.RFC3339)
			}
		case [16]byte:
			out[i] = fmt.Sprintf("%x-%x-%x-%x-%x", tv[0:4], tv[4:6], tv[6:8], tv[8:10], tv[10:16])
		case fmt.Stringer:
			out[i] = tv.String()
		default:
			out[i] = v
		}
	}
	return out
}

func (c *PostgresConnector) GetSchema(ctx context.Context) ([]TableSchema, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT table_schema, table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name, ordinal_position
	`)
	if err != nil {
		return nil, fmt.Errorf("fetching schema: %w", err)
	}
	defer rows.Close()

	var tables []TableSchema
	var currentSchema, currentTable string

	for rows.Next() {
		var schema, table, column, dataType, isNullable string
		if err := rows.Scan(&schema, &table, &column, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}

		col := ColumnSchema{Name: column, DataType: dataType, IsNullable: isNullable == "YES"}

		if schema == currentSchema && table == currentTable && len(tables) > 0 {
			tables[len(tables)-1].Columns = append(tables[len(tables)-1].Columns, col)
		} else {
			tables = append(tables, TableSchema{Schema: schema, Name: table, Columns: []ColumnSchema{col}})
			currentSchema, currentTable = schema, table
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching schema: %w", err)
	}

	return tables, nil
}

var _ Connector = (*PostgresConnector)(nil)
