package domain

import "time"

type DatasourceKind string

const (
	DatasourceKindPostgres DatasourceKind = "postgres"
	DatasourceKindMySQL    DatasourceKind = "mysql"
)

// Datasource holds a tenant's connection information. ConnectionString is
// always stored encrypted at rest (internal/crypto) and is never returned
// verbatim to API clients or written to logs unmasked.
type Datasource struct {
	ID                        string         `json:"id"`
	OrganizationID            string         `json:"organization_id"`
	Name                      string         `json:"name"`
	Kind                      DatasourceKind `json:"kind"`
	EncryptedConnectionString string         `json:"-"`
	MaxConnections            int            `json:"max_connections"`
	CreatedAt                 time.Time      `json:"created_at"`
	UpdatedAt                 time.Time      `json:"updated_at"`
}

// TableSchema describes one table's columns, used by schema introspection.
type TableSchema struct {
	Schema  string         `json:"schema"`
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

type ColumnSchema struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// ConnectionTestResult reports the outcome of a datasource connectivity
// check, used by POST /datasources/{id}/test.
type ConnectionTestResult struct {
	OK            bool    `json:"ok"`
	LatencyMillis float64 `json:"latency_ms"`
	Error         string  `json:"error,omitempty"`
}
