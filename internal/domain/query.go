package domain

import "time"

// ParamType is the declared type of a named query parameter. It drives
// JSON-to-SQL coercion in internal/params.
type ParamType string

const (
	ParamTypeString   ParamType = "string"
	ParamTypeNumber   ParamType = "number"
	ParamTypeBoolean  ParamType = "boolean"
	ParamTypeDate     ParamType = "date"
	ParamTypeDateTime ParamType = "datetime"
)

type ParamDef struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
}

// Query is a saved, parameterized SELECT statement scoped to one
// Datasource. The AdhocSentinelName marks the hidden row every ad-hoc
// run is attributed to so every Run still carries a query_id.
const AdhocSentinelName = "_adhoc"

type Query struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	DatasourceID   string     `json:"datasource_id"`
	Name           string     `json:"name"`
	SQL            string     `json:"sql"`
	Parameters     []ParamDef `json:"parameters"`
	MaxRows        int        `json:"max_rows"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsAdhoc reports whether this row is the per-datasource ad-hoc sentinel
// rather than a user-saved query.
func (q *Query) IsAdhoc() bool {
	return q.Name == AdhocSentinelName
}
