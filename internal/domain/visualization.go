package domain

import "time"

// Visualization, Dashboard, Tile, and Canvas are mechanical persistence:
// tenant-scoped CRUD with no execution semantics of their own. They sit
// downstream of Query/Run and carry no invariants beyond organization
// scoping and role-based write access (see Role.CanWrite).

type VisualizationKind string

const (
	VisualizationKindTable VisualizationKind = "table"
	VisualizationKindLine  VisualizationKind = "line"
	VisualizationKindBar   VisualizationKind = "bar"
	VisualizationKindPie   VisualizationKind = "pie"
)

type Visualization struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	QueryID        string            `json:"query_id"`
	Name           string            `json:"name"`
	Kind           VisualizationKind `json:"kind"`
	Config         []byte            `json:"config"` // raw JSON (axis mapping, colors, etc.)
	CreatedBy      string            `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type Dashboard struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Tile struct {
	ID              string `json:"id"`
	DashboardID     string `json:"dashboard_id"`
	VisualizationID string `json:"visualization_id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

// Canvas is a free-form node/edge graph of queries feeding visualizations
// (a richer alternative to the fixed dashboard/tile grid). Update/delete
// require editor-or-above — spec.md flagged viewer-level write access on
// canvases as likely a bug; this repo enforces Role.CanWrite() on both.
type Canvas struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	Name           string       `json:"name"`
	Nodes          []CanvasNode `json:"nodes"`
	Edges          []CanvasEdge `json:"edges"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type CanvasNode struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"` // "query" | "visualization"
	RefID  string  `json:"ref_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type CanvasEdge struct {
	ID       string `json:"id"`
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
}
