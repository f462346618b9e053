package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type QueryHandler struct {
	uc     *usecase.QueryUsecase
	logger *slog.Logger
}

func NewQueryHandler(uc *usecase.QueryUsecase, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{uc: uc, logger: logger.With("component", "query_handler")}
}

type createQueryRequest struct {
	DatasourceID   string            `json:"datasource_id" binding:"required"`
	Name           string            `json:"name" binding:"required,max=256"`
	SQL            string            `json:"sql" binding:"required"`
	Parameters     []domain.ParamDef `json:"parameters"`
	TimeoutSeconds int               `json:"timeout_seconds" binding:"omitempty,min=1,max=3600"`
	MaxRows        int               `json:"max_rows" binding:"omitempty,min=1,max=1000000"`
}

func (h *QueryHandler) Create(c *gin.Context) {
	var req createQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	q, err := h.uc.Create(c.Request.Context(), c.GetString("organizationID"), req.DatasourceID, req.Name, req.SQL,
		req.Parameters, req.TimeoutSeconds, req.MaxRows, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QueryHandler) Get(c *gin.Context) {
	q, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QueryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": result.Queries, "next_cursor": result.NextCursor})
}

type updateQueryRequest struct {
	Name           string            `json:"name" binding:"required,max=256"`
	SQL            string            `json:"sql" binding:"required"`
	Parameters     []domain.ParamDef `json:"parameters"`
	TimeoutSeconds int               `json:"timeout_seconds" binding:"omitempty,min=1,max=3600"`
	MaxRows        int               `json:"max_rows" binding:"omitempty,min=1,max=1000000"`
}

func (h *QueryHandler) Update(c *gin.Context) {
	var req updateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	q, err := h.uc.Update(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), req.Name, req.SQL,
		req.Parameters, req.TimeoutSeconds, req.MaxRows)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QueryHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export returns every saved query in the organization as a flat JSON
// array, suitable for feeding straight back into Import.
func (h *QueryHandler) Export(c *gin.Context) {
	queries, err := h.uc.Export(c.Request.Context(), c.GetString("organizationID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": queries})
}

type importQueryItem struct {
	Name           string            `json:"name" binding:"required,max=256"`
	DatasourceID   string            `json:"datasource_id" binding:"required"`
	SQL            string            `json:"sql" binding:"required"`
	Parameters     []domain.ParamDef `json:"parameters"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	MaxRows        int               `json:"max_rows"`
}

type importQueriesRequest struct {
	Queries        []importQueryItem `json:"queries" binding:"required,dive"`
	SkipDuplicates bool              `json:"skip_duplicates"`
}

// Import saves a batch of queries. Each row reports its own
// success/skip/error rather than the whole batch aborting on the first
// failure — matches the skip_duplicates semantics of a bulk import.
func (h *QueryHandler) Import(c *gin.Context) {
	var req importQueriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	items := make([]usecase.ImportItem, len(req.Queries))
	for i, q := range req.Queries {
		items[i] = usecase.ImportItem{
			Name:           q.Name,
			DatasourceID:   q.DatasourceID,
			SQL:            q.SQL,
			Parameters:     q.Parameters,
			TimeoutSeconds: q.TimeoutSeconds,
			MaxRows:        q.MaxRows,
		}
	}

	results := h.uc.Import(c.Request.Context(), c.GetString("organizationID"), items, req.SkipDuplicates, c.GetString("userID"))
	c.JSON(http.StatusOK, gin.H{"results": results})
}
