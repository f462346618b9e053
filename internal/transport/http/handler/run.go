package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type RunHandler struct {
	uc     *usecase.RunUsecase
	logger *slog.Logger
}

func NewRunHandler(uc *usecase.RunUsecase, logger *slog.Logger) *RunHandler {
	return &RunHandler{uc: uc, logger: logger.With("component", "run_handler")}
}

type createRunRequest struct {
	QueryID        string         `json:"query_id" binding:"required"`
	Params         map[string]any `json:"params"`
	TimeoutSeconds int            `json:"timeout_seconds" binding:"omitempty,min=1,max=3600"`
	MaxRows        int            `json:"max_rows" binding:"omitempty,min=1,max=1000000"`
}

func (h *RunHandler) Create(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	run, err := h.uc.CreateRun(c.Request.Context(), c.GetString("organizationID"), req.QueryID, req.Params,
		req.TimeoutSeconds, req.MaxRows, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

type createAdhocRunRequest struct {
	DatasourceID   string            `json:"datasource_id" binding:"required"`
	SQL            string            `json:"sql" binding:"required"`
	Parameters     []domain.ParamDef `json:"parameters"`
	Params         map[string]any    `json:"params"`
	TimeoutSeconds int               `json:"timeout_seconds" binding:"omitempty,min=1,max=3600"`
	MaxRows        int               `json:"max_rows" binding:"omitempty,min=1,max=1000000"`
}

// CreateAdhoc runs a statement that was never saved as a Query. It is
// validated inline (the validator never gets a saved-at-create-time
// pass for ad-hoc SQL) and attributed to the hidden per-datasource
// sentinel query row.
func (h *RunHandler) CreateAdhoc(c *gin.Context) {
	var req createAdhocRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	run, err := h.uc.CreateAdhocRun(c.Request.Context(), c.GetString("organizationID"), req.DatasourceID, req.SQL,
		req.Parameters, req.Params, req.TimeoutSeconds, req.MaxRows, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *RunHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"), c.Query("query_id"), c.Query("schedule_id"),
		domain.RunStatus(c.Query("status")), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": result.Runs, "next_cursor": result.NextCursor})
}

func (h *RunHandler) GetResult(c *gin.Context) {
	result, err := h.uc.GetResult(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RunHandler) Cancel(c *gin.Context) {
	if err := h.uc.Cancel(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
