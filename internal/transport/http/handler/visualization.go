package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type VisualizationHandler struct {
	uc     *usecase.VisualizationUsecase
	logger *slog.Logger
}

func NewVisualizationHandler(uc *usecase.VisualizationUsecase, logger *slog.Logger) *VisualizationHandler {
	return &VisualizationHandler{uc: uc, logger: logger.With("component", "visualization_handler")}
}

type createVisualizationRequest struct {
	QueryID string                   `json:"query_id" binding:"required"`
	Name    string                   `json:"name" binding:"required,max=256"`
	Kind    domain.VisualizationKind `json:"kind" binding:"required,oneof=table line bar pie"`
	Config  []byte                   `json:"config"`
}

func (h *VisualizationHandler) Create(c *gin.Context) {
	var req createVisualizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.uc.Create(c.Request.Context(), c.GetString("organizationID"), req.QueryID, req.Name, req.Kind, req.Config, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *VisualizationHandler) Get(c *gin.Context) {
	v, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VisualizationHandler) List(c *gin.Context) {
	list, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visualizations": list})
}

type updateVisualizationRequest struct {
	Name   string                   `json:"name" binding:"required,max=256"`
	Kind   domain.VisualizationKind `json:"kind" binding:"required,oneof=table line bar pie"`
	Config []byte                   `json:"config"`
}

func (h *VisualizationHandler) Update(c *gin.Context) {
	var req updateVisualizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := h.uc.Update(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), req.Name, req.Kind, req.Config)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VisualizationHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
