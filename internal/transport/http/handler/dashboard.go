package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/usecase"
)

type DashboardHandler struct {
	uc     *usecase.DashboardUsecase
	logger *slog.Logger
}

func NewDashboardHandler(uc *usecase.DashboardUsecase, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{uc: uc, logger: logger.With("component", "dashboard_handler")}
}

type createDashboardRequest struct {
	Name string `json:"name" binding:"required,max=256"`
}

func (h *DashboardHandler) Create(c *gin.Context) {
	var req createDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d, err := h.uc.Create(c.Request.Context(), c.GetString("organizationID"), req.Name, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *DashboardHandler) Get(c *gin.Context) {
	d, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DashboardHandler) List(c *gin.Context) {
	list, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboards": list})
}

type updateDashboardRequest struct {
	Name string `json:"name" binding:"required,max=256"`
}

func (h *DashboardHandler) Update(c *gin.Context) {
	var req updateDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d, err := h.uc.Update(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DashboardHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addTileRequest struct {
	VisualizationID string `json:"visualization_id" binding:"required"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Width           int    `json:"width" binding:"required,min=1"`
	Height          int    `json:"height" binding:"required,min=1"`
}

func (h *DashboardHandler) AddTile(c *gin.Context) {
	var req addTileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.uc.AddTile(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), req.VisualizationID, req.X, req.Y, req.Width, req.Height)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *DashboardHandler) ListTiles(c *gin.Context) {
	tiles, err := h.uc.ListTiles(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiles": tiles})
}

func (h *DashboardHandler) DeleteTile(c *gin.Context) {
	if err := h.uc.DeleteTile(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), c.Param("tileID")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
