package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type DatasourceHandler struct {
	uc     *usecase.DatasourceUsecase
	logger *slog.Logger
}

func NewDatasourceHandler(uc *usecase.DatasourceUsecase, logger *slog.Logger) *DatasourceHandler {
	return &DatasourceHandler{uc: uc, logger: logger.With("component", "datasource_handler")}
}

type createDatasourceRequest struct {
	Name             string                `json:"name" binding:"required,max=256"`
	Kind             domain.DatasourceKind `json:"kind" binding:"required,oneof=postgres mysql"`
	ConnectionString string                `json:"connection_string" binding:"required"`
	MaxConnections   int                   `json:"max_connections" binding:"omitempty,min=1,max=1000"`
}

func (h *DatasourceHandler) Create(c *gin.Context) {
	var req createDatasourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ds, err := h.uc.Create(c.Request.Context(), c.GetString("organizationID"), req.Name, req.Kind, req.ConnectionString, req.MaxConnections)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ds)
}

func (h *DatasourceHandler) Get(c *gin.Context) {
	ds, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (h *DatasourceHandler) List(c *gin.Context) {
	list, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasources": list})
}

type updateDatasourceRequest struct {
	Name             string `json:"name" binding:"required,max=256"`
	ConnectionString string `json:"connection_string"`
	MaxConnections   int    `json:"max_connections" binding:"omitempty,min=1,max=1000"`
}

func (h *DatasourceHandler) Update(c *gin.Context) {
	var req updateDatasourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ds, err := h.uc.Update(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), req.Name, req.ConnectionString, req.MaxConnections)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (h *DatasourceHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DatasourceHandler) Test(c *gin.Context) {
	result, err := h.uc.TestConnection(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DatasourceHandler) Schema(c *gin.Context) {
	schema, err := h.uc.GetSchema(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": schema})
}
