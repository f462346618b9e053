package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type CanvasHandler struct {
	uc     *usecase.CanvasUsecase
	logger *slog.Logger
}

func NewCanvasHandler(uc *usecase.CanvasUsecase, logger *slog.Logger) *CanvasHandler {
	return &CanvasHandler{uc: uc, logger: logger.With("component", "canvas_handler")}
}

// roleFromContext reads the Role LoadUser set on the gin context. An
// absent or mistyped value resolves to RoleViewer, the least-privileged
// role, so a wiring bug never silently grants write access.
func roleFromContext(c *gin.Context) domain.Role {
	role, ok := c.Get("role")
	if !ok {
		return domain.RoleViewer
	}
	r, ok := role.(domain.Role)
	if !ok {
		return domain.RoleViewer
	}
	return r
}

type createCanvasRequest struct {
	Name  string              `json:"name" binding:"required,max=256"`
	Nodes []domain.CanvasNode `json:"nodes"`
	Edges []domain.CanvasEdge `json:"edges"`
}

func (h *CanvasHandler) Create(c *gin.Context) {
	var req createCanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	canvas, err := h.uc.Create(c.Request.Context(), c.GetString("organizationID"), roleFromContext(c), req.Name, req.Nodes, req.Edges, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, canvas)
}

func (h *CanvasHandler) Get(c *gin.Context) {
	canvas, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, canvas)
}

func (h *CanvasHandler) List(c *gin.Context) {
	list, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"canvases": list})
}

type updateCanvasRequest struct {
	Name  string              `json:"name" binding:"required,max=256"`
	Nodes []domain.CanvasNode `json:"nodes"`
	Edges []domain.CanvasEdge `json:"edges"`
}

func (h *CanvasHandler) Update(c *gin.Context) {
	var req updateCanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	canvas, err := h.uc.Update(c.Request.Context(), c.GetString("organizationID"), roleFromContext(c), c.Param("id"), req.Name, req.Nodes, req.Edges)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, canvas)
}

func (h *CanvasHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), c.GetString("organizationID"), roleFromContext(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
