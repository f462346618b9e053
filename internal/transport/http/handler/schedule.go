package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/usecase"
)

type ScheduleHandler struct {
	uc     *usecase.ScheduleUsecase
	logger *slog.Logger
}

func NewScheduleHandler(uc *usecase.ScheduleUsecase, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	QueryID         string `json:"query_id" binding:"required"`
	Name            string `json:"name" binding:"required,max=256"`
	CronExpr        string `json:"cron_expr" binding:"required"`
	NotifyOnFailure bool   `json:"notify_on_failure"`
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.uc.Create(c.Request.Context(), c.GetString("organizationID"), req.QueryID, req.Name, req.CronExpr,
		req.NotifyOnFailure, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	s, err := h.uc.Get(c.Request.Context(), c.GetString("organizationID"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *ScheduleHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.List(c.Request.Context(), c.GetString("organizationID"), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": result.Schedules, "next_cursor": result.NextCursor})
}

type updateScheduleRequest struct {
	Name            string `json:"name" binding:"required,max=256"`
	CronExpr        string `json:"cron_expr" binding:"required"`
	NotifyOnFailure bool   `json:"notify_on_failure"`
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.uc.Update(c.Request.Context(), c.GetString("organizationID"), c.Param("id"), req.Name, req.CronExpr, req.NotifyOnFailure)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *ScheduleHandler) Pause(c *gin.Context) {
	if err := h.uc.Pause(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Resume(c *gin.Context) {
	if err := h.uc.Resume(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), c.GetString("organizationID"), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
