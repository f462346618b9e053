package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

type AuthHandler struct {
	uc     *usecase.AuthUsecase
	logger *slog.Logger
}

func NewAuthHandler(uc *usecase.AuthUsecase, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, logger: logger.With("component", "auth_handler")}
}

type registerRequest struct {
	OrganizationName string `json:"organization_name" binding:"required,max=256"`
	OrganizationSlug  string `json:"organization_slug" binding:"required,max=64"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID             string      `json:"id"`
		OrganizationID string      `json:"organization_id"`
		Email          string      `json:"email"`
		Role           domain.Role `json:"role"`
	} `json:"user"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.uc.Register(c.Request.Context(), req.OrganizationName, req.OrganizationSlug, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toAuthResponse(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.uc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toAuthResponse(result))
}

func toAuthResponse(result *usecase.AuthResult) authResponse {
	var resp authResponse
	resp.Token = result.Token
	resp.User.ID = result.User.ID
	resp.User.OrganizationID = result.User.OrganizationID
	resp.User.Email = result.User.Email
	resp.User.Role = result.User.Role
	return resp
}
