package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightmesh/querycore/internal/apperror"
)

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	ErrorID string `json:"error_id,omitempty"`
}

// respondError maps any usecase error onto the {"error":{...}} envelope.
// apperror.Error carries its own HTTP status and client-safety; anything
// else (a bug that escaped a usecase's error wrapping) is logged with a
// correlating error_id and never shown to the caller verbatim.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}

	if appErr.ClientSafe() {
		c.JSON(appErr.Kind.HTTPStatus(), gin.H{"error": errorBody{
			Type:    string(appErr.Kind),
			Message: appErr.Message,
		}})
		return
	}

	errorID := uuid.NewString()
	logger.ErrorContext(c.Request.Context(), "request failed", "error", appErr, "error_id", errorID, "path", c.Request.URL.Path)
	c.JSON(appErr.Kind.HTTPStatus(), gin.H{"error": errorBody{
		Type:    string(appErr.Kind),
		Message: "an internal error occurred",
		ErrorID: errorID,
	}})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
		Type:    string(apperror.KindBadRequest),
		Message: err.Error(),
	}})
}
