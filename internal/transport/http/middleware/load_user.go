package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightmesh/querycore/internal/repository"
)

// LoadUser runs after Auth. It loads the full user row for the subject
// claim and sets "user", "organizationID", and "role" in the gin context,
// so handlers can scope every query to the caller's organization and
// enforce Role.CanWrite()/CanAdmin() without a repository round trip of
// their own.
func LoadUser(repo repository.UserRepository, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")

		user, err := repo.GetByID(c.Request.Context(), userID)
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "load user", "error", err, "user_id", userID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set("user", user)
		c.Set("organizationID", user.OrganizationID)
		c.Set("role", user.Role)
		c.Next()
	}
}
