package middleware

import (
	"net/http"

	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler converts errors attached via c.Error into the standard
// JSON error envelope. Handlers never write error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := apperrors.Wrap(err)

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.LogError(c.Request.Context(), err, "request failed", "path", c.Request.URL.Path)
		}

		c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{"error": appErr})
	}
}
