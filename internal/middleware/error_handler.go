package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error when
// no response was written yet.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperrors.HTTPStatusFromError(err)
		if status >= 500 {
			log.Error("Request failed", "error", err, "path", c.FullPath(), "method", c.Request.Method)
		}

		c.JSON(status, apperrors.NewAPIError(err))
	}
}
