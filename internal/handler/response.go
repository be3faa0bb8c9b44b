package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"creator_collab/internal/domain"
	"creator_collab/internal/middleware"
	apperrors "creator_collab/pkg/errors"
)

// respondError writes the error kind and detail with the matching status.
func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatusFromError(err), apperrors.NewAPIError(err))
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "%s", err.Error()))
}

// identity must only be used behind RequireAuth.
func identity(c *gin.Context) domain.Identity {
	who, _ := middleware.IdentityFrom(c)
	return who
}

func messageIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "invalid message ID"))
		return uuid.Nil, false
	}
	return id, true
}

// queryInt returns 0 for a missing parameter so services apply their
// defaults.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "%s must be a non-negative integer", key))
		return 0, false
	}
	return v, true
}
