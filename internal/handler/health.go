package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"creator_collab/internal/hub"
)

type HealthHandler struct {
	registry *hub.Registry
}

func NewHealthHandler(registry *hub.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "creator-collab",
		"connections": h.registry.Connections(),
	})
}
