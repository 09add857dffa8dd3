package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

// Health reports dependency state. It answers 200 even when degraded so
// that the health check itself never looks like an outage.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	database, gateway := "up", "up"
	if err := h.database.Ping(ctx); err != nil {
		h.log.Warn("health: database down", zap.Error(err))
		database = "down"
	}
	if _, err := h.tokens.Token(ctx); err != nil {
		h.log.Warn("health: gateway down", zap.Error(err))
		gateway = "down"
	}

	status := "ok"
	if database == "down" || gateway == "down" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"services": gin.H{
			"database": database,
			"gateway":  gateway,
		},
	})
}
