package handlers

import (
	"net/http"

	"github.com/cloudinator/orchestrator/internal/query"
	"github.com/gin-gonic/gin"
)

// HealthCheck godoc
// @Summary Health check
// @Tags info
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetVersion godoc
// @Summary Server version
// @Tags info
// @Produce json
// @Success 200 {object} map[string]string
// @Router /version [get]
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

// InfoHandler serves platform-wide summaries.
type InfoHandler struct {
	views *query.Views
}

// NewInfoHandler creates an InfoHandler.
func NewInfoHandler(views *query.Views) *InfoHandler {
	return &InfoHandler{views: views}
}

// Stats godoc
// @Summary Counts of workspaces, services and sub-workspaces
// @Tags info
// @Security BearerAuth
// @Produce json
// @Success 200 {object} query.Stats
// @Router /stats [get]
func (h *InfoHandler) Stats(c *gin.Context) {
	stats, err := h.views.GetStats()
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
