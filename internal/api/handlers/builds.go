package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cloudinator/orchestrator/internal/builds"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/gin-gonic/gin"
)

// BuildHandler serves CI build history and analytics.
type BuildHandler struct {
	store *builds.Store
}

// NewBuildHandler creates a BuildHandler.
func NewBuildHandler(store *builds.Store) *BuildHandler {
	return &BuildHandler{store: store}
}

// List godoc
// @Summary List recent CI builds, newest first
// @Tags builds
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Maximum records (default 20)"
// @Param job query string false "Restrict to one CI job"
// @Success 200 {array} models.BuildRecord
// @Router /builds [get]
func (h *BuildHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := h.store.List(c.Query("job"), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// Analytics godoc
// @Summary Build outcome counts and success rate
// @Tags builds
// @Security BearerAuth
// @Produce json
// @Param job query string false "Restrict to one CI job"
// @Success 200 {object} builds.Analytics
// @Router /builds/analytics [get]
func (h *BuildHandler) Analytics(c *gin.Context) {
	a, err := h.store.GetAnalytics(c.Query("job"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// IngestRequest is a pushed build notification, for CI systems that post
// webhooks instead of exposing a pollable feed.
type IngestRequest struct {
	JobName     string `json:"jobName" binding:"required"`
	BuildNumber int    `json:"buildNumber" binding:"required"`
	Status      string `json:"status" binding:"required"`
	Timestamp   int64  `json:"timestamp"` // milliseconds since epoch; 0 means now
	TriggeredBy string `json:"triggeredBy"`
	BuildURL    string `json:"buildUrl"`
}

// Ingest godoc
// @Summary Ingest a CI build outcome
// @Tags builds
// @Security BearerAuth
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /builds [post]
func (h *BuildHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "validation", Message: err.Error()})
		return
	}

	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}

	status := models.BuildStatus(req.Status)
	switch status {
	case models.BuildSuccess, models.BuildFailure, models.BuildBuilding:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "validation", Message: "status must be success, failure or building"})
		return
	}

	err := h.store.Ingest(&models.BuildRecord{
		JobName:     req.JobName,
		BuildNumber: req.BuildNumber,
		Status:      status,
		Timestamp:   ts,
		TriggeredBy: req.TriggeredBy,
		BuildURL:    req.BuildURL,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
