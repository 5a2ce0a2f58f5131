// Package handlers contains the Gin HTTP handlers for the orchestrator API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cloudinator/orchestrator/internal/lifecycle"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/gin-gonic/gin"
)

// Version is set at startup from the build version.
var Version = "dev"

// ErrorResponse is the uniform error envelope. Internal details never leak
// into Message; they go to the log instead.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleServiceError maps lifecycle and registry errors to HTTP status codes.
func handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "not found"})
		return
	}
	var validationErr *lifecycle.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "validation", Message: validationErr.Message})
		return
	}
	var conflictErr *registry.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, ErrorResponse{Code: "conflict", Message: conflictErr.Message})
		return
	}
	var preconditionErr *registry.PreconditionError
	if errors.As(err, &preconditionErr) {
		c.JSON(http.StatusPreconditionFailed, ErrorResponse{Code: "precondition_failed", Message: preconditionErr.Message})
		return
	}
	var adapterErr *lifecycle.AdapterUnavailableError
	if errors.As(err, &adapterErr) {
		slog.Error("Deployment substrate unavailable", "error", adapterErr.Err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: "adapter_unavailable", Message: "deployment substrate unavailable; the operation was rolled back"})
		return
	}
	slog.Error("Unhandled service error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "internal server error"})
}
