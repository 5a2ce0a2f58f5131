package handlers

import (
	"errors"
	"net/http"

	"github.com/cloudinator/orchestrator/internal/audit"
	"github.com/cloudinator/orchestrator/internal/auth"
	"github.com/cloudinator/orchestrator/internal/lifecycle"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/query"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WorkspaceHandler serves workspace CRUD and lifecycle endpoints.
type WorkspaceHandler struct {
	controller *lifecycle.Controller
	views      *query.Views
	auth       *auth.Authenticator
	db         *gorm.DB
}

// NewWorkspaceHandler creates a WorkspaceHandler.
func NewWorkspaceHandler(controller *lifecycle.Controller, views *query.Views, a *auth.Authenticator, db *gorm.DB) *WorkspaceHandler {
	return &WorkspaceHandler{controller: controller, views: views, auth: a, db: db}
}

// WorkspaceView is the API shape of a workspace.
type WorkspaceView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	DisplayStatus string `json:"displayStatus"`
	OwnerID       string `json:"ownerId"`
	CreatedAt     string `json:"createdAt"`
}

func workspaceView(ws *models.Workspace) WorkspaceView {
	return WorkspaceView{
		ID:            ws.ID.String(),
		Name:          ws.Name,
		Status:        string(ws.Status),
		DisplayStatus: ws.DisplayStatus(),
		OwnerID:       ws.OwnerID.String(),
		CreatedAt:     ws.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func workspaceViews(workspaces []models.Workspace) []WorkspaceView {
	views := make([]WorkspaceView, 0, len(workspaces))
	for i := range workspaces {
		views = append(views, workspaceView(&workspaces[i]))
	}
	return views
}

// List godoc
// @Summary List workspaces, optionally restricted to an owner
// @Tags workspaces
// @Security BearerAuth
// @Produce json
// @Param owner query string false "Owner username; 'me' means the caller"
// @Success 200 {array} WorkspaceView
// @Failure 401 {object} ErrorResponse
// @Router /workspaces [get]
func (h *WorkspaceHandler) List(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		workspaces, err := h.views.ListAllWorkspaces()
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, workspaceViews(workspaces))
		return
	}

	user, err := h.resolveOwner(c, owner)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	workspaces, err := h.views.ListWorkspacesForUser(c.Request.Context(), user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, workspaceViews(workspaces))
}

// resolveOwner turns the owner query parameter into a user record. "me" is
// the authenticated caller; anything else is a username lookup.
func (h *WorkspaceHandler) resolveOwner(c *gin.Context, owner string) (*models.User, error) {
	if owner == "me" {
		return h.auth.GetUserFromContext(c)
	}
	var user models.User
	if err := h.db.Where("username = ?", owner).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, registry.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Get godoc
// @Summary Get a workspace by name
// @Tags workspaces
// @Security BearerAuth
// @Produce json
// @Param name path string true "Workspace name"
// @Success 200 {object} WorkspaceView
// @Failure 404 {object} ErrorResponse
// @Router /workspaces/{name} [get]
func (h *WorkspaceHandler) Get(c *gin.Context) {
	ws, err := h.views.GetWorkspace(c.Param("name"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, workspaceView(ws))
}

// CreateWorkspaceRequest is the create payload.
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create godoc
// @Summary Create and provision a workspace
// @Tags workspaces
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param workspace body CreateWorkspaceRequest true "Workspace details"
// @Success 202 {object} WorkspaceView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /workspaces [post]
func (h *WorkspaceHandler) Create(c *gin.Context) {
	user, err := h.auth.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "unauthorized", Message: "missing authorization"})
		return
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "validation", Message: err.Error()})
		return
	}

	ws, err := h.controller.CreateWorkspace(c.Request.Context(), req.Name, user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	_ = audit.LogAction(h.db, user.ID, audit.ActionCreateWorkspace, "workspace", gin.H{"name": ws.Name})
	c.JSON(http.StatusAccepted, workspaceView(ws))
}

// Enable godoc
// @Summary Enable (activate) a workspace
// @Tags workspaces
// @Security BearerAuth
// @Param name path string true "Workspace name"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /workspaces/{name}/enable [post]
func (h *WorkspaceHandler) Enable(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.controller.EnableWorkspace(c.Request.Context(), name); err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionEnableWorkspace, "workspace", gin.H{"name": name})
	}
	c.Status(http.StatusNoContent)
}

// Disable godoc
// @Summary Disable a workspace, stopping its children first
// @Tags workspaces
// @Security BearerAuth
// @Param name path string true "Workspace name"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /workspaces/{name}/disable [post]
func (h *WorkspaceHandler) Disable(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.controller.DisableWorkspace(c.Request.Context(), name); err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionDisableWorkspace, "workspace", gin.H{"name": name})
	}
	c.Status(http.StatusNoContent)
}

// Delete godoc
// @Summary Delete a disabled, empty workspace
// @Tags workspaces
// @Security BearerAuth
// @Param name path string true "Workspace name"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /workspaces/{name} [delete]
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.controller.DeleteWorkspace(c.Request.Context(), name); err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionDeleteWorkspace, "workspace", gin.H{"name": name})
	}
	c.Status(http.StatusNoContent)
}
