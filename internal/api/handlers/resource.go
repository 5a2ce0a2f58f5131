package handlers

import (
	"net/http"
	"strconv"

	"github.com/cloudinator/orchestrator/internal/audit"
	"github.com/cloudinator/orchestrator/internal/auth"
	"github.com/cloudinator/orchestrator/internal/lifecycle"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/query"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ResourceHandler serves lifecycle and listing endpoints for one resource
// kind. Services and sub-workspaces run the same machine, so the same handler
// is mounted twice with a different kind.
type ResourceHandler struct {
	kind       models.ResourceKind
	controller *lifecycle.Controller
	views      *query.Views
	auth       *auth.Authenticator
	db         *gorm.DB
}

// NewResourceHandler creates a ResourceHandler for the given kind.
func NewResourceHandler(kind models.ResourceKind, controller *lifecycle.Controller, views *query.Views, a *auth.Authenticator, db *gorm.DB) *ResourceHandler {
	return &ResourceHandler{kind: kind, controller: controller, views: views, auth: a, db: db}
}

// ResourceView is the API shape of a service or sub-workspace.
type ResourceView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	GitURL      string `json:"gitUrl,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Subdomain   string `json:"subdomain,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func resourceView(res *models.Resource) ResourceView {
	return ResourceView{
		ID:          res.ID.String(),
		Name:        res.Name,
		WorkspaceID: res.WorkspaceID.String(),
		Kind:        string(res.Kind),
		Type:        string(res.Type),
		Status:      string(res.Status),
		GitURL:      res.GitURL,
		Branch:      res.Branch,
		Subdomain:   res.Subdomain,
		CreatedAt:   res.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func resourcePage(p *query.Page[models.Resource]) query.Page[ResourceView] {
	items := make([]ResourceView, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, resourceView(&p.Items[i]))
	}
	return query.Page[ResourceView]{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
}

func listRequest(c *gin.Context) query.ListRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	typ := c.Query("type")
	if typ == "all" {
		// "all" bypasses the type filter, same as omitting it.
		typ = ""
	}
	return query.ListRequest{
		Page:     page,
		PageSize: size,
		Search:   c.Query("q"),
		Type:     models.ResourceType(typ),
	}
}

// ListInWorkspace godoc
// @Summary List a workspace's services and sub-workspaces, paginated
// @Tags services
// @Security BearerAuth
// @Produce json
// @Param name path string true "Workspace name"
// @Param page query int false "1-indexed page, clamped to range"
// @Param size query int false "Page size (max 100)"
// @Param q query string false "Case-insensitive name substring"
// @Param type query string false "frontend, backend, database or subworkspace"
// @Success 200 {object} query.Page[ResourceView]
// @Failure 404 {object} ErrorResponse
// @Router /workspaces/{name}/services [get]
func (h *ResourceHandler) ListInWorkspace(c *gin.Context) {
	req := listRequest(c)
	var (
		p   *query.Page[models.Resource]
		err error
	)
	if h.kind == models.KindSubWorkspace {
		p, err = h.views.ListSubWorkspaces(c.Param("name"), req)
	} else {
		p, err = h.views.ListServices(c.Param("name"), req)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resourcePage(p))
}

// Get godoc
// @Summary Get a service by name
// @Tags services
// @Security BearerAuth
// @Produce json
// @Param name path string true "Service name"
// @Param workspace query string false "Workspace scope for ambiguous names"
// @Success 200 {object} ResourceView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /services/{name} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	res, err := h.views.GetService(h.kind, c.Param("name"), c.Query("workspace"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resourceView(res))
}

// DeployRequest is the deploy payload.
type DeployRequest struct {
	Workspace string `json:"workspace" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Type      string `json:"type"`
	GitURL    string `json:"gitUrl"`
	Branch    string `json:"branch"`
	Subdomain string `json:"subdomain"`
}

// Deploy godoc
// @Summary Deploy a new service into a workspace
// @Tags services
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param service body DeployRequest true "Deployment details"
// @Success 202 {object} ResourceView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /services [post]
func (h *ResourceHandler) Deploy(c *gin.Context) {
	var req DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "validation", Message: err.Error()})
		return
	}

	res, err := h.controller.DeployResource(c.Request.Context(), lifecycle.DeployRequest{
		WorkspaceName: req.Workspace,
		Name:          req.Name,
		Kind:          h.kind,
		Type:          models.ResourceType(req.Type),
		GitURL:        req.GitURL,
		Branch:        req.Branch,
		Subdomain:     req.Subdomain,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionDeployService, string(h.kind), gin.H{"name": res.Name, "workspace": req.Workspace})
	}
	c.JSON(http.StatusAccepted, resourceView(res))
}

// Start godoc
// @Summary Start a stopped service
// @Tags services
// @Security BearerAuth
// @Produce json
// @Param name path string true "Service name"
// @Param workspace query string false "Workspace scope for ambiguous names"
// @Success 202 {object} ResourceView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /services/{name}/start [post]
func (h *ResourceHandler) Start(c *gin.Context) {
	name := c.Param("name")
	res, err := h.controller.StartResource(c.Request.Context(), h.kind, name, c.Query("workspace"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionStartService, string(h.kind), gin.H{"name": name})
	}
	c.JSON(http.StatusAccepted, resourceView(res))
}

// Stop godoc
// @Summary Stop a running service
// @Tags services
// @Security BearerAuth
// @Produce json
// @Param name path string true "Service name"
// @Param workspace query string false "Workspace scope for ambiguous names"
// @Success 202 {object} ResourceView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /services/{name}/stop [post]
func (h *ResourceHandler) Stop(c *gin.Context) {
	name := c.Param("name")
	res, err := h.controller.StopResource(c.Request.Context(), h.kind, name, c.Query("workspace"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionStopService, string(h.kind), gin.H{"name": name})
	}
	c.JSON(http.StatusAccepted, resourceView(res))
}

// Delete godoc
// @Summary Delete a stopped service
// @Tags services
// @Security BearerAuth
// @Param name path string true "Service name"
// @Param workspace query string false "Workspace scope for ambiguous names"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /services/{name} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.controller.DeleteResource(c.Request.Context(), h.kind, name, c.Query("workspace")); err != nil {
		handleServiceError(c, err)
		return
	}

	if user, err := h.auth.GetUserFromContext(c); err == nil {
		_ = audit.LogAction(h.db, user.ID, audit.ActionDeleteService, string(h.kind), gin.H{"name": name})
	}
	c.Status(http.StatusNoContent)
}
