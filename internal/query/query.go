// Package query serves the read side: paginated, filtered listings over the
// registry. It never writes state.
package query

import (
	"context"
	"math"

	"github.com/cloudinator/orchestrator/internal/identity"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is the envelope for paginated listings.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// ListRequest carries pagination and filter parameters. Page is 1-indexed;
// out-of-range values clamp rather than error.
type ListRequest struct {
	Page     int
	PageSize int
	Search   string
	Type     models.ResourceType
}

// Views answers listing and summary queries.
type Views struct {
	reg      *registry.Registry
	resolver identity.Resolver
}

// New creates a Views instance.
func New(reg *registry.Registry, resolver identity.Resolver) *Views {
	return &Views{reg: reg, resolver: resolver}
}

// clampPage normalizes 1-indexed pagination: page below 1 becomes 1, page
// past the end becomes the last page, and an empty result set still has one
// (empty) page.
func clampPage(page, pageSize int, total int64) (int, int, int) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, pageSize, totalPages
}

// listResources runs the two-phase page query: count first, then clamp, then
// fetch the window. Clamping needs the total, so the order matters.
func (v *Views) listResources(workspaceID uuid.UUID, kinds []models.ResourceKind, req ListRequest) (*Page[models.Resource], error) {
	opts := registry.ListOptions{
		WorkspaceID: workspaceID,
		Kinds:       kinds,
		Type:        req.Type,
		Search:      req.Search,
	}

	_, total, err := v.reg.ListResources(opts)
	if err != nil {
		return nil, err
	}

	page, pageSize, totalPages := clampPage(req.Page, req.PageSize, total)
	opts.Offset = (page - 1) * pageSize
	opts.Limit = pageSize

	items, _, err := v.reg.ListResources(opts)
	if err != nil {
		return nil, err
	}

	return &Page[models.Resource]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// ListServices returns a page of a workspace's services and sub-workspaces
// combined, in insertion order.
func (v *Views) ListServices(workspaceName string, req ListRequest) (*Page[models.Resource], error) {
	ws, err := v.reg.GetWorkspace(workspaceName)
	if err != nil {
		return nil, err
	}
	return v.listResources(ws.ID, nil, req)
}

// ListSubWorkspaces returns a page of a workspace's sub-workspaces.
func (v *Views) ListSubWorkspaces(workspaceName string, req ListRequest) (*Page[models.Resource], error) {
	ws, err := v.reg.GetWorkspace(workspaceName)
	if err != nil {
		return nil, err
	}
	return v.listResources(ws.ID, []models.ResourceKind{models.KindSubWorkspace}, req)
}

// GetService returns a single service or sub-workspace by name, optionally
// scoped to a workspace.
func (v *Views) GetService(kind models.ResourceKind, name, workspaceName string) (*models.Resource, error) {
	return v.reg.GetResource(kind, name, workspaceName)
}

// ListAllWorkspaces returns every workspace in insertion order.
func (v *Views) ListAllWorkspaces() ([]models.Workspace, error) {
	return v.reg.ListWorkspaces(nil)
}

// ListWorkspacesForUser returns the workspaces the identity collaborator says
// userID owns.
func (v *Views) ListWorkspacesForUser(ctx context.Context, userID uuid.UUID) ([]models.Workspace, error) {
	names, err := v.resolver.WorkspacesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return v.reg.ListWorkspaces(names)
}

// GetWorkspace returns a single workspace by name.
func (v *Views) GetWorkspace(name string) (*models.Workspace, error) {
	return v.reg.GetWorkspace(name)
}

// Stats is the platform-wide resource count summary.
type Stats struct {
	Workspaces    int64 `json:"workspaces"`
	Services      int64 `json:"services"`
	SubWorkspaces int64 `json:"subworkspaces"`
}

// GetStats returns live counts of workspaces, services and sub-workspaces.
func (v *Views) GetStats() (*Stats, error) {
	workspaces, err := v.reg.CountWorkspaces()
	if err != nil {
		return nil, err
	}
	services, err := v.reg.CountResources(models.KindService)
	if err != nil {
		return nil, err
	}
	subs, err := v.reg.CountResources(models.KindSubWorkspace)
	if err != nil {
		return nil, err
	}
	return &Stats{Workspaces: workspaces, Services: services, SubWorkspaces: subs}, nil
}
