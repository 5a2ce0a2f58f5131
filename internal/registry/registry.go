// Package registry is the durable store of workspaces, services and
// sub-workspaces. It is the single source of truth for resource state: the
// lifecycle controller is its only writer, listing views are read-only.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Registry provides consistent storage and retrieval of resource records.
type Registry struct {
	db *gorm.DB
}

// New creates a Registry backed by the given database.
func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// GetWorkspace returns a workspace by name.
func (r *Registry) GetWorkspace(name string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := r.db.Where("name = ?", name).First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// GetWorkspaceByID returns a workspace by ID.
func (r *Registry) GetWorkspaceByID(id uuid.UUID) (*models.Workspace, error) {
	var ws models.Workspace
	if err := r.db.Where("id = ?", id).First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// GetResource looks up a service or sub-workspace by name. Names are unique
// per workspace, so a global lookup can be ambiguous; callers may scope it
// with workspaceName. An ambiguous unscoped lookup is a ConflictError rather
// than an arbitrary pick.
func (r *Registry) GetResource(kind models.ResourceKind, name, workspaceName string) (*models.Resource, error) {
	q := r.db.Where("kind = ? AND name = ?", kind, name)
	if workspaceName != "" {
		ws, err := r.GetWorkspace(workspaceName)
		if err != nil {
			return nil, err
		}
		q = q.Where("workspace_id = ?", ws.ID)
	}

	var resources []models.Resource
	if err := q.Limit(2).Find(&resources).Error; err != nil {
		return nil, err
	}
	switch len(resources) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &resources[0], nil
	default:
		return nil, &ConflictError{Message: fmt.Sprintf("%s name %q exists in multiple workspaces; scope the request with ?workspace=", kind, name)}
	}
}

// GetResourceByID returns a resource by ID.
func (r *Registry) GetResourceByID(id uuid.UUID) (*models.Resource, error) {
	var res models.Resource
	if err := r.db.Where("id = ?", id).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// CreateWorkspace inserts a new workspace, enforcing global name uniqueness.
func (r *Registry) CreateWorkspace(ws *models.Workspace) error {
	var count int64
	if err := r.db.Model(&models.Workspace{}).Where("name = ?", ws.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Message: fmt.Sprintf("workspace %q already exists", ws.Name)}
	}
	if err := r.db.Create(ws).Error; err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// CreateResource inserts a new service or sub-workspace, enforcing name
// uniqueness within the owning workspace.
func (r *Registry) CreateResource(res *models.Resource) error {
	if _, err := r.GetWorkspaceByID(res.WorkspaceID); err != nil {
		return err
	}
	var count int64
	err := r.db.Model(&models.Resource{}).
		Where("workspace_id = ? AND name = ?", res.WorkspaceID, res.Name).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Message: fmt.Sprintf("resource %q already exists in this workspace", res.Name)}
	}
	if err := r.db.Create(res).Error; err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// SetResourceStatus updates a resource's status, rejecting writes that would
// leave a running child under a non-active workspace.
func (r *Registry) SetResourceStatus(id uuid.UUID, status models.Status) error {
	res, err := r.GetResourceByID(id)
	if err != nil {
		return err
	}
	if status == models.StatusRunning || status == models.StatusStarting {
		ws, err := r.GetWorkspaceByID(res.WorkspaceID)
		if err != nil {
			return err
		}
		// Disabling is accepted so a failed cascade stop can roll its
		// child back while the workspace is still mid-disable.
		if ws.Status != models.StatusRunning && ws.Status != models.StatusDisabling {
			return &ConflictError{Message: fmt.Sprintf("workspace %q is not active", ws.Name)}
		}
	}
	return r.db.Model(&models.Resource{}).Where("id = ?", id).Update("status", status).Error
}

// SetWorkspaceStatus updates a workspace's status.
func (r *Registry) SetWorkspaceStatus(id uuid.UUID, status models.Status) error {
	return r.db.Model(&models.Workspace{}).Where("id = ?", id).Update("status", status).Error
}

// TombstoneResource finalizes a confirmed deletion: terminal status plus soft
// delete. Guards live with the lifecycle controller, which validated the
// delete before invoking the substrate. Deletion is soft so the record
// survives for the audit retention window.
func (r *Registry) TombstoneResource(id uuid.UUID) error {
	if err := r.db.Model(&models.Resource{}).Where("id = ?", id).Update("status", models.StatusDeleted).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Resource{}, "id = ?", id).Error
}

// TombstoneWorkspace finalizes a confirmed workspace deletion.
func (r *Registry) TombstoneWorkspace(id uuid.UUID) error {
	if err := r.db.Model(&models.Workspace{}).Where("id = ?", id).Update("status", models.StatusDeleted).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Workspace{}, "id = ?", id).Error
}

// ListOptions narrows a resource listing. Offset/Limit are zero-indexed
// offset pagination; callers wanting 1-indexed clamped pages layer that on
// top (see the query package).
type ListOptions struct {
	WorkspaceID uuid.UUID
	Kinds       []models.ResourceKind
	Type        models.ResourceType // zero value means all types
	Search      string              // case-insensitive substring match on name
	Offset      int
	Limit       int
	SortByName  bool // default is insertion order
}

// ListResources returns a page of resources plus the total count of matches.
func (r *Registry) ListResources(opts ListOptions) ([]models.Resource, int64, error) {
	q := r.db.Model(&models.Resource{})
	if opts.WorkspaceID != uuid.Nil {
		q = q.Where("workspace_id = ?", opts.WorkspaceID)
	}
	if len(opts.Kinds) > 0 {
		q = q.Where("kind IN ?", opts.Kinds)
	}
	if opts.Type != "" {
		q = q.Where("type = ?", opts.Type)
	}
	if opts.Search != "" {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(opts.Search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.SortByName {
		q = q.Order("name ASC")
	} else {
		q = q.Order("created_at ASC, id ASC")
	}
	if opts.Limit > 0 {
		q = q.Offset(opts.Offset).Limit(opts.Limit)
	}

	var items []models.Resource
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListWorkspaces returns workspaces, optionally restricted to a name set
// (used by owner-scoped listings backed by the identity collaborator).
func (r *Registry) ListWorkspaces(names []string) ([]models.Workspace, error) {
	q := r.db.Order("created_at ASC")
	if names != nil {
		if len(names) == 0 {
			return []models.Workspace{}, nil
		}
		q = q.Where("name IN ?", names)
	}
	var workspaces []models.Workspace
	if err := q.Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

// RunningChildren returns the running or in-flight resources of a workspace.
func (r *Registry) RunningChildren(workspaceID uuid.UUID) ([]models.Resource, error) {
	var children []models.Resource
	err := r.db.
		Where("workspace_id = ? AND status IN ?", workspaceID,
			[]models.Status{models.StatusRunning, models.StatusStarting, models.StatusStopping}).
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

// CountResources returns the number of live resources of a kind.
func (r *Registry) CountResources(kind models.ResourceKind) (int64, error) {
	var n int64
	err := r.db.Model(&models.Resource{}).Where("kind = ?", kind).Count(&n).Error
	return n, err
}

// CountWorkspaces returns the number of live workspaces.
func (r *Registry) CountWorkspaces() (int64, error) {
	var n int64
	err := r.db.Model(&models.Workspace{}).Count(&n).Error
	return n, err
}
