package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the canonical lifecycle state shared by workspaces, services and
// sub-workspaces. Every kind runs the same machine; what differs per kind is
// which operations the API exposes.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusStarting     Status = "starting"
	StatusRunning      Status = "running"
	StatusStopping     Status = "stopping"
	StatusStopped      Status = "stopped"
	StatusDisabling    Status = "disabling"
	StatusDisabled     Status = "disabled"
	StatusDeleting     Status = "deleting"
	StatusDeleted      Status = "deleted"
	// StatusUnknown flags a resource whose adapter confirmation never
	// arrived. It requires reconciliation, not guessing.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether the status permits deletion.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusDisabled || s == StatusDeleted
}

// ResourceKind distinguishes the two child kinds a workspace can own.
type ResourceKind string

const (
	KindService      ResourceKind = "service"
	KindSubWorkspace ResourceKind = "subworkspace"
)

// ResourceType is the dashboard-facing classification of a resource.
type ResourceType string

const (
	TypeFrontend     ResourceType = "frontend"
	TypeBackend      ResourceType = "backend"
	TypeDatabase     ResourceType = "database"
	TypeSubWorkspace ResourceType = "subworkspace"
)

// Resource is a deployable unit owned by a workspace: a service or a
// sub-workspace. Name uniqueness among live rows is enforced by the registry,
// not a DB unique index, so a name can be reused after its tombstone.
type Resource struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Name        string         `gorm:"not null;index:idx_resources_ws_name" json:"name"`
	WorkspaceID uuid.UUID      `gorm:"type:text;not null;index:idx_resources_ws_name" json:"workspace_id"`
	Kind        ResourceKind   `gorm:"not null;index" json:"kind"`
	Type        ResourceType   `gorm:"not null" json:"type"`
	Status      Status         `gorm:"not null;default:'provisioning'" json:"status"`
	GitURL      string         `json:"git_url,omitempty"`
	Branch      string         `json:"branch,omitempty"`
	Subdomain   string         `json:"subdomain,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName ensures GORM uses the "resources" table
func (Resource) TableName() string {
	return "resources"
}

// BeforeCreate hook to generate UUID
func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
