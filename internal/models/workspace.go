package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace is the top-level grouping that owns services and sub-workspaces.
// Internally it runs on the same state machine as its children; the API
// presents the Active/Inactive vocabulary the dashboard expects.
type Workspace struct {
	ID        uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Name      string         `gorm:"not null;index" json:"name"`
	OwnerID   uuid.UUID      `gorm:"type:text;index" json:"owner_id"`
	Owner     User           `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Status    Status         `gorm:"not null;default:'provisioning'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName ensures GORM uses the "workspaces" table
func (Workspace) TableName() string {
	return "workspaces"
}

// BeforeCreate hook to generate UUID
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// DisplayStatus maps the canonical machine state onto the Active/Inactive
// pair used at the API surface.
func (w *Workspace) DisplayStatus() string {
	switch w.Status {
	case StatusRunning:
		return "Active"
	case StatusDisabling:
		return "Disabling"
	case StatusDisabled:
		return "Disabled"
	case StatusDeleting, StatusDeleted:
		return "Deleted"
	case StatusUnknown:
		return "Unknown"
	default:
		return "Inactive"
	}
}
