package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransitionOp is the lifecycle operation that created a transition.
type TransitionOp string

const (
	OpProvision TransitionOp = "provision"
	OpStart     TransitionOp = "start"
	OpStop      TransitionOp = "stop"
	OpDisable   TransitionOp = "disable"
	OpDelete    TransitionOp = "delete"
)

// TransitionState tracks a transition through the adapter round trip.
type TransitionState string

const (
	TransitionPending   TransitionState = "pending"
	TransitionInFlight  TransitionState = "in_flight"
	TransitionConfirmed TransitionState = "confirmed"
	TransitionFailed    TransitionState = "failed"
	TransitionTimedOut  TransitionState = "timed_out"
)

// Transition is a persisted lifecycle operation against a single resource.
// It records the states on either side of the adapter call so a failed or
// timed-out operation can be rolled back or flagged deterministically.
// A cascade (workspace disable) links child transitions to the parent via
// ParentID; the parent completes only when every child has confirmed.
type Transition struct {
	ID          uuid.UUID       `gorm:"type:text;primary_key" json:"id"`
	ResourceID  uuid.UUID       `gorm:"type:text;not null;index" json:"resource_id"`
	Kind        string          `gorm:"not null" json:"kind"` // service, subworkspace, workspace
	Op          TransitionOp    `gorm:"not null" json:"op"`
	FromStatus  Status          `gorm:"not null" json:"from_status"`
	ToStatus    Status          `gorm:"not null" json:"to_status"`
	State       TransitionState `gorm:"not null;default:'pending';index" json:"state"`
	ParentID    *uuid.UUID      `gorm:"type:text;index" json:"parent_id,omitempty"`
	Error       string          `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TableName ensures GORM uses the "transitions" table
func (Transition) TableName() string {
	return "transitions"
}

// BeforeCreate hook to generate UUID
func (t *Transition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Done reports whether the transition reached a final state.
func (t *Transition) Done() bool {
	return t.State == TransitionConfirmed || t.State == TransitionFailed || t.State == TransitionTimedOut
}
