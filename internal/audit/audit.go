package audit

import (
	"encoding/json"
	"time"

	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogAction records an audit log entry
func LogAction(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&log).Error
}

// Audit actions constants
const (
	ActionCreateWorkspace  = "create_workspace"
	ActionEnableWorkspace  = "enable_workspace"
	ActionDisableWorkspace = "disable_workspace"
	ActionDeleteWorkspace  = "delete_workspace"
	ActionDeployService    = "deploy_service"
	ActionStartService     = "start_service"
	ActionStopService      = "stop_service"
	ActionDeleteService    = "delete_service"
	ActionLogin            = "login"
	ActionLoginFailed      = "login_failed"
)
