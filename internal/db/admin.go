package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudinator/orchestrator/internal/auth"
	"github.com/cloudinator/orchestrator/internal/config"
	"github.com/cloudinator/orchestrator/internal/models"
	"gorm.io/gorm"
)

// CreateDefaultAdmin seeds the admin user configured under auth.admin_username
// and auth.admin_password. An empty password disables seeding; an existing
// user is left untouched.
func CreateDefaultAdmin(db *gorm.DB, cfg config.AuthConfig) error {
	if cfg.AdminPassword == "" {
		return nil
	}

	var existing models.User
	err := db.Where("username = ?", cfg.AdminUsername).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup admin user: %w", err)
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("Created default admin user", "username", cfg.AdminUsername)
	return nil
}
