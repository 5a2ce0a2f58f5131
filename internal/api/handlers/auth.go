package handlers

import (
	"errors"
	"net/http"

	"github.com/cloudinator/orchestrator/internal/audit"
	"github.com/cloudinator/orchestrator/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary Authenticate and receive a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} auth.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func Login(a *auth.Authenticator, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "validation", Message: err.Error()})
			return
		}

		resp, err := a.Login(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				_ = audit.LogAction(db, uuid.Nil, audit.ActionLoginFailed, "user", gin.H{"username": req.Username})
				c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "unauthorized", Message: "invalid credentials"})
				return
			}
			handleServiceError(c, err)
			return
		}

		_ = audit.LogAction(db, resp.User.ID, audit.ActionLogin, "user", gin.H{"username": resp.User.Username})
		c.JSON(http.StatusOK, resp)
	}
}
