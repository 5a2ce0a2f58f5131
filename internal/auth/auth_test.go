package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAuth(t *testing.T) (*Authenticator, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(gdb, "test-secret"), gdb
}

func seedUser(t *testing.T, db *gorm.DB, username, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &models.User{Username: username, PasswordHash: hash}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestLoginSuccess(t *testing.T) {
	a, db := setupAuth(t)
	seedUser(t, db, "casey", "s3cret")

	resp, err := a.Login("casey", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.User.Username != "casey" {
		t.Fatalf("wrong user: %s", resp.User.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a, db := setupAuth(t)
	seedUser(t, db, "casey", "s3cret")

	if _, err := a.Login("casey", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Login("nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	a, db := setupAuth(t)
	seedUser(t, db, "casey", "s3cret")
	resp, err := a.Login("casey", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	router := gin.New()
	router.GET("/ping", a.Middleware(), func(c *gin.Context) {
		user, err := a.GetUserFromContext(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, user.Username)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "casey" {
		t.Fatalf("expected 200/casey, got %d/%s", rec.Code, rec.Body.String())
	}
}

func TestMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	a, _ := setupAuth(t)

	router := gin.New()
	router.GET("/ping", a.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := map[string]string{
		"missing":   "",
		"malformed": "NotBearer abc",
		"garbage":   "Bearer not-a-jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}
