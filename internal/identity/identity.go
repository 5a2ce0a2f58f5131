// Package identity resolves which workspaces a user may see. The default
// resolver answers from the local registry's ownership column; deployments
// with a central identity service plug in the HTTP resolver instead.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resolver maps a user to the set of workspace names they own.
type Resolver interface {
	WorkspacesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// LocalResolver answers ownership queries from the registry database.
type LocalResolver struct {
	db *gorm.DB
}

// NewLocalResolver creates a Resolver backed by the local database.
func NewLocalResolver(db *gorm.DB) *LocalResolver {
	return &LocalResolver{db: db}
}

// WorkspacesForUser returns the names of workspaces owned by userID. A user
// with no workspaces gets an empty (non-nil) slice.
func (r *LocalResolver) WorkspacesForUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	names := []string{}
	err := r.db.Model(&models.Workspace{}).
		Where("owner_id = ?", userID).
		Order("created_at ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// HTTPResolver asks a central identity service for a user's workspaces.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a Resolver against the identity service at baseURL.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WorkspacesForUser calls GET /users/{id}/workspaces on the identity service.
func (r *HTTPResolver) WorkspacesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/workspaces", r.baseURL, url.PathEscape(userID.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned %d", resp.StatusCode)
	}

	var body struct {
		Workspaces []string `json:"workspaces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if body.Workspaces == nil {
		body.Workspaces = []string{}
	}
	return body.Workspaces, nil
}
