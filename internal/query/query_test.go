package query

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cloudinator/orchestrator/internal/identity"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupViews(t *testing.T) (*Views, *registry.Registry, *gorm.DB) {
	t.Helper()

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

	if err := gdb.AutoMigrate(&models.User{}, &models.Workspace{}, &models.Resource{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	reg := registry.New(gdb)
	return New(reg, identity.NewLocalResolver(gdb)), reg, gdb
}

func seedWorkspace(t *testing.T, reg *registry.Registry, name string, owner uuid.UUID) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{Name: name, OwnerID: owner, Status: models.StatusRunning}
	if err := reg.CreateWorkspace(ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func seedService(t *testing.T, reg *registry.Registry, ws *models.Workspace, name string, typ models.ResourceType) {
	t.Helper()
	res := &models.Resource{
		Name:        name,
		WorkspaceID: ws.ID,
		Kind:        models.KindService,
		Type:        typ,
		Status:      models.StatusRunning,
	}
	if err := reg.CreateResource(res); err != nil {
		t.Fatalf("create resource: %v", err)
	}
}

func TestPaginationClamping(t *testing.T) {
	v, reg, _ := setupViews(t)
	ws := seedWorkspace(t, reg, "alpha", uuid.New())
	for i := 0; i < 23; i++ {
		seedService(t, reg, ws, fmt.Sprintf("svc-%02d", i), models.TypeBackend)
	}

	p, err := v.ListServices("alpha", ListRequest{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if p.TotalItems != 23 || p.TotalPages != 3 {
		t.Fatalf("expected 23 items over 3 pages, got %d over %d", p.TotalItems, p.TotalPages)
	}
	if len(p.Items) != 3 {
		t.Fatalf("last page should hold 3 items, got %d", len(p.Items))
	}

	// Page past the end clamps to the last page instead of erroring.
	p, err = v.ListServices("alpha", ListRequest{Page: 99, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if p.Page != 3 || len(p.Items) != 3 {
		t.Fatalf("expected clamp to page 3 with 3 items, got page %d with %d", p.Page, len(p.Items))
	}

	// Page below 1 clamps to the first page.
	p, err = v.ListServices("alpha", ListRequest{Page: -5, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if p.Page != 1 || len(p.Items) != 10 {
		t.Fatalf("expected clamp to page 1 with 10 items, got page %d with %d", p.Page, len(p.Items))
	}
}

func TestEmptyListingHasOnePage(t *testing.T) {
	v, reg, _ := setupViews(t)
	seedWorkspace(t, reg, "alpha", uuid.New())

	p, err := v.ListServices("alpha", ListRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if p.TotalPages != 1 || p.TotalItems != 0 || len(p.Items) != 0 {
		t.Fatalf("empty listing should be one empty page, got %+v", p)
	}
}

func TestFiltersCombine(t *testing.T) {
	v, reg, _ := setupViews(t)
	ws := seedWorkspace(t, reg, "alpha", uuid.New())
	seedService(t, reg, ws, "alpha-web", models.TypeFrontend)
	seedService(t, reg, ws, "alpha-api", models.TypeBackend)
	seedService(t, reg, ws, "beta-web", models.TypeFrontend)

	p, err := v.ListServices("alpha", ListRequest{Page: 1, PageSize: 10, Search: "ALPHA", Type: models.TypeFrontend})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(p.Items) != 1 || p.Items[0].Name != "alpha-web" {
		t.Fatalf("expected exactly alpha-web, got %+v", p.Items)
	}
}

func TestInsertionOrderIsStable(t *testing.T) {
	v, reg, _ := setupViews(t)
	ws := seedWorkspace(t, reg, "alpha", uuid.New())
	names := []string{"zeta", "alpha-svc", "middle"}
	for _, n := range names {
		seedService(t, reg, ws, n, models.TypeBackend)
	}

	p, err := v.ListServices("alpha", ListRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, n := range names {
		if p.Items[i].Name != n {
			t.Fatalf("expected insertion order %v, got item %d = %s", names, i, p.Items[i].Name)
		}
	}
}

func TestSubWorkspaceListingExcludesServices(t *testing.T) {
	v, reg, _ := setupViews(t)
	ws := seedWorkspace(t, reg, "alpha", uuid.New())
	seedService(t, reg, ws, "alpha-api", models.TypeBackend)
	sub := &models.Resource{
		Name:        "alpha-sub",
		WorkspaceID: ws.ID,
		Kind:        models.KindSubWorkspace,
		Type:        models.TypeSubWorkspace,
		Status:      models.StatusRunning,
	}
	if err := reg.CreateResource(sub); err != nil {
		t.Fatalf("create sub: %v", err)
	}

	p, err := v.ListSubWorkspaces("alpha", ListRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(p.Items) != 1 || p.Items[0].Name != "alpha-sub" {
		t.Fatalf("expected only the sub-workspace, got %+v", p.Items)
	}

	// The combined listing includes both kinds.
	combined, err := v.ListServices("alpha", ListRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list combined: %v", err)
	}
	if len(combined.Items) != 2 {
		t.Fatalf("combined listing should include both kinds, got %d", len(combined.Items))
	}
}

func TestListWorkspacesForUser(t *testing.T) {
	v, reg, _ := setupViews(t)
	owner := uuid.New()
	seedWorkspace(t, reg, "mine", owner)
	seedWorkspace(t, reg, "theirs", uuid.New())

	workspaces, err := v.ListWorkspacesForUser(context.Background(), owner)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(workspaces) != 1 || workspaces[0].Name != "mine" {
		t.Fatalf("expected only the owned workspace, got %+v", workspaces)
	}

	// A user with no workspaces gets an empty list, not everything.
	none, err := v.ListWorkspacesForUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty list, got %+v", none)
	}
}

func TestStats(t *testing.T) {
	v, reg, _ := setupViews(t)
	ws := seedWorkspace(t, reg, "alpha", uuid.New())
	seedService(t, reg, ws, "alpha-api", models.TypeBackend)
	sub := &models.Resource{
		Name:        "alpha-sub",
		WorkspaceID: ws.ID,
		Kind:        models.KindSubWorkspace,
		Type:        models.TypeSubWorkspace,
		Status:      models.StatusRunning,
	}
	if err := reg.CreateResource(sub); err != nil {
		t.Fatalf("create sub: %v", err)
	}

	stats, err := v.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Workspaces != 1 || stats.Services != 1 || stats.SubWorkspaces != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
