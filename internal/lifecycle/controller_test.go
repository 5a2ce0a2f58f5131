package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudinator/orchestrator/internal/adapter"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/queue"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupController(t *testing.T, confirmTimeout time.Duration) (*Controller, *registry.Registry, *adapter.Fake, queue.Queue) {
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

	err = gdb.AutoMigrate(&models.User{}, &models.Workspace{}, &models.Resource{}, &models.Transition{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	reg := registry.New(gdb)
	fake := adapter.NewFake()
	q := queue.NewMemoryQueue(10)
	t.Cleanup(func() { q.Close() })

	return New(gdb, reg, fake, q, confirmTimeout), reg, fake, q
}

func createWorkspace(t *testing.T, reg *registry.Registry, name string, status models.Status) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{Name: name, OwnerID: uuid.New(), Status: status}
	if err := reg.CreateWorkspace(ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func createService(t *testing.T, reg *registry.Registry, ws *models.Workspace, name string, status models.Status) *models.Resource {
	t.Helper()
	res := &models.Resource{
		Name:        name,
		WorkspaceID: ws.ID,
		Kind:        models.KindService,
		Type:        models.TypeBackend,
		Status:      status,
	}
	if err := reg.CreateResource(res); err != nil {
		t.Fatalf("create resource: %v", err)
	}
	return res
}

// drain pops n outcome events off the queue and finalizes them, the way the
// worker does in production.
func drain(t *testing.T, c *Controller, q queue.Queue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ev, err := q.Dequeue(ctx)
		cancel()
		if err != nil {
			t.Fatalf("dequeue event %d: %v", i, err)
		}
		if err := c.Finalize(context.Background(), ev); err != nil {
			t.Fatalf("finalize event %d: %v", i, err)
		}
	}
}

func TestStartConfirmsRunning(t *testing.T) {
	c, reg, fake, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	res, err := c.StartResource(context.Background(), models.KindService, "alpha-api", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Status != models.StatusStarting {
		t.Fatalf("expected starting, got %s", res.Status)
	}

	drain(t, c, q, 1)

	got, err := reg.GetResource(models.KindService, "alpha-api", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusRunning {
		t.Fatalf("expected running after confirmation, got %s", got.Status)
	}
	if calls := fake.Calls(); len(calls) != 1 || calls[0] != "start:alpha-api" {
		t.Fatalf("expected one start call, got %v", calls)
	}
}

func TestStartIsIdempotentOnRunning(t *testing.T) {
	c, reg, fake, _ := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusRunning)

	res, err := c.StartResource(context.Background(), models.KindService, "alpha-api", "")
	if err != nil {
		t.Fatalf("start on running resource should be a no-op, got %v", err)
	}
	if res.Status != models.StatusRunning {
		t.Fatalf("expected running, got %s", res.Status)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Fatalf("no-op must not touch the substrate, got calls %v", calls)
	}
}

func TestStopIsIdempotentOnStopped(t *testing.T) {
	c, reg, fake, _ := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	if _, err := c.StopResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("stop on stopped resource should be a no-op, got %v", err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Fatalf("no-op must not touch the substrate, got calls %v", calls)
	}
}

func TestDeleteRunningResourceFailsPrecondition(t *testing.T) {
	c, reg, _, _ := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusRunning)

	err := c.DeleteResource(context.Background(), models.KindService, "alpha-api", "")
	var pre *registry.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}

	got, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if got.Status != models.StatusRunning {
		t.Fatalf("failed delete must not change status, got %s", got.Status)
	}
}

func TestConcurrentOperationConflicts(t *testing.T) {
	c, reg, fake, _ := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	fake.HoldNext() // first op never confirms, so it stays in flight
	if _, err := c.StartResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := c.StopResource(context.Background(), models.KindService, "alpha-api", "")
	var conflict *registry.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for second in-flight op, got %v", err)
	}
	if calls := fake.Calls(); len(calls) != 1 {
		t.Fatalf("rejected op must not touch the substrate, got calls %v", calls)
	}
}

func TestSyncFailureRollsBack(t *testing.T) {
	c, reg, fake, _ := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	fake.FailNextSync(adapter.ErrUnavailable)
	_, err := c.StartResource(context.Background(), models.KindService, "alpha-api", "")
	var unavailable *AdapterUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected AdapterUnavailableError, got %v", err)
	}

	got, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if got.Status != models.StatusStopped {
		t.Fatalf("sync failure must roll back to stopped, got %s", got.Status)
	}

	// The lock must have been released: a retry goes through.
	if _, err := c.StartResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("retry after sync failure: %v", err)
	}
}

func TestAsyncFailureRollsBack(t *testing.T) {
	c, reg, fake, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	fake.FailNextAsync(errors.New("image pull failed"))
	if _, err := c.StartResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	drain(t, c, q, 1)

	got, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if got.Status != models.StatusStopped {
		t.Fatalf("failed confirmation must roll back to stopped, got %s", got.Status)
	}

	var tr models.Transition
	if err := c.db.Where("resource_id = ?", got.ID).Order("created_at DESC").First(&tr).Error; err != nil {
		t.Fatalf("load transition: %v", err)
	}
	if tr.State != models.TransitionFailed || tr.Error == "" {
		t.Fatalf("expected failed transition with error, got state=%s error=%q", tr.State, tr.Error)
	}
}

func TestConfirmationTimeoutMarksUnknown(t *testing.T) {
	c, reg, fake, q := setupController(t, 50*time.Millisecond)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	fake.HoldNext()
	if _, err := c.StartResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	drain(t, c, q, 1)

	got, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if got.Status != models.StatusUnknown {
		t.Fatalf("unconfirmed transition must end unknown, got %s", got.Status)
	}

	var tr models.Transition
	if err := c.db.Where("resource_id = ?", got.ID).First(&tr).Error; err != nil {
		t.Fatalf("load transition: %v", err)
	}
	if tr.State != models.TransitionTimedOut {
		t.Fatalf("expected timed_out transition, got %s", tr.State)
	}
}

func TestDeleteStoppedResourceTombstones(t *testing.T) {
	c, reg, _, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	if err := c.DeleteResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	drain(t, c, q, 1)

	if _, err := reg.GetResource(models.KindService, "alpha-api", ""); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("deleted resource must be gone from reads, got %v", err)
	}

	// Recreating under the same name works; the tombstone does not block it.
	createService(t, reg, ws, "alpha-api", models.StatusProvisioning)
}

func TestDisableCascadeStopsChildrenFirst(t *testing.T) {
	c, reg, fake, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusRunning)
	createService(t, reg, ws, "alpha-web", models.StatusRunning)
	createService(t, reg, ws, "alpha-db", models.StatusStopped) // already stopped, not part of the cascade

	got, err := c.DisableWorkspace(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got.Status != models.StatusDisabling {
		t.Fatalf("expected disabling while children stop, got %s", got.Status)
	}
	if calls := fake.Calls(); len(calls) != 2 {
		t.Fatalf("expected exactly the two running children stopped, got %v", calls)
	}

	drain(t, c, q, 2)

	wsAfter, _ := reg.GetWorkspace("alpha")
	if wsAfter.Status != models.StatusDisabled {
		t.Fatalf("workspace must be disabled after all children confirm, got %s", wsAfter.Status)
	}
	for _, name := range []string{"alpha-api", "alpha-web"} {
		res, _ := reg.GetResource(models.KindService, name, "")
		if res.Status != models.StatusStopped {
			t.Fatalf("child %s should be stopped, got %s", name, res.Status)
		}
	}
}

func TestDisableWithoutChildrenCompletesImmediately(t *testing.T) {
	c, reg, fake, _ := setupController(t, 30*time.Second)
	createWorkspace(t, reg, "alpha", models.StatusRunning)

	got, err := c.DisableWorkspace(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got.Status != models.StatusDisabled {
		t.Fatalf("expected immediate disabled, got %s", got.Status)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Fatalf("disable with no children must not touch the substrate, got %v", calls)
	}
}

func TestDisableIsIdempotentOnDisabled(t *testing.T) {
	c, reg, fake, _ := setupController(t, 30*time.Second)
	createWorkspace(t, reg, "alpha", models.StatusDisabled)

	got, err := c.DisableWorkspace(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("disable on disabled workspace should be a no-op, got %v", err)
	}
	if got.Status != models.StatusDisabled {
		t.Fatalf("expected disabled, got %s", got.Status)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Fatalf("no-op must not touch the substrate, got %v", calls)
	}
}

func TestDisableCascadeChildFailureLeavesDisabling(t *testing.T) {
	c, reg, fake, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusRunning)

	fake.FailNextAsync(errors.New("container refused to stop"))
	if _, err := c.DisableWorkspace(context.Background(), "alpha"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	drain(t, c, q, 1)

	wsAfter, _ := reg.GetWorkspace("alpha")
	if wsAfter.Status != models.StatusDisabling {
		t.Fatalf("workspace must stay disabling after a child stop fails, got %s", wsAfter.Status)
	}
	child, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if child.Status != models.StatusRunning {
		t.Fatalf("failed child stop must roll back to running, got %s", child.Status)
	}

	// Re-issuing the disable resumes the cascade over the rolled-back child.
	if _, err := c.DisableWorkspace(context.Background(), "alpha"); err != nil {
		t.Fatalf("retry disable: %v", err)
	}
	drain(t, c, q, 1)

	wsAfter, _ = reg.GetWorkspace("alpha")
	if wsAfter.Status != models.StatusDisabled {
		t.Fatalf("retry must finish the disable, got %s", wsAfter.Status)
	}
	child, _ = reg.GetResource(models.KindService, "alpha-api", "")
	if child.Status != models.StatusStopped {
		t.Fatalf("expected stopped child after retry, got %s", child.Status)
	}
}

func TestDisableRetryAfterAdapterOutage(t *testing.T) {
	c, reg, fake, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusRunning)

	fake.FailNextSync(adapter.ErrUnavailable)
	if _, err := c.DisableWorkspace(context.Background(), "alpha"); err == nil {
		t.Fatal("expected adapter failure")
	}

	wsAfter, _ := reg.GetWorkspace("alpha")
	if wsAfter.Status != models.StatusDisabling {
		t.Fatalf("expected disabling after the aborted cascade, got %s", wsAfter.Status)
	}

	if _, err := c.DisableWorkspace(context.Background(), "alpha"); err != nil {
		t.Fatalf("retry disable: %v", err)
	}
	drain(t, c, q, 1)

	wsAfter, _ = reg.GetWorkspace("alpha")
	if wsAfter.Status != models.StatusDisabled {
		t.Fatalf("retry must finish the disable, got %s", wsAfter.Status)
	}
}

func TestEnableWorkspace(t *testing.T) {
	c, reg, _, q := setupController(t, 30*time.Second)
	createWorkspace(t, reg, "alpha", models.StatusDisabled)

	got, err := c.EnableWorkspace(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if got.Status != models.StatusStarting {
		t.Fatalf("expected starting, got %s", got.Status)
	}

	drain(t, c, q, 1)

	wsAfter, _ := reg.GetWorkspace("alpha")
	if wsAfter.Status != models.StatusRunning {
		t.Fatalf("expected running after confirmation, got %s", wsAfter.Status)
	}
}

func TestDeleteWorkspaceWithChildrenFailsPrecondition(t *testing.T) {
	c, reg, _, _ := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusDisabled)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	err := c.DeleteWorkspace(context.Background(), "alpha")
	var pre *registry.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestDeleteActiveWorkspaceFailsPrecondition(t *testing.T) {
	c, reg, _, _ := setupController(t, 30*time.Second)
	createWorkspace(t, reg, "alpha", models.StatusRunning)

	err := c.DeleteWorkspace(context.Background(), "alpha")
	var pre *registry.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestDeployIntoInactiveWorkspaceFails(t *testing.T) {
	c, reg, _, _ := setupController(t, 30*time.Second)
	createWorkspace(t, reg, "alpha", models.StatusDisabled)

	_, err := c.DeployResource(context.Background(), DeployRequest{
		WorkspaceName: "alpha",
		Name:          "alpha-api",
		Kind:          models.KindService,
		Type:          models.TypeBackend,
	})
	var pre *registry.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestDeployProvisionsToRunning(t *testing.T) {
	c, reg, _, q := setupController(t, 30*time.Second)
	createWorkspace(t, reg, "alpha", models.StatusRunning)

	res, err := c.DeployResource(context.Background(), DeployRequest{
		WorkspaceName: "alpha",
		Name:          "alpha-api",
		Kind:          models.KindService,
		Type:          models.TypeBackend,
		GitURL:        "https://git.example.com/alpha/api.git",
		Branch:        "main",
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if res.Status != models.StatusProvisioning {
		t.Fatalf("expected provisioning, got %s", res.Status)
	}

	drain(t, c, q, 1)

	got, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if got.Status != models.StatusRunning {
		t.Fatalf("expected running after confirmation, got %s", got.Status)
	}
}

func TestCreateWorkspaceProvisionsToRunning(t *testing.T) {
	c, reg, _, q := setupController(t, 30*time.Second)

	ws, err := c.CreateWorkspace(context.Background(), "alpha", uuid.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ws.Status != models.StatusProvisioning {
		t.Fatalf("expected provisioning, got %s", ws.Status)
	}

	drain(t, c, q, 1)

	got, _ := reg.GetWorkspace("alpha")
	if got.Status != models.StatusRunning {
		t.Fatalf("expected running after confirmation, got %s", got.Status)
	}
}

func TestFinalizeTolerantOfDuplicateDelivery(t *testing.T) {
	c, reg, _, q := setupController(t, 30*time.Second)
	ws := createWorkspace(t, reg, "alpha", models.StatusRunning)
	createService(t, reg, ws, "alpha-api", models.StatusStopped)

	if _, err := c.StartResource(context.Background(), models.KindService, "alpha-api", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	ev, err := q.Dequeue(ctx)
	cancel()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := c.Finalize(context.Background(), ev); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if err := c.Finalize(context.Background(), ev); err != nil {
		t.Fatalf("duplicate finalize must be a no-op, got %v", err)
	}

	got, _ := reg.GetResource(models.KindService, "alpha-api", "")
	if got.Status != models.StatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}
}
