// Package lifecycle is the sole authority for state transitions. One
// kind-parameterized state machine drives services, sub-workspaces and
// workspaces; the registry stores state, the adapter performs the substrate
// side effects, and confirmations flow back through the transition queue.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudinator/orchestrator/internal/adapter"
	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/cloudinator/orchestrator/internal/queue"
	"github.com/cloudinator/orchestrator/internal/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const kindWorkspace = "workspace"

// Controller executes start/stop/enable/disable/delete operations, enforcing
// valid transitions and the at-most-one-in-flight rule per resource.
type Controller struct {
	db             *gorm.DB
	reg            *registry.Registry
	adapter        adapter.Adapter
	queue          queue.Queue
	locks          *lockTable
	confirmTimeout time.Duration
}

// New creates a Controller. confirmTimeout bounds how long an adapter call
// may stay unconfirmed before the resource is marked unknown.
func New(db *gorm.DB, reg *registry.Registry, ad adapter.Adapter, q queue.Queue, confirmTimeout time.Duration) *Controller {
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	return &Controller{
		db:             db,
		reg:            reg,
		adapter:        ad,
		queue:          q,
		locks:          newLockTable(),
		confirmTimeout: confirmTimeout,
	}
}

// leaseTTL pads the lock lease past the confirmation timeout so the lease
// only expires after the timeout path has had its chance to finalize.
func (c *Controller) leaseTTL() time.Duration {
	return c.confirmTimeout + 5*time.Second
}

func errInFlight(name string) error {
	return &registry.ConflictError{Message: fmt.Sprintf("a lifecycle operation is already in flight for %q", name)}
}

func (c *Controller) newTransition(resID uuid.UUID, kind string, op models.TransitionOp, from, to models.Status, parentID *uuid.UUID) (*models.Transition, error) {
	t := &models.Transition{
		ResourceID: resID,
		Kind:       kind,
		Op:         op,
		FromStatus: from,
		ToStatus:   to,
		State:      models.TransitionInFlight,
		ParentID:   parentID,
	}
	if err := c.db.Create(t).Error; err != nil {
		return nil, fmt.Errorf("create transition: %w", err)
	}
	return t, nil
}

func (c *Controller) failTransition(t *models.Transition, cause error) {
	now := time.Now()
	t.State = models.TransitionFailed
	t.Error = cause.Error()
	t.CompletedAt = &now
	if err := c.db.Save(t).Error; err != nil {
		slog.Error("Failed to persist failed transition", "transition_id", t.ID, "error", err)
	}
}

// wrapAdapterErr converts substrate-unreachable errors into the caller-facing
// taxonomy; other synchronous adapter errors pass through.
func wrapAdapterErr(err error) error {
	if errors.Is(err, adapter.ErrUnavailable) {
		return &AdapterUnavailableError{Err: err}
	}
	return err
}

func resourceRef(res *models.Resource, workspaceName string) adapter.Ref {
	return adapter.Ref{
		Kind:      string(res.Kind),
		Name:      res.Name,
		Workspace: workspaceName,
		Subdomain: res.Subdomain,
	}
}

func workspaceRef(ws *models.Workspace) adapter.Ref {
	return adapter.Ref{Kind: kindWorkspace, Name: ws.Name, Workspace: ws.Name}
}

// watch waits for the adapter confirmation (or the timeout) and hands the
// outcome to the worker via the queue. The controller never retries the
// substrate call itself.
func (c *Controller) watch(transitionID uuid.UUID, h *adapter.Handle) {
	ev := queue.Event{TransitionID: transitionID}
	select {
	case res := <-h.Done():
		if res.Err != nil {
			ev.Outcome = queue.OutcomeFailed
			ev.Error = res.Err.Error()
		} else {
			ev.Outcome = queue.OutcomeConfirmed
		}
	case <-time.After(c.confirmTimeout):
		ev.Outcome = queue.OutcomeTimedOut
		ev.Error = fmt.Sprintf("no confirmation within %s", c.confirmTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.queue.Enqueue(ctx, &ev); err != nil {
		// The transition stays in_flight until the lock lease expires;
		// the resource will need an operator-triggered re-sync.
		slog.Error("Failed to enqueue transition outcome", "transition_id", transitionID, "error", err)
	}
}

// DeployRequest describes a new service or sub-workspace.
type DeployRequest struct {
	WorkspaceName string
	Name          string
	Kind          models.ResourceKind
	Type          models.ResourceType
	GitURL        string
	Branch        string
	Subdomain     string
}

// DeployResource registers a new resource and provisions it on the substrate.
func (c *Controller) DeployResource(ctx context.Context, req DeployRequest) (*models.Resource, error) {
	if req.Name == "" {
		return nil, &ValidationError{Message: "name is required"}
	}
	switch req.Kind {
	case models.KindService:
		switch req.Type {
		case models.TypeFrontend, models.TypeBackend, models.TypeDatabase:
		default:
			return nil, &ValidationError{Message: "type must be frontend, backend or database"}
		}
	case models.KindSubWorkspace:
		req.Type = models.TypeSubWorkspace
	default:
		return nil, &ValidationError{Message: "kind must be service or subworkspace"}
	}

	ws, err := c.reg.GetWorkspace(req.WorkspaceName)
	if err != nil {
		return nil, err
	}
	if ws.Status != models.StatusRunning {
		return nil, &registry.PreconditionError{Message: fmt.Sprintf("workspace %q is not active", ws.Name)}
	}

	res := &models.Resource{
		Name:        req.Name,
		WorkspaceID: ws.ID,
		Kind:        req.Kind,
		Type:        req.Type,
		GitURL:      req.GitURL,
		Branch:      req.Branch,
		Subdomain:   req.Subdomain,
		Status:      models.StatusProvisioning,
	}
	if err := c.reg.CreateResource(res); err != nil {
		return nil, err
	}

	if !c.locks.Acquire(res.ID, c.leaseTTL()) {
		return nil, errInFlight(res.Name)
	}

	t, err := c.newTransition(res.ID, string(res.Kind), models.OpProvision, models.StatusProvisioning, models.StatusRunning, nil)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}

	h, err := c.adapter.Start(ctx, resourceRef(res, ws.Name))
	if err != nil {
		// Leave the record behind as stopped so a later start can retry.
		_ = c.reg.SetResourceStatus(res.ID, models.StatusStopped)
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return nil, wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	return res, nil
}

// CreateWorkspace registers and provisions a new workspace.
func (c *Controller) CreateWorkspace(ctx context.Context, name string, ownerID uuid.UUID) (*models.Workspace, error) {
	if name == "" {
		return nil, &ValidationError{Message: "name is required"}
	}

	ws := &models.Workspace{Name: name, OwnerID: ownerID, Status: models.StatusProvisioning}
	if err := c.reg.CreateWorkspace(ws); err != nil {
		return nil, err
	}

	if !c.locks.Acquire(ws.ID, c.leaseTTL()) {
		return nil, errInFlight(name)
	}

	t, err := c.newTransition(ws.ID, kindWorkspace, models.OpProvision, models.StatusProvisioning, models.StatusRunning, nil)
	if err != nil {
		c.locks.Release(ws.ID)
		return nil, err
	}

	h, err := c.adapter.Start(ctx, workspaceRef(ws))
	if err != nil {
		_ = c.reg.SetWorkspaceStatus(ws.ID, models.StatusStopped)
		c.failTransition(t, err)
		c.locks.Release(ws.ID)
		return nil, wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	return ws, nil
}

// StartResource moves a stopped resource toward running. Starting an
// already-running resource is a no-op success with no adapter invocation.
func (c *Controller) StartResource(ctx context.Context, kind models.ResourceKind, name, workspaceName string) (*models.Resource, error) {
	res, err := c.reg.GetResource(kind, name, workspaceName)
	if err != nil {
		return nil, err
	}

	if !c.locks.Acquire(res.ID, c.leaseTTL()) {
		return nil, errInFlight(name)
	}

	// Re-read under the lock: the snapshot used for the idempotency check
	// must not race a concurrent transition.
	res, err = c.reg.GetResourceByID(res.ID)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}

	if res.Status == models.StatusRunning {
		c.locks.Release(res.ID)
		return res, nil
	}
	if res.Status != models.StatusStopped {
		c.locks.Release(res.ID)
		return nil, &registry.PreconditionError{Message: fmt.Sprintf("cannot start %q while %s", name, res.Status)}
	}

	ws, err := c.reg.GetWorkspaceByID(res.WorkspaceID)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}
	if ws.Status != models.StatusRunning {
		c.locks.Release(res.ID)
		return nil, &registry.ConflictError{Message: fmt.Sprintf("workspace %q is not active", ws.Name)}
	}

	t, err := c.newTransition(res.ID, string(res.Kind), models.OpStart, models.StatusStopped, models.StatusRunning, nil)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}

	if err := c.reg.SetResourceStatus(res.ID, models.StatusStarting); err != nil {
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return nil, err
	}

	h, err := c.adapter.Start(ctx, resourceRef(res, ws.Name))
	if err != nil {
		_ = c.reg.SetResourceStatus(res.ID, models.StatusStopped)
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return nil, wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	res.Status = models.StatusStarting
	return res, nil
}

// StopResource moves a running resource toward stopped. Stopping an
// already-stopped resource is a no-op success.
func (c *Controller) StopResource(ctx context.Context, kind models.ResourceKind, name, workspaceName string) (*models.Resource, error) {
	res, err := c.reg.GetResource(kind, name, workspaceName)
	if err != nil {
		return nil, err
	}

	if !c.locks.Acquire(res.ID, c.leaseTTL()) {
		return nil, errInFlight(name)
	}

	res, err = c.reg.GetResourceByID(res.ID)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}

	if res.Status == models.StatusStopped || res.Status == models.StatusDisabled {
		c.locks.Release(res.ID)
		return res, nil
	}
	if res.Status != models.StatusRunning {
		c.locks.Release(res.ID)
		return nil, &registry.PreconditionError{Message: fmt.Sprintf("cannot stop %q while %s", name, res.Status)}
	}

	ws, err := c.reg.GetWorkspaceByID(res.WorkspaceID)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}

	t, err := c.newTransition(res.ID, string(res.Kind), models.OpStop, models.StatusRunning, models.StatusStopped, nil)
	if err != nil {
		c.locks.Release(res.ID)
		return nil, err
	}

	if err := c.reg.SetResourceStatus(res.ID, models.StatusStopping); err != nil {
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return nil, err
	}

	h, err := c.adapter.Stop(ctx, resourceRef(res, ws.Name))
	if err != nil {
		_ = c.reg.SetResourceStatus(res.ID, models.StatusRunning)
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return nil, wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	res.Status = models.StatusStopping
	return res, nil
}

// DeleteResource deprovisions and tombstones a resource. The resource must
// already be stopped; deleting a running resource is a precondition failure,
// never a cascade.
func (c *Controller) DeleteResource(ctx context.Context, kind models.ResourceKind, name, workspaceName string) error {
	res, err := c.reg.GetResource(kind, name, workspaceName)
	if err != nil {
		return err
	}

	if !c.locks.Acquire(res.ID, c.leaseTTL()) {
		return errInFlight(name)
	}

	res, err = c.reg.GetResourceByID(res.ID)
	if err != nil {
		c.locks.Release(res.ID)
		return err
	}

	if !res.Status.Terminal() {
		c.locks.Release(res.ID)
		return &registry.PreconditionError{Message: fmt.Sprintf("resource %q must be stopped before deletion (status %s)", name, res.Status)}
	}

	ws, err := c.reg.GetWorkspaceByID(res.WorkspaceID)
	if err != nil {
		c.locks.Release(res.ID)
		return err
	}

	prev := res.Status
	t, err := c.newTransition(res.ID, string(res.Kind), models.OpDelete, prev, models.StatusDeleted, nil)
	if err != nil {
		c.locks.Release(res.ID)
		return err
	}

	if err := c.reg.SetResourceStatus(res.ID, models.StatusDeleting); err != nil {
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return err
	}

	h, err := c.adapter.Deprovision(ctx, resourceRef(res, ws.Name))
	if err != nil {
		_ = c.reg.SetResourceStatus(res.ID, prev)
		c.failTransition(t, err)
		c.locks.Release(res.ID)
		return wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	return nil
}

// EnableWorkspace moves an inactive workspace toward active. Enabling an
// already-active workspace is a no-op success.
func (c *Controller) EnableWorkspace(ctx context.Context, name string) (*models.Workspace, error) {
	ws, err := c.reg.GetWorkspace(name)
	if err != nil {
		return nil, err
	}

	if !c.locks.Acquire(ws.ID, c.leaseTTL()) {
		return nil, errInFlight(name)
	}

	ws, err = c.reg.GetWorkspaceByID(ws.ID)
	if err != nil {
		c.locks.Release(ws.ID)
		return nil, err
	}

	if ws.Status == models.StatusRunning {
		c.locks.Release(ws.ID)
		return ws, nil
	}
	if ws.Status != models.StatusStopped && ws.Status != models.StatusDisabled {
		c.locks.Release(ws.ID)
		return nil, &registry.PreconditionError{Message: fmt.Sprintf("cannot enable workspace %q while %s", name, ws.Status)}
	}

	t, err := c.newTransition(ws.ID, kindWorkspace, models.OpStart, ws.Status, models.StatusRunning, nil)
	if err != nil {
		c.locks.Release(ws.ID)
		return nil, err
	}

	prev := ws.Status
	if err := c.reg.SetWorkspaceStatus(ws.ID, models.StatusStarting); err != nil {
		c.failTransition(t, err)
		c.locks.Release(ws.ID)
		return nil, err
	}

	h, err := c.adapter.Start(ctx, workspaceRef(ws))
	if err != nil {
		_ = c.reg.SetWorkspaceStatus(ws.ID, prev)
		c.failTransition(t, err)
		c.locks.Release(ws.ID)
		return nil, wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	ws.Status = models.StatusStarting
	return ws, nil
}

// DisableWorkspace cascades: every running child is stopped first, and the
// workspace reaches disabled only after all child stops have confirmed. A
// cascade that failed partway leaves the workspace disabling with the failed
// children rolled back to running; re-issuing the disable resumes it over
// those children.
func (c *Controller) DisableWorkspace(ctx context.Context, name string) (*models.Workspace, error) {
	ws, err := c.reg.GetWorkspace(name)
	if err != nil {
		return nil, err
	}

	if !c.locks.Acquire(ws.ID, c.leaseTTL()) {
		return nil, errInFlight(name)
	}

	ws, err = c.reg.GetWorkspaceByID(ws.ID)
	if err != nil {
		c.locks.Release(ws.ID)
		return nil, err
	}

	if ws.Status == models.StatusDisabled || ws.Status == models.StatusStopped {
		c.locks.Release(ws.ID)
		return ws, nil
	}
	if ws.Status != models.StatusRunning && ws.Status != models.StatusDisabling {
		c.locks.Release(ws.ID)
		return nil, &registry.PreconditionError{Message: fmt.Sprintf("cannot disable workspace %q while %s", name, ws.Status)}
	}

	children, err := c.reg.RunningChildren(ws.ID)
	if err != nil {
		c.locks.Release(ws.ID)
		return nil, err
	}
	for _, child := range children {
		if child.Status != models.StatusRunning || c.locks.Held(child.ID) {
			c.locks.Release(ws.ID)
			return nil, &registry.ConflictError{Message: fmt.Sprintf("child %q has a transition in flight", child.Name)}
		}
	}

	parent, err := c.newTransition(ws.ID, kindWorkspace, models.OpDisable, ws.Status, models.StatusDisabled, nil)
	if err != nil {
		c.locks.Release(ws.ID)
		return nil, err
	}

	if err := c.reg.SetWorkspaceStatus(ws.ID, models.StatusDisabling); err != nil {
		c.failTransition(parent, err)
		c.locks.Release(ws.ID)
		return nil, err
	}
	ws.Status = models.StatusDisabling

	if len(children) == 0 {
		now := time.Now()
		parent.State = models.TransitionConfirmed
		parent.CompletedAt = &now
		if err := c.db.Save(parent).Error; err != nil {
			c.locks.Release(ws.ID)
			return nil, err
		}
		if err := c.reg.SetWorkspaceStatus(ws.ID, models.StatusDisabled); err != nil {
			c.locks.Release(ws.ID)
			return nil, err
		}
		c.locks.Release(ws.ID)
		ws.Status = models.StatusDisabled
		return ws, nil
	}

	for i := range children {
		child := &children[i]
		if !c.locks.Acquire(child.ID, c.leaseTTL()) {
			// Raced by a direct child operation between the check above
			// and here. Abort the cascade; in-flight child stops keep
			// finalizing on their own.
			c.failTransition(parent, errInFlight(child.Name))
			c.locks.Release(ws.ID)
			return nil, errInFlight(child.Name)
		}

		t, err := c.newTransition(child.ID, string(child.Kind), models.OpStop, models.StatusRunning, models.StatusStopped, &parent.ID)
		if err != nil {
			c.locks.Release(child.ID)
			c.failTransition(parent, err)
			c.locks.Release(ws.ID)
			return nil, err
		}

		if err := c.reg.SetResourceStatus(child.ID, models.StatusStopping); err != nil {
			c.failTransition(t, err)
			c.locks.Release(child.ID)
			c.failTransition(parent, err)
			c.locks.Release(ws.ID)
			return nil, err
		}

		h, err := c.adapter.Stop(ctx, resourceRef(child, ws.Name))
		if err != nil {
			// The workspace stays disabling; already-dispatched child
			// stops finalize normally. The caller sees the failure and
			// retries the disable.
			_ = c.reg.SetResourceStatus(child.ID, models.StatusRunning)
			c.failTransition(t, err)
			c.locks.Release(child.ID)
			c.failTransition(parent, err)
			c.locks.Release(ws.ID)
			return nil, wrapAdapterErr(err)
		}

		go c.watch(t.ID, h)
	}

	return ws, nil
}

// DeleteWorkspace deprovisions and tombstones a workspace. The workspace must
// be disabled and must not own live resources: cascade deletion is explicit,
// children are deleted first by their own requests.
func (c *Controller) DeleteWorkspace(ctx context.Context, name string) error {
	ws, err := c.reg.GetWorkspace(name)
	if err != nil {
		return err
	}

	if !c.locks.Acquire(ws.ID, c.leaseTTL()) {
		return errInFlight(name)
	}

	ws, err = c.reg.GetWorkspaceByID(ws.ID)
	if err != nil {
		c.locks.Release(ws.ID)
		return err
	}

	if !ws.Status.Terminal() {
		c.locks.Release(ws.ID)
		return &registry.PreconditionError{Message: fmt.Sprintf("workspace %q must be disabled before deletion (status %s)", name, ws.Status)}
	}

	var live int64
	if err := c.db.Model(&models.Resource{}).Where("workspace_id = ?", ws.ID).Count(&live).Error; err != nil {
		c.locks.Release(ws.ID)
		return err
	}
	if live > 0 {
		c.locks.Release(ws.ID)
		return &registry.PreconditionError{Message: fmt.Sprintf("workspace %q still owns %d resources; delete them first", name, live)}
	}

	prev := ws.Status
	t, err := c.newTransition(ws.ID, kindWorkspace, models.OpDelete, prev, models.StatusDeleted, nil)
	if err != nil {
		c.locks.Release(ws.ID)
		return err
	}

	if err := c.reg.SetWorkspaceStatus(ws.ID, models.StatusDeleting); err != nil {
		c.failTransition(t, err)
		c.locks.Release(ws.ID)
		return err
	}

	h, err := c.adapter.Deprovision(ctx, workspaceRef(ws))
	if err != nil {
		_ = c.reg.SetWorkspaceStatus(ws.ID, prev)
		c.failTransition(t, err)
		c.locks.Release(ws.ID)
		return wrapAdapterErr(err)
	}

	go c.watch(t.ID, h)
	return nil
}

// Finalize applies a transition outcome delivered by the queue. It is the
// only code path that completes an in-flight transition, and it tolerates
// duplicate delivery.
func (c *Controller) Finalize(ctx context.Context, ev *queue.Event) error {
	var t models.Transition
	if err := c.db.Where("id = ?", ev.TransitionID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("transition %s not found", ev.TransitionID)
		}
		return err
	}
	if t.Done() {
		return nil // duplicate delivery
	}

	switch ev.Outcome {
	case queue.OutcomeConfirmed:
		if err := c.applyConfirmed(&t); err != nil {
			return err
		}
		t.State = models.TransitionConfirmed
	case queue.OutcomeFailed:
		if err := c.setStatus(&t, t.FromStatus); err != nil {
			return err
		}
		t.State = models.TransitionFailed
		t.Error = ev.Error
	case queue.OutcomeTimedOut:
		// A silent revert could mask a partially applied change on the
		// substrate; unknown forces reconciliation instead.
		if err := c.setStatus(&t, models.StatusUnknown); err != nil {
			return err
		}
		t.State = models.TransitionTimedOut
		t.Error = ev.Error
	default:
		return fmt.Errorf("unknown outcome %q for transition %s", ev.Outcome, ev.TransitionID)
	}

	now := time.Now()
	t.CompletedAt = &now
	if err := c.db.Save(&t).Error; err != nil {
		return err
	}
	c.locks.Release(t.ResourceID)

	slog.Info("Transition finalized",
		"transition_id", t.ID,
		"kind", t.Kind,
		"op", t.Op,
		"state", t.State)

	if t.ParentID != nil {
		return c.completeCascade(*t.ParentID)
	}
	return nil
}

func (c *Controller) applyConfirmed(t *models.Transition) error {
	if t.Op == models.OpDelete {
		if t.Kind == kindWorkspace {
			return c.reg.TombstoneWorkspace(t.ResourceID)
		}
		return c.reg.TombstoneResource(t.ResourceID)
	}
	return c.setStatus(t, t.ToStatus)
}

func (c *Controller) setStatus(t *models.Transition, status models.Status) error {
	if t.Kind == kindWorkspace {
		return c.reg.SetWorkspaceStatus(t.ResourceID, status)
	}
	return c.reg.SetResourceStatus(t.ResourceID, status)
}

// completeCascade finishes a workspace disable once the last child stop has
// finalized. The workspace reaches disabled only if every child confirmed.
func (c *Controller) completeCascade(parentID uuid.UUID) error {
	var parent models.Transition
	if err := c.db.Where("id = ?", parentID).First(&parent).Error; err != nil {
		return err
	}
	if parent.Done() {
		return nil
	}

	var children []models.Transition
	if err := c.db.Where("parent_id = ?", parentID).Find(&children).Error; err != nil {
		return err
	}

	allDone := true
	allConfirmed := true
	for _, child := range children {
		if !child.Done() {
			allDone = false
		}
		if child.State != models.TransitionConfirmed {
			allConfirmed = false
		}
	}
	if !allDone {
		return nil
	}

	now := time.Now()
	parent.CompletedAt = &now
	if allConfirmed {
		if err := c.reg.SetWorkspaceStatus(parent.ResourceID, models.StatusDisabled); err != nil {
			return err
		}
		parent.State = models.TransitionConfirmed
	} else {
		// The workspace stays disabling; the caller re-issues the disable
		// to stop the children that rolled back.
		parent.State = models.TransitionFailed
		parent.Error = "one or more child stops did not confirm"
	}
	if err := c.db.Save(&parent).Error; err != nil {
		return err
	}
	c.locks.Release(parent.ResourceID)

	slog.Info("Cascade completed",
		"transition_id", parent.ID,
		"state", parent.State,
		"children", len(children))
	return nil
}
