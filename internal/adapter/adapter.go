// Package adapter abstracts the deployment substrate that actually starts,
// stops and deprovisions workloads. Calls are fire-and-confirm: a call either
// fails synchronously (bad reference, substrate unreachable) or returns a
// Handle that later delivers exactly one Result. The lifecycle controller
// consumes the Result to finalize the state transition, so the state machine
// stays substrate-agnostic.
package adapter

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the substrate could not be reached. Callers retry;
// the orchestrator never retries blindly because substrate operations are not
// guaranteed idempotent without status confirmation.
var ErrUnavailable = errors.New("deployment substrate unavailable")

// Ref identifies a workload on the substrate.
type Ref struct {
	Kind      string // service, subworkspace, workspace
	Name      string
	Workspace string
	Subdomain string
}

// Result is the asynchronous outcome of a substrate operation.
type Result struct {
	Err error // nil means the operation completed on the substrate
}

// Handle delivers the confirmation for one in-flight substrate operation.
type Handle struct {
	done chan Result
}

// NewHandle creates a handle with capacity for its single result.
func NewHandle() *Handle {
	return &Handle{done: make(chan Result, 1)}
}

// Resolve delivers the result. Must be called exactly once per handle.
func (h *Handle) Resolve(res Result) {
	h.done <- res
}

// Done returns the channel carrying the single confirmation.
func (h *Handle) Done() <-chan Result {
	return h.done
}

// Adapter is the capability interface over the deployment substrate.
type Adapter interface {
	Start(ctx context.Context, ref Ref) (*Handle, error)
	Stop(ctx context.Context, ref Ref) (*Handle, error)
	Deprovision(ctx context.Context, ref Ref) (*Handle, error)
}
