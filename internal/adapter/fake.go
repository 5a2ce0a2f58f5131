package adapter

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory substrate used in development mode and tests. Every
// operation succeeds after Latency unless the test arms a failure.
type Fake struct {
	Latency time.Duration

	mu        sync.Mutex
	calls     []string
	syncErr   error // returned synchronously by the next call
	asyncErr  error // delivered via the handle by the next call
	holdNext  bool  // next handle is never resolved (simulates a lost confirmation)
	heldCount int
}

// NewFake creates a fake adapter with no latency.
func NewFake() *Fake {
	return &Fake{}
}

// Calls returns the operations invoked so far, e.g. "start:alpha-api".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// FailNextSync makes the next call return err synchronously.
func (f *Fake) FailNextSync(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncErr = err
}

// FailNextAsync makes the next call confirm with err.
func (f *Fake) FailNextAsync(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asyncErr = err
}

// HoldNext makes the next call never confirm, so the controller's timeout
// path fires.
func (f *Fake) HoldNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdNext = true
}

func (f *Fake) invoke(op string, ref Ref) (*Handle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+ref.Name)
	if f.syncErr != nil {
		err := f.syncErr
		f.syncErr = nil
		f.mu.Unlock()
		return nil, err
	}
	hold := f.holdNext
	f.holdNext = false
	asyncErr := f.asyncErr
	f.asyncErr = nil
	f.mu.Unlock()

	h := NewHandle()
	if hold {
		f.mu.Lock()
		f.heldCount++
		f.mu.Unlock()
		return h, nil
	}
	if f.Latency == 0 {
		h.Resolve(Result{Err: asyncErr})
		return h, nil
	}
	go func() {
		time.Sleep(f.Latency)
		h.Resolve(Result{Err: asyncErr})
	}()
	return h, nil
}

// Start implements Adapter.
func (f *Fake) Start(ctx context.Context, ref Ref) (*Handle, error) {
	return f.invoke("start", ref)
}

// Stop implements Adapter.
func (f *Fake) Stop(ctx context.Context, ref Ref) (*Handle, error) {
	return f.invoke("stop", ref)
}

// Deprovision implements Adapter.
func (f *Fake) Deprovision(ctx context.Context, ref Ref) (*Handle, error) {
	return f.invoke("deprovision", ref)
}
