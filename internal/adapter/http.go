package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPDriver talks to a substrate control API. A mutating POST/DELETE returns
// 202 and the driver then polls the workload's status endpoint until the
// substrate reports a settled state. There is no internal retry of the
// mutating call itself; retry is the caller's decision.
type HTTPDriver struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

// NewHTTPDriver creates a driver against the given substrate base URL.
func NewHTTPDriver(baseURL string, pollInterval time.Duration) *HTTPDriver {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &HTTPDriver{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		pollInterval: pollInterval,
	}
}

type substrateStatus struct {
	State string `json:"state"` // "settled", "in_progress", "error"
	Error string `json:"error,omitempty"`
}

func (d *HTTPDriver) workloadURL(ref Ref) string {
	return fmt.Sprintf("%s/v1/workspaces/%s/%ss/%s", d.baseURL, ref.Workspace, ref.Kind, ref.Name)
}

func (d *HTTPDriver) invoke(ctx context.Context, method, url string, ref Ref) (*Handle, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: substrate returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("substrate rejected %s %s: %d", method, url, resp.StatusCode)
	}

	h := NewHandle()
	go d.pollUntilSettled(ref, h)
	return h, nil
}

// pollUntilSettled polls the status endpoint until the substrate settles.
// The controller owns the confirmation timeout, so polling here runs on a
// detached context and simply stops being listened to once the controller
// gives up.
func (d *HTTPDriver) pollUntilSettled(ref Ref, h *Handle) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	// Bounded independently so an abandoned poller cannot leak forever.
	deadline := time.Now().Add(10 * time.Minute)
	for range ticker.C {
		if time.Now().After(deadline) {
			h.Resolve(Result{Err: fmt.Errorf("substrate never settled for %s/%s", ref.Workspace, ref.Name)})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := d.fetchStatus(ctx, ref)
		cancel()
		if err != nil {
			continue // transient; keep polling
		}
		switch st.State {
		case "settled":
			h.Resolve(Result{})
			return
		case "error":
			h.Resolve(Result{Err: fmt.Errorf("substrate error: %s", st.Error)})
			return
		}
	}
}

func (d *HTTPDriver) fetchStatus(ctx context.Context, ref Ref) (*substrateStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.workloadURL(ref)+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var st substrateStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Start implements Adapter.
func (d *HTTPDriver) Start(ctx context.Context, ref Ref) (*Handle, error) {
	return d.invoke(ctx, http.MethodPost, d.workloadURL(ref)+"/start", ref)
}

// Stop implements Adapter.
func (d *HTTPDriver) Stop(ctx context.Context, ref Ref) (*Handle, error) {
	return d.invoke(ctx, http.MethodPost, d.workloadURL(ref)+"/stop", ref)
}

// Deprovision implements Adapter.
func (d *HTTPDriver) Deprovision(ctx context.Context, ref Ref) (*Handle, error) {
	return d.invoke(ctx, http.MethodDelete, d.workloadURL(ref), ref)
}
