package builds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudinator/orchestrator/internal/models"
)

// Poller periodically pulls the CI build feed and ingests new records.
type Poller struct {
	store    *Store
	feedURL  string
	interval time.Duration
	client   *http.Client
}

// NewPoller creates a feed poller. interval below one second is raised to
// one second to keep a misconfigured deployment from hammering the CI system.
func NewPoller(store *Store, feedURL string, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	return &Poller{
		store:    store,
		feedURL:  feedURL,
		interval: interval,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Run polls the feed until ctx is cancelled. Feed errors are logged and the
// next tick retries; a broken CI feed never takes the orchestrator down.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("Build feed poller started", "feed_url", p.feedURL, "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Build feed poller stopped")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				slog.Error("Build feed poll failed", "error", err)
			}
		}
	}
}

// feedEntry is the shape the CI feed emits per build.
type feedEntry struct {
	JobName     string `json:"jobName"`
	BuildNumber int    `json:"buildNumber"`
	Result      string `json:"result"` // SUCCESS, FAILURE or BUILDING
	Timestamp   int64  `json:"timestamp"` // milliseconds since epoch
	TriggeredBy string `json:"triggeredBy"`
	URL         string `json:"url"`
}

func (p *Poller) pollOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch build feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("build feed returned %d", resp.StatusCode)
	}

	var entries []feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("decode build feed: %w", err)
	}

	recs := make([]models.BuildRecord, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, models.BuildRecord{
			JobName:     e.JobName,
			BuildNumber: e.BuildNumber,
			Status:      statusFromResult(e.Result),
			Timestamp:   time.UnixMilli(e.Timestamp),
			TriggeredBy: e.TriggeredBy,
			BuildURL:    e.URL,
		})
	}

	inserted, err := p.store.IngestBatch(recs)
	if err != nil {
		return err
	}
	if inserted > 0 {
		slog.Info("Ingested build records", "count", inserted)
	}
	return nil
}

func statusFromResult(result string) models.BuildStatus {
	switch result {
	case "SUCCESS":
		return models.BuildSuccess
	case "FAILURE", "ABORTED", "UNSTABLE":
		return models.BuildFailure
	default:
		return models.BuildBuilding
	}
}
