// Package builds ingests CI build outcomes and serves build history and
// analytics. Records are append-only: the CI system owns them, the
// orchestrator only mirrors them for display.
package builds

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudinator/orchestrator/internal/models"
	"gorm.io/gorm"
)

// Store persists and queries build records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a build record store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ingest inserts a build record. A record with the same (jobName,
// buildNumber) as an existing one is skipped, never updated.
func (s *Store) Ingest(rec *models.BuildRecord) error {
	if rec.JobName == "" || rec.BuildNumber <= 0 {
		return errors.New("build record requires jobName and a positive buildNumber")
	}

	var count int64
	err := s.db.Model(&models.BuildRecord{}).
		Where("job_name = ? AND build_number = ?", rec.JobName, rec.BuildNumber).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Debug("Skipping duplicate build record",
			"job_name", rec.JobName, "build_number", rec.BuildNumber)
		return nil
	}

	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("ingest build record: %w", err)
	}
	return nil
}

// IngestBatch ingests a feed page, skipping duplicates. Returns how many
// records were new.
func (s *Store) IngestBatch(recs []models.BuildRecord) (int, error) {
	inserted := 0
	for i := range recs {
		var count int64
		err := s.db.Model(&models.BuildRecord{}).
			Where("job_name = ? AND build_number = ?", recs[i].JobName, recs[i].BuildNumber).
			Count(&count).Error
		if err != nil {
			return inserted, err
		}
		if count > 0 {
			continue
		}
		if err := s.db.Create(&recs[i]).Error; err != nil {
			return inserted, fmt.Errorf("ingest build record: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// List returns the most recent builds, newest first. A non-positive limit
// defaults to 20.
func (s *Store) List(jobName string, limit int) ([]models.BuildRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.db.Order("timestamp DESC, build_number DESC").Limit(limit)
	if jobName != "" {
		q = q.Where("job_name = ?", jobName)
	}
	var recs []models.BuildRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Analytics summarizes build outcomes for the dashboard.
type Analytics struct {
	Total    int64   `json:"total"`
	Success  int64   `json:"success"`
	Failure  int64   `json:"failure"`
	Building int64   `json:"building"`
	Rate     float64 `json:"successRate"` // success / (success + failure); 0 when no finished builds
}

// GetAnalytics returns outcome counts, optionally scoped to one job.
func (s *Store) GetAnalytics(jobName string) (*Analytics, error) {
	base := s.db.Model(&models.BuildRecord{})
	if jobName != "" {
		base = base.Where("job_name = ?", jobName)
	}

	var a Analytics
	if err := base.Session(&gorm.Session{}).Count(&a.Total).Error; err != nil {
		return nil, err
	}
	counts := []struct {
		status models.BuildStatus
		dest   *int64
	}{
		{models.BuildSuccess, &a.Success},
		{models.BuildFailure, &a.Failure},
		{models.BuildBuilding, &a.Building},
	}
	for _, c := range counts {
		err := base.Session(&gorm.Session{}).Where("status = ?", c.status).Count(c.dest).Error
		if err != nil {
			return nil, err
		}
	}

	if finished := a.Success + a.Failure; finished > 0 {
		a.Rate = float64(a.Success) / float64(finished)
	}
	return &a, nil
}
