package builds

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudinator/orchestrator/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) *Store {
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

	if err := gdb.AutoMigrate(&models.BuildRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(gdb)
}

func record(job string, n int, status models.BuildStatus, ts time.Time) models.BuildRecord {
	return models.BuildRecord{JobName: job, BuildNumber: n, Status: status, Timestamp: ts}
}

func TestIngestSkipsDuplicates(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	first := record("deploy-alpha", 41, models.BuildSuccess, now)
	if err := s.Ingest(&first); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// Same (job, number) with a different status must be ignored, not applied.
	dup := record("deploy-alpha", 41, models.BuildFailure, now)
	if err := s.Ingest(&dup); err != nil {
		t.Fatalf("duplicate ingest should be a silent no-op, got %v", err)
	}

	recs, err := s.List("deploy-alpha", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != models.BuildSuccess {
		t.Fatalf("expected single success record, got %+v", recs)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := setupStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		rec := record("deploy-alpha", i, models.BuildSuccess, base.Add(time.Duration(i)*time.Minute))
		if err := s.Ingest(&rec); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	recs, err := s.List("", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected limit 3, got %d", len(recs))
	}
	if recs[0].BuildNumber != 5 || recs[2].BuildNumber != 3 {
		t.Fatalf("expected newest first (5,4,3), got %d..%d", recs[0].BuildNumber, recs[2].BuildNumber)
	}
}

func TestAnalytics(t *testing.T) {
	s := setupStore(t)
	now := time.Now()
	outcomes := []models.BuildStatus{
		models.BuildSuccess, models.BuildSuccess, models.BuildSuccess,
		models.BuildFailure,
		models.BuildBuilding,
	}
	for i, st := range outcomes {
		rec := record("deploy-alpha", i+1, st, now.Add(time.Duration(i)*time.Minute))
		if err := s.Ingest(&rec); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	a, err := s.GetAnalytics("")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.Total != 5 || a.Success != 3 || a.Failure != 1 || a.Building != 1 {
		t.Fatalf("unexpected counts: %+v", a)
	}
	if a.Rate != 0.75 {
		t.Fatalf("expected success rate 0.75, got %v", a.Rate)
	}
}

func TestIngestValidation(t *testing.T) {
	s := setupStore(t)
	bad := record("", 1, models.BuildSuccess, time.Now())
	if err := s.Ingest(&bad); err == nil {
		t.Fatal("expected error for missing job name")
	}
	bad = record("deploy-alpha", 0, models.BuildSuccess, time.Now())
	if err := s.Ingest(&bad); err == nil {
		t.Fatal("expected error for non-positive build number")
	}
}
