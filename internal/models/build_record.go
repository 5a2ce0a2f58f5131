package models

import "time"

// BuildStatus is the outcome reported by the CI system.
type BuildStatus string

const (
	BuildSuccess  BuildStatus = "success"
	BuildFailure  BuildStatus = "failure"
	BuildBuilding BuildStatus = "building"
)

// BuildRecord is an immutable CI build outcome ingested for display.
// The orchestrator never mutates these; re-ingesting the same
// (job_name, build_number) pair is a no-op.
type BuildRecord struct {
	ID          uint        `gorm:"primarykey" json:"id"`
	JobName     string      `gorm:"not null;uniqueIndex:idx_builds_job_number" json:"jobName"`
	BuildNumber int         `gorm:"not null;uniqueIndex:idx_builds_job_number" json:"buildNumber"`
	Status      BuildStatus `gorm:"not null" json:"status"`
	Timestamp   time.Time   `gorm:"not null;index" json:"timestamp"`
	TriggeredBy string      `json:"triggeredBy,omitempty"`
	BuildURL    string      `json:"buildUrl"`
	CreatedAt   time.Time   `json:"-"`
}

// TableName ensures GORM uses the "build_records" table
func (BuildRecord) TableName() string {
	return "build_records"
}
