package models

import "time"

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is persisted metadata for an asynchronous timetable export.
type ExportJob struct {
	ID          string       `db:"id" json:"id"`
	TimetableID string       `db:"timetable_id" json:"timetable_id"`
	Format      string       `db:"format" json:"format"`
	Status      ExportStatus `db:"status" json:"status"`
	Progress    int          `db:"progress" json:"progress"`
	ResultURL   *string      `db:"result_url" json:"result_url,omitempty"`
	Error       *string      `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	FinishedAt  *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
