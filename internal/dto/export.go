package dto

import "time"

// CreateExportRequest queues an export of a stored timetable.
type CreateExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv xlsx ics"`
}

// ExportJobResponse reports export progress.
type ExportJobResponse struct {
	ID          string     `json:"id"`
	TimetableID string     `json:"timetable_id"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	DownloadURL *string    `json:"download_url,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
