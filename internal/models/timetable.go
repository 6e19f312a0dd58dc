package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// TimetableStatus represents lifecycle phases for stored timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Valid reports whether s is a known status.
func (s TimetableStatus) Valid() bool {
	switch s {
	case TimetableStatusDraft, TimetableStatusPublished, TimetableStatusArchived:
		return true
	}
	return false
}

// Timetable captures one saved, versioned generation result.
type Timetable struct {
	ID         string          `db:"id" json:"id"`
	Version    int             `db:"version" json:"version"`
	Status     TimetableStatus `db:"status" json:"status"`
	StartDate  time.Time       `db:"start_date" json:"start_date"`
	EndDate    time.Time       `db:"end_date" json:"end_date"`
	ProgramIDs pq.Int64Array   `db:"program_ids" json:"program_ids"`
	Meta       types.JSONText  `db:"meta" json:"meta"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter narrows timetable listings.
type TimetableFilter struct {
	Status TimetableStatus
	Limit  int
}

// TimetableSession is a stored session row.
type TimetableSession struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	SessionDate time.Time `db:"session_date" json:"session_date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	SubjectID   int64     `db:"subject_id" json:"subject_id"`
	TeacherID   int64     `db:"teacher_id" json:"teacher_id"`
	RoomID      int64     `db:"room_id" json:"room_id"`
	ProgramID   int64     `db:"program_id" json:"program_id"`
}

// TimetableSessionDetail joins a stored session with display fields used by
// exports.
type TimetableSessionDetail struct {
	TimetableSession
	ProgramCode string `db:"program_code"`
	SubjectCode string `db:"subject_code"`
	SubjectName string `db:"subject_name"`
	SubjectKind string `db:"subject_kind"`
	TeacherName string `db:"teacher_name"`
	RoomCode    string `db:"room_code"`
}
