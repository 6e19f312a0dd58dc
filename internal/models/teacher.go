package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents an instructor record. SubjectIDs is aggregated from
// teacher_subjects.
type Teacher struct {
	ID              int64         `db:"id" json:"id"`
	EmployeeID      string        `db:"employee_id" json:"employee_id"`
	Name            string        `db:"name" json:"name"`
	Specialization  string        `db:"specialization" json:"specialization"`
	MaxHoursPerWeek int           `db:"max_hours_per_week" json:"max_hours_per_week"`
	Available       bool          `db:"available" json:"available"`
	SubjectIDs      pq.Int64Array `db:"subject_ids" json:"subject_ids"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// TeacherAvailability is a weekly recurring window; weekday 0 is Monday.
// Start and end are rendered by Postgres as HH:MM:SS.
type TeacherAvailability struct {
	ID        int64  `db:"id" json:"id"`
	TeacherID int64  `db:"teacher_id" json:"teacher_id"`
	Weekday   int    `db:"weekday" json:"weekday"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Available bool   `db:"available" json:"available"`
}
