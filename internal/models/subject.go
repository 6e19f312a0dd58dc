package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject represents a teaching unit. ProgramIDs is aggregated from
// subject_programs.
type Subject struct {
	ID           int64         `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	Name         string        `db:"name" json:"name"`
	Kind         string        `db:"kind" json:"kind"`
	Credits      int           `db:"credits" json:"credits"`
	HoursPerWeek float64       `db:"hours_per_week" json:"hours_per_week"`
	Semester     int           `db:"semester" json:"semester"`
	DepartmentID int64         `db:"department_id" json:"department_id"`
	ProgramIDs   pq.Int64Array `db:"program_ids" json:"program_ids"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
