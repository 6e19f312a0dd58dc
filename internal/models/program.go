package models

import "time"

// Program is a student cohort following a common curriculum.
type Program struct {
	ID           int64     `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Level        string    `db:"level" json:"level"`
	DepartmentID int64     `db:"department_id" json:"department_id"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
