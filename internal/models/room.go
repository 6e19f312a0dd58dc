package models

import "time"

// Room is a physical teaching space.
type Room struct {
	ID           int64     `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Kind         string    `db:"kind" json:"kind"`
	Capacity     int       `db:"capacity" json:"capacity"`
	DepartmentID int64     `db:"department_id" json:"department_id"`
	Available    bool      `db:"available" json:"available"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
