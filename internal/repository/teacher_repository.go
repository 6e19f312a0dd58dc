package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// TeacherRepository reads teachers, their qualifications and availability.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns all teachers with the subjects each may teach.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT t.id, t.employee_id, t.name, t.specialization, t.max_hours_per_week, t.available,
       COALESCE(ARRAY_AGG(ts.subject_id ORDER BY ts.subject_id) FILTER (WHERE ts.subject_id IS NOT NULL), '{}') AS subject_ids,
       t.created_at, t.updated_at
FROM teachers t
LEFT JOIN teacher_subjects ts ON ts.teacher_id = t.id
GROUP BY t.id
ORDER BY t.employee_id ASC, t.id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListAvailability returns the weekly windows of the given teachers. A nil
// slice returns every window.
func (r *TeacherRepository) ListAvailability(ctx context.Context, teacherIDs []int64) ([]models.TeacherAvailability, error) {
	query := `SELECT id, teacher_id, weekday, start_time, end_time, available FROM teacher_availabilities`
	args := []interface{}{}
	if teacherIDs != nil {
		query += ` WHERE teacher_id = ANY($1)`
		args = append(args, pq.Array(teacherIDs))
	}
	query += ` ORDER BY teacher_id ASC, weekday ASC, start_time ASC, id ASC`

	var windows []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &windows, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher availability: %w", err)
	}
	return windows, nil
}
