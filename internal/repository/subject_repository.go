package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// SubjectRepository reads subjects together with their program links.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByPrograms returns every subject linked to at least one of programIDs.
// ProgramIDs on each subject lists all of its programs, not only the
// requested ones.
func (r *SubjectRepository) ListByPrograms(ctx context.Context, programIDs []int64) ([]models.Subject, error) {
	if len(programIDs) == 0 {
		return []models.Subject{}, nil
	}
	const query = `SELECT s.id, s.code, s.name, s.kind, s.credits, s.hours_per_week, s.semester, s.department_id,
       ARRAY_AGG(sp.program_id ORDER BY sp.program_id) AS program_ids, s.created_at, s.updated_at
FROM subjects s
JOIN subject_programs sp ON sp.subject_id = s.id
WHERE s.id IN (SELECT subject_id FROM subject_programs WHERE program_id = ANY($1))
GROUP BY s.id
ORDER BY s.code ASC, s.id ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, pq.Array(programIDs)); err != nil {
		return nil, fmt.Errorf("list subjects by programs: %w", err)
	}
	return subjects, nil
}
