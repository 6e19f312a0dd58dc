package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

const programColumns = `id, code, name, level, department_id, capacity, created_at, updated_at`

// ProgramRepository reads student cohorts.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// ListByIDs returns the programs among ids that exist. Unknown ids are
// silently absent from the result.
func (r *ProgramRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Program, error) {
	if len(ids) == 0 {
		return []models.Program{}, nil
	}
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = ANY($1) ORDER BY code ASC, id ASC`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list programs by ids: %w", err)
	}
	return programs, nil
}

