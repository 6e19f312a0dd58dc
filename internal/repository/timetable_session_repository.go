package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// sessionBatchSize keeps bulk inserts well under the Postgres parameter limit.
const sessionBatchSize = 500

// TimetableSessionRepository manages sessions for stored timetables.
type TimetableSessionRepository struct {
	db *sqlx.DB
}

// NewTimetableSessionRepository builds repository.
func NewTimetableSessionRepository(db *sqlx.DB) *TimetableSessionRepository {
	return &TimetableSessionRepository{db: db}
}

func (r *TimetableSessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch inserts sessions in multi-row batches.
func (r *TimetableSessionRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.TimetableSession) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO timetable_sessions (id, timetable_id, session_date, start_time, end_time, subject_id, teacher_id, room_id, program_id)
VALUES (:id, :timetable_id, :session_date, :start_time, :end_time, :subject_id, :teacher_id, :room_id, :program_id)`

	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
	}
	for start := 0; start < len(sessions); start += sessionBatchSize {
		end := start + sessionBatchSize
		if end > len(sessions) {
			end = len(sessions)
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, sessions[start:end]); err != nil {
			return fmt.Errorf("insert timetable sessions: %w", err)
		}
	}
	return nil
}

// ListByTimetable returns sessions ordered by date, start and program.
func (r *TimetableSessionRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSession, error) {
	const query = `SELECT id, timetable_id, session_date, start_time, end_time, subject_id, teacher_id, room_id, program_id
FROM timetable_sessions WHERE timetable_id = $1 ORDER BY session_date ASC, start_time ASC, program_id ASC, subject_id ASC`
	var sessions []models.TimetableSession
	if err := r.db.SelectContext(ctx, &sessions, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable sessions: %w", err)
	}
	return sessions, nil
}

// ListDetailed returns sessions joined with display names for exports.
func (r *TimetableSessionRepository) ListDetailed(ctx context.Context, timetableID string) ([]models.TimetableSessionDetail, error) {
	const query = `SELECT ts.id, ts.timetable_id, ts.session_date, ts.start_time, ts.end_time,
       ts.subject_id, ts.teacher_id, ts.room_id, ts.program_id,
       p.code AS program_code, s.code AS subject_code, s.name AS subject_name, s.kind AS subject_kind,
       t.name AS teacher_name, r.code AS room_code
FROM timetable_sessions ts
JOIN programs p ON p.id = ts.program_id
JOIN subjects s ON s.id = ts.subject_id
JOIN teachers t ON t.id = ts.teacher_id
JOIN rooms r ON r.id = ts.room_id
WHERE ts.timetable_id = $1
ORDER BY ts.session_date ASC, ts.start_time ASC, p.code ASC, s.code ASC`
	var sessions []models.TimetableSessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, timetableID); err != nil {
		return nil, fmt.Errorf("list detailed timetable sessions: %w", err)
	}
	return sessions, nil
}
