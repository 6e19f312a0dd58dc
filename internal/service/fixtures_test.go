package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

// 2024-09-02 is a Monday.
var fixtureMonday = time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)

func fixtureInputs() timetable.Inputs {
	return timetable.Inputs{
		Departments: []timetable.Department{{ID: 1, Name: "Computer Science", Code: "CS"}},
		Programs: []timetable.Program{
			{ID: 1, Code: "CS-L1", Name: "Licence 1 Informatique", Level: timetable.LevelL1, DepartmentID: 1, Capacity: 25},
		},
		Subjects: []timetable.Subject{
			{ID: 10, Code: "ALG101", Name: "Algorithmique", Kind: timetable.SubjectLecture, Credits: 6, HoursPerWeek: 3, Semester: 1, ProgramIDs: []int64{1}, DepartmentID: 1},
		},
		Teachers: []timetable.Teacher{
			{ID: 100, EmployeeID: "E001", Name: "Ada Martin", SubjectIDs: []int64{10}, MaxHoursPerWeek: 20, Available: true},
		},
		Rooms: []timetable.Room{
			{ID: 1000, Code: "A101", Kind: timetable.RoomLecture, Capacity: 30, DepartmentID: 1, Available: true},
		},
		Availabilities: []timetable.Availability{
			{ID: 1, TeacherID: 100, Weekday: 0, Start: timetable.MustClock("08:00"), End: timetable.MustClock("12:00"), Available: true},
		},
	}
}

type loaderStub struct {
	inputs      timetable.Inputs
	err         error
	calls       int
	invalidated int
}

func (l *loaderStub) Inputs(ctx context.Context, programIDs []int64) (timetable.Inputs, error) {
	l.calls++
	return l.inputs, l.err
}

func (l *loaderStub) Invalidate(ctx context.Context) {
	l.invalidated++
}

type timetableRepoStub struct {
	mu         sync.Mutex
	items      []models.Timetable
	createErr  error
	archived   int64
	statusCall []models.TimetableStatus
}

func (s *timetableRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.Timetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	record.ID = "tt-" + string(rune('a'+len(s.items)))
	record.Version = len(s.items) + 1
	record.CreatedAt = time.Now().UTC()
	s.items = append(s.items, *record)
	return nil
}

func (s *timetableRepoStub) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Timetable
	for _, item := range s.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *timetableRepoStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *timetableRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCall = append(s.statusCall, status)
	for idx := range s.items {
		if s.items[idx].ID == id {
			s.items[idx].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *timetableRepoStub) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, keepID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int64
	for idx := range s.items {
		if s.items[idx].ID != keepID && s.items[idx].Status == models.TimetableStatusPublished {
			s.items[idx].Status = models.TimetableStatusArchived
			moved++
		}
	}
	s.archived += moved
	return moved, nil
}

type sessionRepoStub struct {
	items   map[string][]models.TimetableSession
	details map[string][]models.TimetableSessionDetail
	err     error
}

func (s *sessionRepoStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.TimetableSession) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string][]models.TimetableSession)
	}
	for _, session := range sessions {
		s.items[session.TimetableID] = append(s.items[session.TimetableID], session)
	}
	return nil
}

func (s *sessionRepoStub) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSession, error) {
	return s.items[timetableID], nil
}

func (s *sessionRepoStub) ListDetailed(ctx context.Context, timetableID string) ([]models.TimetableSessionDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.details[timetableID], nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (database.TxBeginner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

// memoryCacheRepo mimics Redis JSON round-tripping in memory.
type memoryCacheRepo struct {
	mu      sync.Mutex
	items   map[string][]byte
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}
