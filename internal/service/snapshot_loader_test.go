package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
)

type entityStub struct {
	programCalls int32
	programErr   error
}

func (s *entityStub) ListByIDs(ctx context.Context, ids []int64) ([]models.Program, error) {
	atomic.AddInt32(&s.programCalls, 1)
	if s.programErr != nil {
		return nil, s.programErr
	}
	return []models.Program{{ID: 1, Code: "CS-L1", Name: "Licence 1", Level: "L1", DepartmentID: 1, Capacity: 25}}, nil
}

func (s *entityStub) ListByPrograms(ctx context.Context, programIDs []int64) ([]models.Subject, error) {
	return []models.Subject{{ID: 10, Code: "ALG101", Name: "Algorithmique", Kind: "lecture", Credits: 6, HoursPerWeek: 3, Semester: 1, DepartmentID: 1, ProgramIDs: pq.Int64Array{1}}}, nil
}

type teacherEntityStub struct {
	availability []models.TeacherAvailability
}

func (s teacherEntityStub) List(ctx context.Context) ([]models.Teacher, error) {
	return []models.Teacher{{ID: 100, EmployeeID: "E001", Name: "Ada Martin", MaxHoursPerWeek: 20, Available: true, SubjectIDs: pq.Int64Array{10}}}, nil
}

func (s teacherEntityStub) ListAvailability(ctx context.Context, teacherIDs []int64) ([]models.TeacherAvailability, error) {
	return s.availability, nil
}

type roomEntityStub struct{}

func (roomEntityStub) List(ctx context.Context) ([]models.Room, error) {
	return []models.Room{{ID: 1000, Code: "A101", Kind: "lecture", Capacity: 30, DepartmentID: 1, Available: true}}, nil
}

type departmentEntityStub struct{}

func (departmentEntityStub) List(ctx context.Context) ([]models.Department, error) {
	return []models.Department{{ID: 1, Code: "CS", Name: "Computer Science"}}, nil
}

func newLoaderFixture(t *testing.T, cacheSvc *CacheService) (*SnapshotLoader, *entityStub) {
	t.Helper()
	programs := &entityStub{}
	teachers := teacherEntityStub{availability: []models.TeacherAvailability{
		{ID: 1, TeacherID: 100, Weekday: 0, StartTime: "08:00:00", EndTime: "12:00:00", Available: true},
	}}
	loader := NewSnapshotLoader(programs, programs, teachers, roomEntityStub{}, departmentEntityStub{}, cacheSvc, time.Minute, nil, zap.NewNop())
	return loader, programs
}

func TestSnapshotLoaderBuildsInputs(t *testing.T) {
	loader, _ := newLoaderFixture(t, nil)

	in, err := loader.Inputs(context.Background(), []int64{1})

	require.NoError(t, err)
	require.Len(t, in.Programs, 1)
	assert.Equal(t, timetable.LevelL1, in.Programs[0].Level)
	assert.Equal(t, timetable.SubjectLecture, in.Subjects[0].Kind)
	assert.Equal(t, []int64{1}, in.Subjects[0].ProgramIDs)
	assert.Equal(t, []int64{10}, in.Teachers[0].SubjectIDs)
	assert.Equal(t, timetable.RoomLecture, in.Rooms[0].Kind)
	require.Len(t, in.Availabilities, 1)
	assert.Equal(t, timetable.MustClock("08:00"), in.Availabilities[0].Start)
	assert.Equal(t, timetable.MustClock("12:00"), in.Availabilities[0].End)

	_, report, err := timetable.Run(context.Background(), timetable.Request{
		ProgramIDs:        []int64{1},
		StartDate:         fixtureMonday,
		EndDate:           fixtureMonday,
		MaxSessionsPerDay: 4,
	}, in, timetable.DefaultConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, report.Sessions)
}

func TestSnapshotLoaderCachesByProgramSet(t *testing.T) {
	repo := newMemoryCacheRepo()
	cacheSvc := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	loader, programs := newLoaderFixture(t, cacheSvc)

	first, err := loader.Inputs(context.Background(), []int64{1, 1})
	require.NoError(t, err)
	second, err := loader.Inputs(context.Background(), []int64{1})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&programs.programCalls))
	assert.Equal(t, first, second)
	assert.True(t, repo.has("timetable:inputs:1"))

	loader.Invalidate(context.Background())
	assert.False(t, repo.has("timetable:inputs:1"))

	_, err = loader.Inputs(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&programs.programCalls))
}

func TestSnapshotLoaderPropagatesRepositoryErrors(t *testing.T) {
	loader, programs := newLoaderFixture(t, nil)
	programs.programErr = errors.New("connection reset")

	_, err := loader.Inputs(context.Background(), []int64{1})

	assert.ErrorContains(t, err, "connection reset")
}

func TestBuildInputsRejectsBadAvailability(t *testing.T) {
	_, err := BuildInputs(nil, nil, nil, []models.TeacherAvailability{{ID: 7, StartTime: "8am", EndTime: "10:00"}}, nil, nil)

	assert.ErrorContains(t, err, "availability 7")
}

func TestGeneratorConfig(t *testing.T) {
	cfg, err := GeneratorConfig(config.SchedulerConfig{
		Grid:                      []config.SlotConfig{{Weekday: 1, Start: "09:00", End: "10:30"}},
		SessionHours:              2,
		SubjectPriority:           "quota",
		PreferSameDepartment:      false,
		AllowDepartmentRelaxation: true,
		MaxRangeDays:              90,
	})

	require.NoError(t, err)
	assert.Equal(t, []timetable.GridEntry{{Weekday: 1, Start: timetable.MustClock("09:00"), End: timetable.MustClock("10:30")}}, cfg.Grid)
	assert.Equal(t, 2.0, cfg.SessionHours)
	assert.Equal(t, timetable.PriorityQuota, cfg.SubjectPriority)
	assert.False(t, cfg.PreferSameDepartment)
	assert.Equal(t, 90, cfg.MaxRangeDays)

	defaults, err := GeneratorConfig(config.SchedulerConfig{})
	require.NoError(t, err)
	assert.Equal(t, timetable.DefaultGrid(), defaults.Grid)
	assert.Equal(t, timetable.PriorityRemaining, defaults.SubjectPriority)

	_, err = GeneratorConfig(config.SchedulerConfig{SubjectPriority: "random"})
	assert.Error(t, err)

	_, err = GeneratorConfig(config.SchedulerConfig{Grid: []config.SlotConfig{{Weekday: 1, Start: "11:00", End: "10:00"}}})
	assert.Error(t, err)
}
