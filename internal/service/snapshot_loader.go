package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
)

const inputsCachePrefix = "timetable:inputs"

type programReader interface {
	ListByIDs(ctx context.Context, ids []int64) ([]models.Program, error)
}

type subjectReader interface {
	ListByPrograms(ctx context.Context, programIDs []int64) ([]models.Subject, error)
}

type teacherReader interface {
	List(ctx context.Context) ([]models.Teacher, error)
	ListAvailability(ctx context.Context, teacherIDs []int64) ([]models.TeacherAvailability, error)
}

type roomReader interface {
	List(ctx context.Context) ([]models.Room, error)
}

type departmentReader interface {
	List(ctx context.Context) ([]models.Department, error)
}

// SnapshotLoader gathers the entity graph a generation needs.
type SnapshotLoader struct {
	programs    programReader
	subjects    subjectReader
	teachers    teacherReader
	rooms       roomReader
	departments departmentReader
	cache       *CacheService
	cacheTTL    time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewSnapshotLoader wires the entity repositories. cache may be nil.
func NewSnapshotLoader(
	programs programReader,
	subjects subjectReader,
	teachers teacherReader,
	rooms roomReader,
	departments departmentReader,
	cacheSvc *CacheService,
	cacheTTL time.Duration,
	metrics *MetricsService,
	logger *zap.Logger,
) *SnapshotLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotLoader{
		programs:    programs,
		subjects:    subjects,
		teachers:    teachers,
		rooms:       rooms,
		departments: departments,
		cache:       cacheSvc,
		cacheTTL:    cacheTTL,
		metrics:     metrics,
		logger:      logger,
	}
}

// Inputs returns the entities reachable from programIDs, served from cache when possible.
func (l *SnapshotLoader) Inputs(ctx context.Context, programIDs []int64) (timetable.Inputs, error) {
	var in timetable.Inputs
	key := cache.Key(inputsCachePrefix, cache.IDSetKey(programIDs))
	err := l.cache.Remember(ctx, key, l.cacheTTL, &in, func(ctx context.Context) error {
		loaded, err := l.load(ctx, programIDs)
		if err != nil {
			return err
		}
		in = loaded
		return nil
	})
	return in, err
}

// Invalidate drops every cached input graph.
func (l *SnapshotLoader) Invalidate(ctx context.Context) {
	_ = l.cache.Invalidate(ctx, inputsCachePrefix+":*")
}

func (l *SnapshotLoader) load(ctx context.Context, programIDs []int64) (timetable.Inputs, error) {
	var (
		programs     []models.Program
		subjects     []models.Subject
		teachers     []models.Teacher
		availability []models.TeacherAvailability
		rooms        []models.Room
		departments  []models.Department
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		programs, err = l.programs.ListByIDs(gctx, programIDs)
		return err
	})
	g.Go(func() (err error) {
		subjects, err = l.subjects.ListByPrograms(gctx, programIDs)
		return err
	})
	g.Go(func() (err error) {
		teachers, err = l.teachers.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		availability, err = l.teachers.ListAvailability(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		rooms, err = l.rooms.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		departments, err = l.departments.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return timetable.Inputs{}, err
	}
	l.metrics.ObserveDBQuery("timetable_inputs", time.Since(start))

	in, err := BuildInputs(programs, subjects, teachers, availability, rooms, departments)
	if err != nil {
		return timetable.Inputs{}, err
	}
	l.logger.Debug("loaded timetable inputs",
		zap.Int("programs", len(in.Programs)),
		zap.Int("subjects", len(in.Subjects)),
		zap.Int("teachers", len(in.Teachers)),
		zap.Int("rooms", len(in.Rooms)),
	)
	return in, nil
}

// BuildInputs converts stored rows into generator entities. An availability
// window with an unreadable time is a data error and fails the whole load.
func BuildInputs(
	programs []models.Program,
	subjects []models.Subject,
	teachers []models.Teacher,
	availability []models.TeacherAvailability,
	rooms []models.Room,
	departments []models.Department,
) (timetable.Inputs, error) {
	in := timetable.Inputs{
		Departments: lo.Map(departments, func(d models.Department, _ int) timetable.Department {
			return timetable.Department{ID: d.ID, Name: d.Name, Code: d.Code}
		}),
		Programs: lo.Map(programs, func(p models.Program, _ int) timetable.Program {
			return timetable.Program{
				ID:           p.ID,
				Code:         p.Code,
				Name:         p.Name,
				Level:        timetable.ProgramLevel(p.Level),
				DepartmentID: p.DepartmentID,
				Capacity:     p.Capacity,
			}
		}),
		Subjects: lo.Map(subjects, func(s models.Subject, _ int) timetable.Subject {
			return timetable.Subject{
				ID:           s.ID,
				Code:         s.Code,
				Name:         s.Name,
				Kind:         timetable.SubjectKind(s.Kind),
				Credits:      s.Credits,
				HoursPerWeek: s.HoursPerWeek,
				Semester:     s.Semester,
				ProgramIDs:   []int64(s.ProgramIDs),
				DepartmentID: s.DepartmentID,
			}
		}),
		Teachers: lo.Map(teachers, func(t models.Teacher, _ int) timetable.Teacher {
			return timetable.Teacher{
				ID:              t.ID,
				EmployeeID:      t.EmployeeID,
				Name:            t.Name,
				Specialization:  t.Specialization,
				SubjectIDs:      []int64(t.SubjectIDs),
				MaxHoursPerWeek: t.MaxHoursPerWeek,
				Available:       t.Available,
			}
		}),
		Rooms: lo.Map(rooms, func(r models.Room, _ int) timetable.Room {
			return timetable.Room{
				ID:           r.ID,
				Code:         r.Code,
				Kind:         timetable.RoomKind(r.Kind),
				Capacity:     r.Capacity,
				DepartmentID: r.DepartmentID,
				Available:    r.Available,
			}
		}),
	}
	for _, a := range availability {
		start, err := timetable.ParseClock(a.StartTime)
		if err != nil {
			return timetable.Inputs{}, fmt.Errorf("availability %d start: %w", a.ID, err)
		}
		end, err := timetable.ParseClock(a.EndTime)
		if err != nil {
			return timetable.Inputs{}, fmt.Errorf("availability %d end: %w", a.ID, err)
		}
		in.Availabilities = append(in.Availabilities, timetable.Availability{
			ID:        a.ID,
			TeacherID: a.TeacherID,
			Weekday:   a.Weekday,
			Start:     start,
			End:       end,
			Available: a.Available,
		})
	}
	return in, nil
}

// GeneratorConfig turns scheduler settings into generator configuration. An
// empty configured grid falls back to the default weekly grid.
func GeneratorConfig(cfg config.SchedulerConfig) (timetable.Config, error) {
	out := timetable.DefaultConfig()
	if len(cfg.Grid) > 0 {
		grid := make([]timetable.GridEntry, 0, len(cfg.Grid))
		for _, entry := range cfg.Grid {
			start, err := timetable.ParseClock(entry.Start)
			if err != nil {
				return timetable.Config{}, fmt.Errorf("grid weekday %d start: %w", entry.Weekday, err)
			}
			end, err := timetable.ParseClock(entry.End)
			if err != nil {
				return timetable.Config{}, fmt.Errorf("grid weekday %d end: %w", entry.Weekday, err)
			}
			grid = append(grid, timetable.GridEntry{Weekday: entry.Weekday, Start: start, End: end})
		}
		if err := timetable.ValidateGrid(grid); err != nil {
			return timetable.Config{}, err
		}
		out.Grid = grid
	}
	if cfg.SessionHours > 0 {
		out.SessionHours = cfg.SessionHours
	}
	switch timetable.SubjectPriority(cfg.SubjectPriority) {
	case "":
	case timetable.PriorityRemaining, timetable.PriorityQuota:
		out.SubjectPriority = timetable.SubjectPriority(cfg.SubjectPriority)
	default:
		return timetable.Config{}, fmt.Errorf("unknown subject priority %q", cfg.SubjectPriority)
	}
	out.PreferSameDepartment = cfg.PreferSameDepartment
	out.AllowDepartmentRelaxation = cfg.AllowDepartmentRelaxation
	if cfg.MaxRangeDays > 0 {
		out.MaxRangeDays = cfg.MaxRangeDays
	}
	return out, nil
}
