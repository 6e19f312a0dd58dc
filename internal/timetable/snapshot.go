package timetable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	minSessionsPerDay = 1
	maxSessionsPerDay = 12
)

// Request is one generation request.
type Request struct {
	ProgramIDs        []int64
	StartDate         time.Time
	EndDate           time.Time
	IncludeWeekends   bool
	MaxSessionsPerDay int
}

// Inputs is the raw entity graph the snapshot is built from.
type Inputs struct {
	Departments    []Department
	Programs       []Program
	Subjects       []Subject
	Teachers       []Teacher
	Rooms          []Room
	Availabilities []Availability
}

// Snapshot is the read-only view consumed by one generation.
type Snapshot struct {
	request Request
	config  Config
	days    int

	programs          []Program
	programByID       map[int64]Program
	subjectByID       map[int64]Subject
	subjectsByProgram map[int64][]Subject
	teacherByID       map[int64]Teacher
	teachersBySubject map[int64][]Teacher
	roomByID          map[int64]Room
	roomsByKind       map[RoomKind][]Room
	roomsByDeptKind   map[int64]map[RoomKind][]Room
	availability      map[int64]map[int][]Availability
	departmentByID    map[int64]Department
}

// Load validates the request and indexes the inputs. Only requested programs
// and what they reach (subjects, teachers, availabilities) are kept.
func Load(req Request, in Inputs, cfg Config) (*Snapshot, error) {
	cfg = cfg.normalized()

	if len(req.ProgramIDs) == 0 {
		return nil, invalidInput(InputEmptyProgramList, "program_ids must not be empty")
	}
	if req.MaxSessionsPerDay < minSessionsPerDay || req.MaxSessionsPerDay > maxSessionsPerDay {
		return nil, invalidInput(InputInvalidMaxSessions, "max_sessions_per_day %d outside %d..%d",
			req.MaxSessionsPerDay, minSessionsPerDay, maxSessionsPerDay)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, invalidInput(InputEmptyDateRange, "start_date and end_date are required")
	}
	start, end := DateOnly(req.StartDate), DateOnly(req.EndDate)
	if end.Before(start) {
		return nil, invalidInput(InputEmptyDateRange, "end_date %s before start_date %s",
			end.Format(DateLayout), start.Format(DateLayout))
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > cfg.MaxRangeDays {
		return nil, invalidInput(InputDateRangeTooLarge, "%d days exceeds limit of %d", days, cfg.MaxRangeDays)
	}
	if len(cfg.Grid) == 0 {
		return nil, invalidInput(InputEmptySlotGrid, "weekly slot grid has no entries")
	}
	if err := ValidateGrid(cfg.Grid); err != nil {
		return nil, &SnapshotError{Detail: "invalid slot grid", Err: err}
	}

	allPrograms := lo.KeyBy(in.Programs, func(p Program) int64 { return p.ID })
	ids := lo.Uniq(req.ProgramIDs)
	missing := lo.Filter(ids, func(id int64, _ int) bool {
		_, ok := allPrograms[id]
		return !ok
	})
	if len(missing) > 0 {
		return nil, invalidInput(InputMissingProgram, "unknown program ids %s", joinIDs(missing))
	}

	snap := &Snapshot{
		config:            cfg,
		days:              days,
		programByID:       make(map[int64]Program, len(ids)),
		subjectByID:       make(map[int64]Subject),
		subjectsByProgram: make(map[int64][]Subject, len(ids)),
		teacherByID:       make(map[int64]Teacher),
		teachersBySubject: make(map[int64][]Teacher),
		roomByID:          make(map[int64]Room, len(in.Rooms)),
		roomsByKind:       make(map[RoomKind][]Room),
		roomsByDeptKind:   make(map[int64]map[RoomKind][]Room),
		availability:      make(map[int64]map[int][]Availability),
		departmentByID:    lo.KeyBy(in.Departments, func(d Department) int64 { return d.ID }),
	}
	snap.request = Request{
		ProgramIDs:        append([]int64(nil), ids...),
		StartDate:         start,
		EndDate:           end,
		IncludeWeekends:   req.IncludeWeekends,
		MaxSessionsPerDay: req.MaxSessionsPerDay,
	}

	for _, id := range ids {
		program := allPrograms[id]
		snap.programs = append(snap.programs, program)
		snap.programByID[id] = program
	}
	sort.SliceStable(snap.programs, func(i, j int) bool {
		return lessCodeID(snap.programs[i].Code, snap.programs[i].ID, snap.programs[j].Code, snap.programs[j].ID)
	})

	subjectCount := 0
	for _, subject := range in.Subjects {
		offered := false
		for _, pid := range lo.Uniq(subject.ProgramIDs) {
			if _, ok := snap.programByID[pid]; !ok {
				continue
			}
			offered = true
			snap.subjectsByProgram[pid] = append(snap.subjectsByProgram[pid], cloneSubject(subject))
			subjectCount++
		}
		if offered {
			snap.subjectByID[subject.ID] = cloneSubject(subject)
		}
	}
	if subjectCount == 0 {
		return nil, &SnapshotError{Detail: fmt.Sprintf("no subjects offered to programs %s", joinIDs(ids))}
	}
	for pid := range snap.subjectsByProgram {
		list := snap.subjectsByProgram[pid]
		sort.SliceStable(list, func(i, j int) bool {
			return lessCodeID(list[i].Code, list[i].ID, list[j].Code, list[j].ID)
		})
	}

	for _, teacher := range in.Teachers {
		linked := false
		for _, sid := range lo.Uniq(teacher.SubjectIDs) {
			if _, ok := snap.subjectByID[sid]; !ok {
				continue
			}
			linked = true
			snap.teachersBySubject[sid] = append(snap.teachersBySubject[sid], cloneTeacher(teacher))
		}
		if linked {
			snap.teacherByID[teacher.ID] = cloneTeacher(teacher)
		}
	}
	for sid := range snap.teachersBySubject {
		list := snap.teachersBySubject[sid]
		sort.SliceStable(list, func(i, j int) bool {
			return lessCodeID(list[i].EmployeeID, list[i].ID, list[j].EmployeeID, list[j].ID)
		})
	}

	for _, room := range in.Rooms {
		snap.roomByID[room.ID] = room
		snap.roomsByKind[room.Kind] = append(snap.roomsByKind[room.Kind], room)
		byKind, ok := snap.roomsByDeptKind[room.DepartmentID]
		if !ok {
			byKind = make(map[RoomKind][]Room)
			snap.roomsByDeptKind[room.DepartmentID] = byKind
		}
		byKind[room.Kind] = append(byKind[room.Kind], room)
	}
	for kind := range snap.roomsByKind {
		sortRooms(snap.roomsByKind[kind])
	}
	for _, byKind := range snap.roomsByDeptKind {
		for kind := range byKind {
			sortRooms(byKind[kind])
		}
	}

	for teacherID, windows := range lo.GroupBy(in.Availabilities, func(a Availability) int64 { return a.TeacherID }) {
		if _, ok := snap.teacherByID[teacherID]; !ok {
			continue
		}
		byDay := make(map[int][]Availability)
		for _, window := range windows {
			byDay[window.Weekday] = append(byDay[window.Weekday], window)
		}
		for day := range byDay {
			list := byDay[day]
			sort.SliceStable(list, func(i, j int) bool {
				if list[i].Start != list[j].Start {
					return list[i].Start < list[j].Start
				}
				return list[i].ID < list[j].ID
			})
		}
		snap.availability[teacherID] = byDay
	}

	return snap, nil
}

// Request returns the normalized request (deduplicated ids, dates at midnight UTC).
func (s *Snapshot) Request() Request {
	req := s.request
	req.ProgramIDs = append([]int64(nil), s.request.ProgramIDs...)
	return req
}

// Config returns the configuration bound to this snapshot.
func (s *Snapshot) Config() Config {
	cfg := s.config
	cfg.Grid = append([]GridEntry(nil), s.config.Grid...)
	return cfg
}

// Days is the inclusive length of the date range.
func (s *Snapshot) Days() int { return s.days }

// Programs returns the requested programs ordered by code.
func (s *Snapshot) Programs() []Program {
	return append([]Program(nil), s.programs...)
}

// Program looks up a requested program.
func (s *Snapshot) Program(id int64) (Program, bool) {
	p, ok := s.programByID[id]
	return p, ok
}

// Subject looks up a subject offered to one of the requested programs.
func (s *Snapshot) Subject(id int64) (Subject, bool) {
	subject, ok := s.subjectByID[id]
	if !ok {
		return Subject{}, false
	}
	return cloneSubject(subject), true
}

// SubjectsFor returns the subjects offered to a program ordered by code.
func (s *Snapshot) SubjectsFor(programID int64) []Subject {
	list := s.subjectsByProgram[programID]
	return lo.Map(list, func(subject Subject, _ int) Subject { return cloneSubject(subject) })
}

// Teacher looks up a teacher linked to a relevant subject.
func (s *Snapshot) Teacher(id int64) (Teacher, bool) {
	t, ok := s.teacherByID[id]
	if !ok {
		return Teacher{}, false
	}
	return cloneTeacher(t), true
}

// TeachersFor returns the teachers of a subject ordered by employee id.
func (s *Snapshot) TeachersFor(subjectID int64) []Teacher {
	list := s.teachersBySubject[subjectID]
	return lo.Map(list, func(t Teacher, _ int) Teacher { return cloneTeacher(t) })
}

// Room looks up a room.
func (s *Snapshot) Room(id int64) (Room, bool) {
	r, ok := s.roomByID[id]
	return r, ok
}

// Department looks up a department.
func (s *Snapshot) Department(id int64) (Department, bool) {
	d, ok := s.departmentByID[id]
	return d, ok
}

// RoomsFor returns rooms of a department and kind ordered by capacity then code.
func (s *Snapshot) RoomsFor(departmentID int64, kind RoomKind) []Room {
	return append([]Room(nil), s.roomsByDeptKind[departmentID][kind]...)
}

// AvailabilityFor returns the teacher's windows on a weekday ordered by start.
func (s *Snapshot) AvailabilityFor(teacherID int64, weekday int) []Availability {
	return append([]Availability(nil), s.availability[teacherID][weekday]...)
}

// TeacherCount is the number of teachers linked to any relevant subject.
func (s *Snapshot) TeacherCount() int { return len(s.teacherByID) }

// availableAt reports whether the teacher has an open window covering the
// interval and no closed window intersecting it.
func (s *Snapshot) availableAt(teacherID int64, weekday int, start, end Clock) bool {
	covered := false
	for _, window := range s.availability[teacherID][weekday] {
		if !window.Available {
			if window.Overlaps(start, end) {
				return false
			}
			continue
		}
		if window.Covers(start, end) {
			covered = true
		}
	}
	return covered
}

// compatibleRooms lists rooms of a kind able to host the subject, available or not,
// across departments when departmentID is nil.
func (s *Snapshot) compatibleRooms(kind SubjectKind, departmentID *int64) []Room {
	var out []Room
	for _, rk := range kindMatrix[kind] {
		var source []Room
		if departmentID == nil {
			source = s.roomsByKind[rk]
		} else {
			source = s.roomsByDeptKind[*departmentID][rk]
		}
		out = append(out, source...)
	}
	return out
}

func sortRooms(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool { return tighterRoom(rooms[i], rooms[j]) })
}

func tighterRoom(a, b Room) bool {
	if a.Capacity != b.Capacity {
		return a.Capacity < b.Capacity
	}
	return lessCodeID(a.Code, a.ID, b.Code, b.ID)
}

func lessCodeID(aCode string, aID int64, bCode string, bID int64) bool {
	if aCode != bCode {
		return aCode < bCode
	}
	return aID < bID
}

func cloneSubject(s Subject) Subject {
	s.ProgramIDs = append([]int64(nil), s.ProgramIDs...)
	return s
}

func cloneTeacher(t Teacher) Teacher {
	t.SubjectIDs = append([]int64(nil), t.SubjectIDs...)
	return t
}

func joinIDs(ids []int64) string {
	parts := lo.Map(ids, func(id int64, _ int) string { return fmt.Sprintf("%d", id) })
	return "[" + strings.Join(parts, ",") + "]"
}
