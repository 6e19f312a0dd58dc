package timetable

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

// ConflictCause labels why an attempted assignment failed.
type ConflictCause string

const (
	CauseNoTeacher    ConflictCause = "no_teacher"
	CauseNoRoom       ConflictCause = "no_room"
	CauseCohortBusy   ConflictCause = "cohort_busy"
	CauseCapacity     ConflictCause = "capacity"
	CauseKindMismatch ConflictCause = "kind_mismatch"
)

// Conflict is one failed (slot, program, subject) attempt.
type Conflict struct {
	Slot      Slot
	ProgramID int64
	SubjectID int64
	Cause     ConflictCause
}

// WarningKind labels soft-constraint relaxations.
type WarningKind string

const WarningDepartmentCross WarningKind = "department_cross_assignment"

// Warning records a committed session that relaxed a preference.
type Warning struct {
	Kind      WarningKind
	Slot      Slot
	ProgramID int64
	SubjectID int64
	RoomID    int64
	Detail    string
}

type interval struct {
	start Clock
	end   Clock
}

// occupancy maps resource id -> day -> busy intervals.
type occupancy map[int64]map[int64][]interval

func (o occupancy) free(id, day int64, start, end Clock) bool {
	for _, busy := range o[id][day] {
		if overlaps(busy.start, busy.end, start, end) {
			return false
		}
	}
	return true
}

func (o occupancy) add(id, day int64, start, end Clock) {
	days, ok := o[id]
	if !ok {
		days = make(map[int64][]interval)
		o[id] = days
	}
	days[day] = append(days[day], interval{start: start, end: end})
}

// outcome is the raw engine result handed to the emitter.
type outcome struct {
	sessions        []Session
	conflicts       []Conflict
	warnings        []Warning
	demand          []*demand
	slotsConsidered int
	cancelled       error
}

type engine struct {
	snap  *Snapshot
	slots []Slot

	demand      []*demand
	teachers    occupancy
	rooms       occupancy
	programs    occupancy
	weekMinutes map[int64]map[isoWeek]int

	evaluations int
	budget      int
}

func newEngine(snap *Snapshot, slots []Slot) *engine {
	demand := buildDemand(snap)
	return &engine{
		snap:        snap,
		slots:       slots,
		demand:      demand,
		teachers:    make(occupancy),
		rooms:       make(occupancy),
		programs:    make(occupancy),
		weekMinutes: make(map[int64]map[isoWeek]int),
		budget:      len(slots) * len(demand) * max(1, snap.TeacherCount()),
	}
}

// run performs the single forward pass over the slots.
func (e *engine) run(ctx context.Context) (*outcome, error) {
	out := &outcome{demand: e.demand}
	priority := e.snap.config.SubjectPriority

	for _, slot := range e.slots {
		if err := ctx.Err(); err != nil {
			out.cancelled = err
			break
		}
		out.slotsConsidered++

		served := make(map[int64]bool)
		for _, d := range openByPriority(e.demand, priority) {
			if served[d.program.ID] {
				continue
			}
			session, warning, cause := e.attempt(slot, d)
			if e.evaluations > e.budget {
				return nil, &InternalInvariantError{
					Invariant: "evaluation_budget",
					Detail:    fmt.Sprintf("%d candidate evaluations exceed bound %d", e.evaluations, e.budget),
				}
			}
			if cause != "" {
				out.conflicts = append(out.conflicts, Conflict{
					Slot:      slot,
					ProgramID: d.program.ID,
					SubjectID: d.subject.ID,
					Cause:     cause,
				})
				continue
			}
			e.commit(slot, d, session)
			out.sessions = append(out.sessions, session)
			if warning != nil {
				out.warnings = append(out.warnings, *warning)
			}
			served[d.program.ID] = true
		}
	}

	if out.cancelled == nil {
		for _, d := range e.demand {
			if d.state == DemandOpen {
				d.state = DemandUnderserved
			}
		}
	}
	return out, nil
}

// attempt runs the teacher, room and cohort checks in that order.
func (e *engine) attempt(slot Slot, d *demand) (Session, *Warning, ConflictCause) {
	teacher, ok := e.pickTeacher(slot, d)
	if !ok {
		return Session{}, nil, CauseNoTeacher
	}
	room, crossed, cause := e.pickRoom(slot, d)
	if cause != "" {
		return Session{}, nil, cause
	}
	if !e.programs.free(d.program.ID, dayKey(slot.Date), slot.Start, slot.End) {
		return Session{}, nil, CauseCohortBusy
	}

	session := Session{
		Date:      slot.Date,
		Weekday:   slot.Weekday,
		Start:     slot.Start,
		End:       slot.End,
		SubjectID: d.subject.ID,
		TeacherID: teacher.ID,
		RoomID:    room.ID,
		ProgramID: d.program.ID,
	}
	var warning *Warning
	if crossed {
		warning = &Warning{
			Kind:      WarningDepartmentCross,
			Slot:      slot,
			ProgramID: d.program.ID,
			SubjectID: d.subject.ID,
			RoomID:    room.ID,
			Detail: fmt.Sprintf("room %s (department %d) hosts subject %s of department %d",
				room.Code, room.DepartmentID, d.subject.Code, d.subject.DepartmentID),
		}
	}
	return session, warning, ""
}

func (e *engine) pickTeacher(slot Slot, d *demand) (Teacher, bool) {
	day := dayKey(slot.Date)
	week := isoWeekOf(slot.Date)
	minutes := slot.Minutes()

	survivors := lo.Filter(e.snap.teachersBySubject[d.subject.ID], func(t Teacher, _ int) bool {
		e.evaluations++
		if !t.Available {
			return false
		}
		if !e.snap.availableAt(t.ID, slot.Weekday, slot.Start, slot.End) {
			return false
		}
		if !e.teachers.free(t.ID, day, slot.Start, slot.End) {
			return false
		}
		return e.weekMinutes[t.ID][week]+minutes <= t.MaxHoursPerWeek*60
	})
	if len(survivors) == 0 {
		return Teacher{}, false
	}
	return lo.MinBy(survivors, func(a, b Teacher) bool {
		ma, mb := e.weekMinutes[a.ID][week], e.weekMinutes[b.ID][week]
		if ma != mb {
			return ma < mb
		}
		return lessCodeID(a.EmployeeID, a.ID, b.EmployeeID, b.ID)
	}), true
}

// pickRoom returns the tightest free room and whether the department
// preference had to be relaxed.
func (e *engine) pickRoom(slot Slot, d *demand) (Room, bool, ConflictCause) {
	day := dayKey(slot.Date)
	fits := func(r Room, _ int) bool { return r.Capacity >= d.program.Capacity }
	free := func(r Room, _ int) bool { return r.Available && e.rooms.free(r.ID, day, slot.Start, slot.End) }

	compatible := e.snap.compatibleRooms(d.subject.Kind, nil)
	if len(compatible) == 0 {
		return Room{}, false, CauseKindMismatch
	}
	sized := lo.Filter(compatible, fits)
	if len(sized) == 0 {
		return Room{}, false, CauseCapacity
	}
	candidates := lo.Filter(sized, free)
	if len(candidates) == 0 {
		return Room{}, false, CauseNoRoom
	}

	cfg := e.snap.config
	if !cfg.PreferSameDepartment {
		return lo.MinBy(candidates, tighterRoom), false, ""
	}
	dept := d.subject.DepartmentID
	local := lo.Filter(lo.Filter(e.snap.compatibleRooms(d.subject.Kind, &dept), fits), free)
	if len(local) > 0 {
		return lo.MinBy(local, tighterRoom), false, ""
	}
	if !cfg.AllowDepartmentRelaxation {
		return Room{}, false, CauseNoRoom
	}
	return lo.MinBy(candidates, tighterRoom), true, ""
}

func (e *engine) commit(slot Slot, d *demand, session Session) {
	day := dayKey(slot.Date)
	e.teachers.add(session.TeacherID, day, slot.Start, slot.End)
	e.rooms.add(session.RoomID, day, slot.Start, slot.End)
	e.programs.add(session.ProgramID, day, slot.Start, slot.End)

	week := isoWeekOf(slot.Date)
	perWeek, ok := e.weekMinutes[session.TeacherID]
	if !ok {
		perWeek = make(map[isoWeek]int)
		e.weekMinutes[session.TeacherID] = perWeek
	}
	perWeek[week] += slot.Minutes()
	d.commit()
}
