package timetable

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Status reports how a generation ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Stats summarizes a generation.
type Stats struct {
	SlotsConsidered     int
	SchedulesCreated    int
	ConflictsDetected   int
	SubjectsUnderserved int
	SessionsRequired    int
	SessionsUnmet       int
	Warnings            int
}

// Underserved is a (program, subject) pair left with unmet demand.
type Underserved struct {
	ProgramID int64
	SubjectID int64
	Required  int
	Emitted   int
	Unmet     int
}

// Report is the generator output.
type Report struct {
	Status      Status
	Sessions    []Session
	Stats       Stats
	Conflicts   []Conflict
	Underserved []Underserved
	Warnings    []Warning
}

// emit orders the sessions, builds the statistics block and re-checks every
// hard constraint on the final set.
func emit(snap *Snapshot, out *outcome) (*Report, error) {
	sessions := append([]Session(nil), out.sessions...)
	sort.SliceStable(sessions, func(i, j int) bool {
		return lessSession(snap, sessions[i], sessions[j])
	})
	if err := verify(snap, sessions); err != nil {
		return nil, err
	}

	report := &Report{
		Status:      StatusCompleted,
		Sessions:    sessions,
		Conflicts:   append([]Conflict(nil), out.conflicts...),
		Warnings:    append([]Warning(nil), out.warnings...),
		Underserved: []Underserved{},
	}
	if out.cancelled != nil {
		report.Status = StatusCancelled
	}
	if report.Sessions == nil {
		report.Sessions = []Session{}
	}
	if report.Conflicts == nil {
		report.Conflicts = []Conflict{}
	}
	if report.Warnings == nil {
		report.Warnings = []Warning{}
	}

	stats := Stats{
		SlotsConsidered:   out.slotsConsidered,
		SchedulesCreated:  len(sessions),
		ConflictsDetected: len(out.conflicts),
		Warnings:          len(out.warnings),
	}
	for _, d := range out.demand {
		stats.SessionsRequired += d.required
		if d.remaining <= 0 {
			continue
		}
		report.Underserved = append(report.Underserved, Underserved{
			ProgramID: d.program.ID,
			SubjectID: d.subject.ID,
			Required:  d.required,
			Emitted:   d.required - d.remaining,
			Unmet:     d.remaining,
		})
		stats.SessionsUnmet += d.remaining
	}
	stats.SubjectsUnderserved = len(report.Underserved)
	report.Stats = stats
	return report, nil
}

func lessSession(snap *Snapshot, a, b Session) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	pa, pb := snap.programByID[a.ProgramID].Code, snap.programByID[b.ProgramID].Code
	if pa != pb {
		return pa < pb
	}
	sa, sb := snap.subjectByID[a.SubjectID].Code, snap.subjectByID[b.SubjectID].Code
	if sa != sb {
		return sa < sb
	}
	if a.ProgramID != b.ProgramID {
		return a.ProgramID < b.ProgramID
	}
	return a.SubjectID < b.SubjectID
}

func verify(snap *Snapshot, sessions []Session) error {
	if err := verifyDisjoint("room_overlap", sessions, func(s Session) int64 { return s.RoomID }); err != nil {
		return err
	}
	if err := verifyDisjoint("teacher_overlap", sessions, func(s Session) int64 { return s.TeacherID }); err != nil {
		return err
	}
	if err := verifyDisjoint("program_overlap", sessions, func(s Session) int64 { return s.ProgramID }); err != nil {
		return err
	}

	weekly := make(map[int64]map[isoWeek]int)
	for _, s := range sessions {
		program, okP := snap.programByID[s.ProgramID]
		subject, okS := snap.subjectByID[s.SubjectID]
		teacher, okT := snap.teacherByID[s.TeacherID]
		room, okR := snap.roomByID[s.RoomID]
		if !okP || !okS || !okT || !okR {
			return &InternalInvariantError{Invariant: "membership", Detail: fmt.Sprintf("session references unknown entity: %+v", s)}
		}
		if !lo.Contains(subject.ProgramIDs, program.ID) || !lo.Contains(teacher.SubjectIDs, subject.ID) {
			return &InternalInvariantError{Invariant: "membership", Detail: fmt.Sprintf("teacher %s or program %s not linked to subject %s", teacher.EmployeeID, program.Code, subject.Code)}
		}
		if room.Capacity < program.Capacity {
			return &InternalInvariantError{Invariant: "capacity", Detail: fmt.Sprintf("room %s capacity %d below program %s capacity %d", room.Code, room.Capacity, program.Code, program.Capacity)}
		}
		if !Compatible(subject.Kind, room.Kind) {
			return &InternalInvariantError{Invariant: "room_kind", Detail: fmt.Sprintf("room %s (%s) cannot host %s subject %s", room.Code, room.Kind, subject.Kind, subject.Code)}
		}
		if !snap.availableAt(teacher.ID, s.Weekday, s.Start, s.End) {
			return &InternalInvariantError{Invariant: "availability", Detail: fmt.Sprintf("teacher %s not available %d %s-%s", teacher.EmployeeID, s.Weekday, s.Start, s.End)}
		}
		week := isoWeekOf(s.Date)
		if weekly[teacher.ID] == nil {
			weekly[teacher.ID] = make(map[isoWeek]int)
		}
		weekly[teacher.ID][week] += s.Minutes()
		if weekly[teacher.ID][week] > teacher.MaxHoursPerWeek*60 {
			return &InternalInvariantError{Invariant: "weekly_hours", Detail: fmt.Sprintf("teacher %s exceeds %d hours in week %d-%d", teacher.EmployeeID, teacher.MaxHoursPerWeek, week.year, week.week)}
		}
	}
	return nil
}

func verifyDisjoint(name string, sessions []Session, resource func(Session) int64) error {
	type key struct {
		id  int64
		day int64
	}
	seen := make(map[key][]Session)
	for _, s := range sessions {
		k := key{id: resource(s), day: dayKey(s.Date)}
		for _, other := range seen[k] {
			if overlaps(other.Start, other.End, s.Start, s.End) {
				return &InternalInvariantError{
					Invariant: name,
					Detail: fmt.Sprintf("resource %d double-booked on %s at %s-%s",
						k.id, s.Date.Format(DateLayout), s.Start, s.End),
				}
			}
		}
		seen[k] = append(seen[k], s)
	}
	return nil
}
