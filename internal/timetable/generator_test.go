package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTrivialSuccess(t *testing.T) {
	report := generate(t, mondayRequest(), singleProgramInputs(), configWithGrid("0@08:00-09:30", "0@10:00-11:30"))

	assert.Equal(t, StatusCompleted, report.Status)
	require.Len(t, report.Sessions, 2)
	for _, session := range report.Sessions {
		assert.True(t, session.Date.Equal(monday()))
		assert.Equal(t, int64(1000), session.RoomID)
		assert.Equal(t, int64(100), session.TeacherID)
		assert.Equal(t, int64(1), session.ProgramID)
		assert.Equal(t, int64(10), session.SubjectID)
	}
	assert.Equal(t, MustClock("08:00"), report.Sessions[0].Start)
	assert.Equal(t, MustClock("10:00"), report.Sessions[1].Start)
	assert.Empty(t, report.Conflicts)
	assert.Empty(t, report.Underserved)
	assert.Equal(t, Stats{
		SlotsConsidered:  2,
		SchedulesCreated: 2,
		SessionsRequired: 2,
	}, report.Stats)
}

func TestGenerateRoomKindMismatch(t *testing.T) {
	in := singleProgramInputs()
	in.Subjects[0].Kind = SubjectLab

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30", "0@10:00-11:30"))

	assert.Empty(t, report.Sessions)
	require.Len(t, report.Conflicts, 2)
	for _, conflict := range report.Conflicts {
		assert.Equal(t, CauseKindMismatch, conflict.Cause)
		assert.Equal(t, int64(10), conflict.SubjectID)
	}
	require.Len(t, report.Underserved, 1)
	assert.Equal(t, Underserved{ProgramID: 1, SubjectID: 10, Required: 2, Emitted: 0, Unmet: 2}, report.Underserved[0])
	assert.Equal(t, 1, report.Stats.SubjectsUnderserved)
	assert.Equal(t, 2, report.Stats.SessionsUnmet)
}

func TestGenerateUnavailableCompatibleRoomIsNoRoom(t *testing.T) {
	in := singleProgramInputs()
	in.Subjects[0].Kind = SubjectLab
	in.Rooms = append(in.Rooms, Room{ID: 1001, Code: "LAB1", Kind: RoomLab, Capacity: 30, DepartmentID: 1, Available: false})

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30"))

	assert.Empty(t, report.Sessions)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseNoRoom, report.Conflicts[0].Cause)
}

func teacherCapInputs() Inputs {
	in := singleProgramInputs()
	in.Subjects = append(in.Subjects, Subject{
		ID: 11, Code: "NET101", Name: "Reseaux", Kind: SubjectLecture, HoursPerWeek: 3,
		ProgramIDs: []int64{1}, DepartmentID: 1,
	})
	in.Teachers[0].SubjectIDs = []int64{10, 11}
	in.Teachers[0].MaxHoursPerWeek = 3
	in.Availabilities = []Availability{window(100, 0, "08:00", "18:00", true)}
	return in
}

func assertTeacherCapOutcome(t *testing.T, report *Report) {
	t.Helper()
	minutes := 0
	for _, session := range report.Sessions {
		assert.Equal(t, int64(10), session.SubjectID)
		minutes += session.Minutes()
	}
	assert.Equal(t, 180, minutes)
	require.Len(t, report.Underserved, 1)
	assert.Equal(t, int64(11), report.Underserved[0].SubjectID)
	assert.Zero(t, report.Underserved[0].Emitted)
	for _, conflict := range report.Conflicts {
		assert.Equal(t, CauseNoTeacher, conflict.Cause)
		assert.Equal(t, int64(11), conflict.SubjectID)
	}
}

func TestGenerateTeacherWeeklyCapWithLongSlots(t *testing.T) {
	report := generate(t, mondayRequest(), teacherCapInputs(), configWithGrid("0@08:00-11:00", "0@14:00-17:00"))

	require.Len(t, report.Sessions, 1)
	assertTeacherCapOutcome(t, report)
	assert.Len(t, report.Conflicts, 1)
}

func TestGenerateTeacherWeeklyCapWithQuotaPriority(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubjectPriority = PriorityQuota

	report := generate(t, mondayRequest(), teacherCapInputs(), cfg)

	require.Len(t, report.Sessions, 2)
	assertTeacherCapOutcome(t, report)
	assert.Len(t, report.Conflicts, 2)
	assert.Equal(t, 2, report.Underserved[0].Unmet)
}

func TestGenerateRemainingPriorityAlternatesSubjects(t *testing.T) {
	report := generate(t, mondayRequest(), teacherCapInputs(), DefaultConfig())

	require.Len(t, report.Sessions, 2)
	assert.Equal(t, int64(10), report.Sessions[0].SubjectID)
	assert.Equal(t, int64(11), report.Sessions[1].SubjectID)
	assert.Len(t, report.Underserved, 2)
}

func cohortInputs() Inputs {
	in := singleProgramInputs()
	in.Subjects = []Subject{
		{ID: 11, Code: "NET101", Kind: SubjectLecture, HoursPerWeek: 1.5, ProgramIDs: []int64{1}, DepartmentID: 1},
		{ID: 10, Code: "ALG101", Kind: SubjectLecture, HoursPerWeek: 1.5, ProgramIDs: []int64{1}, DepartmentID: 1},
	}
	in.Teachers[0].SubjectIDs = []int64{10, 11}
	return in
}

func TestGenerateCohortServesLowestCodeFirst(t *testing.T) {
	report := generate(t, mondayRequest(), cohortInputs(), configWithGrid("0@08:00-09:30", "0@10:00-11:30"))

	require.Len(t, report.Sessions, 2)
	assert.Equal(t, int64(10), report.Sessions[0].SubjectID)
	assert.Equal(t, MustClock("08:00"), report.Sessions[0].Start)
	assert.Equal(t, int64(11), report.Sessions[1].SubjectID)
	assert.Equal(t, MustClock("10:00"), report.Sessions[1].Start)
	assert.Empty(t, report.Conflicts)
	assert.Empty(t, report.Underserved)
}

func TestGenerateCohortSecondSubjectUnderservedWithoutSecondSlot(t *testing.T) {
	report := generate(t, mondayRequest(), cohortInputs(), configWithGrid("0@08:00-09:30"))

	require.Len(t, report.Sessions, 1)
	assert.Equal(t, int64(10), report.Sessions[0].SubjectID)
	assert.Empty(t, report.Conflicts)
	require.Len(t, report.Underserved, 1)
	assert.Equal(t, int64(11), report.Underserved[0].SubjectID)
}

func TestGenerateCohortBusyOnOverlappingGrid(t *testing.T) {
	in := cohortInputs()
	in.Teachers = []Teacher{
		{ID: 100, EmployeeID: "E001", SubjectIDs: []int64{10}, MaxHoursPerWeek: 20, Available: true},
		{ID: 101, EmployeeID: "E002", SubjectIDs: []int64{11}, MaxHoursPerWeek: 20, Available: true},
	}
	in.Rooms = append(in.Rooms, Room{ID: 1001, Code: "A102", Kind: RoomLecture, Capacity: 30, DepartmentID: 1, Available: true})
	in.Availabilities = []Availability{
		window(100, 0, "08:00", "12:00", true),
		window(101, 0, "08:00", "12:00", true),
	}

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30", "0@09:00-10:30"))

	require.Len(t, report.Sessions, 1)
	assert.Equal(t, int64(10), report.Sessions[0].SubjectID)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseCohortBusy, report.Conflicts[0].Cause)
	assert.Equal(t, int64(11), report.Conflicts[0].SubjectID)
	assert.Equal(t, MustClock("09:00"), report.Conflicts[0].Slot.Start)
}

func TestGenerateWeekendOnlyRangeWithoutWeekends(t *testing.T) {
	req := mondayRequest()
	req.StartDate = monday().AddDate(0, 0, 5)
	req.EndDate = monday().AddDate(0, 0, 6)

	report := generate(t, req, singleProgramInputs(), DefaultConfig())

	assert.Empty(t, report.Sessions)
	assert.Empty(t, report.Conflicts)
	require.Len(t, report.Underserved, 1)
	assert.Equal(t, 2, report.Underserved[0].Unmet)
	assert.Zero(t, report.Stats.SlotsConsidered)
}

func TestGenerateWeekendRangeWithWeekends(t *testing.T) {
	req := mondayRequest()
	req.StartDate = monday().AddDate(0, 0, 5)
	req.EndDate = monday().AddDate(0, 0, 6)
	req.IncludeWeekends = true
	in := singleProgramInputs()
	in.Availabilities = append(in.Availabilities, window(100, 5, "08:00", "12:00", true))

	report := generate(t, req, in, DefaultConfig())

	require.Len(t, report.Sessions, 2)
	for _, session := range report.Sessions {
		assert.Equal(t, 5, session.Weekday)
		assert.Equal(t, time.Saturday, session.Date.Weekday())
	}
	assert.Equal(t, 4, report.Stats.SlotsConsidered)
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := configWithGrid("0@08:00-09:30", "0@10:00-11:30")
	first := generate(t, mondayRequest(), singleProgramInputs(), cfg)
	second := generate(t, mondayRequest(), singleProgramInputs(), cfg)

	assert.Equal(t, first, second)
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateCapacityCause(t *testing.T) {
	in := singleProgramInputs()
	in.Rooms[0].Capacity = 20

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30"))

	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseCapacity, report.Conflicts[0].Cause)
}

func TestGenerateNoRoomWhenRoomBusy(t *testing.T) {
	in := singleProgramInputs()
	in.Programs = append(in.Programs, Program{ID: 2, Code: "CS-L2", Level: LevelL2, DepartmentID: 1, Capacity: 25})
	in.Subjects = append(in.Subjects, Subject{ID: 12, Code: "OS201", Kind: SubjectLecture, HoursPerWeek: 1.5, ProgramIDs: []int64{2}, DepartmentID: 1})
	in.Subjects[0].HoursPerWeek = 1.5
	in.Teachers = append(in.Teachers, Teacher{ID: 101, EmployeeID: "E002", SubjectIDs: []int64{12}, MaxHoursPerWeek: 20, Available: true})
	in.Availabilities = append(in.Availabilities, window(101, 0, "08:00", "12:00", true))
	req := mondayRequest()
	req.ProgramIDs = []int64{1, 2}

	report := generate(t, req, in, configWithGrid("0@08:00-09:30", "0@10:00-11:30"))

	require.Len(t, report.Sessions, 2)
	assert.Equal(t, int64(10), report.Sessions[0].SubjectID)
	assert.Equal(t, int64(12), report.Sessions[1].SubjectID)
	assert.Equal(t, MustClock("10:00"), report.Sessions[1].Start)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseNoRoom, report.Conflicts[0].Cause)
	assert.Equal(t, int64(2), report.Conflicts[0].ProgramID)
}

func TestGenerateTeacherBlockedByUnavailableWindow(t *testing.T) {
	in := singleProgramInputs()
	in.Availabilities = append(in.Availabilities, window(100, 0, "10:00", "10:30", false))

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30", "0@10:00-11:30"))

	require.Len(t, report.Sessions, 1)
	assert.Equal(t, MustClock("08:00"), report.Sessions[0].Start)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseNoTeacher, report.Conflicts[0].Cause)
}

func TestGenerateTeacherWithZeroWeeklyHoursIsNeverAssigned(t *testing.T) {
	in := singleProgramInputs()
	in.Teachers[0].MaxHoursPerWeek = 0

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30"))

	assert.Empty(t, report.Sessions)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseNoTeacher, report.Conflicts[0].Cause)
}

func TestGenerateBalancesTeachersAndBreaksTiesByEmployeeID(t *testing.T) {
	in := singleProgramInputs()
	in.Teachers = []Teacher{
		{ID: 100, EmployeeID: "E002", SubjectIDs: []int64{10}, MaxHoursPerWeek: 20, Available: true},
		{ID: 101, EmployeeID: "E001", SubjectIDs: []int64{10}, MaxHoursPerWeek: 20, Available: true},
	}
	in.Availabilities = []Availability{
		window(100, 0, "08:00", "12:00", true),
		window(101, 0, "08:00", "12:00", true),
	}

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30", "0@10:00-11:30"))

	require.Len(t, report.Sessions, 2)
	assert.Equal(t, int64(101), report.Sessions[0].TeacherID)
	assert.Equal(t, int64(100), report.Sessions[1].TeacherID)
}

func TestGeneratePicksTightestRoom(t *testing.T) {
	in := singleProgramInputs()
	in.Rooms = []Room{
		{ID: 1000, Code: "AMPHI-A", Kind: RoomAmphitheater, Capacity: 200, DepartmentID: 1, Available: true},
		{ID: 1001, Code: "B202", Kind: RoomLecture, Capacity: 30, DepartmentID: 1, Available: true},
		{ID: 1002, Code: "B201", Kind: RoomLecture, Capacity: 30, DepartmentID: 1, Available: true},
		{ID: 1003, Code: "B100", Kind: RoomLecture, Capacity: 26, DepartmentID: 1, Available: false},
		{ID: 1004, Code: "TD1", Kind: RoomTD, Capacity: 25, DepartmentID: 1, Available: true},
	}

	report := generate(t, mondayRequest(), in, configWithGrid("0@08:00-09:30"))

	require.Len(t, report.Sessions, 1)
	assert.Equal(t, int64(1002), report.Sessions[0].RoomID)
}

func crossDepartmentInputs() Inputs {
	in := singleProgramInputs()
	in.Departments = append(in.Departments, Department{ID: 2, Name: "Mathematics", Code: "MA"})
	in.Rooms[0].DepartmentID = 2
	return in
}

func TestGenerateRelaxesDepartmentWithWarning(t *testing.T) {
	report := generate(t, mondayRequest(), crossDepartmentInputs(), configWithGrid("0@08:00-09:30"))

	require.Len(t, report.Sessions, 1)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningDepartmentCross, report.Warnings[0].Kind)
	assert.Equal(t, int64(1000), report.Warnings[0].RoomID)
	assert.Equal(t, 1, report.Stats.Warnings)
}

func TestGenerateStrictDepartmentReportsNoRoom(t *testing.T) {
	cfg := configWithGrid("0@08:00-09:30")
	cfg.AllowDepartmentRelaxation = false

	report := generate(t, mondayRequest(), crossDepartmentInputs(), cfg)

	assert.Empty(t, report.Sessions)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, CauseNoRoom, report.Conflicts[0].Cause)
}

func TestGenerateWithoutDepartmentPreferenceEmitsNoWarning(t *testing.T) {
	cfg := configWithGrid("0@08:00-09:30")
	cfg.PreferSameDepartment = false

	report := generate(t, mondayRequest(), crossDepartmentInputs(), cfg)

	require.Len(t, report.Sessions, 1)
	assert.Empty(t, report.Warnings)
}

func TestGenerateCancelledReturnsPartialReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := Load(mondayRequest(), singleProgramInputs(), configWithGrid("0@08:00-09:30"))
	require.NoError(t, err)

	report, err := Generate(ctx, snap)

	require.Error(t, err)
	var cancelled *CancelledError
	require.True(t, errors.As(err, &cancelled))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, StatusCancelled, report.Status)
	assert.Empty(t, report.Sessions)
	assert.Zero(t, report.Stats.SlotsConsidered)
}

func TestEmitRejectsDoubleBooking(t *testing.T) {
	snap, err := Load(mondayRequest(), singleProgramInputs(), configWithGrid("0@08:00-09:30"))
	require.NoError(t, err)
	session := Session{
		Date: monday(), Weekday: 0, Start: MustClock("08:00"), End: MustClock("09:30"),
		SubjectID: 10, TeacherID: 100, RoomID: 1000, ProgramID: 1,
	}

	_, err = emit(snap, &outcome{sessions: []Session{session, session}})

	var invariant *InternalInvariantError
	require.True(t, errors.As(err, &invariant))
	assert.Equal(t, "room_overlap", invariant.Invariant)
}

func TestEmitRejectsUnavailableTeacher(t *testing.T) {
	snap, err := Load(mondayRequest(), singleProgramInputs(), configWithGrid("0@08:00-09:30"))
	require.NoError(t, err)
	session := Session{
		Date: monday(), Weekday: 0, Start: MustClock("13:00"), End: MustClock("14:30"),
		SubjectID: 10, TeacherID: 100, RoomID: 1000, ProgramID: 1,
	}

	_, err = emit(snap, &outcome{sessions: []Session{session}})

	var invariant *InternalInvariantError
	require.True(t, errors.As(err, &invariant))
	assert.Equal(t, "availability", invariant.Invariant)
}
