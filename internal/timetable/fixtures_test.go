package timetable

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 2024-09-02 is a Monday.
func monday() time.Time {
	return time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)
}

func grid(entries ...string) []GridEntry {
	out := make([]GridEntry, 0, len(entries))
	for _, raw := range entries {
		var day int
		var start, end string
		switch {
		case len(raw) == 13 && raw[1] == '@':
			day = int(raw[0] - '0')
			start, end = raw[2:7], raw[8:13]
		default:
			panic("grid entry must look like 0@08:00-09:30: " + raw)
		}
		out = append(out, GridEntry{Weekday: day, Start: MustClock(start), End: MustClock(end)})
	}
	return out
}

func window(teacherID int64, weekday int, start, end string, available bool) Availability {
	return Availability{
		TeacherID: teacherID,
		Weekday:   weekday,
		Start:     MustClock(start),
		End:       MustClock(end),
		Available: available,
	}
}

// singleProgramInputs is one program, one lecture subject, one teacher and one lecture room.
func singleProgramInputs() Inputs {
	return Inputs{
		Departments: []Department{{ID: 1, Name: "Computer Science", Code: "CS"}},
		Programs: []Program{
			{ID: 1, Code: "CS-L1", Name: "Licence 1 Informatique", Level: LevelL1, DepartmentID: 1, Capacity: 25},
		},
		Subjects: []Subject{
			{ID: 10, Code: "ALG101", Name: "Algorithmique", Kind: SubjectLecture, Credits: 6, HoursPerWeek: 3, Semester: 1, ProgramIDs: []int64{1}, DepartmentID: 1},
		},
		Teachers: []Teacher{
			{ID: 100, EmployeeID: "E001", Name: "Ada Martin", SubjectIDs: []int64{10}, MaxHoursPerWeek: 20, Available: true},
		},
		Rooms: []Room{
			{ID: 1000, Code: "A101", Kind: RoomLecture, Capacity: 30, DepartmentID: 1, Available: true},
		},
		Availabilities: []Availability{
			window(100, 0, "08:00", "12:00", true),
		},
	}
}

func mondayRequest() Request {
	return Request{
		ProgramIDs:        []int64{1},
		StartDate:         monday(),
		EndDate:           monday(),
		MaxSessionsPerDay: 4,
	}
}

func configWithGrid(entries ...string) Config {
	cfg := DefaultConfig()
	cfg.Grid = grid(entries...)
	return cfg
}

func generate(t *testing.T, req Request, in Inputs, cfg Config) *Report {
	t.Helper()
	_, report, err := Run(context.Background(), req, in, cfg)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}
