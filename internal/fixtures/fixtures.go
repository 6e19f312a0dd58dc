// Package fixtures loads scheduling entities from a directory of CSV files so
// the generator can run without a database.
package fixtures

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
)

// File names expected inside a fixture directory. departments.csv is optional.
const (
	DepartmentsFile  = "departments.csv"
	ProgramsFile     = "programs.csv"
	SubjectsFile     = "subjects.csv"
	TeachersFile     = "teachers.csv"
	RoomsFile        = "rooms.csv"
	AvailabilityFile = "availability.csv"
)

// IDList is a ';' separated list of ids inside a single CSV cell.
type IDList []int64

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (l *IDList) UnmarshalCSV(raw string) error {
	*l = nil
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", part)
		}
		*l = append(*l, id)
	}
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (l IDList) MarshalCSV() (string, error) {
	return strings.Join(lo.Map(l, func(id int64, _ int) string { return strconv.FormatInt(id, 10) }), ";"), nil
}

type departmentRow struct {
	ID   int64  `csv:"id"`
	Code string `csv:"code"`
	Name string `csv:"name"`
}

type programRow struct {
	ID           int64  `csv:"id"`
	Code         string `csv:"code"`
	Name         string `csv:"name"`
	Level        string `csv:"level"`
	DepartmentID int64  `csv:"department_id"`
	Capacity     int    `csv:"capacity"`
}

type subjectRow struct {
	ID           int64   `csv:"id"`
	Code         string  `csv:"code"`
	Name         string  `csv:"name"`
	Kind         string  `csv:"kind"`
	Credits      int     `csv:"credits"`
	HoursPerWeek float64 `csv:"hours_per_week"`
	Semester     int     `csv:"semester"`
	DepartmentID int64   `csv:"department_id"`
	ProgramIDs   IDList  `csv:"program_ids"`
}

type teacherRow struct {
	ID              int64  `csv:"id"`
	EmployeeID      string `csv:"employee_id"`
	Name            string `csv:"name"`
	Specialization  string `csv:"specialization"`
	MaxHoursPerWeek int    `csv:"max_hours_per_week"`
	Available       bool   `csv:"available"`
	SubjectIDs      IDList `csv:"subject_ids"`
}

type roomRow struct {
	ID           int64  `csv:"id"`
	Code         string `csv:"code"`
	Kind         string `csv:"kind"`
	Capacity     int    `csv:"capacity"`
	DepartmentID int64  `csv:"department_id"`
	Available    bool   `csv:"available"`
}

type availabilityRow struct {
	ID        int64  `csv:"id"`
	TeacherID int64  `csv:"teacher_id"`
	Weekday   int    `csv:"weekday"`
	Start     string `csv:"start"`
	End       string `csv:"end"`
	Available bool   `csv:"available"`
}

// Dataset holds every entity read from a fixture directory in the same shape
// the repositories return.
type Dataset struct {
	Departments  []models.Department
	Programs     []models.Program
	Subjects     []models.Subject
	Teachers     []models.Teacher
	Availability []models.TeacherAvailability
	Rooms        []models.Room
}

// Load reads a fixture directory.
func Load(dir string) (*Dataset, error) {
	var (
		departments  []departmentRow
		programs     []programRow
		subjects     []subjectRow
		teachers     []teacherRow
		rooms        []roomRow
		availability []availabilityRow
	)
	if err := readFile(filepath.Join(dir, DepartmentsFile), &departments); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	required := []struct {
		name string
		dest interface{}
	}{
		{ProgramsFile, &programs},
		{SubjectsFile, &subjects},
		{TeachersFile, &teachers},
		{RoomsFile, &rooms},
		{AvailabilityFile, &availability},
	}
	for _, f := range required {
		if err := readFile(filepath.Join(dir, f.name), f.dest); err != nil {
			return nil, err
		}
	}

	return &Dataset{
		Departments: lo.Map(departments, func(r departmentRow, _ int) models.Department {
			return models.Department{ID: r.ID, Code: r.Code, Name: r.Name}
		}),
		Programs: lo.Map(programs, func(r programRow, _ int) models.Program {
			return models.Program{ID: r.ID, Code: r.Code, Name: r.Name, Level: r.Level, DepartmentID: r.DepartmentID, Capacity: r.Capacity}
		}),
		Subjects: lo.Map(subjects, func(r subjectRow, _ int) models.Subject {
			return models.Subject{
				ID:           r.ID,
				Code:         r.Code,
				Name:         r.Name,
				Kind:         r.Kind,
				Credits:      r.Credits,
				HoursPerWeek: r.HoursPerWeek,
				Semester:     r.Semester,
				DepartmentID: r.DepartmentID,
				ProgramIDs:   pq.Int64Array(r.ProgramIDs),
			}
		}),
		Teachers: lo.Map(teachers, func(r teacherRow, _ int) models.Teacher {
			return models.Teacher{
				ID:              r.ID,
				EmployeeID:      r.EmployeeID,
				Name:            r.Name,
				Specialization:  r.Specialization,
				MaxHoursPerWeek: r.MaxHoursPerWeek,
				Available:       r.Available,
				SubjectIDs:      pq.Int64Array(r.SubjectIDs),
			}
		}),
		Availability: lo.Map(availability, func(r availabilityRow, _ int) models.TeacherAvailability {
			return models.TeacherAvailability{ID: r.ID, TeacherID: r.TeacherID, Weekday: r.Weekday, StartTime: r.Start, EndTime: r.End, Available: r.Available}
		}),
		Rooms: lo.Map(rooms, func(r roomRow, _ int) models.Room {
			return models.Room{ID: r.ID, Code: r.Code, Kind: r.Kind, Capacity: r.Capacity, DepartmentID: r.DepartmentID, Available: r.Available}
		}),
	}, nil
}

func readFile(path string, dest interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, dest); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ProgramIDs lists every program in the dataset.
func (d *Dataset) ProgramIDs() []int64 {
	return lo.Map(d.Programs, func(p models.Program, _ int) int64 { return p.ID })
}

// SessionDetails joins generated sessions with the display fields exports
// need, mirroring what the session repository returns for stored timetables.
func (d *Dataset) SessionDetails(sessions []timetable.Session) []models.TimetableSessionDetail {
	programs := lo.KeyBy(d.Programs, func(p models.Program) int64 { return p.ID })
	subjects := lo.KeyBy(d.Subjects, func(s models.Subject) int64 { return s.ID })
	teachers := lo.KeyBy(d.Teachers, func(t models.Teacher) int64 { return t.ID })
	rooms := lo.KeyBy(d.Rooms, func(r models.Room) int64 { return r.ID })

	details := make([]models.TimetableSessionDetail, 0, len(sessions))
	for i, s := range sessions {
		details = append(details, models.TimetableSessionDetail{
			TimetableSession: models.TimetableSession{
				ID:          strconv.Itoa(i + 1),
				SessionDate: s.Date,
				StartTime:   s.Start.String(),
				EndTime:     s.End.String(),
				SubjectID:   s.SubjectID,
				TeacherID:   s.TeacherID,
				RoomID:      s.RoomID,
				ProgramID:   s.ProgramID,
			},
			ProgramCode: programs[s.ProgramID].Code,
			SubjectCode: subjects[s.SubjectID].Code,
			SubjectName: subjects[s.SubjectID].Name,
			SubjectKind: subjects[s.SubjectID].Kind,
			TeacherName: teachers[s.TeacherID].Name,
			RoomCode:    rooms[s.RoomID].Code,
		})
	}
	return details
}
