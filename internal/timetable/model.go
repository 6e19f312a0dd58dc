package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProgramLevel is the academic level of a program cohort.
type ProgramLevel string

const (
	LevelL1 ProgramLevel = "L1"
	LevelL2 ProgramLevel = "L2"
	LevelL3 ProgramLevel = "L3"
	LevelM1 ProgramLevel = "M1"
	LevelM2 ProgramLevel = "M2"
)

// RoomKind classifies physical rooms.
type RoomKind string

const (
	RoomLecture      RoomKind = "lecture"
	RoomTD           RoomKind = "td"
	RoomLab          RoomKind = "lab"
	RoomAmphitheater RoomKind = "amphitheater"
)

// SubjectKind classifies teaching units.
type SubjectKind string

const (
	SubjectLecture SubjectKind = "lecture"
	SubjectTD      SubjectKind = "td"
	SubjectLab     SubjectKind = "lab"
	SubjectExam    SubjectKind = "exam"
)

var roomKinds = []RoomKind{RoomLecture, RoomTD, RoomLab, RoomAmphitheater}

var kindMatrix = map[SubjectKind][]RoomKind{
	SubjectLecture: {RoomLecture, RoomAmphitheater},
	SubjectTD:      {RoomTD, RoomLecture},
	SubjectLab:     {RoomLab},
	SubjectExam:    roomKinds,
}

// Compatible reports whether a room of kind rk can host a subject of kind sk.
func Compatible(sk SubjectKind, rk RoomKind) bool {
	for _, kind := range kindMatrix[sk] {
		if kind == rk {
			return true
		}
	}
	return false
}

// Clock is a time of day expressed in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		seconds, err := strconv.Atoi(parts[2])
		if err != nil || seconds < 0 || seconds > 59 {
			return 0, fmt.Errorf("invalid second in %q", raw)
		}
	}
	value := Clock(hours*60 + minutes)
	if value > 24*60 {
		return 0, fmt.Errorf("time of day %q out of range", raw)
	}
	return value, nil
}

// MustClock is ParseClock for literals.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Department groups programs, rooms and subjects.
type Department struct {
	ID   int64
	Name string
	Code string
}

// Program is a student cohort.
type Program struct {
	ID           int64
	Code         string
	Name         string
	Level        ProgramLevel
	DepartmentID int64
	Capacity     int
}

// Room is a physical teaching space.
type Room struct {
	ID           int64
	Code         string
	Kind         RoomKind
	Capacity     int
	DepartmentID int64
	Available    bool
}

// Subject is a teaching unit offered to one or more programs.
type Subject struct {
	ID           int64
	Code         string
	Name         string
	Kind         SubjectKind
	Credits      int
	HoursPerWeek float64
	Semester     int
	ProgramIDs   []int64
	DepartmentID int64
}

// Teacher supplies instruction for a set of subjects.
type Teacher struct {
	ID              int64
	EmployeeID      string
	Name            string
	Specialization  string
	SubjectIDs      []int64
	MaxHoursPerWeek int
	Available       bool
}

// Availability is a weekly recurring window. Weekday 0 is Monday.
type Availability struct {
	ID        int64
	TeacherID int64
	Weekday   int
	Start     Clock
	End       Clock
	Available bool
}

// Covers reports whether the window spans [start, end].
func (a Availability) Covers(start, end Clock) bool {
	return a.Start <= start && end <= a.End
}

// Overlaps reports whether the window intersects [start, end).
func (a Availability) Overlaps(start, end Clock) bool {
	return overlaps(a.Start, a.End, start, end)
}

// Session is one scheduled meeting of a program for a subject.
type Session struct {
	Date      time.Time
	Weekday   int
	Start     Clock
	End       Clock
	SubjectID int64
	TeacherID int64
	RoomID    int64
	ProgramID int64
}

// Minutes returns the session length.
func (s Session) Minutes() int {
	return int(s.End - s.Start)
}

func overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

// WeekdayIndex maps a date onto the Monday=0 weekday numbering.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

type isoWeek struct {
	year int
	week int
}

func isoWeekOf(t time.Time) isoWeek {
	y, w := t.ISOWeek()
	return isoWeek{year: y, week: w}
}
