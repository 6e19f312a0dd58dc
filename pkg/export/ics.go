package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const productID = "-//uni-timetable-api//timetable export//EN"

// ICSExporter renders sessions as VEVENTs of a single published calendar.
type ICSExporter struct{}

// NewICSExporter builds an iCalendar exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{}
}

func (e *ICSExporter) Format() Format { return FormatICS }

func (e *ICSExporter) ContentType() string { return "text/calendar; charset=utf-8" }

// Render emits one event per session. Event UIDs are stable for a given
// timetable so re-imports update rather than duplicate.
func (e *ICSExporter) Render(doc Document) ([]byte, error) {
	stamp := doc.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if doc.Title != "" {
		cal.SetXWRCalName(doc.Title)
	}

	for _, row := range doc.Rows {
		if row.StartAt.IsZero() || !row.EndAt.After(row.StartAt) {
			return nil, fmt.Errorf("session %s %s %s has no valid time span", row.Date, row.Start, row.SubjectCode)
		}
		uid := fmt.Sprintf("%s-%d-%d-%s-%s@uni-timetable", doc.TimetableID, row.ProgramID, row.SubjectID, row.Date, row.Start)
		event := cal.AddEvent(uid)
		event.SetDtStampTime(stamp)
		event.SetStartAt(row.StartAt)
		event.SetEndAt(row.EndAt)
		event.SetSummary(fmt.Sprintf("%s %s (%s)", row.SubjectCode, row.SubjectName, row.ProgramCode))
		event.SetLocation(row.RoomCode)
		event.SetDescription(fmt.Sprintf("Teacher: %s\nKind: %s", row.Teacher, row.SubjectKind))
	}
	return []byte(cal.Serialize()), nil
}
