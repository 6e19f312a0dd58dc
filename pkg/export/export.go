// Package export renders stored timetables into downloadable documents.
package export

import (
	"fmt"
	"strings"
	"time"
)

// Format names a supported export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatICS  Format = "ics"
)

// ParseFormat normalises a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatXLSX, FormatICS:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// SessionRow is one denormalised timetable session as it appears in exports.
type SessionRow struct {
	Date        string    `csv:"date"`
	Weekday     string    `csv:"weekday"`
	Start       string    `csv:"start"`
	End         string    `csv:"end"`
	ProgramCode string    `csv:"program"`
	SubjectCode string    `csv:"subject_code"`
	SubjectName string    `csv:"subject_name"`
	SubjectKind string    `csv:"kind"`
	Teacher     string    `csv:"teacher"`
	RoomCode    string    `csv:"room"`
	ProgramID   int64     `csv:"program_id"`
	SubjectID   int64     `csv:"subject_id"`
	TeacherID   int64     `csv:"teacher_id"`
	RoomID      int64     `csv:"room_id"`
	StartAt     time.Time `csv:"-"`
	EndAt       time.Time `csv:"-"`
}

// Document is the unit handed to an Exporter.
type Document struct {
	TimetableID string
	Title       string
	GeneratedAt time.Time
	Rows        []SessionRow
}

// Exporter renders a Document into bytes of a single format.
type Exporter interface {
	Format() Format
	ContentType() string
	Render(Document) ([]byte, error)
}

// New returns the exporter for format.
func New(format Format) (Exporter, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	case FormatICS:
		return NewICSExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// Filename builds the artifact name for a document.
func Filename(doc Document, format Format) string {
	return fmt.Sprintf("timetable-%s.%s", doc.TimetableID, format)
}
