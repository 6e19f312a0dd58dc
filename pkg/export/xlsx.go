package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Timetable"

var xlsxColumns = []struct {
	title string
	width float64
	value func(SessionRow) interface{}
}{
	{"Date", 12, func(r SessionRow) interface{} { return r.Date }},
	{"Day", 11, func(r SessionRow) interface{} { return r.Weekday }},
	{"Start", 8, func(r SessionRow) interface{} { return r.Start }},
	{"End", 8, func(r SessionRow) interface{} { return r.End }},
	{"Program", 14, func(r SessionRow) interface{} { return r.ProgramCode }},
	{"Subject", 12, func(r SessionRow) interface{} { return r.SubjectCode }},
	{"Title", 32, func(r SessionRow) interface{} { return r.SubjectName }},
	{"Kind", 10, func(r SessionRow) interface{} { return r.SubjectKind }},
	{"Teacher", 24, func(r SessionRow) interface{} { return r.Teacher }},
	{"Room", 10, func(r SessionRow) interface{} { return r.RoomCode }},
}

// XLSXExporter renders sessions as a styled single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) Format() Format { return FormatXLSX }

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render writes a title row, a header row and one row per session.
func (e *XLSXExporter) Render(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 13}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	lastCol := colName(len(xlsxColumns))
	title := doc.Title
	if title == "" {
		title = "Timetable " + doc.TimetableID
	}
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}

	for i, col := range xlsxColumns {
		name := colName(i + 1)
		if err := f.SetColWidth(sheetName, name, name, col.width); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell(name, 2), col.title); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle); err != nil {
		return nil, err
	}

	for r, row := range doc.Rows {
		values := make([]interface{}, len(xlsxColumns))
		for i, col := range xlsxColumns {
			values[i] = col.value(row)
		}
		if err := f.SetSheetRow(sheetName, cell("A", r+3), &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
