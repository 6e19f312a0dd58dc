package dto

import (
	"time"

	"github.com/noah-isme/uni-timetable-api/internal/timetable"
)

// GenerateTimetableRequest asks the generator for a proposal. Semantic rules
// (non-empty programs, ordered dates, session cap) are enforced by the
// generator so that each failure carries its own kind.
type GenerateTimetableRequest struct {
	ProgramIDs        []int64 `json:"program_ids" validate:"omitempty,dive,gt=0"`
	StartDate         string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IncludeWeekends   bool    `json:"include_weekends"`
	MaxSessionsPerDay int     `json:"max_sessions_per_day"`
}

// ToRequest converts the payload; blank dates stay zero so the generator
// reports them as an empty range.
func (r GenerateTimetableRequest) ToRequest() (timetable.Request, error) {
	req := timetable.Request{
		ProgramIDs:        append([]int64(nil), r.ProgramIDs...),
		IncludeWeekends:   r.IncludeWeekends,
		MaxSessionsPerDay: r.MaxSessionsPerDay,
	}
	var err error
	if r.StartDate != "" {
		if req.StartDate, err = timetable.ParseDate(r.StartDate); err != nil {
			return timetable.Request{}, err
		}
	}
	if r.EndDate != "" {
		if req.EndDate, err = timetable.ParseDate(r.EndDate); err != nil {
			return timetable.Request{}, err
		}
	}
	return req, nil
}

// SlotDTO is a concrete time slot.
type SlotDTO struct {
	Date    string `json:"date"`
	Weekday int    `json:"weekday"`
	Start   string `json:"start_time"`
	End     string `json:"end_time"`
}

// SessionDTO is one scheduled meeting.
type SessionDTO struct {
	Date      string `json:"date"`
	Weekday   int    `json:"weekday"`
	Start     string `json:"start_time"`
	End       string `json:"end_time"`
	SubjectID int64  `json:"subject_id"`
	TeacherID int64  `json:"teacher_id"`
	RoomID    int64  `json:"room_id"`
	ProgramID int64  `json:"program_id"`
}

// StatsDTO summarises a generation.
type StatsDTO struct {
	SlotsConsidered     int `json:"slots_considered"`
	SchedulesCreated    int `json:"schedules_created"`
	ConflictsDetected   int `json:"conflicts_detected"`
	SubjectsUnderserved int `json:"subjects_underserved"`
	SessionsRequired    int `json:"sessions_required"`
	SessionsUnmet       int `json:"sessions_unmet"`
	Warnings            int `json:"warnings"`
}

// ConflictDTO is a failed assignment attempt.
type ConflictDTO struct {
	Slot      SlotDTO `json:"slot"`
	ProgramID int64   `json:"program_id"`
	SubjectID int64   `json:"subject_id"`
	Cause     string  `json:"cause"`
}

// UnderservedDTO reports unmet demand for a program and subject.
type UnderservedDTO struct {
	ProgramID int64 `json:"program_id"`
	SubjectID int64 `json:"subject_id"`
	Required  int   `json:"required"`
	Emitted   int   `json:"emitted"`
	Unmet     int   `json:"unmet"`
}

// WarningDTO records a relaxed preference on a committed session.
type WarningDTO struct {
	Kind      string  `json:"kind"`
	Slot      SlotDTO `json:"slot"`
	ProgramID int64   `json:"program_id"`
	SubjectID int64   `json:"subject_id"`
	RoomID    int64   `json:"room_id"`
	Detail    string  `json:"detail,omitempty"`
}

// GenerateTimetableResponse is the proposal returned to clients.
type GenerateTimetableResponse struct {
	ProposalID  string           `json:"proposal_id,omitempty"`
	Status      string           `json:"status"`
	Stats       StatsDTO         `json:"stats"`
	Sessions    []SessionDTO     `json:"sessions"`
	Conflicts   []ConflictDTO    `json:"conflicts"`
	Underserved []UnderservedDTO `json:"underserved"`
	Warnings    []WarningDTO     `json:"warnings"`
}

// NewGenerateTimetableResponse maps a generator report onto the wire shape.
func NewGenerateTimetableResponse(proposalID string, report *timetable.Report) *GenerateTimetableResponse {
	resp := &GenerateTimetableResponse{
		ProposalID:  proposalID,
		Sessions:    []SessionDTO{},
		Conflicts:   []ConflictDTO{},
		Underserved: []UnderservedDTO{},
		Warnings:    []WarningDTO{},
	}
	if report == nil {
		return resp
	}
	resp.Status = string(report.Status)
	resp.Stats = StatsDTO(report.Stats)
	for _, s := range report.Sessions {
		resp.Sessions = append(resp.Sessions, NewSessionDTO(s))
	}
	for _, c := range report.Conflicts {
		resp.Conflicts = append(resp.Conflicts, ConflictDTO{
			Slot:      newSlotDTO(c.Slot),
			ProgramID: c.ProgramID,
			SubjectID: c.SubjectID,
			Cause:     string(c.Cause),
		})
	}
	for _, u := range report.Underserved {
		resp.Underserved = append(resp.Underserved, UnderservedDTO(u))
	}
	for _, w := range report.Warnings {
		resp.Warnings = append(resp.Warnings, WarningDTO{
			Kind:      string(w.Kind),
			Slot:      newSlotDTO(w.Slot),
			ProgramID: w.ProgramID,
			SubjectID: w.SubjectID,
			RoomID:    w.RoomID,
			Detail:    w.Detail,
		})
	}
	return resp
}

// NewSessionDTO renders one session.
func NewSessionDTO(s timetable.Session) SessionDTO {
	return SessionDTO{
		Date:      s.Date.Format(timetable.DateLayout),
		Weekday:   s.Weekday,
		Start:     s.Start.String(),
		End:       s.End.String(),
		SubjectID: s.SubjectID,
		TeacherID: s.TeacherID,
		RoomID:    s.RoomID,
		ProgramID: s.ProgramID,
	}
}

func newSlotDTO(s timetable.Slot) SlotDTO {
	return SlotDTO{
		Date:    s.Date.Format(timetable.DateLayout),
		Weekday: s.Weekday,
		Start:   s.Start.String(),
		End:     s.End.String(),
	}
}

// SaveTimetableRequest persists a stored proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposal_id" validate:"required,uuid4"`
	Publish    bool   `json:"publish"`
}

// SaveTimetableResponse identifies the stored version.
type SaveTimetableResponse struct {
	TimetableID string `json:"timetable_id"`
	Version     int    `json:"version"`
	Status      string `json:"status"`
}

// TimetableQuery filters timetable listings.
type TimetableQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
}

// TimetableSummary is a list entry for stored timetables.
type TimetableSummary struct {
	ID         string    `json:"id"`
	Version    int       `json:"version"`
	Status     string    `json:"status"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	ProgramIDs []int64   `json:"program_ids"`
	Sessions   int       `json:"sessions"`
	Conflicts  int       `json:"conflicts"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoredSessionDTO is a persisted session row.
type StoredSessionDTO struct {
	ID string `json:"id"`
	SessionDTO
}
