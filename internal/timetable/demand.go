package timetable

import (
	"math"
	"sort"
)

// DemandState tracks a (program, subject) pair through generation.
type DemandState string

const (
	DemandOpen        DemandState = "open"
	DemandSatisfied   DemandState = "satisfied"
	DemandUnderserved DemandState = "underserved"
)

type demand struct {
	program   Program
	subject   Subject
	required  int
	remaining int
	state     DemandState
}

func (d *demand) commit() {
	d.remaining--
	if d.remaining <= 0 {
		d.remaining = 0
		d.state = DemandSatisfied
	}
}

// WeeksInRange rounds the range to whole weeks, never below one.
func WeeksInRange(days int) int {
	weeks := int(math.Round(float64(days) / 7))
	if weeks < 1 {
		return 1
	}
	return weeks
}

// SessionsRequired computes ceil(hours_per_week * weeks / session_hours) in whole minutes.
func SessionsRequired(hoursPerWeek float64, days, sessionMinutes int) int {
	if hoursPerWeek <= 0 || sessionMinutes <= 0 {
		return 0
	}
	minutes := int(math.Round(hoursPerWeek*60)) * WeeksInRange(days)
	return (minutes + sessionMinutes - 1) / sessionMinutes
}

// buildDemand creates one counter per offered (program, subject) pair in
// program code then subject code order.
func buildDemand(snap *Snapshot) []*demand {
	sessionMinutes := snap.config.sessionMinutes()
	var out []*demand
	for _, program := range snap.programs {
		for _, subject := range snap.subjectsByProgram[program.ID] {
			required := SessionsRequired(subject.HoursPerWeek, snap.days, sessionMinutes)
			state := DemandOpen
			if required == 0 {
				state = DemandSatisfied
			}
			out = append(out, &demand{
				program:   program,
				subject:   subject,
				required:  required,
				remaining: required,
				state:     state,
			})
		}
	}
	return out
}

// openByPriority returns open demand in the order candidates are tried for a slot.
func openByPriority(all []*demand, priority SubjectPriority) []*demand {
	open := make([]*demand, 0, len(all))
	for _, d := range all {
		if d.state == DemandOpen {
			open = append(open, d)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		a, b := open[i], open[j]
		ka, kb := a.remaining, b.remaining
		if priority == PriorityQuota {
			ka, kb = a.required, b.required
		}
		if ka != kb {
			return ka > kb
		}
		if a.subject.Code != b.subject.Code {
			return a.subject.Code < b.subject.Code
		}
		if a.program.Code != b.program.Code {
			return a.program.Code < b.program.Code
		}
		if a.subject.ID != b.subject.ID {
			return a.subject.ID < b.subject.ID
		}
		return a.program.ID < b.program.ID
	})
	return open
}
