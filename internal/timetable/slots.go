package timetable

import "time"

// Slot is one grid entry materialized on a date.
type Slot struct {
	Date    time.Time
	Weekday int
	Start   Clock
	End     Clock
}

// Minutes returns the slot duration.
func (s Slot) Minutes() int {
	return int(s.End - s.Start)
}

// Enumerate expands the snapshot's date range into slots ordered by date then
// start time. Each date yields at most MaxSessionsPerDay slots.
func Enumerate(snap *Snapshot) []Slot {
	grid := effectiveGrid(snap.config.Grid, snap.request.IncludeWeekends)
	limit := snap.request.MaxSessionsPerDay

	var slots []Slot
	for day := snap.request.StartDate; !day.After(snap.request.EndDate); day = day.AddDate(0, 0, 1) {
		weekday := WeekdayIndex(day)
		entries := grid[weekday]
		if len(entries) > limit {
			entries = entries[:limit]
		}
		for _, entry := range entries {
			slots = append(slots, Slot{
				Date:    day,
				Weekday: weekday,
				Start:   entry.Start,
				End:     entry.End,
			})
		}
	}
	return slots
}

func dayKey(t time.Time) int64 {
	return DateOnly(t).Unix() / 86400
}
