package timetable

import (
	"fmt"
	"sort"
)

// GridEntry is one weekly recurring teaching slot. Weekday 0 is Monday.
type GridEntry struct {
	Weekday int
	Start   Clock
	End     Clock
}

// Minutes returns the slot length.
func (g GridEntry) Minutes() int {
	return int(g.End - g.Start)
}

// SubjectPriority selects how open demand is ordered inside a slot.
type SubjectPriority string

const (
	// PriorityRemaining orders by descending remaining demand.
	PriorityRemaining SubjectPriority = "remaining"
	// PriorityQuota orders by descending initial demand, finishing one subject before the next.
	PriorityQuota SubjectPriority = "quota"
)

const (
	defaultMaxRangeDays   = 366
	defaultSessionMinutes = 90
	weekendStart          = 5
)

// Config carries the process-wide generator settings.
type Config struct {
	Grid                      []GridEntry
	SessionHours              float64
	SubjectPriority           SubjectPriority
	PreferSameDepartment      bool
	AllowDepartmentRelaxation bool
	MaxRangeDays              int
}

// DefaultGrid is Monday to Saturday with four 90 minute slots a day.
// Saturday entries only take effect for requests that include weekends.
func DefaultGrid() []GridEntry {
	times := [][2]string{
		{"08:00", "09:30"},
		{"10:00", "11:30"},
		{"14:00", "15:30"},
		{"16:00", "17:30"},
	}
	grid := make([]GridEntry, 0, 6*len(times))
	for day := 0; day <= 5; day++ {
		for _, tr := range times {
			grid = append(grid, GridEntry{Weekday: day, Start: MustClock(tr[0]), End: MustClock(tr[1])})
		}
	}
	return grid
}

// DefaultConfig returns the committed defaults.
func DefaultConfig() Config {
	return Config{
		Grid:                      DefaultGrid(),
		SubjectPriority:           PriorityRemaining,
		PreferSameDepartment:      true,
		AllowDepartmentRelaxation: true,
		MaxRangeDays:              defaultMaxRangeDays,
	}
}

// ValidateGrid checks every entry for a sane weekday and a positive length.
func ValidateGrid(grid []GridEntry) error {
	for i, entry := range grid {
		if entry.Weekday < 0 || entry.Weekday > 6 {
			return fmt.Errorf("grid entry %d: weekday %d out of range 0..6", i, entry.Weekday)
		}
		if entry.End <= entry.Start {
			return fmt.Errorf("grid entry %d: end %s not after start %s", i, entry.End, entry.Start)
		}
	}
	return nil
}

func (c Config) normalized() Config {
	if c.MaxRangeDays <= 0 {
		c.MaxRangeDays = defaultMaxRangeDays
	}
	if c.SubjectPriority == "" {
		c.SubjectPriority = PriorityRemaining
	}
	grid := make([]GridEntry, len(c.Grid))
	copy(grid, c.Grid)
	c.Grid = grid
	return c
}

// sessionMinutes is the expected length of one session: the configured
// override, else the most common grid slot length (shortest wins ties).
func (c Config) sessionMinutes() int {
	if c.SessionHours > 0 {
		return int(c.SessionHours*60 + 0.5)
	}
	counts := make(map[int]int)
	for _, entry := range c.Grid {
		counts[entry.Minutes()]++
	}
	if len(counts) == 0 {
		return defaultSessionMinutes
	}
	lengths := make([]int, 0, len(counts))
	for length := range counts {
		lengths = append(lengths, length)
	}
	sort.Ints(lengths)
	best := lengths[0]
	for _, length := range lengths[1:] {
		if counts[length] > counts[best] {
			best = length
		}
	}
	return best
}

// effectiveGrid drops weekend entries unless the request asks for them and
// returns entries grouped per weekday, sorted by start.
func effectiveGrid(grid []GridEntry, includeWeekends bool) map[int][]GridEntry {
	type indexed struct {
		entry GridEntry
		pos   int
	}
	byDay := make(map[int][]indexed)
	for pos, entry := range grid {
		if entry.Weekday >= weekendStart && !includeWeekends {
			continue
		}
		byDay[entry.Weekday] = append(byDay[entry.Weekday], indexed{entry: entry, pos: pos})
	}
	out := make(map[int][]GridEntry, len(byDay))
	for day, entries := range byDay {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].entry.Start != entries[j].entry.Start {
				return entries[i].entry.Start < entries[j].entry.Start
			}
			return entries[i].pos < entries[j].pos
		})
		list := make([]GridEntry, len(entries))
		for i, item := range entries {
			list[i] = item.entry
		}
		out[day] = list
	}
	return out
}
