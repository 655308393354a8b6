package schedule

import (
	"sort"
	"time"
)

// Slot is a bookable time for one provider on one date.
type Slot struct {
	Time      TimeOfDay `json:"time"`
	Available bool      `json:"available"`
}

// FilterSlots returns the slots a patient can still pick on date, given now.
//
// Unavailable slots are always dropped. When date is today (in now's
// location) only slots strictly later than now's minute survive; a slot at
// the current minute is not bookable. Dates after today are returned
// unfiltered. Dates before today yield nothing.
func FilterSlots(slots []Slot, date Date, now time.Time) []Slot {
	today := DateOf(now)
	out := make([]Slot, 0, len(slots))
	if date.Before(today) {
		return out
	}

	sameDay := date.Compare(today) == 0
	cutoff := TimeOfDayOf(now)
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		if sameDay && !slot.Time.After(cutoff) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// NormalizeSlots keeps available slots only, sorted by time with duplicates removed.
func NormalizeSlots(slots []Slot) []Slot {
	seen := make(map[int]struct{}, len(slots))
	out := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		if _, dup := seen[slot.Time.Minutes()]; dup {
			continue
		}
		seen[slot.Time.Minutes()] = struct{}{}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Minutes() < out[j].Time.Minutes()
	})
	return out
}

// Times returns the HH:MM strings of slots, in order.
func Times(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Time.String())
	}
	return out
}
