package occurrence

import (
	"sort"
	"time"

	"github.com/daycal/calendar/internal/storage"
)

// Occurrence is the public representation of one concrete event instance.
// OriginalOccurrenceTime is set only for recurring events; ExceptionID only
// when an exception applied.
type Occurrence struct {
	EventID                int        `json:"eventId"`
	CategoryID             *int       `json:"categoryId,omitempty"`
	Title                  string     `json:"title"`
	Description            *string    `json:"description,omitempty"`
	StartTime              time.Time  `json:"startTime"`
	EndTime                time.Time  `json:"endTime"`
	Location               *string    `json:"location,omitempty"`
	OriginalOccurrenceTime *time.Time `json:"originalOccurrenceTime,omitempty"`
	ExceptionID            *int       `json:"exceptionId,omitempty"`
}

// Assemble combines an event's stable attributes with its merged occurrence
// windows. Override fields not restated by an exception fall back to the
// base event's values: an override is an absolute replacement record, not an
// incremental diff.
func Assemble(e storage.Event, merged []Merged) []Occurrence {
	out := make([]Occurrence, 0, len(merged))
	for _, m := range merged {
		occ := Occurrence{
			EventID:     e.ID,
			CategoryID:  e.CategoryID,
			Title:       e.Title,
			Description: e.Description,
			StartTime:   m.Start,
			EndTime:     m.End,
			Location:    e.Location,
		}
		if e.Recurring() {
			original := m.OriginalTime
			occ.OriginalOccurrenceTime = &original
		}
		if ex := m.Exception; ex != nil {
			id := ex.ID
			occ.ExceptionID = &id
			if ex.Title != nil {
				occ.Title = *ex.Title
			}
			if ex.Description != nil {
				occ.Description = ex.Description
			}
			if ex.Location != nil {
				occ.Location = ex.Location
			}
		}
		out = append(out, occ)
	}
	return out
}

// ExpandEvent runs the full pipeline for one event: expansion, exception
// overlay, assembly. Exceptions are only meaningful for recurring events.
func ExpandEvent(e storage.Event, exceptions []storage.EventException, rangeStart, rangeEnd time.Time) []Occurrence {
	windows := Expand(e, rangeStart, rangeEnd)
	if !e.Recurring() {
		return Assemble(e, Merge(windows, nil, rangeStart, rangeEnd))
	}
	return Assemble(e, Merge(windows, exceptions, rangeStart, rangeEnd))
}

// SortOccurrences orders a combined occurrence list by start time, then by
// event id for stability.
func SortOccurrences(occs []Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].StartTime.Equal(occs[j].StartTime) {
			return occs[i].EventID < occs[j].EventID
		}
		return occs[i].StartTime.Before(occs[j].StartTime)
	})
}
