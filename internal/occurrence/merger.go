package occurrence

import (
	"time"

	"github.com/daycal/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
)

// Merged is one occurrence after exception overlay. Exception is nil when
// the occurrence passed through unmodified.
type Merged struct {
	Start        time.Time
	End          time.Time
	OriginalTime time.Time
	Exception    *storage.EventException
}

// Merge overlays per-occurrence exceptions onto the raw windows of one
// event. Exceptions match a window by exact equality with its unmodified
// start time. Cancellations drop the occurrence; overrides restate the
// window and are re-checked against the caller's original query range, so a
// moved occurrence that left the range is excluded from this result set
// (the exception row itself is untouched).
//
// The output depends only on the inputs; exception order does not matter.
func Merge(windows []Window, exceptions []storage.EventException, rangeStart, rangeEnd time.Time) []Merged {
	index := make(map[int64]*storage.EventException, len(exceptions))
	matched := make(map[int64]bool, len(exceptions))
	for i := range exceptions {
		index[exceptions[i].OriginalOccurrenceTime.UTC().UnixNano()] = &exceptions[i]
	}

	merged := make([]Merged, 0, len(windows))
	for _, w := range windows {
		key := w.Start.UTC().UnixNano()
		ex, ok := index[key]
		if !ok {
			merged = append(merged, Merged{Start: w.Start, End: w.End, OriginalTime: w.Start})
			continue
		}
		matched[key] = true
		if ex.IsDeleted {
			continue
		}

		// An override always restates its own window; missing times would
		// violate the write-side invariant, fall back to the raw window.
		start, end := w.Start, w.End
		if ex.StartTime != nil {
			start = *ex.StartTime
		}
		if ex.EndTime != nil {
			end = *ex.EndTime
		}
		if !start.Before(rangeEnd) || !end.After(rangeStart) {
			continue
		}
		merged = append(merged, Merged{Start: start, End: end, OriginalTime: w.Start, Exception: ex})
	}

	// Orphans: anchors inside the queried range that matched nothing, e.g.
	// after the recurrence rule was edited. Anchors outside the range are
	// simply not applicable to this query.
	for i := range exceptions {
		anchor := exceptions[i].OriginalOccurrenceTime
		if anchor.Before(rangeStart) || !anchor.Before(rangeEnd) {
			continue
		}
		if !matched[anchor.UTC().UnixNano()] {
			log.WithField("exceptionId", exceptions[i].ID).
				WithField("eventId", exceptions[i].EventID).
				WithField("originalOccurrenceTime", exceptions[i].OriginalOccurrenceTime).
				Warn("exception matches no generated occurrence, skipping")
		}
	}
	return merged
}
