package occurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/daycal/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// Safety cap against pathological rules; a query window over a
// minutely rule can otherwise produce millions of occurrences.
const maxOccurrencesPerEvent = 5000

// Window is one raw occurrence interval before exceptions are applied.
type Window struct {
	Start time.Time
	End   time.Time
}

// Expand generates the raw occurrence windows of an event intersecting the
// half-open range [rangeStart, rangeEnd), ordered by start ascending.
//
// Non-recurring events yield zero or one window: the event's own interval.
// Recurring events are expanded with the rule anchored at the event's
// StartTime; every occurrence keeps the base event's duration.
//
// Malformed rules are rejected at write time, but if one reaches here anyway
// the expansion fails closed: empty result plus a warning.
func Expand(e storage.Event, rangeStart, rangeEnd time.Time) []Window {
	if !rangeEnd.After(rangeStart) {
		return nil
	}

	duration := e.EndTime.Sub(e.StartTime)

	if !e.Recurring() {
		if e.StartTime.Before(rangeEnd) && e.EndTime.After(rangeStart) {
			return []Window{{Start: e.StartTime, End: e.EndTime}}
		}
		return nil
	}

	if zero, ok := explicitCount(*e.RRule); ok && zero {
		return nil
	}

	rule, err := rrule.StrToRRule(*e.RRule)
	if err != nil {
		log.WithField("eventId", e.ID).WithField("rrule", *e.RRule).
			Warnf("failed to parse recurrence rule: %v", err)
		return nil
	}
	rule.DTStart(e.StartTime.UTC())

	// Start the search one duration early so occurrences that begin before
	// the range but still overlap it are not lost.
	searchStart := rangeStart
	if duration > 0 {
		searchStart = rangeStart.Add(-duration)
	}

	starts := rule.Between(searchStart.UTC(), rangeEnd.UTC(), true)

	windows := make([]Window, 0, len(starts))
	for _, start := range starts {
		if len(windows) == maxOccurrencesPerEvent {
			log.WithField("eventId", e.ID).
				Warnf("recurrence expansion truncated at %d occurrences", maxOccurrencesPerEvent)
			break
		}
		end := start.Add(duration)
		if !start.Before(rangeEnd) || !end.After(rangeStart) {
			continue
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}

// explicitCount extracts the COUNT part of a rule string. rrule-go cannot
// distinguish COUNT=0 from an absent COUNT, while a zero count must expand
// to nothing.
func explicitCount(rule string) (zero bool, present bool) {
	for _, part := range strings.Split(rule, ";") {
		if v, found := strings.CutPrefix(strings.TrimSpace(part), "COUNT="); found {
			n, err := strconv.Atoi(v)
			if err != nil {
				return false, false
			}
			return n == 0, true
		}
	}
	return false, false
}
