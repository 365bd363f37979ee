package projection

import (
	"time"

	"github.com/daycal/calendar/internal/occurrence"
	"github.com/daycal/calendar/internal/storage"
)

// Redaction placeholders for Limited shares. Presence of busy time is the
// entire point of a Limited share, so timestamps always pass through.
const (
	busyTitle     = "Busy"
	deadlineTitle = "Deadline"
)

// SharedEvent is the viewer-facing shape of an event or one of its
// occurrences. OriginalOccurrenceTime is set on the calendar-view path;
// RRule and DeletedAt only on the sync path, which returns raw rows.
type SharedEvent struct {
	EventID                int        `json:"eventId"`
	OwnerUserID            int        `json:"ownerUserId"`
	CategoryID             *int       `json:"categoryId,omitempty"`
	Title                  string     `json:"title"`
	Description            *string    `json:"description,omitempty"`
	StartTime              time.Time  `json:"startTime"`
	EndTime                time.Time  `json:"endTime"`
	Location               *string    `json:"location,omitempty"`
	RRule                  *string    `json:"rrule,omitempty"`
	OriginalOccurrenceTime *time.Time `json:"originalOccurrenceTime,omitempty"`
	DeletedAt              *time.Time `json:"deletedAt,omitempty"`
}

type SharedDeadline struct {
	DeadlineID        int                    `json:"deadlineId"`
	OwnerUserID       int                    `json:"ownerUserId"`
	CategoryID        *int                   `json:"categoryId,omitempty"`
	Title             string                 `json:"title"`
	Description       *string                `json:"description,omitempty"`
	DueDate           time.Time              `json:"dueDate"`
	Priority          *storage.PriorityLevel `json:"priority,omitempty"`
	WorkloadMagnitude *int                   `json:"workloadMagnitude,omitempty"`
	WorkloadUnit      *storage.WorkloadUnit  `json:"workloadUnit,omitempty"`
	DeletedAt         *time.Time             `json:"deletedAt,omitempty"`
}

// SharedView is the projected calendar a viewer sees.
type SharedView struct {
	Events    []SharedEvent    `json:"events"`
	Deadlines []SharedDeadline `json:"deadlines"`
}

// Scope describes what one share exposes of the owner's calendar.
// AcceptedEventIDs lists foreign events the owner attends through an
// accepted invitation; they are included regardless of category, and only
// for private shares (IncludeForeign).
type Scope struct {
	OwnerID          int
	CategoryIDs      map[int]struct{}
	Privacy          storage.PrivacyLevel
	IncludeForeign   bool
	AcceptedEventIDs map[int]struct{}
}

// NewScope builds a Scope for a private share.
func NewScope(share storage.CalendarShare, categoryIDs []int, acceptedEventIDs []int) Scope {
	return Scope{
		OwnerID:          share.OwnerID,
		CategoryIDs:      toSet(categoryIDs),
		Privacy:          share.PrivacyLevel,
		IncludeForeign:   true,
		AcceptedEventIDs: toSet(acceptedEventIDs),
	}
}

// NewOpenScope builds a Scope for a public share; cross-owner invitations
// are never surfaced to anonymous viewers.
func NewOpenScope(share storage.OpenCalendarShare, categoryIDs []int) Scope {
	return Scope{
		OwnerID:     share.OwnerID,
		CategoryIDs: toSet(categoryIDs),
		Privacy:     share.PrivacyLevel,
	}
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s Scope) includesEvent(e SharedEvent) bool {
	if e.OwnerUserID == s.OwnerID {
		if e.CategoryID == nil {
			// No "all categories" wildcard: uncategorized items are never shared.
			return false
		}
		_, ok := s.CategoryIDs[*e.CategoryID]
		return ok
	}
	if !s.IncludeForeign {
		return false
	}
	_, ok := s.AcceptedEventIDs[e.EventID]
	return ok
}

func (s Scope) includesDeadline(d SharedDeadline) bool {
	if d.OwnerUserID != s.OwnerID || d.CategoryID == nil {
		return false
	}
	_, ok := s.CategoryIDs[*d.CategoryID]
	return ok
}

// Project filters the owner's items down to the share's scope and applies
// the privacy redaction policy. Pure: no I/O, no hidden state.
func Project(events []SharedEvent, deadlines []SharedDeadline, scope Scope) SharedView {
	view := SharedView{
		Events:    make([]SharedEvent, 0, len(events)),
		Deadlines: make([]SharedDeadline, 0, len(deadlines)),
	}
	for _, e := range events {
		if scope.includesEvent(e) {
			view.Events = append(view.Events, RedactEvent(e, scope.Privacy))
		}
	}
	for _, d := range deadlines {
		if scope.includesDeadline(d) {
			view.Deadlines = append(view.Deadlines, RedactDeadline(d, scope.Privacy))
		}
	}
	return view
}

// RedactEvent applies the privacy level to a single item. Limited keeps
// only identity, ownership and time fields.
func RedactEvent(e SharedEvent, privacy storage.PrivacyLevel) SharedEvent {
	if privacy != storage.PrivacyLimited {
		return e
	}
	e.Title = busyTitle
	e.Description = nil
	e.Location = nil
	e.RRule = nil
	e.CategoryID = nil
	return e
}

func RedactDeadline(d SharedDeadline, privacy storage.PrivacyLevel) SharedDeadline {
	if privacy != storage.PrivacyLimited {
		return d
	}
	d.Title = deadlineTitle
	d.Description = nil
	d.CategoryID = nil
	d.Priority = nil
	d.WorkloadMagnitude = nil
	d.WorkloadUnit = nil
	return d
}

// EventItem lifts one assembled occurrence into the shared representation.
func EventItem(ownerID int, occ occurrence.Occurrence) SharedEvent {
	return SharedEvent{
		EventID:                occ.EventID,
		OwnerUserID:            ownerID,
		CategoryID:             occ.CategoryID,
		Title:                  occ.Title,
		Description:            occ.Description,
		StartTime:              occ.StartTime,
		EndTime:                occ.EndTime,
		Location:               occ.Location,
		OriginalOccurrenceTime: occ.OriginalOccurrenceTime,
	}
}

// EventRowItem lifts a raw event row (sync path) into the shared
// representation, tombstone included.
func EventRowItem(e storage.Event) SharedEvent {
	return SharedEvent{
		EventID:     e.ID,
		OwnerUserID: e.OwnerID,
		CategoryID:  e.CategoryID,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Location:    e.Location,
		RRule:       e.RRule,
		DeletedAt:   e.DeletedAt,
	}
}

func DeadlineRowItem(d storage.Deadline) SharedDeadline {
	categoryID := d.CategoryID
	priority := d.Priority
	return SharedDeadline{
		DeadlineID:        d.ID,
		OwnerUserID:       d.OwnerID,
		CategoryID:        &categoryID,
		Title:             d.Title,
		Description:       d.Description,
		DueDate:           d.DueDate,
		Priority:          &priority,
		WorkloadMagnitude: d.WorkloadMagnitude,
		WorkloadUnit:      d.WorkloadUnit,
		DeletedAt:         d.DeletedAt,
	}
}
