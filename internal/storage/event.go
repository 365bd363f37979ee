package storage

import (
	"time"
)

type Event struct {
	ID          int        `db:"event_id" json:"eventId"`
	OwnerID     int        `db:"owner_id" json:"ownerId"`
	CategoryID  *int       `db:"category_id" json:"categoryId,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	StartTime   time.Time  `db:"start_time" json:"startTime"`
	EndTime     time.Time  `db:"end_time" json:"endTime"`
	Location    *string    `db:"location" json:"location,omitempty"`
	RRule       *string    `db:"rrule" json:"rrule,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// Recurring reports whether the event carries a recurrence rule.
func (e Event) Recurring() bool {
	return e.RRule != nil && *e.RRule != ""
}

// EventException overrides or cancels a single occurrence of a recurring
// event, keyed by the unmodified start time of the occurrence it targets.
// When IsDeleted is false the override restates its own start/end window.
type EventException struct {
	ID                     int        `db:"exception_id" json:"exceptionId"`
	EventID                int        `db:"event_id" json:"eventId"`
	OriginalOccurrenceTime time.Time  `db:"original_occurrence_time" json:"originalOccurrenceTime"`
	IsDeleted              bool       `db:"is_deleted" json:"isDeleted"`
	Title                  *string    `db:"title" json:"title,omitempty"`
	Description            *string    `db:"description" json:"description,omitempty"`
	StartTime              *time.Time `db:"start_time" json:"startTime,omitempty"`
	EndTime                *time.Time `db:"end_time" json:"endTime,omitempty"`
	Location               *string    `db:"location" json:"location,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt              *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}
