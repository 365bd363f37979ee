package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFoundShare = errors.New("share not found")
	ErrDuplicateID   = errors.New("record with same ID exists")
)

// Storage is the persistence collaborator injected into every entry point.
// Range queries exclude soft-deleted rows; the *ChangedSince queries return
// tombstones as well, since `updated_at` is the sole change signal and
// soft deletion bumps it.
//
// A nil `since` means a full snapshot (client bootstrap).
type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Calendar range queries. Recurring events are returned whenever their
	// rule could still generate occurrences before `to`; expansion and
	// window clipping happen in the occurrence package.
	GetEventsForRange(ctx context.Context, ownerID int, from, to time.Time) ([]Event, error)
	GetInvitedEventsForRange(ctx context.Context, userID int, from, to time.Time) ([]Event, error)
	GetEventExceptions(ctx context.Context, eventID int) ([]EventException, error)
	GetDeadlinesForRange(ctx context.Context, ownerID int, from, to time.Time) ([]Deadline, error)

	// Shares. Lookups return rows regardless of DeletedAt/ExpiresAt; access
	// gating is the caller's concern (projection package).
	GetShare(ctx context.Context, shareID int) (CalendarShare, error)
	GetOpenShareByPublicID(ctx context.Context, publicID string) (OpenCalendarShare, error)
	GetShareCategoryIDs(ctx context.Context, shareID int) ([]int, error)
	GetOpenShareCategoryIDs(ctx context.Context, openShareID int) ([]int, error)

	// ReplaceShareCategories swaps the share's category scope atomically:
	// delete old links, insert new ones, bump the share's updated_at.
	ReplaceShareCategories(ctx context.Context, shareID int, categoryIDs []int) error

	// Delta sync queries (strict updated_at > since).
	GetCategoriesChangedSince(ctx context.Context, ownerID int, since *time.Time) ([]Category, error)
	GetDeadlinesChangedSince(ctx context.Context, ownerID int, since *time.Time) ([]Deadline, error)
	GetEventsChangedSince(ctx context.Context, userID int, since *time.Time) ([]Event, error)
	GetInvitationsChangedSince(ctx context.Context, userID int, since *time.Time) ([]EventInvitation, error)
	GetSharesCreatedChangedSince(ctx context.Context, ownerID int, since *time.Time) ([]CalendarShare, error)
	GetSharesReceivedChangedSince(ctx context.Context, userID int, since *time.Time) ([]CalendarShare, error)
	GetSharedEventsChangedSince(ctx context.Context, ownerID int, categoryIDs []int, since *time.Time) ([]Event, error)
	GetSharedDeadlinesChangedSince(ctx context.Context, ownerID int, categoryIDs []int, since *time.Time) ([]Deadline, error)

	// GetSharesExpiredBetween lists non-revoked shares whose expiry fell in
	// (from, to]; used by the scheduler to publish revocation notices.
	GetSharesExpiredBetween(ctx context.Context, from, to time.Time) ([]CalendarShare, error)
}
