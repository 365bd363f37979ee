package projection

import (
	"errors"
	"time"

	"github.com/daycal/calendar/internal/storage"
)

// ErrShareNotFound is the single outcome for every share resolution
// failure: unknown id, foreign id, revoked share, expired share. Collapsing
// them prevents a caller from probing which shares exist.
var ErrShareNotFound = errors.New("share not found")

// ResolveShare gates access to a private share for a specific viewer.
func ResolveShare(share storage.CalendarShare, viewerID int, now time.Time) error {
	if share.SharedWithUserID != viewerID {
		return ErrShareNotFound
	}
	return resolveCommon(share.DeletedAt, share.ExpiresAt, now)
}

// ResolveOpenShare gates access to a public share; anyone holding the
// public id may view it while it is live.
func ResolveOpenShare(share storage.OpenCalendarShare, now time.Time) error {
	return resolveCommon(share.DeletedAt, share.ExpiresAt, now)
}

func resolveCommon(deletedAt, expiresAt *time.Time, now time.Time) error {
	if deletedAt != nil {
		return ErrShareNotFound
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return ErrShareNotFound
	}
	return nil
}
