package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daycal/calendar/internal/occurrence"
	"github.com/daycal/calendar/internal/projection"
	"github.com/daycal/calendar/internal/storage"
	"github.com/daycal/calendar/internal/syncer"
)

// App wires the persistence collaborator into the pure computation
// pipeline. One instance serves all requests; it holds no per-request
// state.
type App struct {
	Storage storage.Storage
	Syncer  *syncer.Coordinator
}

func New(s storage.Storage) *App {
	return &App{Storage: s, Syncer: syncer.New(s)}
}

// GetCalendarOccurrences expands the owner's events into concrete
// occurrences intersecting [from, to), exceptions applied.
func (a *App) GetCalendarOccurrences(ctx context.Context, ownerID int, from, to time.Time) ([]occurrence.Occurrence, error) {
	events, err := a.Storage.GetEventsForRange(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	occurrences, err := a.expandAll(ctx, events, from, to)
	if err != nil {
		return nil, err
	}
	occurrence.SortOccurrences(occurrences)
	return occurrences, nil
}

func (a *App) expandAll(ctx context.Context, events []storage.Event, from, to time.Time) ([]occurrence.Occurrence, error) {
	occurrences := make([]occurrence.Occurrence, 0, len(events))
	for _, e := range events {
		var exceptions []storage.EventException
		if e.Recurring() {
			var err error
			exceptions, err = a.Storage.GetEventExceptions(ctx, e.ID)
			if err != nil {
				return nil, fmt.Errorf("fetch exceptions for event %d: %w", e.ID, err)
			}
		}
		occurrences = append(occurrences, occurrence.ExpandEvent(e, exceptions, from, to)...)
	}
	return occurrences, nil
}

// GetSharedCalendar projects the sharer's calendar for a designated viewer.
// Any resolution failure (unknown, foreign, revoked, expired) surfaces as
// projection.ErrShareNotFound.
func (a *App) GetSharedCalendar(ctx context.Context, viewerID, shareID int, from, to time.Time) (projection.SharedView, error) {
	now := time.Now().UTC()

	share, err := a.Storage.GetShare(ctx, shareID)
	if errors.Is(err, storage.ErrNotFoundShare) {
		return projection.SharedView{}, projection.ErrShareNotFound
	}
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch share: %w", err)
	}
	if err := projection.ResolveShare(share, viewerID, now); err != nil {
		return projection.SharedView{}, err
	}

	categoryIDs, err := a.Storage.GetShareCategoryIDs(ctx, share.ID)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch share categories: %w", err)
	}

	ownEvents, err := a.Storage.GetEventsForRange(ctx, share.OwnerID, from, to)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch events: %w", err)
	}
	invitedEvents, err := a.Storage.GetInvitedEventsForRange(ctx, share.OwnerID, from, to)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch invited events: %w", err)
	}
	deadlines, err := a.Storage.GetDeadlinesForRange(ctx, share.OwnerID, from, to)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch deadlines: %w", err)
	}

	items, err := a.sharedEventItems(ctx, ownEvents, invitedEvents, from, to)
	if err != nil {
		return projection.SharedView{}, err
	}
	acceptedIDs := make([]int, 0, len(invitedEvents))
	for _, e := range invitedEvents {
		acceptedIDs = append(acceptedIDs, e.ID)
	}

	scope := projection.NewScope(share, categoryIDs, acceptedIDs)
	return projection.Project(items, deadlineItems(deadlines), scope), nil
}

// GetOpenSharedCalendar is the public variant: resolved by token, no viewer
// identity, no cross-owner invitation inclusion.
func (a *App) GetOpenSharedCalendar(ctx context.Context, publicID string, from, to time.Time) (projection.SharedView, error) {
	now := time.Now().UTC()

	share, err := a.Storage.GetOpenShareByPublicID(ctx, publicID)
	if errors.Is(err, storage.ErrNotFoundShare) {
		return projection.SharedView{}, projection.ErrShareNotFound
	}
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch open share: %w", err)
	}
	if err := projection.ResolveOpenShare(share, now); err != nil {
		return projection.SharedView{}, err
	}

	categoryIDs, err := a.Storage.GetOpenShareCategoryIDs(ctx, share.ID)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch open share categories: %w", err)
	}
	events, err := a.Storage.GetEventsForRange(ctx, share.OwnerID, from, to)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch events: %w", err)
	}
	deadlines, err := a.Storage.GetDeadlinesForRange(ctx, share.OwnerID, from, to)
	if err != nil {
		return projection.SharedView{}, fmt.Errorf("fetch deadlines: %w", err)
	}

	items, err := a.sharedEventItems(ctx, events, nil, from, to)
	if err != nil {
		return projection.SharedView{}, err
	}

	scope := projection.NewOpenScope(share, categoryIDs)
	return projection.Project(items, deadlineItems(deadlines), scope), nil
}

func (a *App) sharedEventItems(ctx context.Context, ownEvents, invitedEvents []storage.Event, from, to time.Time) ([]projection.SharedEvent, error) {
	items := make([]projection.SharedEvent, 0, len(ownEvents)+len(invitedEvents))
	for _, group := range [][]storage.Event{ownEvents, invitedEvents} {
		occurrences, err := a.expandAll(ctx, group, from, to)
		if err != nil {
			return nil, err
		}
		owners := make(map[int]int, len(group))
		for _, e := range group {
			owners[e.ID] = e.OwnerID
		}
		for _, occ := range occurrences {
			items = append(items, projection.EventItem(owners[occ.EventID], occ))
		}
	}
	return items, nil
}

func deadlineItems(deadlines []storage.Deadline) []projection.SharedDeadline {
	items := make([]projection.SharedDeadline, 0, len(deadlines))
	for _, d := range deadlines {
		items = append(items, projection.DeadlineRowItem(d))
	}
	return items
}

// SyncOwned computes the principal's delta since the given high-water mark.
func (a *App) SyncOwned(ctx context.Context, userID int, since *time.Time) (syncer.OwnedResult, error) {
	return a.Syncer.SyncOwned(ctx, userID, since)
}

// SyncShared computes the delta for one shared-calendar view.
func (a *App) SyncShared(ctx context.Context, viewerID, shareID int, since *time.Time) (syncer.SharedResult, error) {
	return a.Syncer.SyncShared(ctx, viewerID, shareID, since)
}

// UpdateShareCategories replaces a share's category scope; only the owner
// may do so, and a foreign share is indistinguishable from a missing one.
func (a *App) UpdateShareCategories(ctx context.Context, ownerID, shareID int, categoryIDs []int) error {
	share, err := a.Storage.GetShare(ctx, shareID)
	if errors.Is(err, storage.ErrNotFoundShare) {
		return projection.ErrShareNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch share: %w", err)
	}
	if share.OwnerID != ownerID || share.DeletedAt != nil {
		return projection.ErrShareNotFound
	}
	return a.Storage.ReplaceShareCategories(ctx, shareID, categoryIDs)
}
