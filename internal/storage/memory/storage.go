package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daycal/calendar/internal/storage"
)

// Storage keeps every entity kind in mutex-guarded maps. Used by tests and
// as a development backend; the Add* seeders preserve caller-supplied audit
// timestamps so tests control the clock.
type Storage struct {
	mu sync.RWMutex

	events      map[int]storage.Event
	exceptions  map[int]storage.EventException
	deadlines   map[int]storage.Deadline
	categories  map[int]storage.Category
	shares      map[int]storage.CalendarShare
	openShares  map[int]storage.OpenCalendarShare
	invitations map[int]storage.EventInvitation
	shareCats   map[int][]int // share id -> category ids
	openCats    map[int][]int // open share id -> category ids

	idSeq int
	now   func() time.Time
}

func New() *Storage {
	return &Storage{
		events:      make(map[int]storage.Event),
		exceptions:  make(map[int]storage.EventException),
		deadlines:   make(map[int]storage.Deadline),
		categories:  make(map[int]storage.Category),
		shares:      make(map[int]storage.CalendarShare),
		openShares:  make(map[int]storage.OpenCalendarShare),
		invitations: make(map[int]storage.EventInvitation),
		shareCats:   make(map[int][]int),
		openCats:    make(map[int][]int),
		now:         time.Now,
	}
}

func (s *Storage) Connect(_ context.Context) error { return nil }

func (s *Storage) Close(_ context.Context) error { return nil }

func (s *Storage) nextID() int {
	s.idSeq++
	return s.idSeq
}

func (s *Storage) stamp(id *int, createdAt, updatedAt *time.Time) {
	if *id == 0 {
		*id = s.nextID()
	} else if *id > s.idSeq {
		s.idSeq = *id
	}
	if createdAt.IsZero() {
		*createdAt = s.now().UTC()
	}
	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

// --- Seeders -------------------------------------------------------------

func (s *Storage) AddEvent(e *storage.Event) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("event %d: end time must be after start time", e.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("event %d: %w", e.ID, storage.ErrDuplicateID)
	}
	s.stamp(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	s.events[e.ID] = *e
	return nil
}

func (s *Storage) AddException(ex *storage.EventException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.exceptions {
		if other.EventID == ex.EventID && other.OriginalOccurrenceTime.Equal(ex.OriginalOccurrenceTime) {
			return fmt.Errorf("exception for event %d at %s: %w",
				ex.EventID, ex.OriginalOccurrenceTime, storage.ErrDuplicateID)
		}
	}
	s.stamp(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt)
	s.exceptions[ex.ID] = *ex
	return nil
}

func (s *Storage) AddDeadline(d *storage.Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deadlines[d.ID]; ok {
		return fmt.Errorf("deadline %d: %w", d.ID, storage.ErrDuplicateID)
	}
	s.stamp(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	s.deadlines[d.ID] = *d
	return nil
}

func (s *Storage) AddCategory(c *storage.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return fmt.Errorf("category %d: %w", c.ID, storage.ErrDuplicateID)
	}
	s.stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	s.categories[c.ID] = *c
	return nil
}

func (s *Storage) AddShare(share *storage.CalendarShare, categoryIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[share.ID]; ok {
		return fmt.Errorf("share %d: %w", share.ID, storage.ErrDuplicateID)
	}
	s.stamp(&share.ID, &share.CreatedAt, &share.UpdatedAt)
	s.shares[share.ID] = *share
	s.shareCats[share.ID] = append([]int(nil), categoryIDs...)
	return nil
}

func (s *Storage) AddOpenShare(share *storage.OpenCalendarShare, categoryIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openShares[share.ID]; ok {
		return fmt.Errorf("open share %d: %w", share.ID, storage.ErrDuplicateID)
	}
	if share.PublicID == "" {
		share.PublicID = storage.NewPublicID()
	}
	s.stamp(&share.ID, &share.CreatedAt, &share.UpdatedAt)
	s.openShares[share.ID] = *share
	s.openCats[share.ID] = append([]int(nil), categoryIDs...)
	return nil
}

func (s *Storage) AddInvitation(inv *storage.EventInvitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[inv.ID]; ok {
		return fmt.Errorf("invitation %d: %w", inv.ID, storage.ErrDuplicateID)
	}
	s.stamp(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	s.invitations[inv.ID] = *inv
	return nil
}

// --- Range queries -------------------------------------------------------

func (s *Storage) GetEventsForRange(_ context.Context, ownerID int, from, to time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if e.OwnerID != ownerID || e.DeletedAt != nil {
			continue
		}
		if eventMayIntersect(e, from, to) {
			events = append(events, e)
		}
	}
	sortEvents(events)
	return events, nil
}

func (s *Storage) GetInvitedEventsForRange(_ context.Context, userID int, from, to time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accepted := s.acceptedEventIDs(userID)
	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if e.DeletedAt != nil || e.OwnerID == userID {
			continue
		}
		if _, ok := accepted[e.ID]; !ok {
			continue
		}
		if eventMayIntersect(e, from, to) {
			events = append(events, e)
		}
	}
	sortEvents(events)
	return events, nil
}

func (s *Storage) GetEventExceptions(_ context.Context, eventID int) ([]storage.EventException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exceptions := make([]storage.EventException, 0)
	for _, ex := range s.exceptions {
		if ex.EventID == eventID && ex.DeletedAt == nil {
			exceptions = append(exceptions, ex)
		}
	}
	sort.Slice(exceptions, func(i, j int) bool { return exceptions[i].ID < exceptions[j].ID })
	return exceptions, nil
}

func (s *Storage) GetDeadlinesForRange(_ context.Context, ownerID int, from, to time.Time) ([]storage.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deadlines := make([]storage.Deadline, 0)
	for _, d := range s.deadlines {
		if d.OwnerID != ownerID || d.DeletedAt != nil {
			continue
		}
		if !d.DueDate.Before(from) && d.DueDate.Before(to) {
			deadlines = append(deadlines, d)
		}
	}
	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].DueDate.Before(deadlines[j].DueDate) })
	return deadlines, nil
}

// --- Shares --------------------------------------------------------------

func (s *Storage) GetShare(_ context.Context, shareID int) (storage.CalendarShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.shares[shareID]
	if !ok {
		return storage.CalendarShare{}, fmt.Errorf("share %d: %w", shareID, storage.ErrNotFoundShare)
	}
	return share, nil
}

func (s *Storage) GetOpenShareByPublicID(_ context.Context, publicID string) (storage.OpenCalendarShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, share := range s.openShares {
		if share.PublicID == publicID {
			return share, nil
		}
	}
	return storage.OpenCalendarShare{}, fmt.Errorf("open share %q: %w", publicID, storage.ErrNotFoundShare)
}

func (s *Storage) GetShareCategoryIDs(_ context.Context, shareID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.shareCats[shareID]...), nil
}

func (s *Storage) GetOpenShareCategoryIDs(_ context.Context, openShareID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.openCats[openShareID]...), nil
}

func (s *Storage) ReplaceShareCategories(_ context.Context, shareID int, categoryIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[shareID]
	if !ok {
		return fmt.Errorf("share %d: %w", shareID, storage.ErrNotFoundShare)
	}
	s.shareCats[shareID] = append([]int(nil), categoryIDs...)
	share.UpdatedAt = s.now().UTC()
	s.shares[shareID] = share
	return nil
}

// --- Delta sync ----------------------------------------------------------

func changedSince(updatedAt time.Time, since *time.Time) bool {
	return since == nil || updatedAt.After(*since)
}

// Tombstoned rows deleted before `since` are omitted entirely: the client
// already removed them.
func tombstoneVisible(deletedAt *time.Time, since *time.Time) bool {
	if deletedAt == nil {
		return true
	}
	return since == nil || deletedAt.After(*since)
}

func (s *Storage) GetCategoriesChangedSince(_ context.Context, ownerID int, since *time.Time) ([]storage.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]storage.Category, 0)
	for _, c := range s.categories {
		if c.OwnerID == ownerID && changedSince(c.UpdatedAt, since) && tombstoneVisible(c.DeletedAt, since) {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (s *Storage) GetDeadlinesChangedSince(_ context.Context, ownerID int, since *time.Time) ([]storage.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deadlines := make([]storage.Deadline, 0)
	for _, d := range s.deadlines {
		if d.OwnerID == ownerID && changedSince(d.UpdatedAt, since) && tombstoneVisible(d.DeletedAt, since) {
			deadlines = append(deadlines, d)
		}
	}
	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].ID < deadlines[j].ID })
	return deadlines, nil
}

func (s *Storage) acceptedEventIDs(userID int) map[int]struct{} {
	accepted := make(map[int]struct{})
	for _, inv := range s.invitations {
		if inv.InvitedUserID == userID && inv.Status == storage.InvitationAccepted && inv.DeletedAt == nil {
			accepted[inv.EventID] = struct{}{}
		}
	}
	return accepted
}

// Owned events changed since, plus events visible through an accepted
// invitation when either the event row or the invitation row changed.
func (s *Storage) GetEventsChangedSince(_ context.Context, userID int, since *time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	include := make(map[int]struct{})
	for _, e := range s.events {
		if e.OwnerID == userID && changedSince(e.UpdatedAt, since) && tombstoneVisible(e.DeletedAt, since) {
			include[e.ID] = struct{}{}
		}
	}
	for _, inv := range s.invitations {
		if inv.InvitedUserID != userID || inv.Status != storage.InvitationAccepted {
			continue
		}
		e, ok := s.events[inv.EventID]
		if !ok || !tombstoneVisible(e.DeletedAt, since) {
			continue
		}
		if changedSince(inv.UpdatedAt, since) || changedSince(e.UpdatedAt, since) {
			include[e.ID] = struct{}{}
		}
	}
	events := make([]storage.Event, 0, len(include))
	for id := range include {
		events = append(events, s.events[id])
	}
	sortEvents(events)
	return events, nil
}

func (s *Storage) GetInvitationsChangedSince(_ context.Context, userID int, since *time.Time) ([]storage.EventInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invitations := make([]storage.EventInvitation, 0)
	for _, inv := range s.invitations {
		if inv.InvitedUserID == userID && changedSince(inv.UpdatedAt, since) && tombstoneVisible(inv.DeletedAt, since) {
			invitations = append(invitations, inv)
		}
	}
	sort.Slice(invitations, func(i, j int) bool { return invitations[i].ID < invitations[j].ID })
	return invitations, nil
}

func (s *Storage) GetSharesCreatedChangedSince(_ context.Context, ownerID int, since *time.Time) ([]storage.CalendarShare, error) {
	return s.sharesChangedSince(func(share storage.CalendarShare) bool { return share.OwnerID == ownerID }, since)
}

func (s *Storage) GetSharesReceivedChangedSince(_ context.Context, userID int, since *time.Time) ([]storage.CalendarShare, error) {
	return s.sharesChangedSince(func(share storage.CalendarShare) bool { return share.SharedWithUserID == userID }, since)
}

func (s *Storage) sharesChangedSince(match func(storage.CalendarShare) bool, since *time.Time) ([]storage.CalendarShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shares := make([]storage.CalendarShare, 0)
	for _, share := range s.shares {
		if match(share) && changedSince(share.UpdatedAt, since) && tombstoneVisible(share.DeletedAt, since) {
			shares = append(shares, share)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares, nil
}

func (s *Storage) GetSharedEventsChangedSince(_ context.Context, ownerID int, categoryIDs []int, since *time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inScope := make(map[int]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		inScope[id] = struct{}{}
	}
	accepted := s.acceptedEventIDs(ownerID)

	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if !changedSince(e.UpdatedAt, since) || !tombstoneVisible(e.DeletedAt, since) {
			continue
		}
		switch {
		case e.OwnerID == ownerID:
			if e.CategoryID == nil {
				continue
			}
			if _, ok := inScope[*e.CategoryID]; !ok {
				continue
			}
		default:
			if _, ok := accepted[e.ID]; !ok {
				continue
			}
		}
		events = append(events, e)
	}
	sortEvents(events)
	return events, nil
}

func (s *Storage) GetSharedDeadlinesChangedSince(_ context.Context, ownerID int, categoryIDs []int, since *time.Time) ([]storage.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inScope := make(map[int]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		inScope[id] = struct{}{}
	}
	deadlines := make([]storage.Deadline, 0)
	for _, d := range s.deadlines {
		if d.OwnerID != ownerID || !changedSince(d.UpdatedAt, since) || !tombstoneVisible(d.DeletedAt, since) {
			continue
		}
		if _, ok := inScope[d.CategoryID]; !ok {
			continue
		}
		deadlines = append(deadlines, d)
	}
	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].DueDate.Before(deadlines[j].DueDate) })
	return deadlines, nil
}

func (s *Storage) GetSharesExpiredBetween(_ context.Context, from, to time.Time) ([]storage.CalendarShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shares := make([]storage.CalendarShare, 0)
	for _, share := range s.shares {
		if share.DeletedAt != nil || share.ExpiresAt == nil {
			continue
		}
		if share.ExpiresAt.After(from) && !share.ExpiresAt.After(to) {
			shares = append(shares, share)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares, nil
}

// --- helpers -------------------------------------------------------------

func eventMayIntersect(e storage.Event, from, to time.Time) bool {
	if e.Recurring() {
		// The rule anchors at StartTime; anything starting before `to`
		// may still generate occurrences in range. Precise clipping is
		// the expander's job.
		return e.StartTime.Before(to)
	}
	return e.StartTime.Before(to) && e.EndTime.After(from)
}

func sortEvents(events []storage.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
}
