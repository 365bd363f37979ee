package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daycal/calendar/internal/projection"
	"github.com/daycal/calendar/internal/storage"
)

// ErrInvalidSince marks an unparseable `since` parameter; distinct from an
// absent one, which requests a full snapshot.
var ErrInvalidSince = errors.New("invalid since timestamp")

// ParseSince parses the client's high-water mark. Empty input means
// bootstrap (full snapshot) and yields nil.
func ParseSince(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSince, s)
	}
	utc := t.UTC()
	return &utc, nil
}

// OwnedResult is the per-entity-kind change set for one principal.
// SyncTimestamp is captured once per call and is safe to persist as the
// next `since`: writes racing the reads simply reappear next cycle.
type OwnedResult struct {
	Categories          []storage.Category        `json:"categories"`
	Deadlines           []storage.Deadline        `json:"deadlines"`
	Events              []storage.Event           `json:"events"`
	ReceivedInvitations []storage.EventInvitation `json:"receivedInvitations"`
	SharesCreated       []ShareItem               `json:"sharesCreated"`
	SharesReceived      []ShareItem               `json:"sharesReceived"`
	SyncTimestamp       time.Time                 `json:"syncTimestamp"`
}

// ShareItem is a share row together with its current category scope.
type ShareItem struct {
	storage.CalendarShare
	SharedCategoryIDs []int `json:"sharedCategoryIds"`
}

// SharedResult is the change set for one shared-calendar view. ShareInfo is
// present when the share row itself changed (including revocation
// tombstones) or when items changed.
type SharedResult struct {
	ShareInfo     *storage.CalendarShare      `json:"shareInfo,omitempty"`
	Events        []projection.SharedEvent    `json:"events"`
	Deadlines     []projection.SharedDeadline `json:"deadlines"`
	SyncTimestamp time.Time                   `json:"syncTimestamp"`
}

// Coordinator computes incremental sync results. Each entity kind is
// queried independently against the same approximate instant; the protocol
// is idempotent and convergent, so cross-entity transactional consistency
// is not required and clients must tolerate at-least-once delivery.
type Coordinator struct {
	storage storage.Storage
	now     func() time.Time
}

func New(s storage.Storage) *Coordinator {
	return &Coordinator{storage: s, now: time.Now}
}

// SyncOwned returns everything of the principal's that changed strictly
// after `since`: owned rows, invitations received, shares in both
// directions, and events visible through accepted invitations (included
// when either the event row or the invitation row changed).
func (c *Coordinator) SyncOwned(ctx context.Context, userID int, since *time.Time) (OwnedResult, error) {
	now := c.now().UTC()
	result := OwnedResult{SyncTimestamp: now}

	categories, err := c.storage.GetCategoriesChangedSince(ctx, userID, since)
	if err != nil {
		return result, fmt.Errorf("sync categories: %w", err)
	}
	deadlines, err := c.storage.GetDeadlinesChangedSince(ctx, userID, since)
	if err != nil {
		return result, fmt.Errorf("sync deadlines: %w", err)
	}
	events, err := c.storage.GetEventsChangedSince(ctx, userID, since)
	if err != nil {
		return result, fmt.Errorf("sync events: %w", err)
	}
	invitations, err := c.storage.GetInvitationsChangedSince(ctx, userID, since)
	if err != nil {
		return result, fmt.Errorf("sync invitations: %w", err)
	}
	created, err := c.storage.GetSharesCreatedChangedSince(ctx, userID, since)
	if err != nil {
		return result, fmt.Errorf("sync shares created: %w", err)
	}
	received, err := c.storage.GetSharesReceivedChangedSince(ctx, userID, since)
	if err != nil {
		return result, fmt.Errorf("sync shares received: %w", err)
	}

	result.Categories = emptyIfNil(categories)
	result.Deadlines = emptyIfNil(deadlines)
	result.Events = emptyIfNil(events)
	result.ReceivedInvitations = emptyIfNil(invitations)
	if result.SharesCreated, err = c.shareItems(ctx, created); err != nil {
		return result, err
	}
	if result.SharesReceived, err = c.shareItems(ctx, received); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Coordinator) shareItems(ctx context.Context, shares []storage.CalendarShare) ([]ShareItem, error) {
	items := make([]ShareItem, 0, len(shares))
	for _, share := range shares {
		ids, err := c.storage.GetShareCategoryIDs(ctx, share.ID)
		if err != nil {
			return nil, fmt.Errorf("sync share %d categories: %w", share.ID, err)
		}
		items = append(items, ShareItem{CalendarShare: share, SharedCategoryIDs: emptyIfNil(ids)})
	}
	return items, nil
}

// SyncShared computes the delta for one shared-calendar view.
//
// Two short-circuits before item fetching:
//   - share expired at-or-before `since`: the client already knows access
//     was lost; return at most a share-metadata update.
//   - share revoked after `since`: return the metadata tombstone with empty
//     item arrays so the client infers revocation without item diffs.
//
// An unknown or foreign share id yields the same empty result as a share
// revoked before `since`.
func (c *Coordinator) SyncShared(ctx context.Context, viewerID, shareID int, since *time.Time) (SharedResult, error) {
	now := c.now().UTC()
	empty := SharedResult{
		Events:        []projection.SharedEvent{},
		Deadlines:     []projection.SharedDeadline{},
		SyncTimestamp: now,
	}

	share, err := c.storage.GetShare(ctx, shareID)
	if errors.Is(err, storage.ErrNotFoundShare) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("sync share: %w", err)
	}
	if share.SharedWithUserID != viewerID {
		return empty, nil
	}

	if share.ExpiresAt != nil {
		expiredBeforeSince := since != nil && !share.ExpiresAt.After(*since)
		expiredNowOnBootstrap := since == nil && now.After(*share.ExpiresAt)
		if expiredBeforeSince || expiredNowOnBootstrap {
			return c.shareMetadataOnly(share, since, empty), nil
		}
	}

	if share.DeletedAt != nil {
		if since != nil && share.DeletedAt.After(*since) {
			result := empty
			result.ShareInfo = &share
			return result, nil
		}
		return empty, nil
	}

	categoryIDs, err := c.storage.GetShareCategoryIDs(ctx, share.ID)
	if err != nil {
		return empty, fmt.Errorf("sync share categories: %w", err)
	}
	events, err := c.storage.GetSharedEventsChangedSince(ctx, share.OwnerID, categoryIDs, since)
	if err != nil {
		return empty, fmt.Errorf("sync shared events: %w", err)
	}
	deadlines, err := c.storage.GetSharedDeadlinesChangedSince(ctx, share.OwnerID, categoryIDs, since)
	if err != nil {
		return empty, fmt.Errorf("sync shared deadlines: %w", err)
	}

	result := empty
	for _, e := range events {
		result.Events = append(result.Events, projection.RedactEvent(projection.EventRowItem(e), share.PrivacyLevel))
	}
	for _, d := range deadlines {
		result.Deadlines = append(result.Deadlines, projection.RedactDeadline(projection.DeadlineRowItem(d), share.PrivacyLevel))
	}

	shareChanged := since == nil || share.UpdatedAt.After(*since)
	if shareChanged || len(result.Events) > 0 || len(result.Deadlines) > 0 {
		result.ShareInfo = &share
	}
	return result, nil
}

// shareMetadataOnly reports a possible share-row update (revocation, expiry
// bump) without item-level diffs.
func (c *Coordinator) shareMetadataOnly(share storage.CalendarShare, since *time.Time, empty SharedResult) SharedResult {
	if since == nil || share.UpdatedAt.After(*since) {
		result := empty
		result.ShareInfo = &share
		return result
	}
	return empty
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
