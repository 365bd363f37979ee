package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/daycal/calendar/internal/app"
	"github.com/daycal/calendar/internal/projection"
	"github.com/daycal/calendar/internal/storage"
	memorystorage "github.com/daycal/calendar/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int              { return &n }
func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

var (
	rangeFrom = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC) // monday
	rangeTo   = time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
)

// fixture: owner 1 has a weekly recurring event in category 3 (one
// occurrence cancelled), a single event in category 4, a deadline in
// category 3, and attends event 30 of user 2 through an accepted
// invitation. Share 1 exposes category 3 to user 5.
func seedApp(t *testing.T) (*app.App, *memorystorage.Storage) {
	t.Helper()
	st := memorystorage.New()

	require.NoError(t, st.AddEvent(&storage.Event{
		ID: 10, OwnerID: 1, CategoryID: intPtr(3), Title: "daily standup",
		Description: strPtr("15 minutes"),
		StartTime:   time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 5, 6, 10, 15, 0, 0, time.UTC),
		RRule:       strPtr("FREQ=DAILY;COUNT=5"),
	}))
	require.NoError(t, st.AddException(&storage.EventException{
		ID: 1, EventID: 10, IsDeleted: true,
		OriginalOccurrenceTime: time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, st.AddEvent(&storage.Event{
		ID: 20, OwnerID: 1, CategoryID: intPtr(4), Title: "dentist",
		StartTime: time.Date(2024, 5, 7, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 5, 7, 15, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, st.AddEvent(&storage.Event{
		ID: 30, OwnerID: 2, CategoryID: intPtr(9), Title: "joint retro",
		StartTime: time.Date(2024, 5, 10, 16, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, st.AddInvitation(&storage.EventInvitation{
		ID: 1, EventID: 30, OwnerID: 2, InvitedUserID: 1,
		Status: storage.InvitationAccepted,
	}))
	require.NoError(t, st.AddDeadline(&storage.Deadline{
		ID: 1, OwnerID: 1, CategoryID: 3, Title: "submit figures",
		DueDate:  time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC),
		Priority: storage.PriorityImportant,
	}))
	require.NoError(t, st.AddShare(&storage.CalendarShare{
		ID: 1, OwnerID: 1, SharedWithUserID: 5, PrivacyLevel: storage.PrivacyFull,
	}, []int{3}))

	return app.New(st), st
}

func TestGetCalendarOccurrences(t *testing.T) {
	a, _ := seedApp(t)

	occs, err := a.GetCalendarOccurrences(context.Background(), 1, rangeFrom, rangeTo)
	require.NoError(t, err)

	// 5 daily occurrences minus 1 cancelled, plus the single event.
	require.Len(t, occs, 5)
	for i := 1; i < len(occs); i++ {
		require.False(t, occs[i].StartTime.Before(occs[i-1].StartTime), "sorted by start")
	}
	for _, occ := range occs {
		if occ.EventID == 10 {
			require.NotNil(t, occ.OriginalOccurrenceTime)
			require.False(t, occ.OriginalOccurrenceTime.Equal(
				time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)), "cancelled occurrence excluded")
		}
	}
}

func TestGetSharedCalendar(t *testing.T) {
	ctx := context.Background()

	t.Run("scoped view for designated viewer", func(t *testing.T) {
		a, _ := seedApp(t)
		view, err := a.GetSharedCalendar(ctx, 5, 1, rangeFrom, rangeTo)
		require.NoError(t, err)

		// Category 3 occurrences (4 after cancellation) plus the foreign
		// accepted event; the category-4 event stays private.
		require.Len(t, view.Events, 5)
		for _, e := range view.Events {
			require.NotEqual(t, 20, e.EventID)
		}
		require.Len(t, view.Deadlines, 1)
		require.Equal(t, "submit figures", view.Deadlines[0].Title)
	})

	t.Run("limited share shows busy blocks only", func(t *testing.T) {
		a, st := seedApp(t)
		require.NoError(t, st.AddShare(&storage.CalendarShare{
			ID: 2, OwnerID: 1, SharedWithUserID: 5, PrivacyLevel: storage.PrivacyLimited,
		}, []int{3}))

		view, err := a.GetSharedCalendar(ctx, 5, 2, rangeFrom, rangeTo)
		require.NoError(t, err)
		require.NotEmpty(t, view.Events)
		for _, e := range view.Events {
			require.Equal(t, "Busy", e.Title)
			require.Nil(t, e.Description)
			require.Nil(t, e.CategoryID)
		}
		require.Equal(t, "Deadline", view.Deadlines[0].Title)
	})

	t.Run("denials are uniform", func(t *testing.T) {
		a, st := seedApp(t)
		require.NoError(t, st.AddShare(&storage.CalendarShare{
			ID: 3, OwnerID: 1, SharedWithUserID: 5, PrivacyLevel: storage.PrivacyFull,
			ExpiresAt: timePtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		}, []int{3}))

		for name, shareID := range map[string]int{"unknown": 99, "expired": 3} {
			_, err := a.GetSharedCalendar(ctx, 5, shareID, rangeFrom, rangeTo)
			require.ErrorIs(t, err, projection.ErrShareNotFound, name)
		}
		_, err := a.GetSharedCalendar(ctx, 6, 1, rangeFrom, rangeTo)
		require.ErrorIs(t, err, projection.ErrShareNotFound, "foreign viewer")
	})
}

func TestGetOpenSharedCalendar(t *testing.T) {
	ctx := context.Background()
	a, st := seedApp(t)

	open := &storage.OpenCalendarShare{ID: 1, OwnerID: 1, PrivacyLevel: storage.PrivacyLimited}
	require.NoError(t, st.AddOpenShare(open, []int{3}))

	view, err := a.GetOpenSharedCalendar(ctx, open.PublicID, rangeFrom, rangeTo)
	require.NoError(t, err)

	// 4 surviving recurring occurrences, all redacted; the foreign accepted
	// event never reaches anonymous viewers.
	require.Len(t, view.Events, 4)
	for _, e := range view.Events {
		require.Equal(t, "Busy", e.Title)
		require.NotEqual(t, 30, e.EventID)
	}

	_, err = a.GetOpenSharedCalendar(ctx, "bad-token", rangeFrom, rangeTo)
	require.ErrorIs(t, err, projection.ErrShareNotFound)
}

func TestUpdateShareCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("owner replaces scope", func(t *testing.T) {
		a, st := seedApp(t)
		require.NoError(t, a.UpdateShareCategories(ctx, 1, 1, []int{4}))
		ids, err := st.GetShareCategoryIDs(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []int{4}, ids)
	})

	t.Run("non-owner cannot", func(t *testing.T) {
		a, _ := seedApp(t)
		err := a.UpdateShareCategories(ctx, 5, 1, []int{4})
		require.ErrorIs(t, err, projection.ErrShareNotFound)
	})

	t.Run("revoked share behaves as missing", func(t *testing.T) {
		a, st := seedApp(t)
		require.NoError(t, st.AddShare(&storage.CalendarShare{
			ID: 2, OwnerID: 1, SharedWithUserID: 5, PrivacyLevel: storage.PrivacyFull,
			DeletedAt: timePtr(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
		}, []int{3}))
		err := a.UpdateShareCategories(ctx, 1, 2, []int{4})
		require.ErrorIs(t, err, projection.ErrShareNotFound)
	})
}

func TestSyncPassThrough(t *testing.T) {
	a, _ := seedApp(t)
	ctx := context.Background()

	owned, err := a.SyncOwned(ctx, 1, nil)
	require.NoError(t, err)
	require.NotEmpty(t, owned.Events)

	shared, err := a.SyncShared(ctx, 5, 1, nil)
	require.NoError(t, err)
	require.NotNil(t, shared.ShareInfo)
}
