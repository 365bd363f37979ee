package occurrence_test

import (
	"testing"
	"time"

	"github.com/daycal/calendar/internal/occurrence"
	"github.com/daycal/calendar/internal/storage"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

var (
	mergeRangeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mergeRangeEnd   = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func weeklyWindows(t *testing.T) []occurrence.Window {
	t.Helper()
	windows := occurrence.Expand(baseEvent("FREQ=WEEKLY;COUNT=5"), mergeRangeStart, mergeRangeEnd)
	require.Len(t, windows, 5)
	return windows
}

func TestMergePassThrough(t *testing.T) {
	windows := weeklyWindows(t)
	merged := occurrence.Merge(windows, nil, mergeRangeStart, mergeRangeEnd)
	require.Len(t, merged, 5)
	for i := range merged {
		require.True(t, merged[i].Start.Equal(windows[i].Start))
		require.True(t, merged[i].OriginalTime.Equal(windows[i].Start))
		require.Nil(t, merged[i].Exception)
	}
}

func TestMergeCancellation(t *testing.T) {
	windows := weeklyWindows(t)
	cancelled := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	exceptions := []storage.EventException{{
		ID:                     100,
		EventID:                1,
		OriginalOccurrenceTime: cancelled,
		IsDeleted:              true,
	}}

	merged := occurrence.Merge(windows, exceptions, mergeRangeStart, mergeRangeEnd)

	require.Len(t, merged, 4)
	for _, m := range merged {
		require.False(t, m.OriginalTime.Equal(cancelled), "cancelled occurrence must not survive")
	}
}

func TestMergeOverride(t *testing.T) {
	windows := weeklyWindows(t)
	anchor := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("moved within range", func(t *testing.T) {
		exceptions := []storage.EventException{{
			ID:                     101,
			EventID:                1,
			OriginalOccurrenceTime: anchor,
			StartTime:              timePtr(time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)),
			EndTime:                timePtr(time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC)),
		}}
		merged := occurrence.Merge(windows, exceptions, mergeRangeStart, mergeRangeEnd)
		require.Len(t, merged, 5)

		var moved *occurrence.Merged
		for i := range merged {
			if merged[i].OriginalTime.Equal(anchor) {
				moved = &merged[i]
			}
		}
		require.NotNil(t, moved)
		require.True(t, moved.Start.Equal(*exceptions[0].StartTime))
		require.True(t, moved.End.Equal(*exceptions[0].EndTime))
		require.NotNil(t, moved.Exception)
		require.Equal(t, 101, moved.Exception.ID)
	})

	t.Run("moved out of range", func(t *testing.T) {
		exceptions := []storage.EventException{{
			ID:                     102,
			EventID:                1,
			OriginalOccurrenceTime: anchor,
			StartTime:              timePtr(time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)),
			EndTime:                timePtr(time.Date(2024, 2, 3, 11, 0, 0, 0, time.UTC)),
		}}
		merged := occurrence.Merge(windows, exceptions, mergeRangeStart, mergeRangeEnd)
		require.Len(t, merged, 4)
		for _, m := range merged {
			require.False(t, m.OriginalTime.Equal(anchor))
		}
	})

	t.Run("order independent", func(t *testing.T) {
		cancel := storage.EventException{
			ID: 103, EventID: 1, IsDeleted: true,
			OriginalOccurrenceTime: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
		}
		move := storage.EventException{
			ID: 104, EventID: 1,
			OriginalOccurrenceTime: anchor,
			StartTime:              timePtr(time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)),
			EndTime:                timePtr(time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)),
		}
		a := occurrence.Merge(windows, []storage.EventException{cancel, move}, mergeRangeStart, mergeRangeEnd)
		b := occurrence.Merge(windows, []storage.EventException{move, cancel}, mergeRangeStart, mergeRangeEnd)
		require.Equal(t, a, b)
	})
}

func TestMergeOrphanExceptionIgnored(t *testing.T) {
	windows := weeklyWindows(t)
	exceptions := []storage.EventException{{
		ID:      105,
		EventID: 1,
		// No weekly occurrence falls on this time.
		OriginalOccurrenceTime: time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC),
		StartTime:              timePtr(time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)),
		EndTime:                timePtr(time.Date(2024, 1, 9, 13, 0, 0, 0, time.UTC)),
	}}

	merged := occurrence.Merge(windows, exceptions, mergeRangeStart, mergeRangeEnd)

	require.Len(t, merged, 5)
	for _, m := range merged {
		require.Nil(t, m.Exception)
	}
}

func TestAssembleOverrideFallback(t *testing.T) {
	e := baseEvent("FREQ=WEEKLY;COUNT=5")
	e.Description = strPtr("weekly team sync")
	e.Location = strPtr("room 4")

	anchor := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	exceptions := []storage.EventException{{
		ID:                     110,
		EventID:                e.ID,
		OriginalOccurrenceTime: anchor,
		Title:                  strPtr("standup (moved)"),
		StartTime:              timePtr(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)),
		EndTime:                timePtr(time.Date(2024, 1, 8, 13, 0, 0, 0, time.UTC)),
		// Description and location intentionally unset.
	}}

	occs := occurrence.ExpandEvent(e, exceptions, mergeRangeStart, mergeRangeEnd)
	require.Len(t, occs, 5)

	var modified *occurrence.Occurrence
	for i := range occs {
		require.NotNil(t, occs[i].OriginalOccurrenceTime)
		if occs[i].OriginalOccurrenceTime.Equal(anchor) {
			modified = &occs[i]
		} else {
			require.Nil(t, occs[i].ExceptionID)
			require.Equal(t, "standup", occs[i].Title)
		}
	}

	require.NotNil(t, modified)
	require.NotNil(t, modified.ExceptionID)
	require.Equal(t, 110, *modified.ExceptionID)
	require.Equal(t, "standup (moved)", modified.Title)
	require.True(t, modified.StartTime.Equal(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)))
	require.Equal(t, "weekly team sync", *modified.Description)
	require.Equal(t, "room 4", *modified.Location)
}

func TestAssembleNonRecurring(t *testing.T) {
	e := baseEvent("")
	occs := occurrence.ExpandEvent(e, nil, mergeRangeStart, mergeRangeEnd)
	require.Len(t, occs, 1)
	require.Nil(t, occs[0].OriginalOccurrenceTime, "single events carry no occurrence anchor")
	require.Nil(t, occs[0].ExceptionID)
}

func TestSortOccurrences(t *testing.T) {
	ts := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	occs := []occurrence.Occurrence{
		{EventID: 3, StartTime: ts.Add(time.Hour)},
		{EventID: 2, StartTime: ts},
		{EventID: 1, StartTime: ts},
	}
	occurrence.SortOccurrences(occs)
	require.Equal(t, 1, occs[0].EventID)
	require.Equal(t, 2, occs[1].EventID)
	require.Equal(t, 3, occs[2].EventID)
}
