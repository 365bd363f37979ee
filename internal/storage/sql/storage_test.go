//go:build sql

package sqlstorage_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/daycal/calendar/internal/storage"
	sqlstorage "github.com/daycal/calendar/internal/storage/sql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var (
	host     = "127.0.0.1"
	port     = 5532
	database = "testing"
	username = "postgres"
	password = "pas"
)

func TestMain(m *testing.M) {
	if pgHost := os.Getenv("POSTGRES_HOST"); pgHost != "" {
		host = pgHost
	}
	if pgPort := os.Getenv("POSTGRES_PORT"); pgPort != "" {
		port, _ = strconv.Atoi(pgPort)
	}

	cleanupDb()
	os.Exit(m.Run())
}

func TestShareQueries(t *testing.T) {
	s, db := createStorage(t)
	ctx := context.Background()
	seedTime := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mustExec(t, db, "INSERT INTO categories(category_id, owner_id, name, color, created_at, updated_at) "+
		"VALUES (1, 10, 'work', '#336699', $1, $1), (2, 10, 'home', '#996633', $1, $1)", seedTime)
	mustExec(t, db, "INSERT INTO calendar_shares(share_id, owner_id, shared_with_user_id, privacy_level, created_at, updated_at) "+
		"VALUES (1, 10, 20, 'full', $1, $1)", seedTime)
	mustExec(t, db, "INSERT INTO calendar_share_categories(share_id, category_id) VALUES (1, 1)")

	t.Run("get share", func(t *testing.T) {
		share, err := s.GetShare(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, 10, share.OwnerID)
		require.Equal(t, 20, share.SharedWithUserID)
		require.Equal(t, storage.PrivacyFull, share.PrivacyLevel)

		ids, err := s.GetShareCategoryIDs(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []int{1}, ids)
	})

	t.Run("unknown share", func(t *testing.T) {
		_, err := s.GetShare(ctx, 99)
		require.ErrorIs(t, err, storage.ErrNotFoundShare)
	})

	t.Run("replace categories", func(t *testing.T) {
		before, err := s.GetShare(ctx, 1)
		require.NoError(t, err)

		require.NoError(t, s.ReplaceShareCategories(ctx, 1, []int{2}))

		ids, err := s.GetShareCategoryIDs(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []int{2}, ids)

		after, err := s.GetShare(ctx, 1)
		require.NoError(t, err)
		require.True(t, after.UpdatedAt.After(before.UpdatedAt))
	})

	t.Run("replace on unknown share", func(t *testing.T) {
		require.ErrorIs(t, s.ReplaceShareCategories(ctx, 99, []int{1}), storage.ErrNotFoundShare)
	})
}

func TestSharedEventsChangedSince(t *testing.T) {
	s, db := createStorage(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	mustExec(t, db, "INSERT INTO categories(category_id, owner_id, name, color, created_at, updated_at) "+
		"VALUES (1, 10, 'work', '#336699', $1, $1), (2, 10, 'home', '#996633', $1, $1)", t0)
	mustExec(t, db, "INSERT INTO events(event_id, owner_id, category_id, title, start_time, end_time, created_at, updated_at) VALUES "+
		"(1, 10, 1, 'in scope', '2024-05-06T10:00Z', '2024-05-06T11:00Z', $1, $2), "+
		"(2, 10, 2, 'out of scope', '2024-05-06T12:00Z', '2024-05-06T13:00Z', $1, $2), "+
		"(3, 10, 1, 'too old', '2024-05-06T14:00Z', '2024-05-06T15:00Z', $1, $1), "+
		"(4, 99, NULL, 'foreign accepted', '2024-05-06T16:00Z', '2024-05-06T17:00Z', $1, $2)", t0, t1)
	mustExec(t, db, "INSERT INTO event_invitations(invitation_id, event_id, owner_id, invited_user_id, status, created_at, updated_at) "+
		"VALUES (1, 4, 99, 10, 'accepted', $1, $1)", t0)

	events, err := s.GetSharedEventsChangedSince(ctx, 10, []int{1}, &t0)
	require.NoError(t, err)

	ids := make([]int, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	require.ElementsMatch(t, []int{1, 4}, ids)
}

func TestSharesExpiredBetween(t *testing.T) {
	s, db := createStorage(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	mustExec(t, db, "INSERT INTO calendar_shares(share_id, owner_id, shared_with_user_id, privacy_level, expires_at, created_at, updated_at, deleted_at) VALUES "+
		"(1, 10, 20, 'full', '2024-06-01T12:00Z', $1, $1, NULL), "+
		"(2, 10, 20, 'full', '2024-06-01T00:00Z', $1, $1, NULL), "+ // at `from`: excluded
		"(3, 10, 20, 'full', '2024-06-03T00:00Z', $1, $1, NULL), "+
		"(4, 10, 20, 'full', NULL, $1, $1, NULL), "+
		"(5, 10, 20, 'full', '2024-06-01T12:00Z', $1, $1, '2024-05-20T00:00Z')", t0)

	shares, err := s.GetSharesExpiredBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.Equal(t, 1, shares[0].ID)
}

func mustExec(t *testing.T, db *sqlx.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func connect() (*sqlx.DB, error) {
	return sqlx.Connect(
		"postgres",
		fmt.Sprintf("sslmode=disable host=%s port=%d dbname=%s user=%s password=%s", host, port, database, username, password),
	)
}

func cleanupDb() error {
	db, err := connect()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("TRUNCATE TABLE event_invitations, open_calendar_share_categories, open_calendar_shares, " +
		"calendar_share_categories, calendar_shares, deadlines, event_exceptions, events, categories")
	return err
}

func createStorage(t *testing.T) (*sqlstorage.Storage, *sqlx.DB) {
	t.Helper()
	s := sqlstorage.New(sqlstorage.Config{
		Host: host, Port: port, Database: database, Username: username, Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, s.Connect(ctx))

	db, err := connect()
	require.NoError(t, err)

	t.Cleanup(func() {
		defer cancel()
		s.Close(ctx)
		db.Close()
		require.NoError(t, cleanupDb())
	})
	return s, db
}
