package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daycal/calendar/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const (
	eventColumns = "event_id, owner_id, category_id, title, description, start_time, end_time, " +
		"location, rrule, created_at, updated_at, deleted_at"
	deadlineColumns = "deadline_id, owner_id, category_id, title, description, due_date, priority, " +
		"workload_magnitude, workload_unit, created_at, updated_at, deleted_at"
	shareColumns = "share_id, owner_id, shared_with_user_id, message, privacy_level, expires_at, " +
		"created_at, updated_at, deleted_at"
)

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) GetEventsForRange(ctx context.Context, ownerID int, from, to time.Time) ([]storage.Event, error) {
	var events []storage.Event
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT "+eventColumns+" FROM events "+
			"WHERE owner_id=$1 AND deleted_at IS NULL AND start_time < $3 "+
			"AND (rrule IS NOT NULL OR end_time > $2) "+
			"ORDER BY start_time, event_id",
		ownerID, from.UTC(), to.UTC(),
	)
	return events, err
}

func (s *Storage) GetInvitedEventsForRange(ctx context.Context, userID int, from, to time.Time) ([]storage.Event, error) {
	var events []storage.Event
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT e.event_id, e.owner_id, e.category_id, e.title, e.description, e.start_time, e.end_time, "+
			"e.location, e.rrule, e.created_at, e.updated_at, e.deleted_at "+
			"FROM events e "+
			"JOIN event_invitations ei ON ei.event_id = e.event_id "+
			"WHERE ei.invited_user_id=$1 AND ei.status='accepted' AND ei.deleted_at IS NULL "+
			"AND e.owner_id <> $1 AND e.deleted_at IS NULL AND e.start_time < $3 "+
			"AND (e.rrule IS NOT NULL OR e.end_time > $2) "+
			"ORDER BY e.start_time, e.event_id",
		userID, from.UTC(), to.UTC(),
	)
	return events, err
}

func (s *Storage) GetEventExceptions(ctx context.Context, eventID int) ([]storage.EventException, error) {
	var exceptions []storage.EventException
	err := s.db.SelectContext(
		ctx,
		&exceptions,
		"SELECT exception_id, event_id, original_occurrence_time, is_deleted, title, description, "+
			"start_time, end_time, location, created_at, updated_at, deleted_at "+
			"FROM event_exceptions WHERE event_id=$1 AND deleted_at IS NULL "+
			"ORDER BY original_occurrence_time",
		eventID,
	)
	return exceptions, err
}

func (s *Storage) GetDeadlinesForRange(ctx context.Context, ownerID int, from, to time.Time) ([]storage.Deadline, error) {
	var deadlines []storage.Deadline
	err := s.db.SelectContext(
		ctx,
		&deadlines,
		"SELECT "+deadlineColumns+" FROM deadlines "+
			"WHERE owner_id=$1 AND deleted_at IS NULL AND due_date >= $2 AND due_date < $3 "+
			"ORDER BY due_date, deadline_id",
		ownerID, from.UTC(), to.UTC(),
	)
	return deadlines, err
}

func (s *Storage) GetShare(ctx context.Context, shareID int) (storage.CalendarShare, error) {
	var share storage.CalendarShare
	err := s.db.GetContext(
		ctx,
		&share,
		"SELECT "+shareColumns+" FROM calendar_shares WHERE share_id=$1",
		shareID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return share, fmt.Errorf("share %d: %w", shareID, storage.ErrNotFoundShare)
	}
	return share, err
}

func (s *Storage) GetOpenShareByPublicID(ctx context.Context, publicID string) (storage.OpenCalendarShare, error) {
	var share storage.OpenCalendarShare
	err := s.db.GetContext(
		ctx,
		&share,
		"SELECT open_share_id, public_id, owner_id, message, privacy_level, expires_at, "+
			"created_at, updated_at, deleted_at "+
			"FROM open_calendar_shares WHERE public_id=$1",
		publicID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return share, fmt.Errorf("open share %q: %w", publicID, storage.ErrNotFoundShare)
	}
	return share, err
}

func (s *Storage) GetShareCategoryIDs(ctx context.Context, shareID int) ([]int, error) {
	var ids []int
	err := s.db.SelectContext(
		ctx,
		&ids,
		"SELECT category_id FROM calendar_share_categories WHERE share_id=$1 ORDER BY category_id",
		shareID,
	)
	return ids, err
}

func (s *Storage) GetOpenShareCategoryIDs(ctx context.Context, openShareID int) ([]int, error) {
	var ids []int
	err := s.db.SelectContext(
		ctx,
		&ids,
		"SELECT category_id FROM open_calendar_share_categories WHERE open_share_id=$1 ORDER BY category_id",
		openShareID,
	)
	return ids, err
}

// ReplaceShareCategories swaps the category scope in one transaction so
// concurrent readers never observe a half-updated set.
func (s *Storage) ReplaceShareCategories(ctx context.Context, shareID int, categoryIDs []int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace categories: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var found bool
	err = tx.GetContext(ctx, &found,
		"UPDATE calendar_shares SET updated_at=NOW() WHERE share_id=$1 AND deleted_at IS NULL RETURNING TRUE",
		shareID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("share %d: %w", shareID, storage.ErrNotFoundShare)
	}
	if err != nil {
		return fmt.Errorf("update share: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM calendar_share_categories WHERE share_id=$1", shareID); err != nil {
		return fmt.Errorf("clear share categories: %w", err)
	}
	for _, categoryID := range categoryIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO calendar_share_categories(share_id, category_id) VALUES($1, $2)",
			shareID, categoryID); err != nil {
			return fmt.Errorf("insert share category %d: %w", categoryID, err)
		}
	}
	return tx.Commit()
}

const sinceFilter = "($2::TIMESTAMPTZ IS NULL OR updated_at > $2)"

// Rows deleted at-or-before `since` are omitted; later tombstones are
// returned so the client drops its local copy.
const tombstoneFilter = "(deleted_at IS NULL OR $2::TIMESTAMPTZ IS NULL OR deleted_at > $2)"

func (s *Storage) GetCategoriesChangedSince(ctx context.Context, ownerID int, since *time.Time) ([]storage.Category, error) {
	var categories []storage.Category
	err := s.db.SelectContext(
		ctx,
		&categories,
		"SELECT category_id, owner_id, name, color, is_visible, created_at, updated_at, deleted_at "+
			"FROM categories WHERE owner_id=$1 AND "+sinceFilter+" AND "+tombstoneFilter+
			" ORDER BY category_id",
		ownerID, since,
	)
	return categories, err
}

func (s *Storage) GetDeadlinesChangedSince(ctx context.Context, ownerID int, since *time.Time) ([]storage.Deadline, error) {
	var deadlines []storage.Deadline
	err := s.db.SelectContext(
		ctx,
		&deadlines,
		"SELECT "+deadlineColumns+" FROM deadlines "+
			"WHERE owner_id=$1 AND "+sinceFilter+" AND "+tombstoneFilter+
			" ORDER BY deadline_id",
		ownerID, since,
	)
	return deadlines, err
}

// Owned events changed since `since`, plus events the user attends through
// an accepted invitation when either the event row or the invitation row
// changed. Only event-row content is returned; invitation rows travel in
// their own change list.
func (s *Storage) GetEventsChangedSince(ctx context.Context, userID int, since *time.Time) ([]storage.Event, error) {
	var events []storage.Event
	err := s.db.SelectContext(
		ctx,
		&events,
		"WITH relevant AS ("+
			"SELECT event_id FROM events WHERE owner_id=$1 AND ($2::TIMESTAMPTZ IS NULL OR updated_at > $2) "+
			"UNION "+
			"SELECT event_id FROM event_invitations "+
			"WHERE invited_user_id=$1 AND status='accepted' AND ($2::TIMESTAMPTZ IS NULL OR updated_at > $2) "+
			"UNION "+
			"SELECT ei.event_id FROM event_invitations ei JOIN events e ON e.event_id = ei.event_id "+
			"WHERE ei.invited_user_id=$1 AND ei.status='accepted' AND ($2::TIMESTAMPTZ IS NULL OR e.updated_at > $2)"+
			") "+
			"SELECT e.event_id, e.owner_id, e.category_id, e.title, e.description, e.start_time, e.end_time, "+
			"e.location, e.rrule, e.created_at, e.updated_at, e.deleted_at "+
			"FROM events e JOIN relevant r ON r.event_id = e.event_id "+
			"WHERE (e.deleted_at IS NULL OR $2::TIMESTAMPTZ IS NULL OR e.deleted_at > $2) "+
			"ORDER BY e.start_time, e.event_id",
		userID, since,
	)
	return events, err
}

func (s *Storage) GetInvitationsChangedSince(ctx context.Context, userID int, since *time.Time) ([]storage.EventInvitation, error) {
	var invitations []storage.EventInvitation
	err := s.db.SelectContext(
		ctx,
		&invitations,
		"SELECT invitation_id, event_id, owner_id, invited_user_id, status, created_at, updated_at, deleted_at "+
			"FROM event_invitations WHERE invited_user_id=$1 AND "+sinceFilter+" AND "+tombstoneFilter+
			" ORDER BY invitation_id",
		userID, since,
	)
	return invitations, err
}

func (s *Storage) GetSharesCreatedChangedSince(ctx context.Context, ownerID int, since *time.Time) ([]storage.CalendarShare, error) {
	return s.sharesChangedSince(ctx, "owner_id", ownerID, since)
}

func (s *Storage) GetSharesReceivedChangedSince(ctx context.Context, userID int, since *time.Time) ([]storage.CalendarShare, error) {
	return s.sharesChangedSince(ctx, "shared_with_user_id", userID, since)
}

func (s *Storage) sharesChangedSince(ctx context.Context, column string, userID int, since *time.Time) ([]storage.CalendarShare, error) {
	var shares []storage.CalendarShare
	err := s.db.SelectContext(
		ctx,
		&shares,
		"SELECT "+shareColumns+" FROM calendar_shares "+
			"WHERE "+column+"=$1 AND "+sinceFilter+" AND "+tombstoneFilter+
			" ORDER BY share_id",
		userID, since,
	)
	return shares, err
}

func (s *Storage) GetSharedEventsChangedSince(ctx context.Context, ownerID int, categoryIDs []int, since *time.Time) ([]storage.Event, error) {
	var events []storage.Event
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT e.event_id, e.owner_id, e.category_id, e.title, e.description, e.start_time, e.end_time, "+
			"e.location, e.rrule, e.created_at, e.updated_at, e.deleted_at "+
			"FROM events e "+
			"WHERE ($3::TIMESTAMPTZ IS NULL OR e.updated_at > $3) "+
			"AND (e.deleted_at IS NULL OR $3::TIMESTAMPTZ IS NULL OR e.deleted_at > $3) "+
			"AND ("+
			"(e.owner_id=$1 AND e.category_id = ANY($2)) "+
			"OR (e.owner_id <> $1 AND e.event_id IN ("+
			"SELECT event_id FROM event_invitations "+
			"WHERE invited_user_id=$1 AND status='accepted' AND deleted_at IS NULL))"+
			") ORDER BY e.start_time, e.event_id",
		ownerID, pq.Array(categoryIDs), since,
	)
	return events, err
}

func (s *Storage) GetSharedDeadlinesChangedSince(ctx context.Context, ownerID int, categoryIDs []int, since *time.Time) ([]storage.Deadline, error) {
	var deadlines []storage.Deadline
	err := s.db.SelectContext(
		ctx,
		&deadlines,
		"SELECT "+deadlineColumns+" FROM deadlines "+
			"WHERE owner_id=$1 AND category_id = ANY($2) "+
			"AND ($3::TIMESTAMPTZ IS NULL OR updated_at > $3) "+
			"AND (deleted_at IS NULL OR $3::TIMESTAMPTZ IS NULL OR deleted_at > $3) "+
			"ORDER BY due_date, deadline_id",
		ownerID, pq.Array(categoryIDs), since,
	)
	return deadlines, err
}

func (s *Storage) GetSharesExpiredBetween(ctx context.Context, from, to time.Time) ([]storage.CalendarShare, error) {
	var shares []storage.CalendarShare
	err := s.db.SelectContext(
		ctx,
		&shares,
		"SELECT "+shareColumns+" FROM calendar_shares "+
			"WHERE deleted_at IS NULL AND expires_at > $1 AND expires_at <= $2 "+
			"ORDER BY share_id",
		from.UTC(), to.UTC(),
	)
	return shares, err
}
