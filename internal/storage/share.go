package storage

import (
	"time"

	"github.com/google/uuid"
)

// CalendarShare grants one specific user a view of the owner's calendar,
// scoped to a set of categories. Shares are never physically deleted;
// revocation sets DeletedAt.
type CalendarShare struct {
	ID               int          `db:"share_id" json:"shareId"`
	OwnerID          int          `db:"owner_id" json:"ownerId"`
	SharedWithUserID int          `db:"shared_with_user_id" json:"sharedWithUserId"`
	Message          *string      `db:"message" json:"message,omitempty"`
	PrivacyLevel     PrivacyLevel `db:"privacy_level" json:"privacyLevel"`
	ExpiresAt        *time.Time   `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
	DeletedAt        *time.Time   `db:"deleted_at" json:"deletedAt,omitempty"`
}

// NewPublicID mints the unguessable identifier an open share is resolved
// by.
func NewPublicID() string {
	return uuid.NewString()
}

// OpenCalendarShare is the public variant: resolved by an unguessable
// PublicID instead of a designated viewer.
type OpenCalendarShare struct {
	ID           int          `db:"open_share_id" json:"openShareId"`
	PublicID     string       `db:"public_id" json:"publicId"`
	OwnerID      int          `db:"owner_id" json:"ownerId"`
	Message      *string      `db:"message" json:"message,omitempty"`
	PrivacyLevel PrivacyLevel `db:"privacy_level" json:"privacyLevel"`
	ExpiresAt    *time.Time   `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
	DeletedAt    *time.Time   `db:"deleted_at" json:"deletedAt,omitempty"`
}

type EventInvitation struct {
	ID            int              `db:"invitation_id" json:"invitationId"`
	EventID       int              `db:"event_id" json:"eventId"`
	OwnerID       int              `db:"owner_id" json:"ownerId"`
	InvitedUserID int              `db:"invited_user_id" json:"invitedUserId"`
	Status        InvitationStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
	DeletedAt     *time.Time       `db:"deleted_at" json:"deletedAt,omitempty"`
}
