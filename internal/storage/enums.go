package storage

// Closed enum types. Values match the database enum labels, so they map
// through sqlx and encoding/json without converters.

type PriorityLevel string

const (
	PriorityNormal    PriorityLevel = "normal"
	PriorityImportant PriorityLevel = "important"
	PriorityUrgent    PriorityLevel = "urgent"
)

func (p PriorityLevel) Valid() bool {
	switch p {
	case PriorityNormal, PriorityImportant, PriorityUrgent:
		return true
	}
	return false
}

type WorkloadUnit string

const (
	WorkloadMinutes WorkloadUnit = "minutes"
	WorkloadHours   WorkloadUnit = "hours"
	WorkloadDays    WorkloadUnit = "days"
)

func (w WorkloadUnit) Valid() bool {
	switch w {
	case WorkloadMinutes, WorkloadHours, WorkloadDays:
		return true
	}
	return false
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationMaybe    InvitationStatus = "maybe"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRejected, InvitationMaybe:
		return true
	}
	return false
}

type PrivacyLevel string

const (
	PrivacyFull    PrivacyLevel = "full"
	PrivacyLimited PrivacyLevel = "limited"
)

func (p PrivacyLevel) Valid() bool {
	return p == PrivacyFull || p == PrivacyLimited
}
