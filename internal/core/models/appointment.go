package models

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// Active reports whether the appointment still blocks its asset.
// Only pending and confirmed are non-terminal.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

// CanTransitionTo encodes the appointment state machine:
// pending -> confirmed -> completed, pending|confirmed -> cancelled,
// confirmed -> no_show. Store staff may complete a pending appointment
// directly when they verify the pickup in person.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case AppointmentPending:
		return next == AppointmentConfirmed || next == AppointmentCancelled || next == AppointmentCompleted
	case AppointmentConfirmed:
		return next == AppointmentCompleted || next == AppointmentCancelled || next == AppointmentNoShow
	default:
		return false
	}
}

// PickupAppointment links one bar to one pickup slot. The number is the
// human-shareable reference; the PIN is a secret challenged by staff and
// is generated independently of the number.
type PickupAppointment struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	AssetID       uuid.UUID         `json:"asset_id" db:"asset_id"`
	UserID        uuid.UUID         `json:"user_id" db:"user_id"`
	StoreID       uuid.UUID         `json:"store_id" db:"store_id"`
	ScheduledDate time.Time         `json:"scheduled_date" db:"scheduled_date"`
	ScheduledTime string            `json:"scheduled_time" db:"scheduled_time"`
	Number        string            `json:"number" db:"number"`
	PIN           string            `json:"-" db:"pin"`
	Status        AppointmentStatus `json:"status" db:"status"`
	CancelReason  *string           `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	ConfirmedAt   *time.Time        `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty" db:"cancelled_at"`
}
