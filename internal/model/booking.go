package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a booking.
// confirmed -> cancelled and confirmed -> completed are the only transitions.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// Booking reserves one unit of a studio for [StartAt, EndAt).
// Bookings are never deleted.
type Booking struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID  string    `gorm:"size:64;not null;index" json:"ownerId"`
	StudioID int64     `gorm:"not null;index:idx_bookings_studio_unit_start,priority:1" json:"studioId"`
	Unit     string    `gorm:"size:64;not null;index:idx_bookings_studio_unit_start,priority:2" json:"unit"`
	StartAt  time.Time `gorm:"not null;index:idx_bookings_studio_unit_start,priority:3" json:"start"`
	EndAt    time.Time `gorm:"not null" json:"end"`

	// BlockedUntil is EndAt plus the turnover padding in effect when the booking was made.
	// The postgres exclusion constraint compares [StartAt, BlockedUntil) ranges.
	BlockedUntil time.Time `gorm:"not null" json:"-"`

	Status             BookingStatus `gorm:"size:16;not null;index" json:"status"`
	CancellationReason *string       `gorm:"type:text" json:"cancellationReason,omitempty"`

	// Owner details copied from the identity provider at creation, used by admin search.
	OwnerName  string `gorm:"size:256" json:"ownerName,omitempty"`
	OwnerEmail string `gorm:"size:256" json:"ownerEmail,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Studio *Studio `gorm:"constraint:OnDelete:RESTRICT" json:"studio,omitempty"`
}

// BeforeCreate assigns an ID, since sqlite has no uuid default.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
