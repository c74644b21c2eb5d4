package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewBooking creates a PENDING booking with an expiry horizon. Seats are
// associated by the coordinator inside the same transaction that persists
// the booking.
func NewBooking(showID, userID uuid.UUID, now time.Time, ttl time.Duration) Booking {
	expiresAt := now.Add(ttl)
	return Booking{
		ID:        uuid.New(),
		ShowID:    showID,
		UserID:    userID,
		Status:    BookingPending,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		UpdatedAt: now,
	}
}

func NewShow(name string, startTime time.Time, totalSeats int, now time.Time) Show {
	return Show{
		ID:         uuid.New(),
		Name:       name,
		StartTime:  startTime,
		TotalSeats: totalSeats,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Expired reports whether the booking's expiry deadline has passed.
// Bookings without a deadline never expire.
func (b Booking) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}
