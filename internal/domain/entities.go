package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingFailed    BookingStatus = "FAILED"
)

type Show struct {
	ID         uuid.UUID
	Name       string
	StartTime  time.Time
	TotalSeats int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Seat struct {
	ID         uuid.UUID
	ShowID     uuid.UUID
	SeatNumber string
	Status     SeatStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Booking struct {
	ID        uuid.UUID
	ShowID    uuid.UUID
	UserID    uuid.UUID
	Status    BookingStatus
	CreatedAt time.Time
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// BookingWithSeats is the read model returned by booking lookups.
type BookingWithSeats struct {
	Booking
	Seats []Seat
}
