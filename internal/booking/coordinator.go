package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/seatbooking/internal/clock"
	"github.com/robertarktes/seatbooking/internal/domain"
	"github.com/robertarktes/seatbooking/internal/observability"
)

// Repository is the storage surface the coordinator needs. Implemented by
// adapters/postgres.Repository.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	LockSeats(ctx context.Context, tx pgx.Tx, showID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error)
	CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error
	AddBookingSeats(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, seatIDs []uuid.UUID) error
	UpdateSeatStatus(ctx context.Context, tx pgx.Tx, seatIDs []uuid.UUID, status domain.SeatStatus, now time.Time) error
	GetBookingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Booking, error)
	SetBookingStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingStatus, now time.Time) error
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.BookingWithSeats, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload any) error
}

type AuditSink interface {
	LogBooking(ctx context.Context, action string, b domain.Booking, seatIDs []uuid.UUID) error
}

const defaultBookingTTL = 2 * time.Minute

// Coordinator runs the booking transaction: lock the requested seat rows,
// validate, persist the booking with its seat associations, flip seat
// status, commit. All or nothing.
type Coordinator struct {
	repo   Repository
	clock  clock.Clock
	logger observability.Logger
	ttl    time.Duration
	events EventPublisher
	audit  AuditSink
}

type CoordinatorOption func(*Coordinator)

// WithBookingTTL overrides the expiry horizon for new bookings.
func WithBookingTTL(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithEvents attaches a post-commit event publisher.
func WithEvents(p EventPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.events = p }
}

// WithAudit attaches a post-commit audit sink.
func WithAudit(a AuditSink) CoordinatorOption {
	return func(c *Coordinator) { c.audit = a }
}

func NewCoordinator(repo Repository, clk clock.Clock, logger observability.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		repo:   repo,
		clock:  clk,
		logger: logger,
		ttl:    defaultBookingTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type AttemptBookingInput struct {
	ShowID  uuid.UUID
	UserID  uuid.UUID
	SeatIDs []uuid.UUID
}

// AttemptBooking books the requested seats for exactly one requester or
// rejects the whole request. Overlapping concurrent attempts serialize on
// the seat row locks; the loser re-reads the seats after the winner
// commits and sees them BOOKED.
func (c *Coordinator) AttemptBooking(ctx context.Context, in AttemptBookingInput) (domain.Booking, error) {
	seatIDs := dedupeSeatIDs(in.SeatIDs)
	if len(seatIDs) == 0 {
		return domain.Booking{}, errors.Wrap(domain.ErrInvalidInput, "at least one seat id is required")
	}

	now := c.clock.Now()
	b := domain.NewBooking(in.ShowID, in.UserID, now, c.ttl)

	start := time.Now()
	err := c.repo.WithTx(ctx, func(tx pgx.Tx) error {
		seats, err := c.repo.LockSeats(ctx, tx, in.ShowID, seatIDs)
		if err != nil {
			return err
		}
		if len(seats) != len(seatIDs) {
			return errors.Wrap(domain.ErrNotFound, "some seats do not exist for this show")
		}
		// Availability is checked only while the locks are held. Checking
		// before locking would reintroduce the race this design prevents.
		for _, s := range seats {
			if s.Status != domain.SeatAvailable {
				return errors.Wrapf(domain.ErrConflict, "seat %s is already booked", s.SeatNumber)
			}
		}

		if err := c.repo.CreateBooking(ctx, tx, b); err != nil {
			return err
		}
		if err := c.repo.AddBookingSeats(ctx, tx, b.ID, seatIDs); err != nil {
			return err
		}
		return c.repo.UpdateSeatStatus(ctx, tx, seatIDs, domain.SeatBooked, now)
	})
	observability.BookingTxDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.BookingAttemptsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return domain.Booking{}, err
	}
	observability.BookingAttemptsTotal.WithLabelValues("success").Inc()

	c.notify(ctx, "booking.created", b, seatIDs)
	return b, nil
}

// ConfirmBooking flips a PENDING booking to CONFIRMED before its expiry
// deadline. Expired or already swept bookings are rejected; the reaper
// owns returning their seats.
func (c *Coordinator) ConfirmBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	now := c.clock.Now()
	var confirmed domain.Booking

	err := c.repo.WithTx(ctx, func(tx pgx.Tx) error {
		b, err := c.repo.GetBookingForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case domain.BookingConfirmed:
			return domain.ErrAlreadyConfirmed
		case domain.BookingFailed:
			return domain.ErrBookingExpired
		}
		if b.Expired(now) {
			return domain.ErrBookingExpired
		}
		if err := c.repo.SetBookingStatus(ctx, tx, id, domain.BookingConfirmed, now); err != nil {
			return err
		}
		b.Status = domain.BookingConfirmed
		b.UpdatedAt = now
		confirmed = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	c.notify(ctx, "booking.confirmed", confirmed, nil)
	return confirmed, nil
}

func (c *Coordinator) GetBooking(ctx context.Context, id uuid.UUID) (*domain.BookingWithSeats, error) {
	return c.repo.GetBooking(ctx, id)
}

// notify publishes and audits after commit, best effort. Failures here
// never affect the already committed booking.
func (c *Coordinator) notify(ctx context.Context, action string, b domain.Booking, seatIDs []uuid.UUID) {
	if c.events != nil {
		payload := map[string]interface{}{
			"booking_id": b.ID,
			"show_id":    b.ShowID,
			"user_id":    b.UserID,
			"status":     b.Status,
		}
		if err := c.events.PublishJSON(ctx, action, payload); err != nil {
			c.logger.WithError(err).WithField("action", action).Warn("failed to publish booking event")
		}
	}
	if c.audit != nil {
		if err := c.audit.LogBooking(ctx, action, b, seatIDs); err != nil {
			c.logger.WithError(err).WithField("action", action).Warn("failed to write audit log")
		}
	}
}

func dedupeSeatIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrSerializationFailure):
		return "serialization_failure"
	default:
		return "error"
	}
}
