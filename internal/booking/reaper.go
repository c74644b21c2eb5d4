package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/seatbooking/internal/clock"
	"github.com/robertarktes/seatbooking/internal/domain"
	"github.com/robertarktes/seatbooking/internal/observability"
)

// SweepRepository is the storage surface the reaper needs. Implemented by
// adapters/postgres.Repository.
type SweepRepository interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	ExpiredBookingsForUpdate(ctx context.Context, tx pgx.Tx, now time.Time) ([]domain.Booking, error)
	ReleaseBookingSeats(ctx context.Context, tx pgx.Tx, bookingIDs []uuid.UUID, now time.Time) (int64, error)
	FailBookings(ctx context.Context, tx pgx.Tx, bookingIDs []uuid.UUID, now time.Time) error
}

// Reaper periodically fails PENDING bookings past their expiry deadline
// and returns their seats to the available pool.
type Reaper struct {
	repo   SweepRepository
	clock  clock.Clock
	logger observability.Logger
	events EventPublisher
}

func NewReaper(repo SweepRepository, clk clock.Clock, logger observability.Logger, events EventPublisher) *Reaper {
	return &Reaper{repo: repo, clock: clk, logger: logger, events: events}
}

// Run sweeps on every tick until the context is cancelled. A failed sweep
// is only retried on the next tick: the rows stay PENDING and expired, so
// nothing is lost.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := r.SweepExpired(ctx)
			if err != nil {
				r.logger.WithError(err).Error("expiry sweep failed")
				continue
			}
			if released > 0 {
				r.logger.WithField("released", released).Info("released expired bookings")
			}
		}
	}
}

// SweepExpired releases every expired PENDING booking in one transaction
// and reports how many bookings were released. Running it again with no
// new expirations releases nothing.
func (r *Reaper) SweepExpired(ctx context.Context) (int, error) {
	now := r.clock.Now()

	var swept []domain.Booking
	err := r.repo.WithTx(ctx, func(tx pgx.Tx) error {
		swept = nil

		bookings, err := r.repo.ExpiredBookingsForUpdate(ctx, tx, now)
		if err != nil {
			return err
		}
		if len(bookings) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(bookings))
		for i, b := range bookings {
			ids[i] = b.ID
		}
		if _, err := r.repo.ReleaseBookingSeats(ctx, tx, ids, now); err != nil {
			return err
		}
		if err := r.repo.FailBookings(ctx, tx, ids, now); err != nil {
			return err
		}
		swept = bookings
		return nil
	})
	if err != nil {
		return 0, err
	}

	observability.SweepReleasedTotal.Add(float64(len(swept)))
	if r.events != nil {
		for _, b := range swept {
			payload := map[string]interface{}{
				"booking_id": b.ID,
				"show_id":    b.ShowID,
				"user_id":    b.UserID,
			}
			if err := r.events.PublishJSON(ctx, "booking.expired", payload); err != nil {
				r.logger.WithError(err).Warn("failed to publish booking.expired")
			}
		}
	}
	return len(swept), nil
}
