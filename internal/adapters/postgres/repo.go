package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/seatbooking/internal/domain"
	"github.com/robertarktes/seatbooking/internal/observability"
)

const serializationFailureCode = "40001"

type Repository struct {
	pool   *pgxpool.Pool
	logger observability.Logger
}

func NewRepository(pool *pgxpool.Pool, logger observability.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx runs fn inside a SERIALIZABLE transaction. Serializable isolation
// is a correctness choice: it is what keeps two concurrent attempts from
// both observing the same seat as available. Serialization aborts map to
// domain.ErrSerializationFailure so callers can retry the whole attempt.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			// The original failure is still what the caller sees.
			r.logger.WithError(rbErr).Error("rollback failed")
		}
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
		return errors.Mark(err, domain.ErrSerializationFailure)
	}
	return err
}

// LockSeats takes exclusive row locks on the requested seats scoped to the
// show. A concurrent attempt over any overlapping seat blocks here until
// this transaction ends. Seats that do not exist for the show simply do
// not come back; the caller compares counts.
func (r *Repository) LockSeats(ctx context.Context, tx pgx.Tx, showID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, show_id, seat_number, status, created_at, updated_at
		FROM seats
		WHERE show_id = $1 AND id = ANY($2)
		FOR UPDATE
	`, showID, seatIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.ShowID, &s.SeatNumber, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, show_id, user_id, status, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.ShowID, b.UserID, b.Status, b.CreatedAt, b.ExpiresAt, b.UpdatedAt)
	return err
}

// AddBookingSeats writes every association in a single multi-row insert to
// keep the lock hold window short.
func (r *Repository) AddBookingSeats(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, seatIDs []uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_seats (booking_id, seat_id)
		SELECT $1, unnest($2::uuid[])
	`, bookingID, seatIDs)
	return err
}

func (r *Repository) UpdateSeatStatus(ctx context.Context, tx pgx.Tx, seatIDs []uuid.UUID, status domain.SeatStatus, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE seats SET status = $2, updated_at = $3 WHERE id = ANY($1)
	`, seatIDs, status, now)
	return err
}

func (r *Repository) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := tx.QueryRow(ctx, `
		SELECT id, show_id, user_id, status, created_at, expires_at, updated_at
		FROM bookings WHERE id = $1
		FOR UPDATE
	`, id).Scan(&b.ID, &b.ShowID, &b.UserID, &b.Status, &b.CreatedAt, &b.ExpiresAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *Repository) SetBookingStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingStatus, now time.Time) error {
	result, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, now)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetBooking is a point-in-time read joining the booking to its seats. No
// locks are taken.
func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.BookingWithSeats, error) {
	var b domain.BookingWithSeats
	err := r.pool.QueryRow(ctx, `
		SELECT id, show_id, user_id, status, created_at, expires_at, updated_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.ShowID, &b.UserID, &b.Status, &b.CreatedAt, &b.ExpiresAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.show_id, s.seat_number, s.status, s.created_at, s.updated_at
		FROM booking_seats bs
		JOIN seats s ON s.id = bs.seat_id
		WHERE bs.booking_id = $1
		ORDER BY s.seat_number
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.ShowID, &s.SeatNumber, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		b.Seats = append(b.Seats, s)
	}
	return &b, rows.Err()
}

// ExpiredBookingsForUpdate locks and returns every PENDING booking whose
// expiry deadline is at or before now.
func (r *Repository) ExpiredBookingsForUpdate(ctx context.Context, tx pgx.Tx, now time.Time) ([]domain.Booking, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, show_id, user_id, status, created_at, expires_at, updated_at
		FROM bookings
		WHERE status = $1 AND expires_at <= $2
		FOR UPDATE
	`, domain.BookingPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.ShowID, &b.UserID, &b.Status, &b.CreatedAt, &b.ExpiresAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ReleaseBookingSeats returns every seat associated with the given
// bookings to the available pool. Reports how many seats were released.
func (r *Repository) ReleaseBookingSeats(ctx context.Context, tx pgx.Tx, bookingIDs []uuid.UUID, now time.Time) (int64, error) {
	result, err := tx.Exec(ctx, `
		UPDATE seats SET status = $2, updated_at = $3
		WHERE id IN (SELECT seat_id FROM booking_seats WHERE booking_id = ANY($1))
	`, bookingIDs, domain.SeatAvailable, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *Repository) FailBookings(ctx context.Context, tx pgx.Tx, bookingIDs []uuid.UUID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $2, updated_at = $3 WHERE id = ANY($1)
	`, bookingIDs, domain.BookingFailed, now)
	return err
}
