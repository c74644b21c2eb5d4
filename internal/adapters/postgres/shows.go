package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/seatbooking/internal/domain"
)

// CreateShow inserts the show and bulk-generates its seats S1..Sn in one
// transaction. The seat count is immutable afterwards.
func (r *Repository) CreateShow(ctx context.Context, show domain.Show) error {
	if show.TotalSeats <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "total seats must be positive")
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO shows (id, name, start_time, total_seats, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, show.ID, show.Name, show.StartTime, show.TotalSeats, show.CreatedAt, show.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO seats (id, show_id, seat_number, status, created_at, updated_at)
			SELECT gen_random_uuid(), $1, 'S' || n, $2, $3, $3
			FROM generate_series(1, $4::int) AS n
		`, show.ID, domain.SeatAvailable, show.CreatedAt, show.TotalSeats)
		return err
	})
}

func (r *Repository) ListShows(ctx context.Context) ([]domain.Show, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, start_time, total_seats, created_at, updated_at
		FROM shows ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shows []domain.Show
	for rows.Next() {
		var s domain.Show
		if err := rows.Scan(&s.ID, &s.Name, &s.StartTime, &s.TotalSeats, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		shows = append(shows, s)
	}
	return shows, rows.Err()
}

func (r *Repository) GetShow(ctx context.Context, id uuid.UUID) (domain.Show, error) {
	var s domain.Show
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, start_time, total_seats, created_at, updated_at
		FROM shows WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.StartTime, &s.TotalSeats, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Show{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Show{}, err
	}
	return s, nil
}

func (r *Repository) ListSeats(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, show_id, seat_number, status, created_at, updated_at
		FROM seats WHERE show_id = $1 ORDER BY seat_number
	`, showID)
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
