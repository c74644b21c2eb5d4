package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS shows (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	total_seats INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS seats (
	id UUID PRIMARY KEY,
	show_id UUID NOT NULL REFERENCES shows(id),
	seat_number TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('AVAILABLE', 'BOOKED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (show_id, seat_number)
);

CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	show_id UUID NOT NULL REFERENCES shows(id),
	user_id UUID NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'FAILED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS booking_seats (
	booking_id UUID NOT NULL REFERENCES bookings(id),
	seat_id UUID NOT NULL REFERENCES seats(id),
	PRIMARY KEY (booking_id, seat_id)
);

CREATE INDEX IF NOT EXISTS bookings_pending_expiry_idx
	ON bookings (expires_at) WHERE status = 'PENDING';
`

// Migrate applies the schema. Statements are idempotent so it is safe to
// run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
