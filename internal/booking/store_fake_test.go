package booking_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/seatbooking/internal/domain"
)

// fakeStore is an in-memory stand-in for the postgres repository with
// real commit/rollback semantics: WithTx snapshots the state and restores
// it when fn fails, so atomicity assertions mean something.
type fakeStore struct {
	seats        map[uuid.UUID]domain.Seat
	bookings     map[uuid.UUID]domain.Booking
	bookingSeats map[uuid.UUID][]uuid.UUID

	txErr error // returned by WithTx before fn runs, when set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seats:        make(map[uuid.UUID]domain.Seat),
		bookings:     make(map[uuid.UUID]domain.Booking),
		bookingSeats: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeStore) addShowSeats(showID uuid.UUID, count int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, count)
	for i := 1; i <= count; i++ {
		s := domain.Seat{
			ID:         uuid.New(),
			ShowID:     showID,
			SeatNumber: "S" + string(rune('0'+i)),
			Status:     domain.SeatAvailable,
		}
		f.seats[s.ID] = s
		ids = append(ids, s.ID)
	}
	return ids
}

func (f *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	for k, v := range f.seats {
		cp.seats[k] = v
	}
	for k, v := range f.bookings {
		cp.bookings[k] = v
	}
	for k, v := range f.bookingSeats {
		cp.bookingSeats[k] = append([]uuid.UUID(nil), v...)
	}
	return cp
}

func (f *fakeStore) restore(cp *fakeStore) {
	f.seats = cp.seats
	f.bookings = cp.bookings
	f.bookingSeats = cp.bookingSeats
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if f.txErr != nil {
		return f.txErr
	}
	cp := f.snapshot()
	if err := fn(nil); err != nil {
		f.restore(cp)
		return err
	}
	return nil
}

func (f *fakeStore) LockSeats(ctx context.Context, tx pgx.Tx, showID uuid.UUID, seatIDs []uuid.UUID) ([]domain.Seat, error) {
	var out []domain.Seat
	for _, id := range seatIDs {
		s, ok := f.seats[id]
		if !ok || s.ShowID != showID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) AddBookingSeats(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, seatIDs []uuid.UUID) error {
	f.bookingSeats[bookingID] = append(f.bookingSeats[bookingID], seatIDs...)
	return nil
}

func (f *fakeStore) UpdateSeatStatus(ctx context.Context, tx pgx.Tx, seatIDs []uuid.UUID, status domain.SeatStatus, now time.Time) error {
	for _, id := range seatIDs {
		s := f.seats[id]
		s.Status = status
		s.UpdatedAt = now
		f.seats[id] = s
	}
	return nil
}

func (f *fakeStore) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) SetBookingStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BookingStatus, now time.Time) error {
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = now
	f.bookings[id] = b
	return nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id uuid.UUID) (*domain.BookingWithSeats, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := &domain.BookingWithSeats{Booking: b}
	for _, seatID := range f.bookingSeats[id] {
		out.Seats = append(out.Seats, f.seats[seatID])
	}
	return out, nil
}

func (f *fakeStore) ExpiredBookingsForUpdate(ctx context.Context, tx pgx.Tx, now time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.Status == domain.BookingPending && b.Expired(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ReleaseBookingSeats(ctx context.Context, tx pgx.Tx, bookingIDs []uuid.UUID, now time.Time) (int64, error) {
	var released int64
	for _, bid := range bookingIDs {
		for _, seatID := range f.bookingSeats[bid] {
			s := f.seats[seatID]
			s.Status = domain.SeatAvailable
			s.UpdatedAt = now
			f.seats[seatID] = s
			released++
		}
	}
	return released, nil
}

func (f *fakeStore) FailBookings(ctx context.Context, tx pgx.Tx, bookingIDs []uuid.UUID, now time.Time) error {
	for _, bid := range bookingIDs {
		b := f.bookings[bid]
		b.Status = domain.BookingFailed
		b.UpdatedAt = now
		f.bookings[bid] = b
	}
	return nil
}
