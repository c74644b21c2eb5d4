package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/seatbooking/internal/adapters/postgres"
	"github.com/robertarktes/seatbooking/internal/booking"
	"github.com/robertarktes/seatbooking/internal/clock"
	"github.com/robertarktes/seatbooking/internal/domain"
	"github.com/robertarktes/seatbooking/internal/observability"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

func setup(t *testing.T) *postgres.Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "postgres"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, "postgres://postgres:postgres@"+host+":"+port.Port()+"/postgres?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatal(err)
	}
	return postgres.NewRepository(pool, observability.NewLogger())
}

func newShow(t *testing.T, repo *postgres.Repository, totalSeats int) (domain.Show, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	show := domain.NewShow("Race Night", time.Now().Add(24*time.Hour), totalSeats, time.Now().UTC())
	if err := repo.CreateShow(ctx, show); err != nil {
		t.Fatal(err)
	}
	seats, err := repo.ListSeats(ctx, show.ID)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]uuid.UUID, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return show, ids
}

// retryable reports whether the attempt lost the race in an acceptable
// way: a seat conflict, or a serialization abort from the store.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrSerializationFailure)
}

func TestConcurrentOverlappingAttempts_ExactlyOneWins(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	svc := booking.NewCoordinator(repo, clock.NewSystem(), observability.NewLogger())

	const iterations = 100
	for i := 0; i < iterations; i++ {
		show, seats := newShow(t, repo, 10)

		attempts := [][]uuid.UUID{
			{seats[0], seats[1]}, // S1, S2
			{seats[1], seats[2]}, // S2, S3
		}

		var mu sync.Mutex
		var successes int
		var losses int

		var start sync.WaitGroup
		start.Add(1)
		g := new(errgroup.Group)
		for _, seatSet := range attempts {
			seatSet := seatSet
			g.Go(func() error {
				start.Wait()
				_, err := svc.AttemptBooking(ctx, booking.AttemptBookingInput{
					ShowID:  show.ID,
					UserID:  uuid.New(),
					SeatIDs: seatSet,
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
					return nil
				}
				if retryable(err) {
					losses++
					return nil
				}
				return err
			})
		}
		start.Done()
		if err := g.Wait(); err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}

		if successes != 1 || losses != 1 {
			t.Fatalf("iteration %d: expected exactly one winner, got %d successes and %d losses", i, successes, losses)
		}

		// The winner booked exactly its two seats; everything else stays
		// available.
		fresh, err := repo.ListSeats(ctx, show.ID)
		if err != nil {
			t.Fatal(err)
		}
		var booked int
		for _, s := range fresh {
			if s.Status == domain.SeatBooked {
				booked++
			}
		}
		if booked != 2 {
			t.Fatalf("iteration %d: expected 2 booked seats, got %d", i, booked)
		}
	}
}

func TestConcurrentDisjointAttempts_BothSucceed(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	svc := booking.NewCoordinator(repo, clock.NewSystem(), observability.NewLogger())

	show, seats := newShow(t, repo, 10)

	g := new(errgroup.Group)
	for _, seatSet := range [][]uuid.UUID{{seats[0], seats[1]}, {seats[2], seats[3]}} {
		seatSet := seatSet
		g.Go(func() error {
			_, err := svc.AttemptBooking(ctx, booking.AttemptBookingInput{
				ShowID:  show.ID,
				UserID:  uuid.New(),
				SeatIDs: seatSet,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("disjoint attempts must not contend: %v", err)
	}
}

func TestExpiryFlow_SweepReleasesAndReBookingSucceeds(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	svc := booking.NewCoordinator(repo, clock.NewSystem(), observability.NewLogger(),
		booking.WithBookingTTL(time.Millisecond))

	show, seats := newShow(t, repo, 3)
	request := []uuid.UUID{seats[0], seats[1]}

	b, err := svc.AttemptBooking(ctx, booking.AttemptBookingInput{
		ShowID: show.ID, UserID: uuid.New(), SeatIDs: request,
	})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	reaper := booking.NewReaper(repo, clock.NewSystem(), observability.NewLogger(), nil)
	released, err := reaper.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released booking, got %d", released)
	}

	// Sweeping again with no new expirations releases nothing.
	if released, err := reaper.SweepExpired(ctx); err != nil || released != 0 {
		t.Fatalf("second sweep: released=%d err=%v", released, err)
	}

	got, err := repo.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.BookingFailed {
		t.Errorf("expected FAILED after sweep, got %s", got.Status)
	}

	// The released seats can be booked again.
	if _, err := svc.AttemptBooking(ctx, booking.AttemptBookingInput{
		ShowID: show.ID, UserID: uuid.New(), SeatIDs: request,
	}); err != nil {
		t.Errorf("rebooking released seats failed: %v", err)
	}
}

func TestConfirmBeatsExpiry(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	svc := booking.NewCoordinator(repo, clock.NewSystem(), observability.NewLogger(),
		booking.WithBookingTTL(time.Hour))

	show, seats := newShow(t, repo, 2)

	b, err := svc.AttemptBooking(ctx, booking.AttemptBookingInput{
		ShowID: show.ID, UserID: uuid.New(), SeatIDs: seats,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ConfirmBooking(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	reaper := booking.NewReaper(repo, clock.NewSystem(), observability.NewLogger(), nil)
	if released, err := reaper.SweepExpired(ctx); err != nil || released != 0 {
		t.Fatalf("confirmed booking must not be swept: released=%d err=%v", released, err)
	}

	got, err := repo.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
}
