package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redisadapter "github.com/robertarktes/seatbooking/internal/adapters/redis"
	"github.com/robertarktes/seatbooking/internal/booking"
	"github.com/robertarktes/seatbooking/internal/domain"
	"github.com/robertarktes/seatbooking/internal/observability"
)

// BookingService is what the request layer needs from the coordinator.
type BookingService interface {
	AttemptBooking(ctx context.Context, in booking.AttemptBookingInput) (domain.Booking, error)
	ConfirmBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.BookingWithSeats, error)
}

// ShowCatalog is the non-contended show/seat CRUD surface.
type ShowCatalog interface {
	CreateShow(ctx context.Context, show domain.Show) error
	ListShows(ctx context.Context) ([]domain.Show, error)
	GetShow(ctx context.Context, id uuid.UUID) (domain.Show, error)
	ListSeats(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error)
}

// IdempotencyStore replays recorded responses for retried booking posts.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*redisadapter.RecordedResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.RecordedResponse) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	bookings BookingService
	shows    ShowCatalog
	idemp    IdempotencyStore
	db       Pinger
	logger   observability.Logger
}

func NewHandlers(bookings BookingService, shows ShowCatalog, idemp IdempotencyStore, db Pinger, logger observability.Logger) *Handlers {
	return &Handlers{
		bookings: bookings,
		shows:    shows,
		idemp:    idemp,
		db:       db,
		logger:   logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type bookingResponse struct {
	ID        uuid.UUID  `json:"id"`
	ShowID    uuid.UUID  `json:"show_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		ShowID:    b.ShowID,
		UserID:    b.UserID,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
		ExpiresAt: b.ExpiresAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type seatResponse struct {
	ID         uuid.UUID `json:"id"`
	SeatNumber string    `json:"seat_number"`
	Status     string    `json:"status"`
}

type bookingWithSeatsResponse struct {
	bookingResponse
	Seats []seatResponse `json:"seats"`
}

type createBookingRequest struct {
	ShowID  uuid.UUID   `json:"show_id"`
	UserID  uuid.UUID   `json:"user_id"`
	SeatIDs []uuid.UUID `json:"seat_ids"`
}

// CreateBooking is POST /v1/bookings. Retries carrying the same
// Idempotency-Key replay the recorded response instead of re-running the
// booking transaction.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if h.idemp != nil && key != "" {
		existing, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			h.logger.WithError(err).Warn("idempotency lookup failed")
		} else if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.Status)
			_, _ = w.Write(existing.Body)
			return
		}
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShowID == uuid.Nil || req.UserID == uuid.Nil || len(req.SeatIDs) == 0 {
		writeError(w, http.StatusBadRequest, "show_id, user_id and a non-empty seat_ids array are required")
		return
	}

	b, err := h.bookings.AttemptBooking(r.Context(), booking.AttemptBookingInput{
		ShowID:  req.ShowID,
		UserID:  req.UserID,
		SeatIDs: req.SeatIDs,
	})
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	body, _ := json.Marshal(toBookingResponse(b))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)

	if h.idemp != nil && key != "" {
		if err := h.idemp.Set(r.Context(), key, redisadapter.RecordedResponse{Status: http.StatusCreated, Body: body}); err != nil {
			h.logger.WithError(err).Warn("idempotency store failed")
		}
	}
}

// ConfirmBooking is POST /v1/bookings/{id}/confirm.
func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	b, err := h.bookings.ConfirmBooking(r.Context(), id)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// GetBooking is GET /v1/bookings/{id}.
func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	b, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		h.logger.WithError(err).Error("failed to fetch booking")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := bookingWithSeatsResponse{bookingResponse: toBookingResponse(b.Booking)}
	for _, s := range b.Seats {
		resp.Seats = append(resp.Seats, seatResponse{ID: s.ID, SeatNumber: s.SeatNumber, Status: string(s.Status)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeBookingError maps the coordinator's error taxonomy to transport
// codes. The not-found vs conflict distinction is preserved end to end.
func (h *Handlers) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "some seats do not exist")
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		writeError(w, http.StatusConflict, "booking already confirmed")
	case errors.Is(err, domain.ErrBookingExpired):
		writeError(w, http.StatusConflict, "booking expired")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "some seats are already booked")
	case errors.Is(err, domain.ErrSerializationFailure):
		writeError(w, http.StatusServiceUnavailable, "booking conflict, try again")
	default:
		h.logger.WithError(err).Error("booking failed")
		writeError(w, http.StatusInternalServerError, "booking failed")
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}
