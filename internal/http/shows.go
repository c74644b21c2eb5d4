package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/seatbooking/internal/domain"
)

type showResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	TotalSeats int       `json:"total_seats"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toShowResponse(s domain.Show) showResponse {
	return showResponse{
		ID:         s.ID,
		Name:       s.Name,
		StartTime:  s.StartTime,
		TotalSeats: s.TotalSeats,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

type createShowRequest struct {
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	TotalSeats int       `json:"total_seats"`
}

// CreateShow is POST /v1/shows. Seats S1..Sn are generated alongside the
// show; the seat count is fixed from then on.
func (h *Handlers) CreateShow(w http.ResponseWriter, r *http.Request) {
	var req createShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.StartTime.IsZero() || req.TotalSeats <= 0 {
		writeError(w, http.StatusBadRequest, "name, start_time and a positive total_seats are required")
		return
	}

	show := domain.NewShow(req.Name, req.StartTime, req.TotalSeats, time.Now().UTC())
	if err := h.shows.CreateShow(r.Context(), show); err != nil {
		h.logger.WithError(err).Error("failed to create show")
		writeError(w, http.StatusInternalServerError, "failed to create show")
		return
	}
	writeJSON(w, http.StatusCreated, toShowResponse(show))
}

// ListShows is GET /v1/shows.
func (h *Handlers) ListShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.shows.ListShows(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list shows")
		writeError(w, http.StatusInternalServerError, "failed to list shows")
		return
	}
	resp := make([]showResponse, 0, len(shows))
	for _, s := range shows {
		resp = append(resp, toShowResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetShow is GET /v1/shows/{id}.
func (h *Handlers) GetShow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid show id")
		return
	}

	show, err := h.shows.GetShow(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "show not found")
			return
		}
		h.logger.WithError(err).Error("failed to fetch show")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toShowResponse(show))
}

type catalogSeatResponse struct {
	ID         uuid.UUID `json:"id"`
	ShowID     uuid.UUID `json:"show_id"`
	SeatNumber string    `json:"seat_number"`
	Status     string    `json:"status"`
}

// ListSeats is GET /v1/shows/{id}/seats.
func (h *Handlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid show id")
		return
	}

	if _, err := h.shows.GetShow(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "show not found")
			return
		}
		h.logger.WithError(err).Error("failed to fetch show")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	seats, err := h.shows.ListSeats(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("failed to list seats")
		writeError(w, http.StatusInternalServerError, "failed to list seats")
		return
	}
	resp := make([]catalogSeatResponse, 0, len(seats))
	for _, s := range seats {
		resp = append(resp, catalogSeatResponse{ID: s.ID, ShowID: s.ShowID, SeatNumber: s.SeatNumber, Status: string(s.Status)})
	}
	writeJSON(w, http.StatusOK, resp)
}
