package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisadapter "github.com/robertarktes/seatbooking/internal/adapters/redis"
	"github.com/robertarktes/seatbooking/internal/observability"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *redisadapter.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	if rl != nil {
		r.Use(RateLimitMiddleware(rl))
	}

	r.Post("/v1/shows", h.CreateShow)
	r.Get("/v1/shows", h.ListShows)
	r.Get("/v1/shows/{id}", h.GetShow)
	r.Get("/v1/shows/{id}/seats", h.ListSeats)

	r.Post("/v1/bookings", h.CreateBooking)
	r.Post("/v1/bookings/{id}/confirm", h.ConfirmBooking)
	r.Get("/v1/bookings/{id}", h.GetBooking)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
