package httpapi

import (
	"net/http"
	"time"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the routes. Everything except the health check requires a
// valid token; moderation and history routes additionally require the admin
// role.
func NewRouter(h *Handler, jwtSecret string, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(JWTAuth(jwtSecret, log))

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", h.createListing)
			r.Get("/", h.searchListings)
			r.Get("/my", h.myListings)
			r.Get("/{id}", h.getListing)
			r.Put("/{id}", h.updateListing)
			r.Post("/{id}/photos", h.uploadPhoto)
			r.Post("/{id}/sold", h.markSold)
			r.Delete("/{id}", h.deleteListing)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/listings/{id}/approve", h.approveListing)
			r.Post("/listings/{id}/reject", h.rejectListing)
			r.Route("/admin", func(r chi.Router) {
				r.Get("/history", h.queryHistory)
				r.Get("/history/{listingID}", h.getHistoryRecord)
				r.Post("/sweep/run", h.runSweep)
			})
		})
	})

	return r
}
