// Package handler implements the HTTP surface of the Travel Logbook API.
// All handlers are methods on Server. Methods are split into files by
// resource (trip.go, wishlist.go, export.go, ...) but all share the same
// Server struct so they can access its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/media"
)

// Servicer defines the lifecycle operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the engine or a store.
type Servicer interface {
	Trips() []domain.Record
	Wishlist() []domain.Record
	CreateOrUpdateTrip(ctx context.Context, in domain.TripInput, editingID *uuid.UUID) (domain.Record, error)
	DeleteTrip(ctx context.Context, id uuid.UUID) error
	AddToWishlist(ctx context.Context, tripID uuid.UUID) error
	RemoveFromWishlist(ctx context.Context, id uuid.UUID) error
	PromoteWishlistToTrip(ctx context.Context, id uuid.UUID) (domain.Record, error)
}

// MediaStore is the slice of the media capability the HTTP layer needs:
// uploads and fetches. Deletion belongs to the engine's delete cascade.
type MediaStore interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error)
	Open(ctx context.Context, ref string) (media.Object, error)
}

// Server implements the HTTP handlers for all API endpoints.
type Server struct {
	svc     Servicer
	media   MediaStore
	ownerID string

	drafts *draftRegistry
}

// NewServer constructs the Server with all its dependencies.
func NewServer(svc Servicer, ms MediaStore, ownerID string) *Server {
	return &Server{
		svc:     svc,
		media:   ms,
		ownerID: ownerID,
		drafts:  newDraftRegistry(),
	}
}

// Routes returns the chi router for the full API surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.getHealth)

	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.listTrips)
		r.Post("/", s.createTrip)
		r.Put("/{id}", s.updateTrip)
		r.Delete("/{id}", s.deleteTrip)
		r.Post("/{id}/wishlist", s.addToWishlist)
	})

	r.Route("/wishlist", func(r chi.Router) {
		r.Get("/", s.listWishlist)
		r.Delete("/{id}", s.removeFromWishlist)
		r.Post("/{id}/promote", s.promoteWishlistItem)
	})

	r.Route("/drafts", func(r chi.Router) {
		r.Post("/", s.createDraft)
		r.Get("/{id}", s.getDraft)
		r.Put("/{id}", s.updateDraft)
		r.Post("/{id}/expenses", s.addDraftExpense)
		r.Put("/{id}/expenses/{index}", s.updateDraftExpense)
		r.Delete("/{id}/expenses/{index}", s.removeDraftExpense)
		r.Post("/{id}/media", s.addDraftMedia)
		r.Delete("/{id}/media/{kind}/{index}", s.removeDraftMedia)
		r.Post("/{id}/commit", s.commitDraft)
	})

	r.Get("/stats", s.getStats)
	r.Get("/map/bounds", s.getMapBounds)
	r.Get("/export", s.getExport)

	r.Post("/media", s.uploadMedia)
	r.Get("/media/*", s.getMedia)

	return r
}

// getHealth handles GET /healthz.
func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
