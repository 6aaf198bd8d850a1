package handler

import (
	"errors"
	"net/http"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/view"
)

// listWishlist handles GET /wishlist. An optional ?q= applies the search
// filter.
func (s *Server) listWishlist(w http.ResponseWriter, r *http.Request) {
	items := view.Filter(s.svc.Wishlist(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, recordsToResponse(items))
}

// addToWishlist handles POST /trips/{id}/wishlist. Adding a trip that is
// already wishlisted succeeds without creating a second entry, so the
// endpoint always replies 204 on a known trip.
func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.svc.AddToWishlist(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "trip not found")
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeFromWishlist handles DELETE /wishlist/{id}. Only the wishlist
// entry is removed; the source trip and its media are untouched.
func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.svc.RemoveFromWishlist(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "wishlist entry not found")
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// promoteWishlistItem handles POST /wishlist/{id}/promote: the entry
// becomes a trip with a fresh identity and the wishlist entry goes away.
func (s *Server) promoteWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	trip, err := s.svc.PromoteWishlistToTrip(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "wishlist entry not found")
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordToResponse(trip))
}
