package handler

import (
	"net/http"

	"github.com/ldenis/travel-logbook/internal/view"
)

// getStats handles GET /stats: the aggregate trip statistics for the
// home page.
func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, view.AggregateStats(s.svc.Trips()))
}

// getMapBounds handles GET /map/bounds. It returns the coordinate pairs
// of every trip and wishlist entry, optionally narrowed by ?q=, as the
// input set for the map's fit-to-markers viewport. An empty array means
// the client leaves its viewport alone.
func (s *Server) getMapBounds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	trips := view.Filter(s.svc.Trips(), q)
	wishlist := view.Filter(s.svc.Wishlist(), q)
	writeJSON(w, http.StatusOK, view.MapBounds(trips, wishlist))
}
