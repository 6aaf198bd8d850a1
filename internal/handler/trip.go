package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/view"
)

// tripRequest is the body of POST /trips and PUT /trips/{id}: every
// user-editable field of a record.
type tripRequest struct {
	Title      string              `json:"title"`
	Location   string              `json:"location"`
	Companions string              `json:"companions,omitempty"`
	StartDate  *openapi_types.Date `json:"startDate,omitempty"`
	EndDate    *openapi_types.Date `json:"endDate,omitempty"`
	Notes      string              `json:"notes,omitempty"`
	Category   string              `json:"category,omitempty"`
	Rating     int                 `json:"rating,omitempty"`
	Weather    string              `json:"weather,omitempty"`
	Expenses   []domain.Expense    `json:"expenses,omitempty"`
	Images     []string            `json:"images,omitempty"`
	Videos     []string            `json:"videos,omitempty"`
}

// tripResponse is the JSON shape of a record, with the per-record expense
// total precomputed for list views.
type tripResponse struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	Location      string              `json:"location"`
	Coordinates   domain.Coordinates  `json:"coordinates"`
	Companions    string              `json:"companions,omitempty"`
	StartDate     *openapi_types.Date `json:"startDate,omitempty"`
	EndDate       *openapi_types.Date `json:"endDate,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Category      domain.Category     `json:"category"`
	Rating        int                 `json:"rating"`
	Weather       domain.Weather      `json:"weather,omitempty"`
	Expenses      []domain.Expense    `json:"expenses"`
	Images        []string            `json:"images"`
	Videos        []string            `json:"videos"`
	TotalExpenses float64             `json:"totalExpenses"`
	IsWishlist    bool                `json:"isWishlist,omitempty"`
	SourceTripID  *uuid.UUID          `json:"sourceTripId,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// listTrips handles GET /trips. An optional ?q= applies the search filter.
func (s *Server) listTrips(w http.ResponseWriter, r *http.Request) {
	trips := view.Filter(s.svc.Trips(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, recordsToResponse(trips))
}

// createTrip handles POST /trips.
func (s *Server) createTrip(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTripRequest(w, r)
	if !ok {
		return
	}

	created, err := s.svc.CreateOrUpdateTrip(r.Context(), in, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordToResponse(created))
}

// updateTrip handles PUT /trips/{id}.
func (s *Server) updateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := decodeTripRequest(w, r)
	if !ok {
		return
	}

	updated, err := s.svc.CreateOrUpdateTrip(r.Context(), in, &id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "trip not found")
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(updated))
}

// deleteTrip handles DELETE /trips/{id}. Confirmation is the client's
// concern; by the time this endpoint is called it is assumed granted.
func (s *Server) deleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeleteTrip(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "trip not found")
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

// pathID parses the {id} path parameter, rejecting malformed UUIDs.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeRequestError(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// decodeTripRequest decodes and maps the request body, writing the error
// response itself on failure.
func decodeTripRequest(w http.ResponseWriter, r *http.Request) (domain.TripInput, bool) {
	var req tripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRequestError(w, "invalid request body")
		return domain.TripInput{}, false
	}
	return req.toInput(), true
}

func (req tripRequest) toInput() domain.TripInput {
	in := domain.TripInput{
		Title:      req.Title,
		Location:   req.Location,
		Companions: req.Companions,
		Notes:      req.Notes,
		Category:   domain.Category(req.Category),
		Rating:     req.Rating,
		Weather:    domain.Weather(req.Weather),
		Expenses:   req.Expenses,
		Images:     req.Images,
		Videos:     req.Videos,
	}
	if req.StartDate != nil {
		sd := req.StartDate.Time
		in.StartDate = &sd
	}
	if req.EndDate != nil {
		ed := req.EndDate.Time
		in.EndDate = &ed
	}
	return in
}

// recordToResponse converts a domain.Record into the response shape.
func recordToResponse(rec domain.Record) tripResponse {
	resp := tripResponse{
		ID:            rec.ID,
		Title:         rec.Title,
		Location:      rec.Location,
		Coordinates:   rec.Coordinates,
		Companions:    rec.Companions,
		Notes:         rec.Notes,
		Category:      rec.Category,
		Rating:        rec.Rating,
		Weather:       rec.Weather,
		Expenses:      emptyIfNil(rec.Expenses),
		Images:        emptyStringsIfNil(rec.Images),
		Videos:        emptyStringsIfNil(rec.Videos),
		TotalExpenses: view.TotalExpenses(rec),
		IsWishlist:    rec.IsWishlist,
		SourceTripID:  rec.SourceTripID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if rec.StartDate != nil {
		sd := openapi_types.Date{Time: *rec.StartDate}
		resp.StartDate = &sd
	}
	if rec.EndDate != nil {
		ed := openapi_types.Date{Time: *rec.EndDate}
		resp.EndDate = &ed
	}
	return resp
}

func recordsToResponse(records []domain.Record) []tripResponse {
	out := make([]tripResponse, len(records))
	for i, rec := range records {
		out[i] = recordToResponse(rec)
	}
	return out
}

func emptyIfNil(e []domain.Expense) []domain.Expense {
	if e == nil {
		return []domain.Expense{}
	}
	return e
}

func emptyStringsIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
