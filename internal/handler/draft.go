// draft.go implements the trip edit buffer over HTTP.
// A draft accumulates expense rows and uploaded media in memory; nothing
// reaches the record store until the draft is committed, and an abandoned
// draft is simply forgotten.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/engine"
)

// draftRegistry holds the live edit buffers keyed by draft ID.
type draftRegistry struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]*draftEntry
}

type draftEntry struct {
	draft *engine.Draft
	// editingID is set when the draft was opened from an existing trip;
	// commit then updates that trip instead of inserting a new one.
	editingID *uuid.UUID
}

func newDraftRegistry() *draftRegistry {
	return &draftRegistry{drafts: make(map[uuid.UUID]*draftEntry)}
}

func (r *draftRegistry) get(id uuid.UUID) (*draftEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.drafts[id]
	return e, ok
}

// draftResponse is the JSON view of an edit buffer.
type draftResponse struct {
	ID         uuid.UUID           `json:"id"`
	EditingID  *uuid.UUID          `json:"editingId,omitempty"`
	Title      string              `json:"title"`
	Location   string              `json:"location"`
	Companions string              `json:"companions,omitempty"`
	StartDate  *openapi_types.Date `json:"startDate,omitempty"`
	EndDate    *openapi_types.Date `json:"endDate,omitempty"`
	Notes      string              `json:"notes,omitempty"`
	Category   domain.Category     `json:"category"`
	Rating     int                 `json:"rating"`
	Weather    domain.Weather      `json:"weather,omitempty"`
	Expenses   []domain.Expense    `json:"expenses"`
	Images     []string            `json:"images"`
	Videos     []string            `json:"videos"`
}

// createDraft handles POST /drafts. With ?tripId= the draft is seeded
// from that trip for editing; otherwise it starts blank.
func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	entry := &draftEntry{draft: engine.NewDraft()}

	if tripParam := r.URL.Query().Get("tripId"); tripParam != "" {
		tripID, err := uuid.Parse(tripParam)
		if err != nil {
			writeRequestError(w, "invalid tripId")
			return
		}
		trip, ok := findByID(s.svc.Trips(), tripID)
		if !ok {
			writeNotFound(w, "trip not found")
			return
		}
		entry.draft = engine.DraftFromRecord(trip)
		entry.editingID = &tripID
	}

	id := uuid.New()
	s.drafts.mu.Lock()
	s.drafts.drafts[id] = entry
	s.drafts.mu.Unlock()

	writeJSON(w, http.StatusCreated, draftToResponse(id, entry))
}

// updateDraft handles PUT /drafts/{id}: replaces the scalar form fields
// (title, location, dates, notes, ...). Expense rows and media are edited
// through their own endpoints and are left untouched.
func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}

	var req tripRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := req.toInput()

	d := entry.draft
	d.Title = in.Title
	d.Location = in.Location
	d.Companions = in.Companions
	d.StartDate = in.StartDate
	d.EndDate = in.EndDate
	d.Notes = in.Notes
	if in.Category != "" {
		d.Category = in.Category
	}
	d.Rating = in.Rating
	d.Weather = in.Weather

	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// getDraft handles GET /drafts/{id}.
func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// addDraftExpense handles POST /drafts/{id}/expenses: appends a blank row.
func (s *Server) addDraftExpense(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}
	entry.draft.AddExpenseRow()
	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// updateDraftExpense handles PUT /drafts/{id}/expenses/{index}.
func (s *Server) updateDraftExpense(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	var row domain.Expense
	if !decodeBody(w, r, &row) {
		return
	}
	entry.draft.UpdateExpenseRow(index, row.Item, row.Cost)
	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// removeDraftExpense handles DELETE /drafts/{id}/expenses/{index}.
// The last remaining row is retained; removing it is a no-op.
func (s *Server) removeDraftExpense(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	entry.draft.RemoveExpenseRow(index)
	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// addDraftMedia handles POST /drafts/{id}/media: uploads the "file"
// parts and attaches the references to the draft, videos and images
// split by content type.
func (s *Server) addDraftMedia(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeRequestError(w, "multipart form required")
		return
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeRequestError(w, "malformed multipart form")
			return
		}
		if part.FormName() != "file" {
			continue
		}
		data, err := readPart(part)
		if err != nil {
			writeRequestError(w, "failed to read upload")
			return
		}
		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ref, err := s.media.Upload(r.Context(), s.ownerID, part.FileName(), contentType, data)
		if err != nil {
			writeError(w, err)
			return
		}
		if strings.HasPrefix(contentType, "video/") {
			entry.draft.AddVideos(ref)
		} else {
			entry.draft.AddImages(ref)
		}
	}

	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// removeDraftMedia handles DELETE /drafts/{id}/media/{kind}/{index}.
// It detaches the reference from the draft only; the blob itself stays
// until its owning record is deleted.
func (s *Server) removeDraftMedia(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	switch chi.URLParam(r, "kind") {
	case "images":
		entry.draft.RemoveImageAt(index)
	case "videos":
		entry.draft.RemoveVideoAt(index)
	default:
		writeRequestError(w, "kind must be images or videos")
		return
	}
	writeJSON(w, http.StatusOK, draftToResponse(id, entry))
}

// commitDraft handles POST /drafts/{id}/commit: validates and persists
// the accumulated state through the engine, then discards the draft.
// A validation failure keeps the draft so the client can fix and retry.
func (s *Server) commitDraft(w http.ResponseWriter, r *http.Request) {
	id, entry, ok := s.draftFromPath(w, r)
	if !ok {
		return
	}

	rec, err := s.svc.CreateOrUpdateTrip(r.Context(), entry.draft.Input(), entry.editingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "trip not found")
			return
		}
		writeError(w, err)
		return
	}

	s.drafts.mu.Lock()
	delete(s.drafts.drafts, id)
	s.drafts.mu.Unlock()

	status := http.StatusCreated
	if entry.editingID != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, recordToResponse(rec))
}

// --- helpers ----------------------------------------------------------------

func (s *Server) draftFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, *draftEntry, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeRequestError(w, "invalid draft id")
		return uuid.Nil, nil, false
	}
	entry, ok := s.drafts.get(id)
	if !ok {
		writeNotFound(w, "draft not found")
		return uuid.Nil, nil, false
	}
	return id, entry, true
}

// decodeBody decodes a JSON request body into v, writing the error
// response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeRequestError(w, "invalid request body")
		return false
	}
	return true
}

// readPart drains one multipart part.
func readPart(part *multipart.Part) ([]byte, error) {
	return io.ReadAll(part)
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeRequestError(w, "invalid index")
		return 0, false
	}
	return index, true
}

func findByID(records []domain.Record, id uuid.UUID) (domain.Record, bool) {
	for _, rec := range records {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.Record{}, false
}

func draftToResponse(id uuid.UUID, entry *draftEntry) draftResponse {
	d := entry.draft
	resp := draftResponse{
		ID:         id,
		EditingID:  entry.editingID,
		Title:      d.Title,
		Location:   d.Location,
		Companions: d.Companions,
		Notes:      d.Notes,
		Category:   d.Category,
		Rating:     d.Rating,
		Weather:    d.Weather,
		Expenses:   emptyIfNil(d.Expenses),
		Images:     emptyStringsIfNil(d.Images),
		Videos:     emptyStringsIfNil(d.Videos),
	}
	if d.StartDate != nil {
		sd := openapi_types.Date{Time: *d.StartDate}
		resp.StartDate = &sd
	}
	if d.EndDate != nil {
		ed := openapi_types.Date{Time: *d.EndDate}
		resp.EndDate = &ed
	}
	return resp
}
