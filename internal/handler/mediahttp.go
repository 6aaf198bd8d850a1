package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// uploadMedia handles POST /media: a multipart form with one or more
// "file" parts. Each part is uploaded and its reference returned; callers
// attach the references to a trip or a draft. A part that fails to upload
// fails the request; partial uploads are the caller's to retry.
func (s *Server) uploadMedia(w http.ResponseWriter, r *http.Request) {
	refs, ok := s.uploadParts(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string][]string{"urls": refs})
}

// getMedia handles GET /media/*: fetches a stored blob by key. The key
// namespace (uploads/ or local/) belongs to the media store; the handler
// passes it through untouched.
func (s *Server) getMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	obj, err := s.media.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "media not found")
			return
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

// uploadParts reads every "file" part of a multipart request and uploads
// each through the media store. On failure it writes the error response
// and returns ok=false.
func (s *Server) uploadParts(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeRequestError(w, "multipart form required")
		return nil, false
	}

	var refs []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeRequestError(w, "malformed multipart form")
			return nil, false
		}
		if part.FormName() != "file" {
			continue
		}

		data, err := io.ReadAll(part)
		if err != nil {
			writeRequestError(w, "failed to read upload")
			return nil, false
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ref, err := s.media.Upload(r.Context(), s.ownerID, part.FileName(), contentType, data)
		if err != nil {
			writeError(w, err)
			return nil, false
		}
		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		writeRequestError(w, "no file parts in form")
		return nil, false
	}
	return refs, true
}
