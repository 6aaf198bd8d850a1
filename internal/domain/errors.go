package domain

import "errors"

// ErrNotFound is returned by store and engine functions when the requested
// record does not exist. Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by engine functions when input fails business
// rule validation (e.g. missing title or location) before any write is
// attempted. Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrStore is returned when a persistence read or write fails. The
// operation is aborted and the in-memory collection is left unchanged.
var ErrStore = errors.New("store error")

// ErrMediaDelete is returned by media stores for a malformed deletion
// reference. Deleting a reference that is already absent is NOT an error:
// callers retry deletes, so absence counts as success.
var ErrMediaDelete = errors.New("media delete error")

// ErrMediaUpload is returned by media stores when persisting a blob fails.
var ErrMediaUpload = errors.New("media upload error")
