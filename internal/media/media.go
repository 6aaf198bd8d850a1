// Package media stores the image and video blobs attached to records.
// One interface, two implementations: durable Postgres-backed object
// storage for synced sessions, and a session-scoped in-memory store for
// local-only use. A record holds only the opaque references this package
// returns; the reference is the sole link between record and blob.
package media

import "context"

// Object is a fetched blob.
type Object struct {
	ContentType string
	Data        []byte
}

// Store is the capability set the engine and handlers depend on.
type Store interface {
	// Upload persists a blob and returns its reference. The reference is
	// fetchable via Open and doubles as the deletion key.
	Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error)

	// Open fetches a blob by reference. Returns domain.ErrNotFound for an
	// unknown reference.
	Open(ctx context.Context, ref string) (Object, error)

	// Delete removes a blob by reference. Deleting a reference that is
	// already absent is success. Callers retry cleanup, so delete must be
	// idempotent. A malformed reference is domain.ErrMediaDelete.
	Delete(ctx context.Context, ref string) error
}
