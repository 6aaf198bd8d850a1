package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// keyPrefix namespaces every object key. A full key looks like
// uploads/{ownerID}/{unixmilli}_{filename}.
const keyPrefix = "uploads/"

// urlPathPrefix is the HTTP path under which blobs are served. References
// returned by Upload are baseURL + urlPathPrefix + key, so the reference a
// record stores is directly fetchable and directly deletable.
const urlPathPrefix = "/media/"

// db is the minimal pgx querier interface, matching the record store's.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the durable media store backed by Postgres.
type PGStore struct {
	db      db
	baseURL string
	now     func() time.Time
}

// NewPGStore constructs a PGStore. baseURL is the externally reachable
// server root (no trailing slash) used to mint fetchable references.
func NewPGStore(q db, baseURL string) *PGStore {
	return &PGStore{
		db:      q,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Upload persists the blob under a collision-free key and returns its URL.
// The timestamp component makes same-named uploads by the same owner
// distinct.
func (s *PGStore) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error) {
	key := fmt.Sprintf("%s%s/%d_%s", keyPrefix, ownerID, s.now().UnixMilli(), sanitizeFilename(filename))

	const q = `
		INSERT INTO media_objects (key, owner_id, filename, content_type, data)
		VALUES (@key, @owner_id, @filename, @content_type, @data)`

	_, err := s.db.Exec(ctx, q, pgx.NamedArgs{
		"key":          key,
		"owner_id":     ownerID,
		"filename":     filename,
		"content_type": contentType,
		"data":         data,
	})
	if err != nil {
		return "", fmt.Errorf("media.PGStore.Upload: %w: %w", domain.ErrMediaUpload, err)
	}

	return s.baseURL + urlPathPrefix + key, nil
}

// Open fetches a blob by reference (URL or bare key).
func (s *PGStore) Open(ctx context.Context, ref string) (Object, error) {
	key, ok := keyFromRef(ref)
	if !ok {
		return Object{}, fmt.Errorf("media.PGStore.Open: %w", domain.ErrNotFound)
	}

	const q = `SELECT content_type, data FROM media_objects WHERE key = @key`

	var obj Object
	err := s.db.QueryRow(ctx, q, pgx.NamedArgs{"key": key}).Scan(&obj.ContentType, &obj.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Object{}, fmt.Errorf("media.PGStore.Open: %w", domain.ErrNotFound)
		}
		return Object{}, fmt.Errorf("media.PGStore.Open: %w", err)
	}
	return obj, nil
}

// Delete removes a blob by reference. Absent blobs are success; a
// reference that does not contain a recognizable key is ErrMediaDelete.
func (s *PGStore) Delete(ctx context.Context, ref string) error {
	key, ok := keyFromRef(ref)
	if !ok {
		return fmt.Errorf("media.PGStore.Delete: %w: malformed reference %q", domain.ErrMediaDelete, ref)
	}

	const q = `DELETE FROM media_objects WHERE key = @key`

	if _, err := s.db.Exec(ctx, q, pgx.NamedArgs{"key": key}); err != nil {
		return fmt.Errorf("media.PGStore.Delete: %w: %w", domain.ErrMediaDelete, err)
	}
	// Zero rows affected means the blob was already gone, so this is idempotent success.
	return nil
}

// keyFromRef extracts the object key from a reference, accepting either a
// full URL minted by Upload or a bare key.
func keyFromRef(ref string) (string, bool) {
	if strings.HasPrefix(ref, keyPrefix) {
		return ref, true
	}
	if i := strings.Index(ref, urlPathPrefix+keyPrefix); i >= 0 {
		return ref[i+len(urlPathPrefix):], true
	}
	return "", false
}

// sanitizeFilename strips path separators so a filename cannot smuggle
// extra key segments.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "file"
	}
	return name
}
