package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// localKeyPrefix namespaces the in-memory keys so the media fetch route
// can tell them apart from durable uploads/ keys. A full key looks like
// local/{n}/{filename}.
const localKeyPrefix = "local/"

// LocalStore is the session-scoped in-memory media store used when no
// remote backend is configured. References are minted the same way the
// Postgres variant mints them, baseURL + /media/ + key, so they are
// fetchable over HTTP, but the blobs carry no durability guarantee: they
// die with the process.
//
// Delete is a deliberate no-op. Local references are cheap handles, not
// managed objects, and the record lifecycle's best-effort cleanup must
// succeed against this variant without special-casing it.
type LocalStore struct {
	baseURL string

	mu      sync.Mutex
	seq     int
	objects map[string]Object
}

// NewLocalStore constructs an empty LocalStore. baseURL is the externally
// reachable server root (no trailing slash).
func NewLocalStore(baseURL string) *LocalStore {
	return &LocalStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

// Upload stores the blob in memory and returns its URL.
func (s *LocalStore) Upload(_ context.Context, _, filename, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	key := fmt.Sprintf("%s%d/%s", localKeyPrefix, s.seq, sanitizeFilename(filename))
	s.objects[key] = Object{ContentType: contentType, Data: data}
	return s.baseURL + urlPathPrefix + key, nil
}

// Open fetches a blob by reference (URL or bare key).
func (s *LocalStore) Open(_ context.Context, ref string) (Object, error) {
	key, ok := localKeyFromRef(ref)
	if !ok {
		return Object{}, fmt.Errorf("media.LocalStore.Open: %w", domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("media.LocalStore.Open: %w", domain.ErrNotFound)
	}
	return obj, nil
}

// Delete is a no-op success.
func (s *LocalStore) Delete(context.Context, string) error {
	return nil
}

// Len reports the number of stored blobs. Test hook.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func localKeyFromRef(ref string) (string, bool) {
	if strings.HasPrefix(ref, localKeyPrefix) {
		return ref, true
	}
	if i := strings.Index(ref, urlPathPrefix+localKeyPrefix); i >= 0 {
		return ref[i+len(urlPathPrefix):], true
	}
	return "", false
}
