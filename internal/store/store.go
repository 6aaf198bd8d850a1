// Package store contains the persistence layer for trip and wishlist
// records. One interface, two implementations: a remote multi-device
// Postgres store that pushes live snapshots, and a local single-device
// SQLite store. The engine never knows which one it is talking to.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// Snapshot is a full, authoritative view of one collection, ordered by
// created_at descending. Consumers replace their state wholesale; there
// is no incremental merge.
type Snapshot struct {
	Collection domain.Collection
	Records    []domain.Record
}

// Subscription delivers snapshots on C until Close is called. Close is
// synchronous: once it returns, nothing more is sent and C is closed.
// That ordering is load-bearing: a session clears its in-memory state
// after Close, and a late snapshot must not repopulate it.
type Subscription struct {
	C <-chan Snapshot

	stop func()
	once sync.Once
}

// NewSubscription wraps a snapshot channel and a stop function. stop must
// block until delivery has ceased and the channel is closed.
func NewSubscription(c <-chan Snapshot, stop func()) *Subscription {
	return &Subscription{C: c, stop: stop}
}

// Close stops snapshot delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.stop)
}

// RecordStore defines the persistence operations for records. The engine
// depends on this interface, not on a concrete implementation, which
// keeps it variant-agnostic and lets tests inject a mock.
//
// Writes are not reflected in the caller's state directly: every
// implementation follows a write with a fresh snapshot on any open
// subscription, and the caller treats that snapshot as authoritative.
type RecordStore interface {
	// Subscribe starts snapshot delivery for one owner. The initial
	// snapshots for both collections arrive first, then one snapshot per
	// observed change (last-snapshot-wins; intermediate states may be
	// coalesced away).
	Subscribe(ctx context.Context, ownerID string) (*Subscription, error)

	// Insert persists a new record and returns it with store-assigned
	// identity and timestamps populated.
	Insert(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error)

	// Update overwrites the mutable fields of an existing record,
	// preserving created_at and refreshing updated_at. Returns
	// domain.ErrNotFound if no record with that ID exists.
	Update(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error)

	// Remove deletes a record by ID. Returns domain.ErrNotFound if it
	// does not exist.
	Remove(ctx context.Context, col domain.Collection, id uuid.UUID) error
}

// sendLatest delivers snap without ever blocking. When the buffer is
// full only queued snapshots of snap's own collection are evicted; the
// newest queued snapshot of every other collection is kept, so a burst
// of writes on one collection cannot starve the other. Sends on a given
// channel are serialized by the caller.
func sendLatest(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}

		// Buffer full. Drain it and re-enqueue the latest snapshot per
		// other collection; snap supersedes its own collection's entries.
		latest := make(map[domain.Collection]int)
		var kept []Snapshot
	drain:
		for {
			select {
			case old := <-ch:
				if old.Collection == snap.Collection {
					continue
				}
				if i, seen := latest[old.Collection]; seen {
					kept[i] = old
					continue
				}
				latest[old.Collection] = len(kept)
				kept = append(kept, old)
			default:
				break drain
			}
		}
		for _, s := range kept {
			select {
			case ch <- s:
			default:
			}
		}
	}
}
