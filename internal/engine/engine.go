// Package engine owns the record lifecycle: create/update/delete for
// trips, wishlist add/remove, and promotion from wishlist to trip. It
// holds the canonical in-memory collections, fed wholesale by store
// snapshots, and orchestrates media cleanup on deletion.
//
// The engine never branches on which store variant is active and performs
// no automatic retry and no optimistic patching: between issuing a write
// and receiving the next snapshot the visible collections are stale by
// design.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/geo"
	"github.com/ldenis/travel-logbook/internal/media"
	"github.com/ldenis/travel-logbook/internal/store"
)

// Engine implements the record lifecycle over a RecordStore and a media
// Store.
type Engine struct {
	store   store.RecordStore
	media   media.Store
	resolve geo.ResolverFunc
	ownerID string
	log     *slog.Logger

	// mu guards the collections. Commands run on the request path while
	// snapshots arrive from the subscription goroutine.
	mu       sync.RWMutex
	trips    []domain.Record
	wishlist []domain.Record
}

// New constructs an Engine. resolve defaults to geo.Resolve and log to
// slog.Default when nil.
func New(st store.RecordStore, ms media.Store, resolve geo.ResolverFunc, ownerID string, log *slog.Logger) *Engine {
	if resolve == nil {
		resolve = geo.Resolve
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    st,
		media:    ms,
		resolve:  resolve,
		ownerID:  ownerID,
		log:      log,
		trips:    []domain.Record{},
		wishlist: []domain.Record{},
	}
}

// Trips returns a copy of the current trip collection, newest first.
func (e *Engine) Trips() []domain.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Record{}, e.trips...)
}

// Wishlist returns a copy of the current wishlist, newest first.
func (e *Engine) Wishlist() []domain.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Record{}, e.wishlist...)
}

// applySnapshot replaces one collection wholesale. The snapshot is
// authoritative; there is no merge with local state (last-snapshot-wins).
func (e *Engine) applySnapshot(snap store.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := snap.Records
	if records == nil {
		records = []domain.Record{}
	}
	switch snap.Collection {
	case domain.CollectionTrips:
		e.trips = records
	case domain.CollectionWishlist:
		e.wishlist = records
	}
}

// clear empties both collections. Called by Session.Close after snapshot
// delivery has stopped.
func (e *Engine) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trips = []domain.Record{}
	e.wishlist = []domain.Record{}
}

// CreateOrUpdateTrip validates and persists a trip. A nil editingID
// inserts a new record; otherwise the record matching editingID is
// replaced, preserving its created_at. Coordinates are derived from the
// location on every save, and expense rows with an empty item or cost are
// stripped before persisting.
//
// A store failure leaves the in-memory collection untouched; state only
// ever changes through snapshots.
func (e *Engine) CreateOrUpdateTrip(ctx context.Context, in domain.TripInput, editingID *uuid.UUID) (domain.Record, error) {
	if err := validateInput(in); err != nil {
		return domain.Record{}, fmt.Errorf("engine.Engine.CreateOrUpdateTrip: %w", err)
	}

	rec := recordFromInput(in, e.resolve)
	rec.OwnerID = e.ownerID

	if editingID == nil {
		created, err := e.store.Insert(ctx, domain.CollectionTrips, rec)
		if err != nil {
			return domain.Record{}, fmt.Errorf("engine.Engine.CreateOrUpdateTrip: %w: %w", domain.ErrStore, err)
		}
		return created, nil
	}

	existing, ok := e.findTrip(*editingID)
	if !ok {
		return domain.Record{}, fmt.Errorf("engine.Engine.CreateOrUpdateTrip: %w", domain.ErrNotFound)
	}
	rec.ID = existing.ID
	rec.OwnerID = existing.OwnerID
	rec.CreatedAt = existing.CreatedAt

	updated, err := e.store.Update(ctx, domain.CollectionTrips, rec)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Record{}, fmt.Errorf("engine.Engine.CreateOrUpdateTrip: %w", domain.ErrNotFound)
		}
		return domain.Record{}, fmt.Errorf("engine.Engine.CreateOrUpdateTrip: %w: %w", domain.ErrStore, err)
	}
	return updated, nil
}

// DeleteTrip removes a trip and every media blob it owns. Media cleanup
// is best-effort, not transactional: each of the N+M delete calls is
// issued regardless of earlier failures, failures are logged and
// swallowed, and only the record removal itself can fail the operation.
// If record removal fails after media cleanup succeeded, the media is
// gone and the record stays, an accepted orphan-tolerant failure mode.
func (e *Engine) DeleteTrip(ctx context.Context, id uuid.UUID) error {
	trip, ok := e.findTrip(id)
	if !ok {
		return fmt.Errorf("engine.Engine.DeleteTrip: %w", domain.ErrNotFound)
	}

	for _, ref := range trip.MediaRefs() {
		if err := e.media.Delete(ctx, ref); err != nil {
			e.log.Warn("media cleanup failed", "trip_id", id, "ref", ref, "error", err)
		}
	}

	if err := e.store.Remove(ctx, domain.CollectionTrips, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("engine.Engine.DeleteTrip: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("engine.Engine.DeleteTrip: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// AddToWishlist copies a trip into the wishlist. Adding a trip that is
// already wishlisted is a silent no-op, not an error, so the operation is
// idempotent. Coordinates are recomputed from the trip's location.
func (e *Engine) AddToWishlist(ctx context.Context, tripID uuid.UUID) error {
	trip, ok := e.findTrip(tripID)
	if !ok {
		return fmt.Errorf("engine.Engine.AddToWishlist: %w", domain.ErrNotFound)
	}
	if e.wishlistContains(tripID) {
		return nil
	}

	entry := trip
	entry.ID = uuid.Nil
	entry.Coordinates = e.resolve(trip.Location)
	entry.IsWishlist = true
	src := tripID
	entry.SourceTripID = &src

	if _, err := e.store.Insert(ctx, domain.CollectionWishlist, entry); err != nil {
		return fmt.Errorf("engine.Engine.AddToWishlist: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// RemoveFromWishlist deletes a wishlist entry. The source trip and its
// media are never touched; the back-reference is a weak relation.
func (e *Engine) RemoveFromWishlist(ctx context.Context, id uuid.UUID) error {
	if _, ok := e.findWishlist(id); !ok {
		return fmt.Errorf("engine.Engine.RemoveFromWishlist: %w", domain.ErrNotFound)
	}

	if err := e.store.Remove(ctx, domain.CollectionWishlist, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("engine.Engine.RemoveFromWishlist: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("engine.Engine.RemoveFromWishlist: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// PromoteWishlistToTrip turns a wishlist entry into a trip. All field
// values carry over except identity, the wishlist flag, and the source
// back-reference; the store assigns a fresh identity and created_at.
//
// The trip is inserted before the wishlist entry is removed. If the
// insert fails the wishlist entry stays put (no silent data loss). If the
// removal fails after a successful insert, promotion still succeeds and
// the entry lingers as a dangling duplicate; that is logged as a warning.
func (e *Engine) PromoteWishlistToTrip(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	entry, ok := e.findWishlist(id)
	if !ok {
		return domain.Record{}, fmt.Errorf("engine.Engine.PromoteWishlistToTrip: %w", domain.ErrNotFound)
	}

	trip := entry
	trip.ID = uuid.Nil
	trip.IsWishlist = false
	trip.SourceTripID = nil

	created, err := e.store.Insert(ctx, domain.CollectionTrips, trip)
	if err != nil {
		return domain.Record{}, fmt.Errorf("engine.Engine.PromoteWishlistToTrip: %w: %w", domain.ErrStore, err)
	}

	if err := e.store.Remove(ctx, domain.CollectionWishlist, id); err != nil {
		e.log.Warn("promoted wishlist entry could not be removed",
			"wishlist_id", id, "trip_id", created.ID, "error", err)
	}
	return created, nil
}

// findTrip looks a trip up in the in-memory collection.
func (e *Engine) findTrip(id uuid.UUID) (domain.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range e.trips {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Record{}, false
}

func (e *Engine) findWishlist(id uuid.UUID) (domain.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, w := range e.wishlist {
		if w.ID == id {
			return w, true
		}
	}
	return domain.Record{}, false
}

// wishlistContains reports whether a wishlist entry already references the
// trip. The logical key is the source trip ID.
func (e *Engine) wishlistContains(tripID uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, w := range e.wishlist {
		if w.SourceTripID != nil && *w.SourceTripID == tripID {
			return true
		}
	}
	return false
}

// validateInput enforces the required fields. Dates are deliberately not
// cross-checked: an end date before the start date is stored as given.
func validateInput(in domain.TripInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Location) == "" {
		return fmt.Errorf("%w: location is required", domain.ErrValidation)
	}
	if in.Rating < 0 || in.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 0 and 5", domain.ErrValidation)
	}
	return nil
}

// recordFromInput builds the record to persist: coordinates derived from
// the location, defaults applied, and incomplete expense rows stripped.
func recordFromInput(in domain.TripInput, resolve geo.ResolverFunc) domain.Record {
	category := in.Category
	if category == "" {
		category = domain.CategoryVacation
	}

	expenses := []domain.Expense{}
	for _, exp := range in.Expenses {
		if exp.Item == "" || exp.Cost == "" {
			continue
		}
		expenses = append(expenses, exp)
	}

	return domain.Record{
		Title:       in.Title,
		Location:    in.Location,
		Coordinates: resolve(in.Location),
		Companions:  in.Companions,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Notes:       in.Notes,
		Category:    category,
		Rating:      in.Rating,
		Weather:     in.Weather,
		Expenses:    expenses,
		Images:      append([]string{}, in.Images...),
		Videos:      append([]string{}, in.Videos...),
	}
}
