package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/store"
	"github.com/ldenis/travel-logbook/testutil"
)

// ---- helpers ---------------------------------------------------------------

func newRecord(owner, title string) domain.Record {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return domain.Record{
		OwnerID:     owner,
		Title:       title,
		Location:    "Paris",
		Coordinates: domain.Coordinates{Lat: 48.8566, Lon: 2.3522},
		Companions:  "Alex",
		StartDate:   &start,
		Notes:       "first visit",
		Category:    domain.CategoryVacation,
		Rating:      4,
		Weather:     domain.WeatherSunny,
		Expenses:    []domain.Expense{{Item: "Hotel", Cost: "300"}},
		Images:      []string{"local/1/a.jpg"},
		Videos:      []string{},
	}
}

// drainSnapshot receives the next snapshot for the given collection,
// skipping snapshots for the other one.
func drainSnapshot(t *testing.T, sub *store.Subscription, col domain.Collection) store.Snapshot {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case snap, ok := <-sub.C:
			require.True(t, ok, "subscription closed while waiting for %s snapshot", col)
			if snap.Collection == col {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s snapshot", col)
		}
	}
}

// ---- CRUD ------------------------------------------------------------------

func TestSQLiteStore_InsertAssignsIdentityAndTimestamps(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	created, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.False(t, created.IsWishlist)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	created, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, "local")
	require.NoError(t, err)
	defer sub.Close()

	snap := drainSnapshot(t, sub, domain.CollectionTrips)
	require.Len(t, snap.Records, 1)

	got := snap.Records[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Paris Getaway", got.Title)
	assert.Equal(t, domain.Coordinates{Lat: 48.8566, Lon: 2.3522}, got.Coordinates)
	require.NotNil(t, got.StartDate)
	assert.Equal(t, "2025-06-01", got.StartDate.Format("2006-01-02"))
	assert.Nil(t, got.EndDate)
	assert.Equal(t, []domain.Expense{{Item: "Hotel", Cost: "300"}}, got.Expenses)
	assert.Equal(t, []string{"local/1/a.jpg"}, got.Images)
	assert.Equal(t, []string{}, got.Videos)
	assert.Equal(t, created.CreatedAt.UTC(), got.CreatedAt.UTC())
}

func TestSQLiteStore_UpdatePreservesCreatedAt(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	created, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))
	require.NoError(t, err)

	created.Title = "Paris Revisited"
	created.Rating = 5
	updated, err := s.Update(ctx, domain.CollectionTrips, created)

	require.NoError(t, err)
	assert.Equal(t, "Paris Revisited", updated.Title)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, created.CreatedAt.UTC(), updated.CreatedAt.UTC())
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
}

func TestSQLiteStore_UpdateUnknownID(t *testing.T) {
	s := testutil.NewSQLiteStore(t)

	rec := newRecord("local", "Ghost")
	rec.ID = uuid.New()

	_, err := s.Update(context.Background(), domain.CollectionTrips, rec)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_Remove(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	created, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, domain.CollectionTrips, created.ID))

	err = s.Remove(ctx, domain.CollectionTrips, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_CollectionsAreSeparate(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	trip, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))
	require.NoError(t, err)

	entry := newRecord("local", "Paris Someday")
	entry.SourceTripID = &trip.ID
	wish, err := s.Insert(ctx, domain.CollectionWishlist, entry)
	require.NoError(t, err)
	assert.True(t, wish.IsWishlist)

	// Removing from the wrong collection must not find the record.
	err = s.Remove(ctx, domain.CollectionWishlist, trip.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sub, err := s.Subscribe(ctx, "local")
	require.NoError(t, err)
	defer sub.Close()

	wishSnap := drainSnapshot(t, sub, domain.CollectionWishlist)
	require.Len(t, wishSnap.Records, 1)
	require.NotNil(t, wishSnap.Records[0].SourceTripID)
	assert.Equal(t, trip.ID, *wishSnap.Records[0].SourceTripID)
}

func TestSQLiteStore_ListIsNewestFirst(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "First"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct created_at
	second, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Second"))
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, "local")
	require.NoError(t, err)
	defer sub.Close()

	snap := drainSnapshot(t, sub, domain.CollectionTrips)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, second.ID, snap.Records[0].ID)
	assert.Equal(t, first.ID, snap.Records[1].ID)
}

func TestSQLiteStore_OwnersAreIsolated(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, domain.CollectionTrips, newRecord("alice", "Hers"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, domain.CollectionTrips, newRecord("bob", "His"))
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()

	snap := drainSnapshot(t, sub, domain.CollectionTrips)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "Hers", snap.Records[0].Title)
}

// ---- subscriptions ---------------------------------------------------------

func TestSQLiteStore_SubscribeDeliversInitialSnapshotsForBothCollections(t *testing.T) {
	s := testutil.NewSQLiteStore(t)

	sub, err := s.Subscribe(context.Background(), "local")
	require.NoError(t, err)
	defer sub.Close()

	seen := map[domain.Collection]bool{}
	for n := 0; n < 2; n++ {
		select {
		case snap := <-sub.C:
			seen[snap.Collection] = true
			assert.Empty(t, snap.Records)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for initial snapshots")
		}
	}
	assert.True(t, seen[domain.CollectionTrips])
	assert.True(t, seen[domain.CollectionWishlist])
}

func TestSQLiteStore_WritesTriggerFreshSnapshots(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "local")
	require.NoError(t, err)
	defer sub.Close()

	// Drain the initial snapshots.
	drainSnapshot(t, sub, domain.CollectionTrips)
	drainSnapshot(t, sub, domain.CollectionWishlist)

	created, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))
	require.NoError(t, err)

	snap := drainSnapshot(t, sub, domain.CollectionTrips)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, created.ID, snap.Records[0].ID)

	require.NoError(t, s.Remove(ctx, domain.CollectionTrips, created.ID))

	snap = drainSnapshot(t, sub, domain.CollectionTrips)
	assert.Empty(t, snap.Records)
}

func TestSQLiteStore_BurstOnOneCollectionKeepsTheOtherQueued(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "local")
	require.NoError(t, err)
	defer sub.Close()

	// Nothing is drained yet, so the writes below overflow the snapshot
	// buffer and force coalescing.
	trip, err := s.Insert(ctx, domain.CollectionTrips, newRecord("local", "Paris Getaway"))
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := s.Insert(ctx, domain.CollectionWishlist, newRecord("local", fmt.Sprintf("Wish %d", i)))
		require.NoError(t, err)
	}

	// Coalescing may discard intermediate states, but never a whole
	// collection: the newest trips snapshot must still be delivered.
	snap := drainSnapshot(t, sub, domain.CollectionTrips)
	for len(snap.Records) == 0 {
		snap = drainSnapshot(t, sub, domain.CollectionTrips)
	}
	require.Len(t, snap.Records, 1)
	assert.Equal(t, trip.ID, snap.Records[0].ID)

	wl := drainSnapshot(t, sub, domain.CollectionWishlist)
	for len(wl.Records) != 6 {
		wl = drainSnapshot(t, sub, domain.CollectionWishlist)
	}
}

func TestSQLiteStore_CloseStopsDelivery(t *testing.T) {
	s := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "local")
	require.NoError(t, err)

	sub.Close()

	// The channel is closed; a write after Close must not panic and must
	// not surface anywhere.
	_, err = s.Insert(ctx, domain.CollectionTrips, newRecord("local", "After Close"))
	require.NoError(t, err)

	for range sub.C {
		// drain whatever was queued before Close
	}
}
