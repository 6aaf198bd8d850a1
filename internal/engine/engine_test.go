package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldenis/travel-logbook/internal/domain"
	"github.com/ldenis/travel-logbook/internal/engine"
	"github.com/ldenis/travel-logbook/internal/geo"
	"github.com/ldenis/travel-logbook/internal/media"
	"github.com/ldenis/travel-logbook/internal/store"
)

// mockRecordStore is a hand-written test double for store.RecordStore.
// Each method is a function field; set only the ones your test needs.
// Subscribe hands out a channel the test can push further snapshots into.
type mockRecordStore struct {
	snaps chan store.Snapshot

	insert func(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error)
	update func(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error)
	remove func(ctx context.Context, col domain.Collection, id uuid.UUID) error
}

func newMockStore() *mockRecordStore {
	return &mockRecordStore{snaps: make(chan store.Snapshot, 8)}
}

func (m *mockRecordStore) Subscribe(context.Context, string) (*store.Subscription, error) {
	return store.NewSubscription(m.snaps, func() { close(m.snaps) }), nil
}

func (m *mockRecordStore) Insert(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error) {
	return m.insert(ctx, col, rec)
}

func (m *mockRecordStore) Update(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error) {
	return m.update(ctx, col, rec)
}

func (m *mockRecordStore) Remove(ctx context.Context, col domain.Collection, id uuid.UUID) error {
	return m.remove(ctx, col, id)
}

// compile-time check: mockRecordStore must satisfy store.RecordStore.
var _ store.RecordStore = (*mockRecordStore)(nil)

// mockMediaStore is a hand-written test double for media.Store.
type mockMediaStore struct {
	upload func(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error)
	open   func(ctx context.Context, ref string) (media.Object, error)
	delete func(ctx context.Context, ref string) error
}

func (m *mockMediaStore) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error) {
	return m.upload(ctx, ownerID, filename, contentType, data)
}

func (m *mockMediaStore) Open(ctx context.Context, ref string) (media.Object, error) {
	return m.open(ctx, ref)
}

func (m *mockMediaStore) Delete(ctx context.Context, ref string) error {
	return m.delete(ctx, ref)
}

var _ media.Store = (*mockMediaStore)(nil)

// ---- helpers ---------------------------------------------------------------

// fixedResolver returns the same coordinates for every location, so tests
// can tell derived coordinates apart from anything client-supplied.
func fixedResolver(lat, lon float64) geo.ResolverFunc {
	return func(string) domain.Coordinates {
		return domain.Coordinates{Lat: lat, Lon: lon}
	}
}

func echoStore() *mockRecordStore {
	m := newMockStore()
	m.insert = func(_ context.Context, _ domain.Collection, r domain.Record) (domain.Record, error) {
		r.ID = uuid.New()
		return r, nil
	}
	m.update = func(_ context.Context, _ domain.Collection, r domain.Record) (domain.Record, error) {
		return r, nil
	}
	m.remove = func(context.Context, domain.Collection, uuid.UUID) error { return nil }
	return m
}

func nopMedia() *mockMediaStore {
	return &mockMediaStore{
		delete: func(context.Context, string) error { return nil },
	}
}

func validInput() domain.TripInput {
	return domain.TripInput{
		Title:    "Paris Getaway",
		Location: "Paris",
		Rating:   4,
	}
}

func sampleTrip() domain.Record {
	return domain.Record{
		ID:        uuid.New(),
		OwnerID:   "tester",
		Title:     "Paris Getaway",
		Location:  "Paris",
		Category:  domain.CategoryVacation,
		Rating:    4,
		Expenses:  []domain.Expense{{Item: "Hotel", Cost: "300"}},
		Images:    []string{"uploads/tester/1_a.jpg"},
		Videos:    []string{"uploads/tester/2_b.mp4"},
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// newSessionEngine builds an engine over the mocks, opens a session, and
// blocks until the seeded snapshots have been applied.
func newSessionEngine(t *testing.T, st *mockRecordStore, ms media.Store, trips, wishlist []domain.Record) (*engine.Engine, *engine.Session) {
	t.Helper()

	eng := engine.New(st, ms, fixedResolver(48.8566, 2.3522), "tester", nil)

	st.snaps <- store.Snapshot{Collection: domain.CollectionTrips, Records: trips}
	st.snaps <- store.Snapshot{Collection: domain.CollectionWishlist, Records: wishlist}

	sess, err := engine.OpenSession(context.Background(), eng)
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	require.Eventually(t, func() bool {
		return len(eng.Trips()) == len(trips) && len(eng.Wishlist()) == len(wishlist)
	}, time.Second, time.Millisecond, "seeded snapshots were not applied")

	return eng, sess
}

// ---- CreateOrUpdateTrip ----------------------------------------------------

func TestEngine_Create_Valid(t *testing.T) {
	st := echoStore()
	var gotCol domain.Collection
	var gotRec domain.Record
	st.insert = func(_ context.Context, col domain.Collection, r domain.Record) (domain.Record, error) {
		gotCol, gotRec = col, r
		r.ID = uuid.New()
		return r, nil
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), nil, nil)

	created, err := eng.CreateOrUpdateTrip(context.Background(), validInput(), nil)

	require.NoError(t, err)
	assert.Equal(t, domain.CollectionTrips, gotCol)
	assert.Equal(t, "tester", gotRec.OwnerID)
	assert.Equal(t, domain.Coordinates{Lat: 48.8566, Lon: 2.3522}, gotRec.Coordinates)
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestEngine_Create_MissingTitle(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	in := validInput()
	in.Title = "   " // whitespace-only should be treated as empty

	_, err := eng.CreateOrUpdateTrip(context.Background(), in, nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_Create_MissingLocation(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	in := validInput()
	in.Location = ""

	_, err := eng.CreateOrUpdateTrip(context.Background(), in, nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_Create_RatingOutOfRange(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	for _, rating := range []int{-1, 6} {
		in := validInput()
		in.Rating = rating

		_, err := eng.CreateOrUpdateTrip(context.Background(), in, nil)

		assert.ErrorIs(t, err, domain.ErrValidation, "rating %d", rating)
	}
}

func TestEngine_Create_EndDateBeforeStartIsAccepted(t *testing.T) {
	// Dates are stored exactly as entered; no cross-field check.
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	in := validInput()
	start := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -10)
	in.StartDate = &start
	in.EndDate = &end

	got, err := eng.CreateOrUpdateTrip(context.Background(), in, nil)

	require.NoError(t, err)
	assert.Equal(t, &end, got.EndDate)
}

func TestEngine_Create_StripsIncompleteExpenses(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	in := validInput()
	in.Expenses = []domain.Expense{
		{Item: "Hotel", Cost: "300"},
		{Item: "", Cost: "50"},     // no item
		{Item: "Dinner", Cost: ""}, // no cost
		{},                         // the blank starter row
		{Item: "Museum", Cost: "20"},
	}

	got, err := eng.CreateOrUpdateTrip(context.Background(), in, nil)

	require.NoError(t, err)
	assert.Equal(t, []domain.Expense{
		{Item: "Hotel", Cost: "300"},
		{Item: "Museum", Cost: "20"},
	}, got.Expenses)
}

func TestEngine_Create_DefaultsCategory(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	in := validInput()
	in.Category = ""

	got, err := eng.CreateOrUpdateTrip(context.Background(), in, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryVacation, got.Category)
}

func TestEngine_Create_StoreFailure(t *testing.T) {
	st := echoStore()
	st.insert = func(context.Context, domain.Collection, domain.Record) (domain.Record, error) {
		return domain.Record{}, errors.New("connection reset")
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), nil, nil)

	_, err := eng.CreateOrUpdateTrip(context.Background(), validInput(), nil)

	assert.ErrorIs(t, err, domain.ErrStore)
	// State only changes through snapshots, so a failed write leaves the
	// collections exactly as they were.
	assert.Empty(t, eng.Trips())
}

func TestEngine_Update_PreservesIdentityAndCreatedAt(t *testing.T) {
	existing := sampleTrip()
	st := echoStore()
	var gotRec domain.Record
	st.update = func(_ context.Context, _ domain.Collection, r domain.Record) (domain.Record, error) {
		gotRec = r
		return r, nil
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), []domain.Record{existing}, nil)

	in := validInput()
	in.Title = "Paris Revisited"

	got, err := eng.CreateOrUpdateTrip(context.Background(), in, &existing.ID)

	require.NoError(t, err)
	assert.Equal(t, existing.ID, gotRec.ID)
	assert.Equal(t, existing.OwnerID, gotRec.OwnerID)
	assert.Equal(t, existing.CreatedAt, gotRec.CreatedAt)
	assert.Equal(t, "Paris Revisited", got.Title)
}

func TestEngine_Update_UnknownID(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	missing := uuid.New()
	_, err := eng.CreateOrUpdateTrip(context.Background(), validInput(), &missing)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- DeleteTrip ------------------------------------------------------------

func TestEngine_DeleteTrip_RemovesAllMediaThenRecord(t *testing.T) {
	trip := sampleTrip()
	st := echoStore()
	var removed []uuid.UUID
	st.remove = func(_ context.Context, col domain.Collection, id uuid.UUID) error {
		assert.Equal(t, domain.CollectionTrips, col)
		removed = append(removed, id)
		return nil
	}
	ms := nopMedia()
	var deletedRefs []string
	ms.delete = func(_ context.Context, ref string) error {
		deletedRefs = append(deletedRefs, ref)
		return nil
	}
	eng, _ := newSessionEngine(t, st, ms, []domain.Record{trip}, nil)

	err := eng.DeleteTrip(context.Background(), trip.ID)

	require.NoError(t, err)
	assert.Equal(t, trip.MediaRefs(), deletedRefs)
	assert.Equal(t, []uuid.UUID{trip.ID}, removed)
}

func TestEngine_DeleteTrip_MediaFailuresAreSwallowed(t *testing.T) {
	trip := sampleTrip()
	st := echoStore()
	ms := nopMedia()
	var attempts int
	ms.delete = func(context.Context, string) error {
		attempts++
		return errors.New("blob gone wrong")
	}
	eng, _ := newSessionEngine(t, st, ms, []domain.Record{trip}, nil)

	err := eng.DeleteTrip(context.Background(), trip.ID)

	// Every blob is attempted even when earlier deletes fail, and the
	// record removal still proceeds.
	require.NoError(t, err)
	assert.Equal(t, len(trip.MediaRefs()), attempts)
}

func TestEngine_DeleteTrip_RemoveFailure(t *testing.T) {
	trip := sampleTrip()
	st := echoStore()
	st.remove = func(context.Context, domain.Collection, uuid.UUID) error {
		return errors.New("connection reset")
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), []domain.Record{trip}, nil)

	err := eng.DeleteTrip(context.Background(), trip.ID)

	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestEngine_DeleteTrip_Unknown(t *testing.T) {
	ms := nopMedia()
	ms.delete = func(context.Context, string) error {
		t.Fatal("media delete must not be called for an unknown trip")
		return nil
	}
	eng, _ := newSessionEngine(t, echoStore(), ms, nil, nil)

	err := eng.DeleteTrip(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- Wishlist --------------------------------------------------------------

func TestEngine_AddToWishlist(t *testing.T) {
	trip := sampleTrip()
	st := echoStore()
	var gotCol domain.Collection
	var gotRec domain.Record
	st.insert = func(_ context.Context, col domain.Collection, r domain.Record) (domain.Record, error) {
		gotCol, gotRec = col, r
		r.ID = uuid.New()
		return r, nil
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), []domain.Record{trip}, nil)

	err := eng.AddToWishlist(context.Background(), trip.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.CollectionWishlist, gotCol)
	assert.Equal(t, uuid.Nil, gotRec.ID, "store assigns identity")
	assert.True(t, gotRec.IsWishlist)
	require.NotNil(t, gotRec.SourceTripID)
	assert.Equal(t, trip.ID, *gotRec.SourceTripID)
	assert.Equal(t, trip.Title, gotRec.Title)
}

func TestEngine_AddToWishlist_AlreadyPresentIsNoOp(t *testing.T) {
	trip := sampleTrip()
	src := trip.ID
	entry := sampleTrip()
	entry.IsWishlist = true
	entry.SourceTripID = &src

	st := echoStore()
	st.insert = func(context.Context, domain.Collection, domain.Record) (domain.Record, error) {
		t.Fatal("insert must not be called for a duplicate wishlist add")
		return domain.Record{}, nil
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), []domain.Record{trip}, []domain.Record{entry})

	err := eng.AddToWishlist(context.Background(), trip.ID)

	assert.NoError(t, err)
}

func TestEngine_AddToWishlist_UnknownTrip(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	err := eng.AddToWishlist(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_RemoveFromWishlist(t *testing.T) {
	entry := sampleTrip()
	entry.IsWishlist = true

	st := echoStore()
	var gotCol domain.Collection
	st.remove = func(_ context.Context, col domain.Collection, id uuid.UUID) error {
		gotCol = col
		assert.Equal(t, entry.ID, id)
		return nil
	}
	ms := nopMedia()
	ms.delete = func(context.Context, string) error {
		t.Fatal("wishlist removal must never touch media")
		return nil
	}
	eng, _ := newSessionEngine(t, st, ms, nil, []domain.Record{entry})

	err := eng.RemoveFromWishlist(context.Background(), entry.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.CollectionWishlist, gotCol)
}

func TestEngine_RemoveFromWishlist_Unknown(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	err := eng.RemoveFromWishlist(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- Promotion -------------------------------------------------------------

func TestEngine_Promote_CarriesFieldsAndStripsWishlistIdentity(t *testing.T) {
	src := uuid.New()
	entry := sampleTrip()
	entry.IsWishlist = true
	entry.SourceTripID = &src

	st := echoStore()
	var gotCol domain.Collection
	var gotRec domain.Record
	st.insert = func(_ context.Context, col domain.Collection, r domain.Record) (domain.Record, error) {
		gotCol, gotRec = col, r
		r.ID = uuid.New()
		return r, nil
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), nil, []domain.Record{entry})

	created, err := eng.PromoteWishlistToTrip(context.Background(), entry.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.CollectionTrips, gotCol)
	assert.Equal(t, uuid.Nil, gotRec.ID)
	assert.False(t, gotRec.IsWishlist)
	assert.Nil(t, gotRec.SourceTripID)
	assert.Equal(t, entry.Title, gotRec.Title)
	assert.Equal(t, entry.Expenses, gotRec.Expenses)
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestEngine_Promote_InsertFailureKeepsEntry(t *testing.T) {
	entry := sampleTrip()
	entry.IsWishlist = true

	st := echoStore()
	st.insert = func(context.Context, domain.Collection, domain.Record) (domain.Record, error) {
		return domain.Record{}, errors.New("connection reset")
	}
	st.remove = func(context.Context, domain.Collection, uuid.UUID) error {
		t.Fatal("the wishlist entry must not be removed when the insert fails")
		return nil
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), nil, []domain.Record{entry})

	_, err := eng.PromoteWishlistToTrip(context.Background(), entry.ID)

	assert.ErrorIs(t, err, domain.ErrStore)
	assert.Len(t, eng.Wishlist(), 1)
}

func TestEngine_Promote_RemoveFailureStillSucceeds(t *testing.T) {
	entry := sampleTrip()
	entry.IsWishlist = true

	st := echoStore()
	st.remove = func(context.Context, domain.Collection, uuid.UUID) error {
		return errors.New("connection reset")
	}
	eng, _ := newSessionEngine(t, st, nopMedia(), nil, []domain.Record{entry})

	created, err := eng.PromoteWishlistToTrip(context.Background(), entry.ID)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestEngine_Promote_Unknown(t *testing.T) {
	eng, _ := newSessionEngine(t, echoStore(), nopMedia(), nil, nil)

	_, err := eng.PromoteWishlistToTrip(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- Snapshots -------------------------------------------------------------

func TestEngine_SnapshotReplacesCollectionWholesale(t *testing.T) {
	first := sampleTrip()
	st := echoStore()
	eng, _ := newSessionEngine(t, st, nopMedia(), []domain.Record{first}, nil)

	replacement := sampleTrip()
	replacement.Title = "Tokyo Lights"
	st.snaps <- store.Snapshot{
		Collection: domain.CollectionTrips,
		Records:    []domain.Record{replacement},
	}

	require.Eventually(t, func() bool {
		trips := eng.Trips()
		return len(trips) == 1 && trips[0].ID == replacement.ID
	}, time.Second, time.Millisecond)

	// The previous trip is gone: snapshots replace, they do not merge.
	for _, trip := range eng.Trips() {
		assert.NotEqual(t, first.ID, trip.ID)
	}
}
