package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ldenis/travel-logbook/internal/domain"
)

//go:embed schema.sql
var sqliteSchema string

// timeLayout is a fixed-width RFC 3339 form. created_at is stored as text
// and compared lexicographically by ORDER BY, so every timestamp must
// render with the same number of digits; RFC3339Nano trims trailing zeros
// and breaks that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the local single-device RecordStore. It has no external
// change source: the only writer is this process, so the subscription's
// live feed is driven by the store's own mutations. After each write it
// re-emits a fresh snapshot, which keeps the engine identical across
// backends.
type SQLiteStore struct {
	db *sql.DB

	// mu guards subs and all snapshot sends. Sends happen under mu so a
	// closed subscription can never receive a late snapshot.
	mu   sync.Mutex
	subs map[*sqliteSub]struct{}
}

type sqliteSub struct {
	ownerID string
	ch      chan Snapshot
}

// OpenSQLite creates or opens the SQLite database at path and applies the
// schema. Idempotent, safe to call on an existing database.
//
// SQLite supports one writer at a time; the pool is pinned to a single
// connection to avoid SQLITE_BUSY under concurrent handlers.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store.OpenSQLite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.OpenSQLite: ping: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store.OpenSQLite: %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.OpenSQLite: apply schema: %w", err)
	}

	return &SQLiteStore{db: db, subs: make(map[*sqliteSub]struct{})}, nil
}

// Close closes the database. Open subscriptions should be closed first.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Subscribe registers a subscriber and queues the initial snapshots for
// both collections synchronously, before returning. There are no other
// writers, so nothing can be missed between the read and the registration.
func (s *SQLiteStore) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	sub := &sqliteSub{ownerID: ownerID, ch: make(chan Snapshot, 4)}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, col := range []domain.Collection{domain.CollectionTrips, domain.CollectionWishlist} {
		records, err := s.list(ctx, ownerID, col)
		if err != nil {
			return nil, fmt.Errorf("store.SQLiteStore.Subscribe: %w", err)
		}
		sendLatest(sub.ch, Snapshot{Collection: col, Records: records})
	}
	s.subs[sub] = struct{}{}

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, sub)
		close(sub.ch)
	}
	return NewSubscription(sub.ch, stop), nil
}

// Insert persists a new record, assigning identity and timestamps.
func (s *SQLiteStore) Insert(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error) {
	rec.ID = uuid.New()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.IsWishlist = col == domain.CollectionWishlist

	const q = `
		INSERT INTO records (id, collection, owner_id, title, location, lat, lon,
			companions, start_date, end_date, notes, category, rating, weather,
			expenses, images, videos, source_trip_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	args, err := sqliteArgs(col, rec)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Insert: %w", err)
	}

	s.broadcast(ctx, col)
	return rec, nil
}

// Update overwrites the mutable fields of a record, preserving created_at.
func (s *SQLiteStore) Update(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error) {
	const q = `
		UPDATE records
		SET title = ?, location = ?, lat = ?, lon = ?, companions = ?,
		    start_date = ?, end_date = ?, notes = ?, category = ?, rating = ?,
		    weather = ?, expenses = ?, images = ?, videos = ?,
		    source_trip_id = ?, updated_at = ?
		WHERE id = ? AND collection = ?`

	rec.UpdatedAt = time.Now().UTC()

	expenses, images, videos, err := encodeJSONFields(rec)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, q,
		rec.Title, rec.Location, rec.Coordinates.Lat, rec.Coordinates.Lon,
		rec.Companions, dateString(rec.StartDate), dateString(rec.EndDate),
		rec.Notes, string(rec.Category), rec.Rating, string(rec.Weather),
		expenses, images, videos, uuidString(rec.SourceTripID),
		rec.UpdatedAt.Format(timeLayout),
		rec.ID.String(), string(col),
	)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Update: %w", err)
	}
	if n == 0 {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Update: %w", domain.ErrNotFound)
	}

	updated, err := s.get(ctx, col, rec.ID)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.SQLiteStore.Update: reread: %w", err)
	}

	s.broadcast(ctx, col)
	return updated, nil
}

// Remove deletes a record by ID.
func (s *SQLiteStore) Remove(ctx context.Context, col domain.Collection, id uuid.UUID) error {
	const q = `DELETE FROM records WHERE id = ? AND collection = ?`

	res, err := s.db.ExecContext(ctx, q, id.String(), string(col))
	if err != nil {
		return fmt.Errorf("store.SQLiteStore.Remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store.SQLiteStore.Remove: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store.SQLiteStore.Remove: %w", domain.ErrNotFound)
	}

	s.broadcast(ctx, col)
	return nil
}

// broadcast pushes a fresh snapshot of col to every matching subscriber.
func (s *SQLiteStore) broadcast(ctx context.Context, col domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		records, err := s.list(ctx, sub.ownerID, col)
		if err != nil {
			continue
		}
		sendLatest(sub.ch, Snapshot{Collection: col, Records: records})
	}
}

func (s *SQLiteStore) get(ctx context.Context, col domain.Collection, id uuid.UUID) (domain.Record, error) {
	const q = `
		SELECT id, owner_id, title, location, lat, lon, companions, start_date,
		       end_date, notes, category, rating, weather, expenses, images,
		       videos, source_trip_id, created_at, updated_at
		FROM records WHERE id = ? AND collection = ?`

	return scanSQLiteRecord(s.db.QueryRowContext(ctx, q, id.String(), string(col)), col)
}

func (s *SQLiteStore) list(ctx context.Context, ownerID string, col domain.Collection) ([]domain.Record, error) {
	const q = `
		SELECT id, owner_id, title, location, lat, lon, companions, start_date,
		       end_date, notes, category, rating, weather, expenses, images,
		       videos, source_trip_id, created_at, updated_at
		FROM records
		WHERE owner_id = ? AND collection = ?
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, ownerID, string(col))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		r, err := scanSQLiteRecord(rows, col)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// sqliteArgs flattens a record into the INSERT parameter list.
func sqliteArgs(col domain.Collection, rec domain.Record) ([]any, error) {
	expenses, images, videos, err := encodeJSONFields(rec)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.ID.String(), string(col), rec.OwnerID, rec.Title, rec.Location,
		rec.Coordinates.Lat, rec.Coordinates.Lon, rec.Companions,
		dateString(rec.StartDate), dateString(rec.EndDate), rec.Notes,
		string(rec.Category), rec.Rating, string(rec.Weather),
		expenses, images, videos, uuidString(rec.SourceTripID),
		rec.CreatedAt.Format(timeLayout),
		rec.UpdatedAt.Format(timeLayout),
	}, nil
}

// encodeJSONFields serializes the slice-valued fields to JSON text, which
// is how SQLite stores them. nil slices become [] so reads round-trip.
func encodeJSONFields(rec domain.Record) (expenses, images, videos string, err error) {
	e, err := json.Marshal(emptyExpenses(rec.Expenses))
	if err != nil {
		return "", "", "", err
	}
	i, err := json.Marshal(emptyRefs(rec.Images))
	if err != nil {
		return "", "", "", err
	}
	v, err := json.Marshal(emptyRefs(rec.Videos))
	if err != nil {
		return "", "", "", err
	}
	return string(e), string(i), string(v), nil
}

func dateString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func uuidString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

type sqlScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteRecord maps a row into a domain.Record, decoding the JSON text
// columns and the string-encoded dates and UUIDs.
func scanSQLiteRecord(s sqlScanner, col domain.Collection) (domain.Record, error) {
	var (
		rec                      domain.Record
		id                       string
		startDate, endDate       sql.NullString
		sourceID                 sql.NullString
		expenses, images, videos string
		createdAt, updatedAt     string
	)

	err := s.Scan(
		&id, &rec.OwnerID, &rec.Title, &rec.Location,
		&rec.Coordinates.Lat, &rec.Coordinates.Lon, &rec.Companions,
		&startDate, &endDate, &rec.Notes, &rec.Category, &rec.Rating,
		&rec.Weather, &expenses, &images, &videos, &sourceID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return domain.Record{}, fmt.Errorf("parse id: %w", err)
	}
	if startDate.Valid {
		t, err := time.Parse("2006-01-02", startDate.String)
		if err != nil {
			return domain.Record{}, fmt.Errorf("parse start_date: %w", err)
		}
		rec.StartDate = &t
	}
	if endDate.Valid {
		t, err := time.Parse("2006-01-02", endDate.String)
		if err != nil {
			return domain.Record{}, fmt.Errorf("parse end_date: %w", err)
		}
		rec.EndDate = &t
	}
	if sourceID.Valid {
		src, err := uuid.Parse(sourceID.String)
		if err != nil {
			return domain.Record{}, fmt.Errorf("parse source_trip_id: %w", err)
		}
		rec.SourceTripID = &src
	}
	if err := json.Unmarshal([]byte(expenses), &rec.Expenses); err != nil {
		return domain.Record{}, fmt.Errorf("decode expenses: %w", err)
	}
	if err := json.Unmarshal([]byte(images), &rec.Images); err != nil {
		return domain.Record{}, fmt.Errorf("decode images: %w", err)
	}
	if err := json.Unmarshal([]byte(videos), &rec.Videos); err != nil {
		return domain.Record{}, fmt.Errorf("decode videos: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return domain.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	rec.IsWishlist = col == domain.CollectionWishlist

	return rec, nil
}
