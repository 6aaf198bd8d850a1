package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// notifyChannel is the Postgres NOTIFY channel fired by the records table
// trigger. The payload is "<owner_id>:<collection>".
const notifyChannel = "records_changed"

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Accepting this interface for the CRUD half allows integration
// tests to pass a transaction that is rolled back after each test, giving
// free per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the remote multi-device RecordStore backed by Postgres.
// Snapshots are driven by LISTEN/NOTIFY: a trigger on the records table
// fires on every insert, update, and delete, including writes from other
// devices, and the listener re-queries the affected collection.
type PGStore struct {
	db   db
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPGStore constructs a PGStore over a connection pool.
func NewPGStore(pool *pgxpool.Pool, log *slog.Logger) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{db: pool, pool: pool, log: log}
}

// NewPGStoreDB constructs a PGStore over any pgx querier. In tests that is a
// transaction. Subscribe requires a pool and fails on a db-only store.
func NewPGStoreDB(q db) *PGStore {
	return &PGStore{db: q, log: slog.Default()}
}

const recordColumns = `id, owner_id, title, location, lat, lon, companions,
	start_date, end_date, notes, category, rating, weather,
	expenses, images, videos, source_trip_id, created_at, updated_at`

// Insert persists a new record. id, created_at, and updated_at are
// assigned by the database.
func (s *PGStore) Insert(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error) {
	q := `
		INSERT INTO records (collection, owner_id, title, location, lat, lon,
			companions, start_date, end_date, notes, category, rating, weather,
			expenses, images, videos, source_trip_id)
		VALUES (@collection, @owner_id, @title, @location, @lat, @lon,
			@companions, @start_date, @end_date, @notes, @category, @rating,
			@weather, @expenses, @images, @videos, @source_trip_id)
		RETURNING ` + recordColumns

	row := s.db.QueryRow(ctx, q, recordArgs(col, rec))
	result, err := scanRecord(row, col)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.PGStore.Insert: %w", err)
	}
	return result, nil
}

// Update overwrites the mutable fields of a record. created_at is never
// touched; updated_at is refreshed server-side.
func (s *PGStore) Update(ctx context.Context, col domain.Collection, rec domain.Record) (domain.Record, error) {
	q := `
		UPDATE records
		SET title          = @title,
		    location       = @location,
		    lat            = @lat,
		    lon            = @lon,
		    companions     = @companions,
		    start_date     = @start_date,
		    end_date       = @end_date,
		    notes          = @notes,
		    category       = @category,
		    rating         = @rating,
		    weather        = @weather,
		    expenses       = @expenses,
		    images         = @images,
		    videos         = @videos,
		    source_trip_id = @source_trip_id,
		    updated_at     = now()
		WHERE id = @id AND collection = @collection
		RETURNING ` + recordColumns

	args := recordArgs(col, rec)
	args["id"] = rec.ID

	row := s.db.QueryRow(ctx, q, args)
	result, err := scanRecord(row, col)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store.PGStore.Update: %w", err)
	}
	return result, nil
}

// Remove deletes a record by primary key.
func (s *PGStore) Remove(ctx context.Context, col domain.Collection, id uuid.UUID) error {
	const q = `DELETE FROM records WHERE id = @id AND collection = @collection`

	tag, err := s.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "collection": string(col)})
	if err != nil {
		return fmt.Errorf("store.PGStore.Remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store.PGStore.Remove: %w", domain.ErrNotFound)
	}
	return nil
}

// List returns one owner's records in a collection, newest first.
func (s *PGStore) List(ctx context.Context, ownerID string, col domain.Collection) ([]domain.Record, error) {
	q := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE owner_id = @owner_id AND collection = @collection
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{
		"owner_id":   ownerID,
		"collection": string(col),
	})
	if err != nil {
		return nil, fmt.Errorf("store.PGStore.List: %w", err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		r, err := scanRecord(rows, col)
		if err != nil {
			return nil, fmt.Errorf("store.PGStore.List: scan: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.PGStore.List: rows: %w", err)
	}

	return records, nil
}

// Subscribe starts the LISTEN loop for one owner. The dedicated listener
// connection is acquired before the initial snapshots are queried, so no
// change can slip between the first read and the first notification.
func (s *PGStore) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("store.PGStore.Subscribe: store has no pool (db-only store)")
	}

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Snapshot, 4)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)
		s.listen(ctx, ownerID, ch)
	}()

	stop := func() {
		cancel()
		<-done
	}
	return NewSubscription(ch, stop), nil
}

// listen maintains the listener connection for the life of the
// subscription, reconnecting with exponential backoff when it drops.
func (s *PGStore) listen(ctx context.Context, ownerID string, ch chan Snapshot) {
	for ctx.Err() == nil {
		var conn *pgxpool.Conn
		backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			c, err := s.pool.Acquire(ctx)
			if err != nil {
				return retry.RetryableError(err)
			}
			if _, err := c.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
				c.Release()
				return retry.RetryableError(err)
			}
			conn = c
			return nil
		})
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error("record store listener gave up", "error", err)
			}
			return
		}

		s.serve(ctx, conn, ownerID, ch)
		conn.Release()
	}
}

// serve pushes the initial snapshots and then one snapshot per relevant
// notification, until the context is cancelled or the connection fails.
func (s *PGStore) serve(ctx context.Context, conn *pgxpool.Conn, ownerID string, ch chan Snapshot) {
	for _, col := range []domain.Collection{domain.CollectionTrips, domain.CollectionWishlist} {
		if !s.push(ctx, ownerID, col, ch) {
			return
		}
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("record store listener lost, reconnecting", "error", err)
			}
			return
		}

		owner, col, ok := parseNotifyPayload(n.Payload)
		if !ok || owner != ownerID {
			continue
		}
		if !s.push(ctx, ownerID, col, ch) {
			return
		}
	}
}

// push queries one collection and delivers it as a snapshot. Returns false
// when the subscription should stop.
func (s *PGStore) push(ctx context.Context, ownerID string, col domain.Collection, ch chan Snapshot) bool {
	records, err := s.List(ctx, ownerID, col)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.log.Error("record store snapshot query failed", "collection", col, "error", err)
		return true
	}
	sendLatest(ch, Snapshot{Collection: col, Records: records})
	return true
}

// parseNotifyPayload splits "<owner_id>:<collection>". Owner IDs may not
// contain ':' (enforced at signup by the auth collaborator), so the last
// separator is unambiguous.
func parseNotifyPayload(payload string) (owner string, col domain.Collection, ok bool) {
	i := strings.LastIndex(payload, ":")
	if i < 0 {
		return "", "", false
	}
	col = domain.Collection(payload[i+1:])
	if col != domain.CollectionTrips && col != domain.CollectionWishlist {
		return "", "", false
	}
	return payload[:i], col, true
}

// recordArgs builds the NamedArgs shared by Insert and Update.
// pgx marshals the expense and media slices to jsonb transparently.
func recordArgs(col domain.Collection, rec domain.Record) pgx.NamedArgs {
	return pgx.NamedArgs{
		"collection":     string(col),
		"owner_id":       rec.OwnerID,
		"title":          rec.Title,
		"location":       rec.Location,
		"lat":            rec.Coordinates.Lat,
		"lon":            rec.Coordinates.Lon,
		"companions":     rec.Companions,
		"start_date":     rec.StartDate, // nil becomes NULL
		"end_date":       rec.EndDate,
		"notes":          rec.Notes,
		"category":       string(rec.Category),
		"rating":         rec.Rating,
		"weather":        string(rec.Weather),
		"expenses":       emptyExpenses(rec.Expenses),
		"images":         emptyRefs(rec.Images),
		"videos":         emptyRefs(rec.Videos),
		"source_trip_id": rec.SourceTripID,
	}
}

// emptyExpenses normalizes nil to an empty slice so jsonb stores [] rather
// than null.
func emptyExpenses(e []domain.Expense) []domain.Expense {
	if e == nil {
		return []domain.Expense{}
	}
	return e
}

func emptyRefs(r []string) []string {
	if r == nil {
		return []string{}
	}
	return r
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanRecord
// to be reused for QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord maps a database row into a domain.Record. IsWishlist is
// derived from the collection rather than stored.
func scanRecord(s scanner, col domain.Collection) (domain.Record, error) {
	var (
		rec       domain.Record
		id        pgtype.UUID
		startDate pgtype.Date
		endDate   pgtype.Date
		sourceID  pgtype.UUID
	)

	err := s.Scan(
		&id, &rec.OwnerID, &rec.Title, &rec.Location,
		&rec.Coordinates.Lat, &rec.Coordinates.Lon, &rec.Companions,
		&startDate, &endDate, &rec.Notes, &rec.Category, &rec.Rating,
		&rec.Weather, &rec.Expenses, &rec.Images, &rec.Videos,
		&sourceID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, err
	}

	rec.ID = uuid.UUID(id.Bytes)
	if startDate.Valid {
		sd := startDate.Time
		rec.StartDate = &sd
	}
	if endDate.Valid {
		ed := endDate.Time
		rec.EndDate = &ed
	}
	if sourceID.Valid {
		src := uuid.UUID(sourceID.Bytes)
		rec.SourceTripID = &src
	}
	rec.IsWishlist = col == domain.CollectionWishlist

	return rec, nil
}
