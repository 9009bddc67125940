package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/detector"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/lib/pq"
)

// Postgres is the durable listing store. It owns every Listing record
// and the change audit log.
type Postgres struct {
	db *sql.DB
}

// NewPostgres returns a new Postgres store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the store schema when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			source_id     TEXT        NOT NULL,
			external_id   TEXT        NOT NULL,
			address       TEXT        NOT NULL,
			city          TEXT        NOT NULL,
			price         INTEGER,
			area_m2       INTEGER,
			rooms         INTEGER,
			property_type TEXT,
			url           TEXT        NOT NULL,
			status        TEXT        NOT NULL,
			relisted      BOOLEAN     NOT NULL DEFAULT FALSE,
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (source_id, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS listings_status_idx ON listings (source_id, status)`,
		`CREATE TABLE IF NOT EXISTS change_history (
			id          BIGSERIAL   PRIMARY KEY,
			source_id   TEXT        NOT NULL,
			external_id TEXT        NOT NULL,
			change_type TEXT        NOT NULL,
			payload     JSONB       NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS change_history_detected_idx ON change_history (detected_at)`,
	}

	for _, statement := range statements {
		if _, err := p.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("can't migrate store schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// InSourceTx runs fn against a transaction-scoped store view. An
// advisory lock on the source id serializes concurrent writers of the
// same source; writers of different sources don't contend.
func (p *Postgres) InSourceTx(ctx context.Context, sourceID string, fn func(detector.Store) error) error {
	return runInTransaction(ctx, p.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sourceID); err != nil {
			return fmt.Errorf("can't lock source %q: %w", sourceID, err)
		}
		return fn(&txStore{tx: tx})
	})
}

// txStore is the detector.Store view bound to one transaction.
type txStore struct {
	tx *sql.Tx
}

// GetActive returns all ACTIVE listings of a source.
func (s *txStore) GetActive(ctx context.Context, sourceID string) ([]models.Listing, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM listings WHERE source_id = $1 AND status = $2 ORDER BY external_id`,
		listingColumns,
	)
	rows, err := s.tx.QueryContext(ctx, query, sourceID, string(models.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("can't query active listings: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// Upsert writes the listing and returns its previous stored state.
func (s *txStore) Upsert(ctx context.Context, listing models.Listing) (*models.Listing, error) {
	selectQuery := fmt.Sprintf(
		`SELECT %s FROM listings WHERE source_id = $1 AND external_id = $2 FOR UPDATE`,
		listingColumns,
	)
	previous, err := scanListing(s.tx.QueryRowContext(ctx, selectQuery, listing.SourceID, listing.ExternalID))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, s.insert(ctx, listing)
	case err != nil:
		return nil, fmt.Errorf("can't query listing: %w", err)
	}

	relisted := previous.Status == models.StatusRemoved

	_, err = s.tx.ExecContext(ctx,
		`UPDATE listings SET
			address = $3, city = $4, price = $5, area_m2 = $6, rooms = $7,
			property_type = $8, url = $9, status = $10, relisted = $11, last_seen_at = $12
		WHERE source_id = $1 AND external_id = $2`,
		listing.SourceID,
		listing.ExternalID,
		listing.Address,
		listing.City,
		nullInt(listing.Price),
		nullInt(listing.AreaM2),
		nullInt(listing.Rooms),
		nullString(listing.PropertyType),
		listing.URL,
		string(models.StatusActive),
		relisted,
		listing.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("can't update listing: %w", err)
	}

	return &previous, nil
}

func (s *txStore) insert(ctx context.Context, listing models.Listing) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO listings (
			source_id, external_id, address, city, price, area_m2, rooms,
			property_type, url, status, relisted, first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11, $11)`,
		listing.SourceID,
		listing.ExternalID,
		listing.Address,
		listing.City,
		nullInt(listing.Price),
		nullInt(listing.AreaM2),
		nullInt(listing.Rooms),
		nullString(listing.PropertyType),
		listing.URL,
		string(models.StatusActive),
		listing.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("can't insert listing: %w", err)
	}
	return nil
}

// MarkRemoved flips every ACTIVE listing of sourceID missing from
// stillActive to REMOVED and returns the flipped rows.
func (s *txStore) MarkRemoved(ctx context.Context, sourceID string, stillActive []string) ([]models.Listing, error) {
	query := fmt.Sprintf(
		`UPDATE listings SET status = $3
		WHERE source_id = $1 AND status = $2 AND NOT (external_id = ANY($4))
		RETURNING %s`,
		listingColumns,
	)
	rows, err := s.tx.QueryContext(ctx, query,
		sourceID,
		string(models.StatusActive),
		string(models.StatusRemoved),
		pq.Array(stillActive),
	)
	if err != nil {
		return nil, fmt.Errorf("can't mark removed listings: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// RecordChange appends the event to the audit log.
func (s *txStore) RecordChange(ctx context.Context, event models.ChangeEvent) error {
	subject := event.Subject()
	if subject == nil {
		return fmt.Errorf("change event carries no listing")
	}

	payload, err := marshalChange(event)
	if err != nil {
		return err
	}

	_, err = s.tx.ExecContext(ctx,
		`INSERT INTO change_history (source_id, external_id, change_type, payload, detected_at)
		VALUES ($1, $2, $3, $4, $5)`,
		subject.SourceID,
		subject.ExternalID,
		string(event.Type),
		payload,
		event.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("can't insert change history row: %w", err)
	}
	return nil
}

// ListingQuery narrows and pages ListListings results.
type ListingQuery struct {
	SourceID   string
	City       string
	MinPrice   int
	MaxPrice   int
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ListListings returns stored listings for the query interface exposed
// to the web UI layer.
func (p *Postgres) ListListings(ctx context.Context, query ListingQuery) ([]models.Listing, error) {
	var (
		conditions []string
		args       []any
	)

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.SourceID != "" {
		conditions = append(conditions, "source_id = "+arg(query.SourceID))
	}
	if query.City != "" {
		conditions = append(conditions, "LOWER(city) = LOWER("+arg(query.City)+")")
	}
	if query.MinPrice > 0 {
		conditions = append(conditions, "price >= "+arg(query.MinPrice))
	}
	if query.MaxPrice > 0 {
		conditions = append(conditions, "price <= "+arg(query.MaxPrice))
	}
	if query.ActiveOnly {
		conditions = append(conditions, "status = "+arg(string(models.StatusActive)))
	}

	sqlQuery := fmt.Sprintf(`SELECT %s FROM listings`, listingColumns)
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY last_seen_at DESC, source_id, external_id"

	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sqlQuery += " LIMIT " + arg(limit)
	if query.Offset > 0 {
		sqlQuery += " OFFSET " + arg(query.Offset)
	}

	rows, err := p.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("can't query listings: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// GetRecentChanges returns audit log events detected at or after since,
// newest first.
func (p *Postgres) GetRecentChanges(ctx context.Context, since time.Time, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT change_type, payload, detected_at FROM change_history
		WHERE detected_at >= $1 ORDER BY detected_at DESC, id DESC LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("can't query change history: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var (
			changeType string
			payload    []byte
			detectedAt time.Time
		)
		if err := rows.Scan(&changeType, &payload, &detectedAt); err != nil {
			return nil, fmt.Errorf("can't scan change history row: %w", err)
		}
		event, err := unmarshalChange(changeType, detectedAt, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read change history rows: %w", err)
	}

	return events, nil
}

func collectListings(rows *sql.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan listing row: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read listing rows: %w", err)
	}
	return listings, nil
}

func runInTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var (
		tx  *sql.Tx
		err error
	)

	if tx, err = db.BeginTx(ctx, nil); err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("can't rollback transaction: %w (rollback reason: %w)", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}

	return nil
}
