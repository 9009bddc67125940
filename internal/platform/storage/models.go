package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/samber/lo"
)

// listingRow mirrors one row of the listings table.
type listingRow struct {
	SourceID     string
	ExternalID   string
	Address      string
	City         string
	Price        sql.NullInt64
	AreaM2       sql.NullInt64
	Rooms        sql.NullInt64
	PropertyType sql.NullString
	URL          string
	Status       string
	Relisted     bool
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

const listingColumns = `source_id, external_id, address, city, price, area_m2, rooms,
	property_type, url, status, relisted, first_seen_at, last_seen_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(scanner rowScanner) (models.Listing, error) {
	var row listingRow
	err := scanner.Scan(
		&row.SourceID,
		&row.ExternalID,
		&row.Address,
		&row.City,
		&row.Price,
		&row.AreaM2,
		&row.Rooms,
		&row.PropertyType,
		&row.URL,
		&row.Status,
		&row.Relisted,
		&row.FirstSeenAt,
		&row.LastSeenAt,
	)
	if err != nil {
		return models.Listing{}, err
	}
	return toListing(row), nil
}

func toListing(row listingRow) models.Listing {
	listing := models.Listing{
		SourceID:    row.SourceID,
		ExternalID:  row.ExternalID,
		Address:     row.Address,
		City:        row.City,
		URL:         row.URL,
		Status:      models.ListingStatus(row.Status),
		Relisted:    row.Relisted,
		FirstSeenAt: row.FirstSeenAt.UTC(),
		LastSeenAt:  row.LastSeenAt.UTC(),
	}

	if row.Price.Valid {
		listing.Price = lo.ToPtr(int(row.Price.Int64))
	}
	if row.AreaM2.Valid {
		listing.AreaM2 = lo.ToPtr(int(row.AreaM2.Int64))
	}
	if row.Rooms.Valid {
		listing.Rooms = lo.ToPtr(int(row.Rooms.Int64))
	}
	if row.PropertyType.Valid {
		listing.PropertyType = lo.ToPtr(row.PropertyType.String)
	}

	return listing
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

// changePayload is the audit log snapshot of one change event.
type changePayload struct {
	Previous *models.Listing      `json:"previous,omitempty"`
	Current  *models.Listing      `json:"current,omitempty"`
	Changes  []models.FieldChange `json:"changes,omitempty"`
}

func marshalChange(event models.ChangeEvent) ([]byte, error) {
	payload, err := json.Marshal(changePayload{
		Previous: event.Previous,
		Current:  event.Current,
		Changes:  event.Changes,
	})
	if err != nil {
		return nil, fmt.Errorf("can't marshal change payload: %w", err)
	}
	return payload, nil
}

func unmarshalChange(changeType string, detectedAt time.Time, raw []byte) (models.ChangeEvent, error) {
	var payload changePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("can't unmarshal change payload: %w", err)
	}
	return models.ChangeEvent{
		Type:       models.ChangeType(changeType),
		Previous:   payload.Previous,
		Current:    payload.Current,
		Changes:    payload.Changes,
		DetectedAt: detectedAt.UTC(),
	}, nil
}
