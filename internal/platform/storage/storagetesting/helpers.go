package storagetesting

import (
	"database/sql"
	"os"
	"testing"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"

	_ "github.com/lib/pq"
)

// Open opens a connection to the test database. The test is skipped
// when DATABASE_URL is not set.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("set DATABASE_URL to run database integration tests")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("can't open connection to %q: %s", dbURL, err)
	}

	return db
}

// CleanupData removes all rows written by integration tests.
func CleanupData(t *testing.T, db *sql.DB) {
	t.Helper()

	for _, table := range []string{"change_history", "listings"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("can't clean up table %q: %s", table, err)
		}
	}
}

// InsertListings is a helper test function to insert stored listings.
func InsertListings(t *testing.T, db *sql.DB, listings ...models.Listing) {
	t.Helper()

	for _, listing := range listings {
		_, err := db.Exec(
			`INSERT INTO listings (
				source_id, external_id, address, city, price, area_m2, rooms,
				property_type, url, status, relisted, first_seen_at, last_seen_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			listing.SourceID,
			listing.ExternalID,
			listing.Address,
			listing.City,
			listing.Price,
			listing.AreaM2,
			listing.Rooms,
			listing.PropertyType,
			listing.URL,
			string(listing.Status),
			listing.Relisted,
			listing.FirstSeenAt,
			listing.LastSeenAt,
		)
		if err != nil {
			t.Fatal("can't insert listing", err)
		}
	}
}
