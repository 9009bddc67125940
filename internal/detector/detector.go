// Package detector diffs a freshly scanned batch of listings against
// the stored state of its source and classifies the delta.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/normalizer"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/samber/lo"
)

// Store is the per-source listing state the detector diffs against.
// Implementations scope every operation to a single transaction; see
// TxRunner.
type Store interface {
	// GetActive returns all ACTIVE listings of a source.
	GetActive(ctx context.Context, sourceID string) ([]models.Listing, error)
	// Upsert writes a listing and returns its previous stored state,
	// nil when the listing is new. The store owns FirstSeenAt and
	// LastSeenAt.
	Upsert(ctx context.Context, listing models.Listing) (*models.Listing, error)
	// MarkRemoved flips to REMOVED every ACTIVE listing of the source
	// whose external id is not in stillActive, returning the flipped
	// rows. This is the only ACTIVE to REMOVED path.
	MarkRemoved(ctx context.Context, sourceID string, stillActive []string) ([]models.Listing, error)
	// RecordChange appends a change event to the audit log.
	RecordChange(ctx context.Context, event models.ChangeEvent) error
}

// TxRunner runs fn against a Store scoped to one transaction. If fn
// returns an error nothing of the source's batch is committed.
type TxRunner interface {
	InSourceTx(ctx context.Context, sourceID string, fn func(Store) error) error
}

// Clock provides times.
type Clock interface {
	// Now returns current UTC time.
	Now() time.Time
}

// Option is custom configuration of Detector.
type Option func(d *Detector)

// Detector detects listing changes per source.
type Detector struct {
	runner TxRunner
	clock  Clock
}

// NewDetector returns a new Detector.
func NewDetector(runner TxRunner, ops ...Option) *Detector {
	det := &Detector{
		runner: runner,
		clock:  systemClock{},
	}

	for _, op := range ops {
		op(det)
	}

	return det
}

// Detect commits the batch of a completed full scan of sourceID and
// returns the classified change events. All upserts, the removal pass
// and the audit log entries commit as one unit; on error the store
// keeps its previous consistent state and no events are returned.
func (d *Detector) Detect(ctx context.Context, sourceID string, batch []models.Listing) ([]models.ChangeEvent, error) {
	var events []models.ChangeEvent

	err := d.runner.InSourceTx(ctx, sourceID, func(store Store) error {
		events = nil // reset in case the transaction is retried
		now := d.clock.Now()

		batch = dedupe(batch)
		stillActive := make([]string, 0, len(batch))

		for _, listing := range batch {
			listing.SourceID = sourceID
			listing.Status = models.StatusActive
			listing.LastSeenAt = now
			stillActive = append(stillActive, listing.ExternalID)

			previous, err := store.Upsert(ctx, listing)
			if err != nil {
				return fmt.Errorf("can't upsert listing %q: %w", listing.ExternalID, err)
			}

			event, ok := classify(previous, listing, now)
			if !ok {
				continue
			}
			if err := store.RecordChange(ctx, event); err != nil {
				return fmt.Errorf("can't record change for %q: %w", listing.ExternalID, err)
			}
			events = append(events, event)
		}

		removed, err := store.MarkRemoved(ctx, sourceID, stillActive)
		if err != nil {
			return fmt.Errorf("can't run removal pass: %w", err)
		}

		for i := range removed {
			event := models.ChangeEvent{
				Type:       models.ChangeRemoved,
				Previous:   &removed[i],
				DetectedAt: now,
			}
			if err := store.RecordChange(ctx, event); err != nil {
				return fmt.Errorf("can't record removal of %q: %w", removed[i].ExternalID, err)
			}
			events = append(events, event)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("can't commit scan of %q: %w", sourceID, err)
	}

	return events, nil
}

// classify compares the previous stored state with the fresh listing
// and returns the resulting event, if any.
func classify(previous *models.Listing, current models.Listing, now time.Time) (models.ChangeEvent, bool) {
	if previous == nil {
		current.FirstSeenAt = now
		return models.ChangeEvent{
			Type:       models.ChangeNew,
			Current:    &current,
			DetectedAt: now,
		}, true
	}

	current.FirstSeenAt = previous.FirstSeenAt

	if previous.Status == models.StatusRemoved {
		// Resurrection: same identity comes back. Reported as NEW with
		// the Relisted marker, original FirstSeenAt preserved.
		current.Relisted = true
		return models.ChangeEvent{
			Type:       models.ChangeNew,
			Current:    &current,
			DetectedAt: now,
		}, true
	}

	changes := diff(*previous, current)
	if len(changes) == 0 {
		return models.ChangeEvent{}, false
	}

	return models.ChangeEvent{
		Type:       models.ChangeUpdated,
		Previous:   previous,
		Current:    &current,
		Changes:    changes,
		DetectedAt: now,
	}, true
}

// diff compares the fields that count as an update. A price moving
// between "on request" and a number is a change, never ignored.
func diff(previous, current models.Listing) []models.FieldChange {
	var changes []models.FieldChange

	if !intPtrEqual(previous.Price, current.Price) {
		changes = append(changes, models.FieldChange{
			Field: "price",
			Old:   normalizer.FormatPrice(previous.Price),
			New:   normalizer.FormatPrice(current.Price),
		})
	}

	if previous.Status != current.Status {
		changes = append(changes, models.FieldChange{
			Field: "status",
			Old:   string(previous.Status),
			New:   string(current.Status),
		})
	}

	if !intPtrEqual(previous.AreaM2, current.AreaM2) {
		changes = append(changes, models.FieldChange{
			Field: "area",
			Old:   normalizer.FormatArea(previous.AreaM2),
			New:   normalizer.FormatArea(current.AreaM2),
		})
	}

	if previous.Address != current.Address {
		changes = append(changes, models.FieldChange{
			Field: "address",
			Old:   previous.Address,
			New:   current.Address,
		})
	}

	return changes
}

// dedupe keeps the first occurrence of every external id. Some sites
// list the same property on several index positions.
func dedupe(batch []models.Listing) []models.Listing {
	return lo.UniqBy(batch, func(listing models.Listing) string {
		return listing.ExternalID
	})
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// WithClock sets Detector's custom Clock.
func WithClock(c Clock) Option {
	return func(d *Detector) {
		d.clock = c
	}
}
