// Package storagetesting provides an in-memory listing store for unit
// tests, with the same transactional contract as the Postgres store.
package storagetesting

import (
	"context"
	"sort"
	"sync"

	"github.com/Haasie/huizen-zoeker/internal/detector"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
)

// Memory is an in-memory detector.TxRunner and detector.Store. A fn
// passed to InSourceTx sees staged state; if fn fails the staged state
// is discarded, like a rolled back transaction.
type Memory struct {
	mu       sync.Mutex
	listings map[models.ListingKey]models.Listing
	history  []models.ChangeEvent

	// FailUpsert makes every Upsert fail with the given error.
	FailUpsert error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		listings: make(map[models.ListingKey]models.Listing),
	}
}

// Seed stores listings directly, without change events.
func (m *Memory) Seed(listings ...models.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, listing := range listings {
		m.listings[listing.Key()] = listing
	}
}

// InSourceTx implements detector.TxRunner.
func (m *Memory) InSourceTx(_ context.Context, _ string, fn func(detector.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &txMemory{
		parent:   m,
		listings: make(map[models.ListingKey]models.Listing, len(m.listings)),
	}
	for key, listing := range m.listings {
		staged.listings[key] = listing
	}

	if err := fn(staged); err != nil {
		return err
	}

	m.listings = staged.listings
	m.history = append(m.history, staged.history...)
	return nil
}

// Get returns the stored listing, if any.
func (m *Memory) Get(key models.ListingKey) (models.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[key]
	return listing, ok
}

// Active returns all ACTIVE listings of a source, sorted by external id.
func (m *Memory) Active(sourceID string) []models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return activeOf(m.listings, sourceID)
}

// History returns all recorded change events in commit order.
func (m *Memory) History() []models.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]models.ChangeEvent, len(m.history))
	copy(history, m.history)
	return history
}

// txMemory is the staged transaction view.
type txMemory struct {
	parent   *Memory
	listings map[models.ListingKey]models.Listing
	history  []models.ChangeEvent
}

func (t *txMemory) GetActive(_ context.Context, sourceID string) ([]models.Listing, error) {
	return activeOf(t.listings, sourceID), nil
}

func (t *txMemory) Upsert(_ context.Context, listing models.Listing) (*models.Listing, error) {
	if t.parent.FailUpsert != nil {
		return nil, t.parent.FailUpsert
	}

	key := listing.Key()
	previous, existed := t.listings[key]

	stored := listing
	stored.Status = models.StatusActive
	if existed {
		stored.FirstSeenAt = previous.FirstSeenAt
		stored.Relisted = previous.Status == models.StatusRemoved
	} else {
		stored.FirstSeenAt = listing.LastSeenAt
	}
	t.listings[key] = stored

	if !existed {
		return nil, nil
	}
	return &previous, nil
}

func (t *txMemory) MarkRemoved(_ context.Context, sourceID string, stillActive []string) ([]models.Listing, error) {
	activeSet := make(map[string]struct{}, len(stillActive))
	for _, id := range stillActive {
		activeSet[id] = struct{}{}
	}

	var removed []models.Listing
	for key, listing := range t.listings {
		if listing.SourceID != sourceID || listing.Status != models.StatusActive {
			continue
		}
		if _, ok := activeSet[listing.ExternalID]; ok {
			continue
		}
		listing.Status = models.StatusRemoved
		t.listings[key] = listing
		removed = append(removed, listing)
	}

	sort.Slice(removed, func(i, j int) bool {
		return removed[i].ExternalID < removed[j].ExternalID
	})
	return removed, nil
}

func (t *txMemory) RecordChange(_ context.Context, event models.ChangeEvent) error {
	t.history = append(t.history, event)
	return nil
}

func activeOf(listings map[models.ListingKey]models.Listing, sourceID string) []models.Listing {
	var active []models.Listing
	for _, listing := range listings {
		if listing.SourceID == sourceID && listing.Status == models.StatusActive {
			active = append(active, listing)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ExternalID < active[j].ExternalID
	})
	return active
}
