package scraper

import (
	"context"
	"fmt"
	"sort"

	"github.com/Haasie/huizen-zoeker/internal/platform"
)

// Candidate is the raw listing representation produced by a site
// adapter before normalization. All fields are site text as found in
// the markup; only ExternalID and URL are expected to be clean.
type Candidate struct {
	ExternalID   string
	Address      string
	City         string
	PriceText    string
	AreaText     string
	RoomsText    string
	PropertyType string
	URL          string
}

// Hints narrows a site search query-side as a courtesy to the remote
// site. Adapters may ignore any field; filtering is enforced
// downstream regardless.
type Hints struct {
	MinPrice int
	MaxPrice int
	City     string
}

// Adapter translates one site's markup into raw candidate records.
//
// FetchCandidates must enumerate the complete current listing index of
// the site. A malformed individual candidate is skipped, but a failure
// to retrieve or recognize the index itself must return an error
// wrapping platform.ErrFetchFailure or platform.ErrParseFailure; an
// empty slice with a nil error always means the site genuinely has
// zero matching listings.
type Adapter interface {
	SourceID() string
	FetchCandidates(ctx context.Context, hints Hints) ([]Candidate, error)
}

// Registry maps source ids to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a Registry holding the provided adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	reg := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		reg.adapters[adapter.SourceID()] = adapter
	}
	return reg
}

// Get returns the adapter registered for sourceID.
func (r *Registry) Get(sourceID string) (Adapter, error) {
	adapter, ok := r.adapters[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", platform.ErrUnknownSource, sourceID)
	}
	return adapter, nil
}

// Enabled returns the adapters for the requested source ids, in
// deterministic order. Unknown ids are reported as an error.
func (r *Registry) Enabled(sourceIDs []string) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		adapter, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].SourceID() < adapters[j].SourceID()
	})
	return adapters, nil
}

// SourceIDs returns all registered source ids, sorted.
func (r *Registry) SourceIDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
