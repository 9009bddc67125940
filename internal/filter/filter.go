// Package filter decides which change events are worth a notification.
// Filtering never affects what gets stored.
package filter

import (
	"strings"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/samber/lo"
)

// Criteria is the user-configured notification filter. The zero value
// accepts every listing.
type Criteria struct {
	MinPrice int
	// MaxPrice of 0 means unbounded.
	MaxPrice int
	MinArea  int
	// Cities is matched case-insensitively; empty accepts all cities.
	Cities []string
	// PropertyTypes empty accepts all types.
	PropertyTypes []string
}

// Matches reports whether the listing satisfies every criterion. It is
// a pure predicate.
func (c Criteria) Matches(listing models.Listing) bool {
	if !c.priceMatches(listing.Price) {
		return false
	}

	if listing.AreaM2 == nil {
		if c.MinArea > 0 {
			return false
		}
	} else if *listing.AreaM2 < c.MinArea {
		return false
	}

	if len(c.Cities) > 0 && !containsFold(c.Cities, listing.City) {
		return false
	}

	if len(c.PropertyTypes) > 0 {
		if listing.PropertyType == nil || !containsFold(c.PropertyTypes, *listing.PropertyType) {
			return false
		}
	}

	return true
}

// priceMatches applies the [MinPrice, MaxPrice] bound. A listing
// without an asking price only passes when the filter is not actually
// price-bounded.
func (c Criteria) priceMatches(price *int) bool {
	if price == nil {
		return c.MinPrice == 0 && c.MaxPrice == 0
	}
	if *price < c.MinPrice {
		return false
	}
	if c.MaxPrice > 0 && *price > c.MaxPrice {
		return false
	}
	return true
}

// MatchesEvent applies the criteria to the event's current listing.
// REMOVED events are judged on the previous snapshot, the only one
// they carry.
func (c Criteria) MatchesEvent(event models.ChangeEvent) bool {
	subject := event.Subject()
	if subject == nil {
		return false
	}
	return c.Matches(*subject)
}

// Apply returns the events worth notifying about.
func (c Criteria) Apply(events []models.ChangeEvent) []models.ChangeEvent {
	return lo.Filter(events, func(event models.ChangeEvent, _ int) bool {
		return c.MatchesEvent(event)
	})
}

func containsFold(haystack []string, needle string) bool {
	return lo.ContainsBy(haystack, func(candidate string) bool {
		return strings.EqualFold(strings.TrimSpace(candidate), needle)
	})
}
