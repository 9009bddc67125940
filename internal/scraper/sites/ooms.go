package sites

import (
	"fmt"

	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/rs/zerolog"
)

// NewOoms returns the adapter for ooms.com.
// The site supports query-side price narrowing on its index page.
func NewOoms(fetcher PageFetcher, logger *zerolog.Logger) scraper.Adapter {
	return &siteAdapter{
		sourceID: "ooms",
		baseURL:  "https://www.ooms.com",
		fetcher:  fetcher,
		logger:   logger,
		sel: selectors{
			card:         ".property-item, .object-item",
			link:         "a",
			address:      ".address, .street",
			city:         ".city, .location",
			price:        ".price, .object-price",
			area:         ".surface, .object-size",
			rooms:        ".rooms, .object-rooms",
			propertyType: ".type, .object-type",
		},
		searchPath: func(hints scraper.Hints) string {
			path := "/woningaanbod"
			if hints.MinPrice > 0 || hints.MaxPrice > 0 {
				path += fmt.Sprintf("?prijs-van=%d&prijs-tot=%d", hints.MinPrice, hints.MaxPrice)
			}
			return path
		},
	}
}
