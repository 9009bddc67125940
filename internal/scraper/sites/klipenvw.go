package sites

import (
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/rs/zerolog"
)

// NewKlipEnVW returns the adapter for klipenvw.nl.
// The index page ignores query parameters, so hints are not encoded.
func NewKlipEnVW(fetcher PageFetcher, logger *zerolog.Logger) scraper.Adapter {
	return &siteAdapter{
		sourceID: "klipenvw",
		baseURL:  "https://www.klipenvw.nl",
		fetcher:  fetcher,
		logger:   logger,
		sel: selectors{
			card:         ".property-item, .property-container",
			link:         "a.property-link, a[href*=\"woningaanbod\"]",
			address:      ".property-address, .address",
			city:         ".property-city, .city",
			price:        ".property-price, .price",
			area:         ".property-size, .size",
			rooms:        ".property-rooms, .rooms",
			propertyType: ".property-type, .type",
		},
		searchPath: func(scraper.Hints) string {
			return "/woningaanbod"
		},
	}
}
