package sites

import (
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/rs/zerolog"
)

// NewRozenburg returns the adapter for rozenburgmakelaardij.nl.
func NewRozenburg(fetcher PageFetcher, logger *zerolog.Logger) scraper.Adapter {
	return &siteAdapter{
		sourceID: "rozenburg",
		baseURL:  "https://www.rozenburgmakelaardij.nl",
		fetcher:  fetcher,
		logger:   logger,
		sel: selectors{
			card:         ".property-item, .object, .woning",
			link:         "a",
			address:      ".address, .street",
			city:         ".city, .location",
			price:        ".price, .object-price",
			area:         ".surface, .size, .object-size",
			rooms:        ".rooms, .object-rooms",
			propertyType: ".type, .object-type",
		},
		searchPath: func(scraper.Hints) string {
			return "/aanbod"
		},
	}
}
