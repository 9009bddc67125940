package sites

import (
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/rs/zerolog"
)

// NewBijDeVaate returns the adapter for bijdevaatemakelaardij.nl.
func NewBijDeVaate(fetcher PageFetcher, logger *zerolog.Logger) scraper.Adapter {
	return &siteAdapter{
		sourceID: "bijdevaate",
		baseURL:  "https://bijdevaatemakelaardij.nl",
		fetcher:  fetcher,
		logger:   logger,
		sel: selectors{
			card:         ".property-item, .object, .woning",
			link:         "a",
			address:      ".street, .address",
			city:         ".city, .location",
			price:        ".price, .object-price",
			area:         ".surface, .object-surface, .size",
			rooms:        ".rooms, .object-rooms",
			propertyType: ".object-type, .type",
		},
		searchPath: func(scraper.Hints) string {
			return "/aanbod"
		},
	}
}
