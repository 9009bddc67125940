// Package normalizer maps raw site candidates onto the canonical
// listing model. It is pure: no I/O, no clock, no storage.
package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/samber/lo"
)

var (
	// ErrMissingExternalID rejects a candidate without a stable site id.
	ErrMissingExternalID = errors.New("candidate has no external id")
	// ErrMissingURL rejects a candidate without a detail page url.
	ErrMissingURL = errors.New("candidate has no url")
	// ErrMissingLocation rejects a candidate with neither address nor city.
	ErrMissingLocation = errors.New("candidate has neither address nor city")
)

// priceOnRequestMarkers are site phrasings for listings without an
// asking price. A price text matching one of these yields a nil price,
// which stays distinct from zero for the rest of the pipeline.
var priceOnRequestMarkers = []string{
	"op aanvraag",
	"prijs op aanvraag",
	"price on request",
}

// Normalize converts a raw candidate from sourceID into a canonical
// Listing. It returns an error for candidates that can't be stored;
// callers skip those and continue with the rest of the batch.
func Normalize(sourceID string, candidate scraper.Candidate) (models.Listing, error) {
	externalID := CleanText(candidate.ExternalID)
	if externalID == "" {
		return models.Listing{}, ErrMissingExternalID
	}

	rawURL := strings.TrimSpace(candidate.URL)
	if rawURL == "" {
		return models.Listing{}, ErrMissingURL
	}

	address := CleanText(candidate.Address)
	city := CleanText(candidate.City)
	if address == "" && city == "" {
		return models.Listing{}, ErrMissingLocation
	}

	price, err := ParsePrice(candidate.PriceText)
	if err != nil {
		return models.Listing{}, fmt.Errorf("can't parse price: %w", err)
	}

	listing := models.Listing{
		SourceID:   sourceID,
		ExternalID: externalID,
		Address:    address,
		City:       city,
		Price:      price,
		AreaM2:     ParseArea(candidate.AreaText),
		Rooms:      parseCount(candidate.RoomsText),
		URL:        rawURL,
		Status:     models.StatusActive,
	}

	if propertyType := CleanText(candidate.PropertyType); propertyType != "" {
		listing.PropertyType = lo.ToPtr(propertyType)
	}

	return listing, nil
}

// ParsePrice parses a site price string into whole euros. It tolerates
// currency symbols, Dutch cost suffixes and both locale separator
// conventions ("€ 150.000", "150,000", "1.234,50"). Empty input and
// "price on request" phrasings return nil without error.
func ParsePrice(text string) (*int, error) {
	cleaned := strings.ToLower(CleanText(text))
	cleaned = strings.NewReplacer("€", "", "eur", "", "k.k.", "", "v.o.n.", "", ":", "").Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, nil
	}
	for _, marker := range priceOnRequestMarkers {
		if strings.Contains(cleaned, marker) {
			return nil, nil
		}
	}

	cleaned = strings.ReplaceAll(cleaned, " ", "")

	// With both separators present the right-most one is the decimal
	// mark; the fractional part is dropped, prices are whole euros.
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = cleaned[:lastComma]
		} else {
			cleaned = cleaned[:lastDot]
		}
	case lastComma >= 0:
		cleaned = stripSingleSeparator(cleaned, ",", lastComma)
	case lastDot >= 0:
		cleaned = stripSingleSeparator(cleaned, ".", lastDot)
	}

	digits := strings.NewReplacer(".", "", ",", "").Replace(cleaned)
	if digits == "" || strings.IndexFunc(digits, notDigit) >= 0 {
		return nil, fmt.Errorf("unparseable price %q", text)
	}

	price, err := strconv.Atoi(digits)
	if err != nil {
		return nil, fmt.Errorf("unparseable price %q: %w", text, err)
	}
	if price < 0 {
		return nil, fmt.Errorf("negative price %q", text)
	}

	return lo.ToPtr(price), nil
}

// stripSingleSeparator decides whether the only separator kind in the
// string marks decimals (exactly one occurrence followed by one or two
// digits) or thousands, and removes the fraction accordingly.
func stripSingleSeparator(s, sep string, last int) string {
	if strings.Count(s, sep) == 1 && len(s)-last-1 <= 2 {
		return s[:last]
	}
	return s
}

// ParseArea parses an area string with unit suffix ("75 m²", "120m2")
// into square meters. Unknown or empty input returns nil.
func ParseArea(text string) *int {
	return parseCount(strings.NewReplacer("m²", "", "m2", "", "m", "").Replace(strings.ToLower(text)))
}

// parseCount extracts the first integer run from text, nil when absent.
func parseCount(text string) *int {
	start := -1
	for i, r := range text {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			text = text[:i]
			break
		}
	}
	if start < 0 {
		return nil
	}

	value, err := strconv.Atoi(text[start:])
	if err != nil {
		return nil
	}
	return lo.ToPtr(value)
}

// CleanText collapses internal whitespace runs (including NBSP) into
// single spaces and trims the result.
func CleanText(text string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(text, " ", " ")), " ")
}

// FormatPrice renders whole euros the way Dutch sites do ("€ 150.000").
// A nil price renders as "prijs op aanvraag"; ParsePrice reads both
// forms back without loss.
func FormatPrice(price *int) string {
	if price == nil {
		return "prijs op aanvraag"
	}

	digits := strconv.Itoa(*price)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return "€ " + grouped.String()
}

// FormatArea renders square meters with the site-conventional suffix.
func FormatArea(area *int) string {
	if area == nil {
		return "onbekend"
	}
	return fmt.Sprintf("%d m²", *area)
}

func notDigit(r rune) bool {
	return r < '0' || r > '9'
}
