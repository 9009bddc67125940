// Package sites contains the per-realtor adapters. Each site serves a
// conventional server-rendered listing index, so one goquery-driven
// adapter parameterized with site selectors covers all of them.
package sites

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Haasie/huizen-zoeker/internal/platform"
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// PageFetcher fetches a listing index page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// selectors describes where a site keeps each listing field inside a
// result card. Alternatives are comma-separated CSS selector groups,
// goquery picks the first match.
type selectors struct {
	card         string
	link         string
	address      string
	city         string
	price        string
	area         string
	rooms        string
	propertyType string
}

// siteAdapter is a goquery-based scraper.Adapter for one realtor site.
type siteAdapter struct {
	sourceID string
	baseURL  string
	fetcher  PageFetcher
	logger   *zerolog.Logger
	sel      selectors

	// searchPath builds the index path (with optional courtesy query
	// narrowing) for this site.
	searchPath func(hints scraper.Hints) string
}

func (a *siteAdapter) SourceID() string {
	return a.sourceID
}

func (a *siteAdapter) FetchCandidates(ctx context.Context, hints scraper.Hints) ([]scraper.Candidate, error) {
	indexURL := a.baseURL + a.searchPath(hints)

	body, err := a.fetcher.FetchPage(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("can't fetch listing index: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: can't parse listing index: %w", platform.ErrParseFailure, err)
	}

	cards := doc.Find(a.sel.card)
	if cards.Length() == 0 && !a.looksEmpty(doc) {
		// No cards and no empty-result marker means the markup changed
		// under us. Returning success here would turn into a wave of
		// false REMOVED events downstream.
		return nil, fmt.Errorf("%w: no listing cards found at %s", platform.ErrParseFailure, indexURL)
	}

	candidates := make([]scraper.Candidate, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		candidate, err := a.parseCard(card)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("source", a.sourceID).
				Msg("skipping malformed listing card")
			return
		}
		candidates = append(candidates, candidate)
	})

	return candidates, nil
}

func (a *siteAdapter) parseCard(card *goquery.Selection) (scraper.Candidate, error) {
	link := card.Find(a.sel.link).First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return scraper.Candidate{}, fmt.Errorf("listing card has no detail link")
	}

	detailURL, err := a.absoluteURL(href)
	if err != nil {
		return scraper.Candidate{}, err
	}

	return scraper.Candidate{
		ExternalID:   externalIDFromURL(detailURL),
		Address:      text(card, a.sel.address),
		City:         text(card, a.sel.city),
		PriceText:    text(card, a.sel.price),
		AreaText:     text(card, a.sel.area),
		RoomsText:    text(card, a.sel.rooms),
		PropertyType: text(card, a.sel.propertyType),
		URL:          detailURL,
	}, nil
}

func (a *siteAdapter) absoluteURL(href string) (string, error) {
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("can't parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("can't parse detail link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// looksEmpty reports whether the page carries a genuine "no results"
// marker, distinguishing zero matches from unrecognized markup.
func (a *siteAdapter) looksEmpty(doc *goquery.Document) bool {
	marker := strings.ToLower(doc.Find(".no-results, .geen-resultaten, .empty-state").Text())
	if marker != "" {
		return true
	}
	body := strings.ToLower(doc.Find("body").Text())
	return strings.Contains(body, "geen woningen gevonden") ||
		strings.Contains(body, "geen resultaten")
}

func text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

// externalIDFromURL derives a site-unique listing id from the last
// non-empty segment of the detail page path.
func externalIDFromURL(detailURL string) string {
	parsed, err := url.Parse(detailURL)
	if err != nil {
		return detailURL
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return detailURL
}
