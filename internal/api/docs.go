package api

import (
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
)

// listingDoc is the JSON shape of one listing.
type listingDoc struct {
	SourceID     string    `json:"sourceId"`
	ExternalID   string    `json:"externalId"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	Price        *int      `json:"price"`
	AreaM2       *int      `json:"areaM2"`
	Rooms        *int      `json:"rooms"`
	PropertyType *string   `json:"propertyType"`
	URL          string    `json:"url"`
	Status       string    `json:"status"`
	Relisted     bool      `json:"relisted,omitempty"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

type changeDoc struct {
	Type       string               `json:"type"`
	Previous   *listingDoc          `json:"previous,omitempty"`
	Current    *listingDoc          `json:"current,omitempty"`
	Changes    []models.FieldChange `json:"changes,omitempty"`
	DetectedAt time.Time            `json:"detectedAt"`
}

type scanResultDoc struct {
	SourceID   string `json:"sourceId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
	Candidates int    `json:"candidates"`
	Rejected   int    `json:"rejected"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Removed    int    `json:"removed"`
}

type summaryDoc struct {
	CycleID     string          `json:"cycleId"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
	New         int             `json:"new"`
	Updated     int             `json:"updated"`
	Removed     int             `json:"removed"`
	Undelivered int             `json:"undelivered"`
	Results     []scanResultDoc `json:"results"`
}

func toListingDoc(listing models.Listing) listingDoc {
	return listingDoc{
		SourceID:     listing.SourceID,
		ExternalID:   listing.ExternalID,
		Address:      listing.Address,
		City:         listing.City,
		Price:        listing.Price,
		AreaM2:       listing.AreaM2,
		Rooms:        listing.Rooms,
		PropertyType: listing.PropertyType,
		URL:          listing.URL,
		Status:       string(listing.Status),
		Relisted:     listing.Relisted,
		FirstSeenAt:  listing.FirstSeenAt,
		LastSeenAt:   listing.LastSeenAt,
	}
}

func toListingDocs(listings []models.Listing) []listingDoc {
	docs := make([]listingDoc, 0, len(listings))
	for _, listing := range listings {
		docs = append(docs, toListingDoc(listing))
	}
	return docs
}

func toChangeDocs(events []models.ChangeEvent) []changeDoc {
	docs := make([]changeDoc, 0, len(events))
	for _, event := range events {
		doc := changeDoc{
			Type:       string(event.Type),
			Changes:    event.Changes,
			DetectedAt: event.DetectedAt,
		}
		if event.Previous != nil {
			previous := toListingDoc(*event.Previous)
			doc.Previous = &previous
		}
		if event.Current != nil {
			current := toListingDoc(*event.Current)
			doc.Current = &current
		}
		docs = append(docs, doc)
	}
	return docs
}

func toSummaryDoc(summary models.CycleSummary) summaryDoc {
	doc := summaryDoc{
		CycleID:     summary.CycleID,
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.FinishedAt,
		New:         summary.New,
		Updated:     summary.Updated,
		Removed:     summary.Removed,
		Undelivered: summary.Undelivered,
		Results:     make([]scanResultDoc, 0, len(summary.Results)),
	}
	for _, result := range summary.Results {
		resultDoc := scanResultDoc{
			SourceID:   result.SourceID,
			Success:    result.Success(),
			DurationMS: result.Duration.Milliseconds(),
			Candidates: result.Candidates,
			Rejected:   result.Rejected,
			New:        result.New,
			Updated:    result.Updated,
			Removed:    result.Removed,
		}
		if result.Err != nil {
			resultDoc.Error = result.Err.Error()
		}
		doc.Results = append(doc.Results, resultDoc)
	}
	return doc
}
