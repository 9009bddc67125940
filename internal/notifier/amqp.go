package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
)

// Publisher publishes messages to a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message []byte) error
}

// AMQP publishes change events and cycle summaries as JSON messages,
// letting other systems subscribe to the listing delta stream.
type AMQP struct {
	publisher Publisher
}

// NewAMQP returns an AMQP channel using the provided publisher.
func NewAMQP(publisher Publisher) *AMQP {
	return &AMQP{publisher: publisher}
}

// Name implements Channel.
func (a *AMQP) Name() string {
	return "amqp"
}

type listingMessage struct {
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

func toListingMessage(listing *models.Listing) *listingMessage {
	if listing == nil {
		return nil
	}
	return &listingMessage{
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

type eventMessage struct {
	Type       models.ChangeType    `json:"type"`
	Previous   *listingMessage      `json:"previous,omitempty"`
	Current    *listingMessage      `json:"current,omitempty"`
	Changes    []models.FieldChange `json:"changes,omitempty"`
	DetectedAt time.Time            `json:"detectedAt"`
}

// SendEvent publishes the event to listings.changes.<type>.
func (a *AMQP) SendEvent(ctx context.Context, event models.ChangeEvent) error {
	message, err := json.Marshal(eventMessage{
		Type:       event.Type,
		Previous:   toListingMessage(event.Previous),
		Current:    toListingMessage(event.Current),
		Changes:    event.Changes,
		DetectedAt: event.DetectedAt,
	})
	if err != nil {
		return fmt.Errorf("can't marshal change event: %w", err)
	}

	routingKey := "listings.changes." + string(event.Type)
	if err := a.publisher.Publish(ctx, routingKey, message); err != nil {
		return fmt.Errorf("can't publish change event: %w: %w", ErrTransient, err)
	}
	return nil
}

type summaryMessage struct {
	CycleID       string    `json:"cycleId"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	New           int       `json:"new"`
	Updated       int       `json:"updated"`
	Removed       int       `json:"removed"`
	Undelivered   int       `json:"undelivered"`
	FailedSources []string  `json:"failedSources,omitempty"`
}

// SendSummary publishes the cycle summary to listings.cycles.
func (a *AMQP) SendSummary(ctx context.Context, summary models.CycleSummary) error {
	message, err := json.Marshal(summaryMessage{
		CycleID:       summary.CycleID,
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
		New:           summary.New,
		Updated:       summary.Updated,
		Removed:       summary.Removed,
		Undelivered:   summary.Undelivered,
		FailedSources: summary.FailedSources(),
	})
	if err != nil {
		return fmt.Errorf("can't marshal cycle summary: %w", err)
	}

	if err := a.publisher.Publish(ctx, "listings.cycles", message); err != nil {
		return fmt.Errorf("can't publish cycle summary: %w: %w", ErrTransient, err)
	}
	return nil
}
