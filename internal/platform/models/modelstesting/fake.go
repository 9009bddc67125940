package modelstesting

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/go-faker/faker/v4"
	"github.com/samber/lo"
)

// FakeListing returns an ACTIVE models.Listing with fake data.
func FakeListing(ops ...func(l *models.Listing)) models.Listing {
	now := time.Now().UTC().Truncate(time.Second)
	listing := models.Listing{
		SourceID:     faker.Word(),
		ExternalID:   faker.UUIDDigit(),
		Address:      fmt.Sprintf("%s %d", faker.Word(), rand.Intn(200)+1),
		City:         faker.Word(),
		Price:        lo.ToPtr(rand.Intn(900000) + 50000),
		AreaM2:       lo.ToPtr(rand.Intn(200) + 30),
		Rooms:        lo.ToPtr(rand.Intn(6) + 1),
		PropertyType: lo.ToPtr(faker.Word()),
		URL:          faker.URL(),
		Status:       models.StatusActive,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	}

	for _, op := range ops {
		op(&listing)
	}

	return listing
}

// FakeChangeEvent returns a models.ChangeEvent for a fake listing.
func FakeChangeEvent(changeType models.ChangeType, ops ...func(e *models.ChangeEvent)) models.ChangeEvent {
	listing := FakeListing()
	event := models.ChangeEvent{
		Type:       changeType,
		DetectedAt: time.Now().UTC(),
	}

	switch changeType {
	case models.ChangeNew:
		event.Current = &listing
	case models.ChangeRemoved:
		removed := listing
		removed.Status = models.StatusRemoved
		event.Previous = &removed
	case models.ChangeUpdated:
		previous := listing
		current := listing
		current.Price = lo.ToPtr(*listing.Price - 5000)
		event.Previous = &previous
		event.Current = &current
		event.Changes = []models.FieldChange{{
			Field: "price",
			Old:   fmt.Sprint(*previous.Price),
			New:   fmt.Sprint(*current.Price),
		}}
	}

	for _, op := range ops {
		op(&event)
	}

	return event
}
