package notifier_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Haasie/huizen-zoeker/internal/notifier"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/Haasie/huizen-zoeker/internal/platform/models/modelstesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	routingKeys []string
	messages    [][]byte
	err         error
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, message []byte) error {
	if p.err != nil {
		return p.err
	}
	p.routingKeys = append(p.routingKeys, routingKey)
	p.messages = append(p.messages, message)
	return nil
}

func TestUnitAMQPSendEvent(t *testing.T) {
	publisher := &fakePublisher{}
	channel := notifier.NewAMQP(publisher)
	event := modelstesting.FakeChangeEvent(models.ChangeUpdated)

	err := channel.SendEvent(context.TODO(), event)

	require.NoError(t, err)
	require.Equal(t, []string{"listings.changes.UPDATED"}, publisher.routingKeys)

	var message struct {
		Type    string `json:"type"`
		Current struct {
			SourceID   string `json:"sourceId"`
			ExternalID string `json:"externalId"`
			Price      *int   `json:"price"`
		} `json:"current"`
		Previous *json.RawMessage  `json:"previous"`
		Changes  []json.RawMessage `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(publisher.messages[0], &message))

	assert.Equal(t, "UPDATED", message.Type)
	assert.Equal(t, event.Current.SourceID, message.Current.SourceID)
	assert.Equal(t, event.Current.ExternalID, message.Current.ExternalID)
	assert.Equal(t, event.Current.Price, message.Current.Price)
	assert.NotNil(t, message.Previous)
	assert.Len(t, message.Changes, 1)
}

func TestUnitAMQPSendSummary(t *testing.T) {
	publisher := &fakePublisher{}
	channel := notifier.NewAMQP(publisher)

	summary := models.CycleSummary{
		CycleID: "cycle-1",
		New:     2,
		Removed: 1,
		Results: []models.ScanResult{
			{SourceID: "ooms", Err: assert.AnError},
		},
	}

	err := channel.SendSummary(context.TODO(), summary)

	require.NoError(t, err)
	require.Equal(t, []string{"listings.cycles"}, publisher.routingKeys)

	var message struct {
		CycleID       string   `json:"cycleId"`
		New           int      `json:"new"`
		Removed       int      `json:"removed"`
		FailedSources []string `json:"failedSources"`
	}
	require.NoError(t, json.Unmarshal(publisher.messages[0], &message))

	assert.Equal(t, "cycle-1", message.CycleID)
	assert.Equal(t, 2, message.New)
	assert.Equal(t, 1, message.Removed)
	assert.Equal(t, []string{"ooms"}, message.FailedSources)
}

func TestUnitAMQPPublishFailureIsTransient(t *testing.T) {
	channel := notifier.NewAMQP(&fakePublisher{err: assert.AnError})

	err := channel.SendEvent(context.TODO(), modelstesting.FakeChangeEvent(models.ChangeNew))

	require.Error(t, err)
	assert.True(t, notifier.IsTransient(err), "broker failures are worth a retry")
}
