package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/api"
	"github.com/Haasie/huizen-zoeker/internal/platform"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/Haasie/huizen-zoeker/internal/platform/models/modelstesting"
	"github.com/Haasie/huizen-zoeker/internal/platform/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	listings  []models.Listing
	changes   []models.ChangeEvent
	err       error
	lastQuery storage.ListingQuery
	lastSince time.Time
}

func (r *fakeReader) ListListings(_ context.Context, query storage.ListingQuery) ([]models.Listing, error) {
	r.lastQuery = query
	return r.listings, r.err
}

func (r *fakeReader) GetRecentChanges(_ context.Context, since time.Time, _ int) ([]models.ChangeEvent, error) {
	r.lastSince = since
	return r.changes, r.err
}

type fakeRunner struct {
	summary models.CycleSummary
	err     error
}

func (r *fakeRunner) RunNow(context.Context) (models.CycleSummary, error) {
	return r.summary, r.err
}

func newServer(t *testing.T, reader *fakeReader, runner *fakeRunner) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	server := httptest.NewServer(api.NewHandler(reader, runner, &logger).Router())
	t.Cleanup(server.Close)
	return server
}

func TestUnitListingsEndpoint(t *testing.T) {
	reader := &fakeReader{
		listings: []models.Listing{
			modelstesting.FakeListing(func(l *models.Listing) {
				l.SourceID = "ooms"
				l.ExternalID = "woning-1"
			}),
		},
	}
	server := newServer(t, reader, &fakeRunner{})

	resp, err := http.Get(server.URL + "/api/listings?source=ooms&city=Rotterdam&minPrice=100000&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Listings []struct {
			SourceID   string `json:"sourceId"`
			ExternalID string `json:"externalId"`
			Status     string `json:"status"`
		} `json:"listings"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Listings, 1)
	assert.Equal(t, "ooms", body.Listings[0].SourceID)
	assert.Equal(t, "woning-1", body.Listings[0].ExternalID)
	assert.Equal(t, "ACTIVE", body.Listings[0].Status)

	assert.Equal(t, storage.ListingQuery{
		SourceID:   "ooms",
		City:       "Rotterdam",
		MinPrice:   100000,
		ActiveOnly: true,
		Limit:      10,
	}, reader.lastQuery)
}

func TestUnitListingsIncludeRemovedFlag(t *testing.T) {
	reader := &fakeReader{}
	server := newServer(t, reader, &fakeRunner{})

	resp, err := http.Get(server.URL + "/api/listings?includeRemoved=true")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, reader.lastQuery.ActiveOnly)
}

func TestUnitChangesEndpoint(t *testing.T) {
	reader := &fakeReader{
		changes: []models.ChangeEvent{
			modelstesting.FakeChangeEvent(models.ChangeUpdated),
		},
	}
	server := newServer(t, reader, &fakeRunner{})

	since := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	resp, err := http.Get(server.URL + "/api/changes?since=" + since.Format(time.RFC3339))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, reader.lastSince.Equal(since))

	var body struct {
		Changes []struct {
			Type     string          `json:"type"`
			Previous json.RawMessage `json:"previous"`
			Current  json.RawMessage `json:"current"`
		} `json:"changes"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Changes, 1)
	assert.Equal(t, "UPDATED", body.Changes[0].Type)
	assert.NotEmpty(t, body.Changes[0].Previous)
	assert.NotEmpty(t, body.Changes[0].Current)
}

func TestUnitChangesRejectsBadSince(t *testing.T) {
	server := newServer(t, &fakeReader{}, &fakeRunner{})

	resp, err := http.Get(server.URL + "/api/changes?since=gisteren")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnitScanEndpoint(t *testing.T) {
	tests := map[string]struct {
		runner     *fakeRunner
		wantStatus int
	}{
		"cycle runs": {
			runner: &fakeRunner{summary: models.CycleSummary{
				CycleID: "cycle-1",
				New:     2,
			}},
			wantStatus: http.StatusOK,
		},
		"cycle already in flight": {
			runner:     &fakeRunner{err: platform.ErrAlreadyRunning},
			wantStatus: http.StatusConflict,
		},
		"cycle fails": {
			runner:     &fakeRunner{err: assert.AnError},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			server := newServer(t, &fakeReader{}, tt.runner)

			resp, err := http.Post(server.URL+"/api/scan", "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body struct {
				CycleID string `json:"cycleId"`
				New     int    `json:"new"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "cycle-1", body.CycleID)
			assert.Equal(t, 2, body.New)
		})
	}
}

func TestUnitScanRejectsGet(t *testing.T) {
	server := newServer(t, &fakeReader{}, &fakeRunner{})

	resp, err := http.Get(server.URL + "/api/scan")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
