package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/filter"
	"github.com/Haasie/huizen-zoeker/internal/orchestrator"
	"github.com/Haasie/huizen-zoeker/internal/platform"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/Haasie/huizen-zoeker/internal/platform/models/modelstesting"
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	sourceID   string
	candidates []scraper.Candidate
	err        error
	block      chan struct{}
}

func (a *fakeAdapter) SourceID() string {
	return a.sourceID
}

func (a *fakeAdapter) FetchCandidates(ctx context.Context, _ scraper.Hints) ([]scraper.Candidate, error) {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.candidates, nil
}

type fakeDetector struct {
	mu     sync.Mutex
	events map[string][]models.ChangeEvent
	errs   map[string]error
	calls  map[string][]models.Listing
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{
		events: map[string][]models.ChangeEvent{},
		errs:   map[string]error{},
		calls:  map[string][]models.Listing{},
	}
}

func (d *fakeDetector) Detect(_ context.Context, sourceID string, batch []models.Listing) ([]models.ChangeEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[sourceID] = batch
	if err := d.errs[sourceID]; err != nil {
		return nil, err
	}
	return d.events[sourceID], nil
}

func (d *fakeDetector) batchFor(sourceID string) ([]models.Listing, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch, ok := d.calls[sourceID]
	return batch, ok
}

type fakeNotifier struct {
	mu          sync.Mutex
	events      []models.ChangeEvent
	summary     models.CycleSummary
	calls       int
	undelivered int
}

func (n *fakeNotifier) Dispatch(_ context.Context, events []models.ChangeEvent, summary models.CycleSummary) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.events = events
	n.summary = summary
	return n.undelivered
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func candidate(externalID string, price string) scraper.Candidate {
	return scraper.Candidate{
		ExternalID: externalID,
		Address:    "Dorpsstraat " + externalID,
		City:       "Rotterdam",
		PriceText:  price,
		URL:        "https://example.test/woning/" + externalID,
	}
}

func TestUnitRunNowHappyCycle(t *testing.T) {
	logger := zerolog.Nop()

	newEvent := modelstesting.FakeChangeEvent(models.ChangeNew)
	updatedEvent := modelstesting.FakeChangeEvent(models.ChangeUpdated)
	removedEvent := modelstesting.FakeChangeEvent(models.ChangeRemoved)

	detector := newFakeDetector()
	detector.events["ooms"] = []models.ChangeEvent{newEvent, updatedEvent}
	detector.events["klipenvw"] = []models.ChangeEvent{removedEvent}

	notifier := &fakeNotifier{}

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", candidates: []scraper.Candidate{
				candidate("w-1", "€ 150.000"),
				candidate("w-2", "€ 225.000"),
			}},
			&fakeAdapter{sourceID: "klipenvw", candidates: []scraper.Candidate{}},
		},
		detector,
		notifier,
		orchestrator.Config{Workers: 2},
		&logger,
	)

	summary, err := orch.RunNow(context.TODO())

	require.NoError(t, err)
	assert.NotEmpty(t, summary.CycleID)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Removed)
	assert.Empty(t, summary.FailedSources())
	assert.Equal(t, 1, notifier.calls)
	assert.Len(t, notifier.events, 3)

	require.Len(t, summary.Results, 2)
	assert.Len(t, summary.Results[0].Listings, 2, "a committed scan keeps its normalized batch")

	// The dispatched summary is already finished-stamped.
	assert.False(t, notifier.summary.FinishedAt.IsZero())
	assert.False(t, notifier.summary.FinishedAt.Before(notifier.summary.StartedAt))

	oomsBatch, ok := detector.batchFor("ooms")
	require.True(t, ok)
	require.Len(t, oomsBatch, 2)
	assert.Equal(t, "w-1", oomsBatch[0].ExternalID)
	assert.Equal(t, lo.ToPtr(150000), oomsBatch[0].Price)
}

func TestUnitFailedFetchIsolatesSource(t *testing.T) {
	logger := zerolog.Nop()

	detector := newFakeDetector()
	detector.events["klipenvw"] = []models.ChangeEvent{
		modelstesting.FakeChangeEvent(models.ChangeNew),
	}

	notifier := &fakeNotifier{}

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", err: platform.ErrFetchFailure},
			&fakeAdapter{sourceID: "klipenvw", candidates: []scraper.Candidate{
				candidate("w-9", "€ 180.000"),
			}},
		},
		detector,
		notifier,
		orchestrator.Config{Workers: 2},
		&logger,
	)

	summary, err := orch.RunNow(context.TODO())

	require.NoError(t, err)

	// The failing source never reaches the detector.
	_, called := detector.batchFor("ooms")
	assert.False(t, called)

	assert.Equal(t, []string{"ooms"}, summary.FailedSources())
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, notifier.calls, "the healthy source still commits and notifies")
}

func TestUnitDetectorFailureLandsInResult(t *testing.T) {
	logger := zerolog.Nop()

	detector := newFakeDetector()
	detector.errs["ooms"] = assert.AnError

	notifier := &fakeNotifier{}

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", candidates: []scraper.Candidate{
				candidate("w-1", "€ 150.000"),
			}},
		},
		detector,
		notifier,
		orchestrator.Config{Workers: 1},
		&logger,
	)

	summary, err := orch.RunNow(context.TODO())

	require.NoError(t, err)
	assert.Equal(t, []string{"ooms"}, summary.FailedSources())
	assert.Zero(t, summary.New)
	assert.Empty(t, notifier.events)
}

func TestUnitMalformedCandidatesAreRejectedNotFatal(t *testing.T) {
	logger := zerolog.Nop()

	detector := newFakeDetector()
	notifier := &fakeNotifier{}

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", candidates: []scraper.Candidate{
				candidate("w-1", "€ 150.000"),
				{PriceText: "€ 200.000"}, // no external id, no url
			}},
		},
		detector,
		notifier,
		orchestrator.Config{Workers: 1},
		&logger,
	)

	summary, err := orch.RunNow(context.TODO())

	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 2, summary.Results[0].Candidates)
	assert.Equal(t, 1, summary.Results[0].Rejected)

	batch, ok := detector.batchFor("ooms")
	require.True(t, ok)
	assert.Len(t, batch, 1)
}

func TestUnitDispatchReceivesOnlyMatchingEvents(t *testing.T) {
	logger := zerolog.Nop()

	cheap := modelstesting.FakeChangeEvent(models.ChangeNew, func(e *models.ChangeEvent) {
		e.Current.Price = lo.ToPtr(90000)
	})
	matching := modelstesting.FakeChangeEvent(models.ChangeNew, func(e *models.ChangeEvent) {
		e.Current.Price = lo.ToPtr(150000)
	})

	detector := newFakeDetector()
	detector.events["ooms"] = []models.ChangeEvent{cheap, matching}

	notifier := &fakeNotifier{}

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", candidates: []scraper.Candidate{
				candidate("w-1", "€ 90.000"),
				candidate("w-2", "€ 150.000"),
			}},
		},
		detector,
		notifier,
		orchestrator.Config{
			Workers:  1,
			Criteria: filter.Criteria{MinPrice: 100000},
		},
		&logger,
	)

	summary, err := orch.RunNow(context.TODO())

	require.NoError(t, err)

	// The summary counts every committed change; only matching ones
	// reach subscribers.
	assert.Equal(t, 2, summary.New)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, lo.ToPtr(150000), notifier.events[0].Current.Price)
}

func TestUnitRunNowCoalescesWhileCycleInFlight(t *testing.T) {
	logger := zerolog.Nop()

	release := make(chan struct{})
	started := make(chan struct{}, 1)

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", block: release},
		},
		newFakeDetector(),
		&fakeNotifier{},
		orchestrator.Config{Workers: 1},
		&logger,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		started <- struct{}{}
		_, _ = orch.RunNow(context.TODO())
	}()

	<-started
	// The second trigger must be dropped, not queued.
	require.Eventually(t, func() bool {
		_, err := orch.RunNow(context.TODO())
		return errors.Is(err, platform.ErrAlreadyRunning)
	}, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	// After the first cycle finished a new trigger is accepted again.
	_, err := orch.RunNow(context.TODO())
	assert.NoError(t, err)
}

func TestUnitStartWithZeroConfigRunsFirstCycle(t *testing.T) {
	logger := zerolog.Nop()

	notifier := &fakeNotifier{}

	// Everything defaulted, including the scan interval.
	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", candidates: []scraper.Candidate{
				candidate("w-1", "€ 150.000"),
			}},
		},
		newFakeDetector(),
		notifier,
		orchestrator.Config{},
		&logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return notifier.callCount() == 1
	}, time.Second, 5*time.Millisecond, "the first cycle starts immediately")

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start didn't return after cancellation")
	}
}

func TestUnitSummaryCarriesUndeliveredCount(t *testing.T) {
	logger := zerolog.Nop()

	detector := newFakeDetector()
	detector.events["ooms"] = []models.ChangeEvent{
		modelstesting.FakeChangeEvent(models.ChangeNew),
	}

	notifier := &fakeNotifier{undelivered: 3}

	orch := orchestrator.New(
		[]scraper.Adapter{
			&fakeAdapter{sourceID: "ooms", candidates: []scraper.Candidate{
				candidate("w-1", "€ 150.000"),
			}},
		},
		detector,
		notifier,
		orchestrator.Config{Workers: 1},
		&logger,
	)

	summary, err := orch.RunNow(context.TODO())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Undelivered)
}
