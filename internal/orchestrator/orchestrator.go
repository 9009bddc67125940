// Package orchestrator runs scan cycles: every enabled adapter once,
// bounded concurrency, per-source failure isolation, one summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/filter"
	"github.com/Haasie/huizen-zoeker/internal/normalizer"
	"github.com/Haasie/huizen-zoeker/internal/platform"
	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ChangeDetector commits a source's scanned batch and returns the
// classified change events.
type ChangeDetector interface {
	Detect(ctx context.Context, sourceID string, batch []models.Listing) ([]models.ChangeEvent, error)
}

// Notifier dispatches filtered events plus the cycle summary and
// returns the number of undelivered messages.
type Notifier interface {
	Dispatch(ctx context.Context, events []models.ChangeEvent, summary models.CycleSummary) int
}

// Config bounds one orchestrator.
type Config struct {
	Interval       time.Duration
	Workers        int
	AdapterTimeout time.Duration
	Hints          scraper.Hints
	Criteria       filter.Criteria
}

// Orchestrator schedules scan cycles over the adapter registry.
// At most one cycle is in flight; triggers arriving while a cycle runs
// are dropped, not queued.
type Orchestrator struct {
	adapters []scraper.Adapter
	detector ChangeDetector
	notifier Notifier
	cfg      Config
	logger   *zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New returns a new Orchestrator over the given adapters.
func New(adapters []scraper.Adapter, det ChangeDetector, not Notifier, cfg Config, logger *zerolog.Logger) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		adapters: adapters,
		detector: det,
		notifier: not,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start runs cycles on the configured interval until ctx is cancelled.
// The first cycle starts immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error().Err(err).Msg("scan cycle failed to start")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunNow runs one cycle synchronously and returns its summary. It
// returns platform.ErrAlreadyRunning when a cycle is already in
// flight; the trigger is coalesced, never queued.
func (o *Orchestrator) RunNow(ctx context.Context) (models.CycleSummary, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return models.CycleSummary{}, platform.ErrAlreadyRunning
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	return o.runCycle(ctx)
}

func (o *Orchestrator) runCycle(ctx context.Context) (models.CycleSummary, error) {
	summary := models.CycleSummary{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	o.logger.Info().
		Str("cycleId", summary.CycleID).
		Int("sources", len(o.adapters)).
		Msg("scan cycle started")

	var (
		mu        sync.Mutex
		allEvents []models.ChangeEvent
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Workers)

	results := make([]models.ScanResult, len(o.adapters))
	for i, adapter := range o.adapters {
		i, adapter := i, adapter
		group.Go(func() error {
			result, events := o.scanSource(groupCtx, adapter)
			results[i] = result

			mu.Lock()
			allEvents = append(allEvents, events...)
			mu.Unlock()

			// A failed source never aborts the cycle.
			return nil
		})
	}

	// Goroutines only return nil; Wait is a completion barrier.
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	summary.Results = results
	for _, result := range results {
		summary.New += result.New
		summary.Updated += result.Updated
		summary.Removed += result.Removed
	}

	summary.FinishedAt = time.Now().UTC()

	filtered := o.cfg.Criteria.Apply(allEvents)
	summary.Undelivered = o.notifier.Dispatch(ctx, filtered, summary)

	o.logger.Info().
		Str("cycleId", summary.CycleID).
		Int("new", summary.New).
		Int("updated", summary.Updated).
		Int("removed", summary.Removed).
		Int("undelivered", summary.Undelivered).
		Strs("failedSources", summary.FailedSources()).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("scan cycle finished")

	return summary, nil
}

// scanSource runs one adapter end to end: fetch, normalize, commit,
// classify. On any failure the source's stored state is untouched and
// the error lands in the scan result.
func (o *Orchestrator) scanSource(ctx context.Context, adapter scraper.Adapter) (models.ScanResult, []models.ChangeEvent) {
	sourceID := adapter.SourceID()
	result := models.ScanResult{SourceID: sourceID}
	started := time.Now()
	defer func() {
		result.Duration = time.Since(started)
	}()

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	candidates, err := adapter.FetchCandidates(scanCtx, o.cfg.Hints)
	if err != nil {
		result.Err = fmt.Errorf("can't fetch candidates: %w", err)
		o.logger.Error().Err(err).Str("source", sourceID).Msg("source scan failed")
		return result, nil
	}
	result.Candidates = len(candidates)

	batch := make([]models.Listing, 0, len(candidates))
	for _, candidate := range candidates {
		listing, err := normalizer.Normalize(sourceID, candidate)
		if err != nil {
			result.Rejected++
			o.logger.Warn().
				Err(err).
				Str("source", sourceID).
				Str("url", candidate.URL).
				Msg("candidate rejected")
			continue
		}
		batch = append(batch, listing)
	}

	events, err := o.detector.Detect(scanCtx, sourceID, batch)
	if err != nil {
		result.Err = err
		o.logger.Error().Err(err).Str("source", sourceID).Msg("source commit failed")
		return result, nil
	}
	result.Listings = batch

	for _, event := range events {
		switch event.Type {
		case models.ChangeNew:
			result.New++
		case models.ChangeUpdated:
			result.Updated++
		case models.ChangeRemoved:
			result.Removed++
		}
	}

	o.logger.Info().
		Str("source", sourceID).
		Int("candidates", result.Candidates).
		Int("rejected", result.Rejected).
		Int("new", result.New).
		Int("updated", result.Updated).
		Int("removed", result.Removed).
		Dur("duration", time.Since(started)).
		Msg("source scan finished")

	return result, events
}
