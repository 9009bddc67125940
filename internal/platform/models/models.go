package models

import "time"

// ListingStatus is the lifecycle state of a stored listing.
type ListingStatus string

const (
	// StatusActive marks a listing currently present on its source site.
	StatusActive ListingStatus = "ACTIVE"
	// StatusRemoved marks a listing that disappeared from a successful full scan.
	StatusRemoved ListingStatus = "REMOVED"
)

// Listing is the canonical property listing model.
// (SourceID, ExternalID) identifies a listing for its entire lifetime.
type Listing struct {
	SourceID     string
	ExternalID   string
	Address      string
	City         string
	Price        *int // whole euros, nil means "price on request"
	AreaM2       *int
	Rooms        *int
	PropertyType *string
	URL          string
	Status       ListingStatus
	Relisted     bool
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

// Key returns the global primary key of the listing.
func (l Listing) Key() ListingKey {
	return ListingKey{SourceID: l.SourceID, ExternalID: l.ExternalID}
}

// ListingKey identifies a listing across its lifetime.
type ListingKey struct {
	SourceID   string
	ExternalID string
}

// ChangeType classifies a detected delta.
type ChangeType string

const (
	ChangeNew     ChangeType = "NEW"
	ChangeUpdated ChangeType = "UPDATED"
	ChangeRemoved ChangeType = "REMOVED"
)

// FieldChange is one field-level diff within an UPDATED event.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// ChangeEvent is a classified delta produced by the change detector.
// Previous is nil for NEW events, Current is nil for REMOVED events.
// If several fields changed in the same cycle the event carries all
// their diffs, never one event per field.
type ChangeEvent struct {
	Type       ChangeType
	Previous   *Listing
	Current    *Listing
	Changes    []FieldChange
	DetectedAt time.Time
}

// Subject returns the listing a consumer should inspect: Current when
// present, otherwise the last known snapshot.
func (e ChangeEvent) Subject() *Listing {
	if e.Current != nil {
		return e.Current
	}
	return e.Previous
}

// ScanResult is the outcome of one adapter run within a cycle.
// Listings holds the committed normalized batch, only on success.
type ScanResult struct {
	SourceID   string
	Err        error
	Listings   []Listing
	Duration   time.Duration
	Candidates int
	Rejected   int
	New        int
	Updated    int
	Removed    int
}

// Success reports whether the adapter completed a full scan and its
// batch was committed.
func (r ScanResult) Success() bool {
	return r.Err == nil
}

// CycleSummary aggregates one complete pass over all enabled sources.
type CycleSummary struct {
	CycleID     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Results     []ScanResult
	New         int
	Updated     int
	Removed     int
	Undelivered int
}

// FailedSources returns the ids of sources whose scans failed this cycle.
func (s CycleSummary) FailedSources() []string {
	var failed []string
	for _, r := range s.Results {
		if !r.Success() {
			failed = append(failed, r.SourceID)
		}
	}
	return failed
}
