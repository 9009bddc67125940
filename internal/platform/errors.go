package platform

import (
	"errors"
)

// ErrAlreadyRunning is returned when a scan cycle can't start because the previous cycle is still in flight.
var ErrAlreadyRunning = errors.New("scan cycle already running")

// ErrFetchFailure marks a transient failure retrieving a source's listing index. Retryable next cycle.
var ErrFetchFailure = errors.New("fetch failure")

// ErrParseFailure marks unrecognized site markup. The source is skipped for the cycle.
var ErrParseFailure = errors.New("parse failure")

// ErrUnknownSource is returned when no adapter is registered for a source id.
var ErrUnknownSource = errors.New("unknown source")
