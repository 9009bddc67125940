package detector

import "time"

type systemClock struct{}

// Now returns current UTC time truncated to whole seconds, matching
// timestamp precision in the store.
func (c systemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
