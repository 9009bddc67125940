package notifier

import "errors"

// ErrTransient marks a delivery failure worth retrying, like provider
// rate limiting or a network hiccup.
var ErrTransient = errors.New("transient delivery failure")

// IsTransient reports whether err is worth a retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
