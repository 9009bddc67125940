// Package notifier fans filtered change events out to the configured
// notification channels.
package notifier

import (
	"context"
	"time"

	"github.com/Haasie/huizen-zoeker/internal/platform/models"
	"github.com/rs/zerolog"
)

// Channel delivers one message about a change or a cycle summary.
// Implementations distinguish transient failures (worth a retry) by
// returning an error wrapping ErrTransient.
type Channel interface {
	Name() string
	SendEvent(ctx context.Context, event models.ChangeEvent) error
	SendSummary(ctx context.Context, summary models.CycleSummary) error
}

// Flags enables notifications per change type.
type Flags struct {
	NotifyNew     bool
	NotifyUpdated bool
	NotifyRemoved bool
	SendSummary   bool
}

// RetryPolicy bounds delivery retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches notification provider rate limits without
// dragging a cycle out for minutes.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
}

// Dispatcher delivers events to every channel with retry discipline.
// Delivery failures never propagate; the store has already committed.
type Dispatcher struct {
	channels []Channel
	flags    Flags
	retry    RetryPolicy
	logger   *zerolog.Logger
}

// NewDispatcher returns a new Dispatcher.
func NewDispatcher(channels []Channel, flags Flags, retry RetryPolicy, logger *zerolog.Logger) *Dispatcher {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &Dispatcher{
		channels: channels,
		flags:    flags,
		retry:    retry,
		logger:   logger,
	}
}

// Dispatch sends one message per enabled event per channel, then the
// cycle summary. It returns the number of undelivered messages.
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.ChangeEvent, summary models.CycleSummary) int {
	undelivered := 0

	for _, event := range events {
		if !d.enabled(event.Type) {
			continue
		}
		for _, channel := range d.channels {
			err := d.deliver(ctx, channel.Name(), func() error {
				return channel.SendEvent(ctx, event)
			})
			if err != nil {
				undelivered++
				d.logger.Error().
					Err(err).
					Str("channel", channel.Name()).
					Str("changeType", string(event.Type)).
					Str("url", event.Subject().URL).
					Msg("notification UNDELIVERED")
			}
		}
	}

	if d.flags.SendSummary {
		summary.Undelivered = undelivered
		for _, channel := range d.channels {
			err := d.deliver(ctx, channel.Name(), func() error {
				return channel.SendSummary(ctx, summary)
			})
			if err != nil {
				undelivered++
				d.logger.Error().
					Err(err).
					Str("channel", channel.Name()).
					Msg("cycle summary UNDELIVERED")
			}
		}
	}

	return undelivered
}

// deliver runs send with bounded exponential backoff on transient
// failures. Permanent failures abort immediately.
func (d *Dispatcher) deliver(ctx context.Context, channelName string, send func() error) error {
	delay := d.retry.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		lastErr = send()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == d.retry.MaxAttempts {
			return lastErr
		}

		d.logger.Warn().
			Err(lastErr).
			Str("channel", channelName).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("delivery failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}

func (d *Dispatcher) enabled(changeType models.ChangeType) bool {
	switch changeType {
	case models.ChangeNew:
		return d.flags.NotifyNew
	case models.ChangeUpdated:
		return d.flags.NotifyUpdated
	case models.ChangeRemoved:
		return d.flags.NotifyRemoved
	default:
		return false
	}
}
