// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/medtrack/medtrack/pkg/errutil"
)

// Dispatcher defaults.
const (
	DefaultTimeout  = 2 * time.Second
	DefaultAttempts = 2
	retryBackoff    = 100 * time.Millisecond
)

// FailureRecorder is told about every channel delivery that finally failed.
type FailureRecorder func(channel, event string)

// Dispatcher sends each message to all channels. Each channel gets its own
// deadline, so a slow channel cannot starve the others or hold the caller
// beyond timeout per channel.
type Dispatcher struct {
	channels  []Channel
	timeout   time.Duration
	attempts  uint64
	logger    *slog.Logger
	onFailure FailureRecorder
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each channel delivery, retries included.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithAttempts sets the number of delivery attempts per channel.
func WithAttempts(n int) DispatcherOption {
	return func(disp *Dispatcher) {
		if n > 0 {
			disp.attempts = uint64(n)
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if logger != nil {
			disp.logger = logger
		}
	}
}

// WithFailureRecorder registers a callback for failed deliveries.
func WithFailureRecorder(fn FailureRecorder) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.onFailure = fn
	}
}

// NewDispatcher creates a Dispatcher over channels.
func NewDispatcher(channels []Channel, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		timeout:  DefaultTimeout,
		attempts: DefaultAttempts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Send delivers msg on every channel. Failures are logged and recorded,
// never returned. Cancellation of ctx by the caller does not abort delivery;
// only the per-channel timeout does.
func (d *Dispatcher) Send(ctx context.Context, msg Message) {
	base := context.WithoutCancel(ctx)
	for _, ch := range d.channels {
		if err := d.deliver(base, ch, msg); err != nil {
			errutil.LogError(ctx, d.logger, "notification delivery failed", err)
			if d.onFailure != nil {
				d.onFailure(ch.Name(), msg.Event)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(d.attempts-1, retry.NewConstant(retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ch.Deliver(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("NOTIFY_FAILED").
			With("channel", ch.Name()).
			With("event", msg.Event).
			Wrap(err)
	}
	return nil
}
