// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package notify delivers account and appointment notifications.
//
// Channels perform the actual delivery (log, email, SNS). A Dispatcher fans
// a message out to every channel with a bounded timeout and retry budget and
// absorbs failures, so callers never see a delivery error.
package notify

import (
	"context"
	"log/slog"
)

// Event names carried on messages.
const (
	EventSignup      = "signup"
	EventLogin       = "login"
	EventLogout      = "logout"
	EventAppointment = "appointment"
)

// Message is a single notification.
type Message struct {
	Event   string
	To      string
	Subject string
	Body    string
}

// Channel delivers messages over one medium.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// Deliver sends msg. It must honor ctx cancellation.
	Deliver(ctx context.Context, msg Message) error
}

// LogChannel writes notifications to a structured logger instead of
// delivering them. It is the default when no other channel is configured.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel. A nil logger uses slog.Default.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Deliver implements Channel.
func (c *LogChannel) Deliver(ctx context.Context, msg Message) error {
	c.logger.InfoContext(ctx, "notification",
		"event", msg.Event,
		"to", msg.To,
		"subject", msg.Subject)
	return nil
}
