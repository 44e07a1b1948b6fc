// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login results recorded by RecordLogin.
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid"
	LoginRateLimited = "rate_limited"
	LoginError       = "error"
)

// Metrics are the MedTrack application metrics. A nil *Metrics discards
// every observation.
type Metrics struct {
	LoginAttempts        *prometheus.CounterVec
	Signups              *prometheus.CounterVec
	SessionsIssued       *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	NotificationFailures *prometheus.CounterVec
}

// NewMetrics creates the application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medtrack_login_attempts_total",
				Help: "Login attempts by role and result",
			},
			[]string{"role", "result"},
		),
		Signups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medtrack_signups_total",
				Help: "Completed registrations by role",
			},
			[]string{"role"},
		),
		SessionsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medtrack_sessions_issued_total",
				Help: "Sessions issued by role",
			},
			[]string{"role"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medtrack_http_requests_total",
				Help: "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "medtrack_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medtrack_notification_failures_total",
				Help: "Notifications that could not be delivered, by channel and event",
			},
			[]string{"channel", "event"},
		),
	}

	reg.MustRegister(
		m.LoginAttempts,
		m.Signups,
		m.SessionsIssued,
		m.HTTPRequests,
		m.HTTPDuration,
		m.NotificationFailures,
	)
	return m
}

// RecordLogin counts a login attempt. A success also counts an issued session.
func (m *Metrics) RecordLogin(role, result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(role, result).Inc()
	if result == LoginSuccess {
		m.SessionsIssued.WithLabelValues(role).Inc()
	}
}

// RecordSignup counts a completed registration.
func (m *Metrics) RecordSignup(role string) {
	if m == nil {
		return
	}
	m.Signups.WithLabelValues(role).Inc()
}

// RecordHTTP counts a served request.
func (m *Metrics) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordNotificationFailure counts an undelivered notification. Its
// signature matches notify.FailureRecorder.
func (m *Metrics) RecordNotificationFailure(channel, event string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(channel, event).Inc()
}
