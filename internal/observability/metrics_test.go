// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordLogin(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLogin("patient", LoginSuccess)
	m.RecordLogin("patient", LoginInvalid)
	m.RecordLogin("patient", LoginInvalid)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("patient", LoginSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("patient", LoginInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsIssued.WithLabelValues("patient")))
}

func TestMetrics_RecordHTTP(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTP("POST", "/login/{role}", 429, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/login/{role}", "429")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
}

func TestMetrics_RecordSignupAndNotificationFailure(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSignup("doctor")
	m.RecordNotificationFailure("sns", "login")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Signups.WithLabelValues("doctor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailures.WithLabelValues("sns", "login")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLogin("patient", LoginSuccess)
		m.RecordSignup("patient")
		m.RecordHTTP("GET", "/", 200, time.Second)
		m.RecordNotificationFailure("log", "signup")
	})
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
