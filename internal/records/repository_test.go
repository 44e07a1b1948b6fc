// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package records_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/medtrack/internal/records"
	"github.com/medtrack/medtrack/internal/store"
	"github.com/medtrack/medtrack/pkg/errutil"
)

type stepClock struct {
	now time.Time
}

// Now returns the current time and then moves the clock forward one second,
// so consecutive appends get distinct creation times.
func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newClock() *stepClock {
	return &stepClock{now: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
}

func ptr(f float64) *float64 { return &f }

func TestRepository_AppendAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	repo := records.NewRepository[records.Activity](store.NewMemoryStore(), records.TableActivities,
		records.WithClock(clock.Now))
	owner := ulid.Make()

	spoofed := ulid.Make()
	rec := &records.Activity{ActivityType: "running", Duration: 30}
	rec.OwnerID = spoofed

	id, err := repo.Append(ctx, owner, rec)
	require.NoError(t, err)
	assert.False(t, id.IsZero())
	assert.Equal(t, owner, rec.OwnerID)
	assert.Equal(t, "2026-04-10", rec.Date)

	got, err := repo.Get(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "running", got.ActivityType)
	assert.Equal(t, owner, got.OwnerID)

	_, err = repo.Get(ctx, spoofed, id)
	assert.True(t, errors.Is(err, records.ErrNotFound))
}

func TestRepository_AppendValidation(t *testing.T) {
	ctx := context.Background()
	owner := ulid.Make()
	s := store.NewMemoryStore()

	t.Run("owner required", func(t *testing.T) {
		repo := records.NewRepository[records.Activity](s, records.TableActivities)
		_, err := repo.Append(ctx, ulid.ULID{}, &records.Activity{ActivityType: "yoga", Duration: 10})
		errutil.AssertErrorCode(t, err, records.CodeInvalid)
	})

	t.Run("activity presence", func(t *testing.T) {
		repo := records.NewRepository[records.Activity](s, records.TableActivities)
		_, err := repo.Append(ctx, owner, &records.Activity{Duration: 10})
		errutil.AssertErrorCode(t, err, records.CodeInvalid)
		errutil.AssertErrorContext(t, err, "fields", []string{"activity_type"})
	})

	t.Run("metric value zero is present", func(t *testing.T) {
		repo := records.NewRepository[records.HealthMetric](s, records.TableHealthMetrics)
		_, err := repo.Append(ctx, owner, &records.HealthMetric{MetricType: "temperature_delta", Value: ptr(0)})
		require.NoError(t, err)

		_, err = repo.Append(ctx, owner, &records.HealthMetric{MetricType: "weight"})
		errutil.AssertErrorCode(t, err, records.CodeInvalid)
	})

	t.Run("bad date", func(t *testing.T) {
		repo := records.NewRepository[records.Activity](s, records.TableActivities)
		_, err := repo.Append(ctx, owner, &records.Activity{ActivityType: "swim", Duration: 5, Date: "10/04/2026"})
		errutil.AssertErrorCode(t, err, records.CodeInvalid)
	})

	t.Run("appointment needs doctor date and time", func(t *testing.T) {
		repo := records.NewRepository[records.Appointment](s, records.TableAppointments)
		_, err := repo.Append(ctx, owner, &records.Appointment{Date: "2026-05-01"})
		errutil.AssertErrorCode(t, err, records.CodeInvalid)
		errutil.AssertErrorContext(t, err, "fields", []string{"doctor_id", "time"})
	})
}

func TestRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	repo := records.NewRepository[records.HealthMetric](store.NewMemoryStore(), records.TableHealthMetrics,
		records.WithClock(clock.Now))
	alice, bob := ulid.Make(), ulid.Make()

	for _, m := range []records.HealthMetric{
		{MetricType: "weight", Value: ptr(70), Date: "2026-04-01"},
		{MetricType: "heart_rate", Value: ptr(61), Date: "2026-04-02"},
		{MetricType: "weight", Value: ptr(69.5), Date: "2026-04-03"},
		{MetricType: "weight", Value: ptr(69), Date: "2026-04-04"},
	} {
		m := m
		_, err := repo.Append(ctx, alice, &m)
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, bob, &records.HealthMetric{MetricType: "weight", Value: ptr(90)})
	require.NoError(t, err)

	values := func(list []records.HealthMetric) []float64 {
		out := make([]float64, 0, len(list))
		for _, m := range list {
			out = append(out, *m.Value)
		}
		return out
	}

	tests := []struct {
		name   string
		filter records.Filter
		limit  int
		want   []float64
	}{
		{name: "newest first", want: []float64{69, 69.5, 61, 70}},
		{name: "limit", limit: 2, want: []float64{69, 69.5}},
		{name: "filter before limit", filter: records.Filter{Category: "heart_rate"}, limit: 1, want: []float64{61}},
		{name: "date range", filter: records.Filter{From: "2026-04-02", To: "2026-04-03"}, want: []float64{69.5, 61}},
		{name: "category and from", filter: records.Filter{Category: "weight", From: "2026-04-03"}, want: []float64{69, 69.5}},
		{name: "no match", filter: records.Filter{Category: "glucose"}, want: []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListByOwner(ctx, alice, tt.filter, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, values(got))
			for _, m := range got {
				assert.Equal(t, alice, m.OwnerID)
			}
		})
	}

	bobs, err := repo.ListByOwner(ctx, bob, records.Filter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{90}, values(bobs))
}

func TestRepository_ListReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := records.NewRepository[records.Activity](store.NewMemoryStore(), records.TableActivities)
	owner := ulid.Make()

	_, err := repo.Append(ctx, owner, &records.Activity{ActivityType: "walk", Duration: 20})
	require.NoError(t, err)

	first, err := repo.ListByOwner(ctx, owner, records.Filter{}, 0)
	require.NoError(t, err)
	first[0].ActivityType = "mutated"

	second, err := repo.ListByOwner(ctx, owner, records.Filter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "walk", second[0].ActivityType)
}

func TestRepository_GoalCompletion(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	repo := records.NewRepository[records.Goal](store.NewMemoryStore(), records.TableGoals, records.WithClock(clock.Now))
	owner, other := ulid.Make(), ulid.Make()

	forged := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := repo.Append(ctx, owner, &records.Goal{
		GoalType:    "steps",
		TargetValue: ptr(10000),
		Status:      records.GoalCompleted,
		CompletedAt: &forged,
	})
	require.NoError(t, err)

	goal, err := repo.Get(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, records.GoalActive, goal.Status, "new goals start active")
	assert.Nil(t, goal.CompletedAt)

	id, err = repo.Append(ctx, owner, &records.Goal{GoalType: "steps", TargetValue: ptr(10000)})
	require.NoError(t, err)

	complete := func(g *records.Goal) error { return g.Complete(clock.Now()) }

	_, err = repo.Update(ctx, other, id, complete)
	assert.True(t, errors.Is(err, records.ErrNotFound))

	done, err := repo.Update(ctx, owner, id, complete)
	require.NoError(t, err)
	assert.Equal(t, records.GoalCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = repo.Update(ctx, owner, id, complete)
	errutil.AssertErrorCode(t, err, records.CodeTransition)

	active, err := repo.ListByOwner(ctx, owner, records.Filter{Status: records.GoalActive}, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRepository_AppointmentVisibleToDoctor(t *testing.T) {
	ctx := context.Background()
	repo := records.NewRepository[records.Appointment](store.NewMemoryStore(), records.TableAppointments)
	patient, doctor, stranger := ulid.Make(), ulid.Make(), ulid.Make()

	id, err := repo.Append(ctx, patient, &records.Appointment{DoctorID: doctor, Date: "2026-05-01", Time: "10:30"})
	require.NoError(t, err)

	for _, viewer := range []ulid.ULID{patient, doctor} {
		appt, err := repo.Get(ctx, viewer, id)
		require.NoError(t, err)
		assert.Equal(t, "Consultation", appt.Title)
		assert.Equal(t, records.AppointmentScheduled, appt.Status)

		list, err := repo.ListByOwner(ctx, viewer, records.Filter{}, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)
	}

	_, err = repo.Get(ctx, stranger, id)
	errutil.AssertErrorCode(t, err, records.CodeNotFound)
	list, err := repo.ListByOwner(ctx, stranger, records.Filter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	// The doctor can read but not modify.
	_, err = repo.Update(ctx, doctor, id, func(a *records.Appointment) error {
		a.Status = "cancelled"
		return nil
	})
	assert.True(t, errors.Is(err, records.ErrNotFound))
}

func TestRepository_GetMissing(t *testing.T) {
	repo := records.NewRepository[records.Notification](store.NewMemoryStore(), records.TableNotifications)
	_, err := repo.Get(context.Background(), ulid.Make(), ulid.Make())
	errutil.AssertErrorCode(t, err, records.CodeNotFound)
	assert.True(t, errors.Is(err, records.ErrNotFound))
}
