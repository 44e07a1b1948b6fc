// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package records

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Backing store tables, one per kind.
const (
	TableActivities    = "activities"
	TableHealthMetrics = "health_metrics"
	TableGoals         = "goals"
	TableAppointments  = "appointments"
	TableNotifications = "notifications"
)

// Goal statuses.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
)

// AppointmentScheduled is the status of a newly booked appointment.
const AppointmentScheduled = "scheduled"

// Activity is a logged workout or other physical activity.
type Activity struct {
	Meta
	ActivityType   string `json:"activity_type" validate:"required"`
	Duration       int    `json:"duration" validate:"required,gt=0"`
	CaloriesBurned int    `json:"calories_burned" validate:"gte=0"`
	Notes          string `json:"notes,omitempty"`
	Date           string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (a *Activity) defaults(now time.Time) {
	if a.Date == "" {
		a.Date = now.Format(DateLayout)
	}
}

func (a *Activity) category() string       { return a.ActivityType }
func (a *Activity) day() string            { return a.Date }
func (a *Activity) state() string          { return "" }
func (a *Activity) participant() ulid.ULID { return ulid.ULID{} }

// HealthMetric is a single measurement such as weight or heart rate.
type HealthMetric struct {
	Meta
	MetricType string   `json:"metric_type" validate:"required"`
	Value      *float64 `json:"value" validate:"required"`
	Unit       string   `json:"unit,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Date       string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (m *HealthMetric) defaults(now time.Time) {
	if m.Date == "" {
		m.Date = now.Format(DateLayout)
	}
}

func (m *HealthMetric) category() string       { return m.MetricType }
func (m *HealthMetric) day() string            { return m.Date }
func (m *HealthMetric) state() string          { return "" }
func (m *HealthMetric) participant() ulid.ULID { return ulid.ULID{} }

// Goal is a wellness target. New goals are active.
type Goal struct {
	Meta
	GoalType     string     `json:"goal_type" validate:"required"`
	TargetValue  *float64   `json:"target_value" validate:"required"`
	CurrentValue float64    `json:"current_value"`
	TargetDate   string     `json:"target_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status" validate:"oneof=active completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (g *Goal) defaults(time.Time) {
	// Completion only happens through Complete.
	g.Status = GoalActive
	g.CompletedAt = nil
}

func (g *Goal) category() string       { return g.GoalType }
func (g *Goal) day() string            { return "" }
func (g *Goal) state() string          { return g.Status }
func (g *Goal) participant() ulid.ULID { return ulid.ULID{} }

// Complete moves an active goal to completed.
func (g *Goal) Complete(now time.Time) error {
	if g.Status != GoalActive {
		return oops.Code(CodeTransition).
			With("goal_id", g.ID.String()).
			With("status", g.Status).
			Errorf("only active goals can be completed")
	}
	completed := now.UTC()
	g.Status = GoalCompleted
	g.CompletedAt = &completed
	return nil
}

// Appointment is a visit a patient books with a doctor. The patient owns it;
// the doctor is its participant.
type Appointment struct {
	Meta
	DoctorID    ulid.ULID `json:"doctor_id" validate:"required"`
	DoctorEmail string    `json:"doctor_email"`
	DoctorName  string    `json:"doctor_name"`
	PatientName string    `json:"patient_name"`
	Title       string    `json:"title"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string    `json:"time" validate:"required,datetime=15:04"`
	Location    string    `json:"location"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
}

func (a *Appointment) defaults(time.Time) {
	if a.Title == "" {
		a.Title = "Consultation"
	}
	if a.Location == "" {
		a.Location = "Office 203"
	}
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
}

func (a *Appointment) category() string       { return a.Title }
func (a *Appointment) day() string            { return a.Date }
func (a *Appointment) state() string          { return a.Status }
func (a *Appointment) participant() ulid.ULID { return a.DoctorID }

// Notification is an in-app message for its owner.
type Notification struct {
	Meta
	Subject string `json:"subject,omitempty"`
	Message string `json:"message" validate:"required"`
	Read    bool   `json:"read"`
}

func (n *Notification) defaults(time.Time) {}

func (n *Notification) category() string       { return n.Subject }
func (n *Notification) day() string            { return "" }
func (n *Notification) participant() ulid.ULID { return ulid.ULID{} }

func (n *Notification) state() string {
	if n.Read {
		return "read"
	}
	return "unread"
}
