// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/notify"
	"github.com/medtrack/medtrack/internal/records"
	"github.com/medtrack/medtrack/pkg/errutil"
)

// List limits.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// statusAll disables the default status filter of a list.
const statusAll = "all"

// BookAppointmentRequest is the body of POST /api/appointments.
type BookAppointmentRequest struct {
	DoctorEmail string `json:"doctor_email" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Reason      string `json:"reason"`
}

func createRecord[T any, P records.Kind[T]](h *Handler, repo *records.Repository[T, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := mustSession(r)
		rec := P(new(T))
		if err := decodeJSON(w, r, rec); err != nil {
			h.writeError(w, r, err)
			return
		}
		id, err := repo.Append(r.Context(), s.UserID, rec)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
	}
}

// listRecords serves a filtered list. defaultStatus applies when the
// request names no status; status=all lists every status.
func listRecords[T any, P records.Kind[T]](h *Handler, repo *records.Repository[T, P], defaultStatus string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := mustSession(r)
		filter, limit, err := parseListQuery(r, defaultStatus)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		list, err := repo.ListByOwner(r.Context(), s.UserID, filter, limit)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func parseListQuery(r *http.Request, defaultStatus string) (records.Filter, int, error) {
	q := r.URL.Query()
	invalid := func(param, format string, args ...any) error {
		return oops.Code(auth.CodeValidation).
			With("fields", []string{param}).
			Errorf(format, args...)
	}

	limit := DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxListLimit {
			return records.Filter{}, 0, invalid("limit", "limit must be between 1 and %d", MaxListLimit)
		}
		limit = n
	}

	f := records.Filter{
		Category: q.Get("type"),
		From:     q.Get("date_from"),
		To:       q.Get("date_to"),
		Status:   q.Get("status"),
	}
	for param, value := range map[string]string{"date_from": f.From, "date_to": f.To} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(records.DateLayout, value); err != nil {
			return records.Filter{}, 0, invalid(param, "%s must be a date in YYYY-MM-DD format", param)
		}
	}
	switch f.Status {
	case "":
		f.Status = defaultStatus
	case statusAll:
		f.Status = ""
	}
	return f, limit, nil
}

// CompleteGoal handles POST /api/goals/{id}/complete.
func (h *Handler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	id, err := ulid.ParseStrict(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, oops.Code(records.CodeNotFound).With("id", chi.URLParam(r, "id")).Wrap(records.ErrNotFound))
		return
	}
	goal, err := h.goals.Update(r.Context(), s.UserID, id, func(g *records.Goal) error {
		return g.Complete(h.now())
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// BookAppointment handles POST /api/appointments. The doctor is found by
// email, receives an in-app notification and an appointment notice.
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	var req BookAppointmentRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	doctor, err := h.users.GetByEmail(r.Context(), req.DoctorEmail)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}
	if err != nil || doctor.Role != auth.RoleDoctor || !doctor.IsActive {
		h.writeError(w, r, oops.Code(auth.CodeUserNotFound).
			With("doctor_email", req.DoctorEmail).
			Errorf("no doctor is registered with this email"))
		return
	}

	appt := &records.Appointment{
		DoctorID:    doctor.ID,
		DoctorEmail: doctor.Email,
		DoctorName:  doctor.Name,
		PatientName: s.Name,
		Title:       req.Title,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Reason:      req.Reason,
	}
	id, err := h.appointments.Append(r.Context(), s.UserID, appt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	notice := fmt.Sprintf("%s booked %s on %s at %s (%s).", s.Name, appt.Title, appt.Date, appt.Time, appt.Location)
	if _, err := h.notifications.Append(r.Context(), doctor.ID, &records.Notification{
		Subject: "New appointment",
		Message: notice,
	}); err != nil {
		errutil.LogError(r.Context(), h.logger, "failed to store appointment notification", err)
	}
	if h.notifier != nil {
		h.notifier.Send(r.Context(), notify.Message{
			Event:   notify.EventAppointment,
			To:      doctor.Email,
			Subject: fmt.Sprintf("New appointment on %s", h.appName),
			Body:    notice,
		})
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}
