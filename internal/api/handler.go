// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package api serves the MedTrack HTTP API: registration, login, logout and
// the session-protected record routes under /api.
package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/observability"
	"github.com/medtrack/medtrack/internal/records"
	"github.com/medtrack/medtrack/internal/store"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "medtrack_session"

// Deps are the collaborators of a Handler.
type Deps struct {
	Auth     *auth.Service
	Gate     *auth.Gate
	Users    auth.UserRepository
	Store    store.Store
	Notifier auth.Notifier
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	AppName       string
	SecureCookies bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	auth     *auth.Service
	gate     *auth.Gate
	users    auth.UserRepository
	notifier auth.Notifier
	metrics  *observability.Metrics
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	appName       string
	secureCookies bool

	activities    *records.Repository[records.Activity, *records.Activity]
	metricsRecs   *records.Repository[records.HealthMetric, *records.HealthMetric]
	goals         *records.Repository[records.Goal, *records.Goal]
	appointments  *records.Repository[records.Appointment, *records.Appointment]
	notifications *records.Repository[records.Notification, *records.Notification]
}

// NewHandler creates a Handler. Auth, Gate, Users and Store are required.
func NewHandler(deps Deps) (*Handler, error) {
	switch {
	case deps.Auth == nil:
		return nil, oops.Errorf("auth service is required")
	case deps.Gate == nil:
		return nil, oops.Errorf("authorization gate is required")
	case deps.Users == nil:
		return nil, oops.Errorf("user repository is required")
	case deps.Store == nil:
		return nil, oops.Errorf("store is required")
	}

	h := &Handler{
		auth:          deps.Auth,
		gate:          deps.Gate,
		users:         deps.Users,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		validate:      newValidator(),
		now:           deps.Now,
		appName:       deps.AppName,
		secureCookies: deps.SecureCookies,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.appName == "" {
		h.appName = "MedTrack"
	}

	clock := records.WithClock(h.now)
	h.activities = records.NewRepository[records.Activity](deps.Store, records.TableActivities, clock)
	h.metricsRecs = records.NewRepository[records.HealthMetric](deps.Store, records.TableHealthMetrics, clock)
	h.goals = records.NewRepository[records.Goal](deps.Store, records.TableGoals, clock)
	h.appointments = records.NewRepository[records.Appointment](deps.Store, records.TableAppointments, clock)
	h.notifications = records.NewRepository[records.Notification](deps.Store, records.TableNotifications, clock)
	return h, nil
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.observe)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)
	r.Post("/signup/{role}", h.Signup)
	r.Post("/login/{role}", h.Login)
	r.Post("/logout", h.Logout)

	r.Route("/api", func(r chi.Router) {
		authed := r.With(h.require(auth.RequireAuthenticated()))
		patient := r.With(h.require(auth.RequireRole(auth.RolePatient)))

		authed.Get("/me", h.Me)

		authed.Post("/activities", createRecord(h, h.activities))
		authed.Get("/activities", listRecords(h, h.activities, ""))
		authed.Post("/health-metrics", createRecord(h, h.metricsRecs))
		authed.Get("/health-metrics", listRecords(h, h.metricsRecs, ""))
		authed.Post("/goals", createRecord(h, h.goals))
		authed.Get("/goals", listRecords(h, h.goals, records.GoalActive))
		authed.Post("/goals/{id}/complete", h.CompleteGoal)

		patient.Post("/appointments", h.BookAppointment)
		authed.Get("/appointments", listRecords(h, h.appointments, ""))

		authed.Get("/notifications", listRecords(h, h.notifications, ""))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: APIError{
			Kind:    KindNotFound,
			Code:    "ROUTE_NOT_FOUND",
			Message: "no such route",
		}})
	})
	return r
}

// require rejects requests whose session token does not satisfy req and
// attaches the session to the request context otherwise.
func (h *Handler) require(req auth.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := h.gate.Check(r.Context(), sessionToken(r), req)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}

// sessionToken reads the token from the session cookie or a bearer
// Authorization header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
