// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/observability"
	"github.com/medtrack/medtrack/pkg/errutil"
)

const maxBodyBytes = 1 << 20

// SignupRequest is the body of POST /signup/{role}.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the body of POST /login/{role}.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by a successful login. Token is also set as the
// session cookie.
type LoginResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"service":   h.appName,
	})
}

// Signup handles POST /signup/{role}.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	role, err := auth.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SignupRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), role, req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.RecordSignup(role.String())
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "user registered",
		"user_id": user.ID.String(),
	})
}

// Login handles POST /login/{role}. On success the session token is set as
// an HttpOnly cookie and returned in the body.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	role, err := auth.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.metrics.RecordLogin(role.String(), observability.LoginInvalid)
		h.writeError(w, r, err)
		return
	}

	session, token, err := h.auth.Login(r.Context(), role, req.Email, req.Password, clientMeta(r))
	h.metrics.RecordLogin(role.String(), loginResult(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{
		UserID:    session.UserID.String(),
		Email:     session.Email,
		Name:      session.Name,
		Role:      session.Role.String(),
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	session, err := h.gate.Check(r.Context(), token, auth.RequireAuthenticated())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"message": session.Name + " has logged out from " + h.appName + ".",
	})
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    s.UserID.String(),
		"email":      s.Email,
		"name":       s.Name,
		"role":       s.Role,
		"issued_at":  s.IssuedAt,
		"expires_at": s.ExpiresAt,
	})
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return oops.Code(auth.CodeValidation).Errorf("request body is required")
		}
		return oops.Code(auth.CodeValidation).Wrapf(err, "request body is not valid JSON")
	}
	return nil
}

// decode reads a JSON body into dst and applies its validate tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return oops.Code(auth.CodeValidation).Wrap(err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return oops.Code(auth.CodeValidation).
		With("fields", fields).
		Errorf("invalid or missing fields: %s", strings.Join(fields, ", "))
}

// clientMeta identifies the caller for rate limiting. RealIP has already
// replaced RemoteAddr when a proxy header was present.
func clientMeta(r *http.Request) auth.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return auth.ClientMeta{IPAddress: ip, UserAgent: r.UserAgent()}
}

func loginResult(err error) string {
	switch errutil.Code(err) {
	case "":
		if err != nil {
			return observability.LoginError
		}
		return observability.LoginSuccess
	case auth.CodeRateLimited:
		return observability.LoginRateLimited
	case auth.CodeInvalidCredentials, auth.CodeValidation:
		return observability.LoginInvalid
	default:
		return observability.LoginError
	}
}

// mustSession returns the session attached by require. Routes using it are
// always mounted behind require.
func mustSession(r *http.Request) *auth.Session {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		panic("api: route mounted without session requirement")
	}
	return s
}
