// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/records"
	"github.com/medtrack/medtrack/pkg/errutil"
)

// Error kinds reported in response bodies.
const (
	KindValidation   = "validation_error"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindRateLimited  = "rate_limited"
	KindInternal     = "internal_error"
)

// CodeInternal is reported for every error without a public code.
const CodeInternal = "INTERNAL_ERROR"

// APIError is the error object of a failed response.
type APIError struct {
	Kind    string   `json:"kind"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`

	StatusCode int `json:"-"`
}

type errorBody struct {
	Error APIError `json:"error"`
}

var codeKinds = map[string]struct {
	kind   string
	status int
}{
	auth.CodeValidation:         {KindValidation, http.StatusBadRequest},
	records.CodeInvalid:         {KindValidation, http.StatusBadRequest},
	records.CodeTransition:      {KindValidation, http.StatusBadRequest},
	auth.CodeInvalidCredentials: {KindUnauthorized, http.StatusUnauthorized},
	auth.CodeSessionMissing:     {KindUnauthorized, http.StatusUnauthorized},
	auth.CodeSessionInvalid:     {KindUnauthorized, http.StatusUnauthorized},
	auth.CodeSessionExpired:     {KindUnauthorized, http.StatusUnauthorized},
	auth.CodeForbidden:          {KindForbidden, http.StatusForbidden},
	records.CodeNotFound:        {KindNotFound, http.StatusNotFound},
	auth.CodeUserNotFound:       {KindNotFound, http.StatusNotFound},
	auth.CodeEmailExists:        {KindConflict, http.StatusConflict},
	auth.CodeRateLimited:        {KindRateLimited, http.StatusTooManyRequests},
}

// AsAPIError classifies err. Errors without a public code become opaque
// internal errors.
func AsAPIError(err error) APIError {
	code := errutil.Code(err)
	class, ok := codeKinds[code]
	if !ok {
		return APIError{
			Kind:       KindInternal,
			Code:       CodeInternal,
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
		}
	}

	apiErr := APIError{
		Kind:       class.kind,
		Code:       code,
		Message:    publicMessage(err),
		StatusCode: class.status,
	}
	if fields, ok := contextValue(err, "fields").([]string); ok {
		apiErr.Fields = fields
	}
	return apiErr
}

// publicMessage is the outermost message of err without wrapped causes.
func publicMessage(err error) string {
	msg := err.Error()
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Unwrap() != nil {
		if cause := oopsErr.Unwrap().Error(); cause != msg {
			msg = strings.TrimSuffix(msg, ": "+cause)
		}
	}
	return msg
}

func contextValue(err error, key string) any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()[key]
}

// retryAfter returns the Retry-After header value for a rate-limited error.
func retryAfter(err error) string {
	d, ok := contextValue(err, "retry_after").(time.Duration)
	if !ok || d <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

// writeError writes err as a JSON error response. Internal errors are
// logged with their context and never exposed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := AsAPIError(err)
	switch apiErr.StatusCode {
	case http.StatusInternalServerError:
		errutil.LogError(r.Context(), h.logger, "request failed", err)
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", retryAfter(err))
	}
	writeJSON(w, apiErr.StatusCode, errorBody{Error: apiErr})
}
