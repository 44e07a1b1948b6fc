// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user or session does not exist.
var ErrNotFound = errors.New("not found")

// Error codes attached to errors returned by this package.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeSessionMissing     = "SESSION_MISSING"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUserNotFound       = "USER_NOT_FOUND"
)
