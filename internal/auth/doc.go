// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package auth provides authentication and authorization for MedTrack.
//
// # Domain Types
//
// Users are created with NewUser, which validates email, name and role.
// Sessions are created only by SessionManager.Create; the plaintext token
// is returned once and only its SHA-256 hash is persisted.
//
// # Services
//
//   - Service: signup, login, logout, deactivation
//   - SessionManager: session issue, validation and revocation
//   - LoginLimiter: per-client failed login throttling
//   - Gate: authenticated and role requirements for protected operations
//
// Services are created with New* constructors that validate dependencies.
package auth
