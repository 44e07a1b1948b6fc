// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// Requirement is an access requirement for a protected operation.
// The zero value requires only an authenticated session.
type Requirement struct {
	role Role
}

// RequireAuthenticated admits any valid session.
func RequireAuthenticated() Requirement {
	return Requirement{}
}

// RequireRole admits valid sessions whose role is r.
func RequireRole(r Role) Requirement {
	return Requirement{role: r}
}

// Role returns the required role, or "" when any role is accepted.
func (r Requirement) Role() Role {
	return r.role
}

// Allows reports whether a validated session meets the requirement.
func (r Requirement) Allows(s *Session) bool {
	return s != nil && (r.role == "" || s.Role == r.role)
}

// SessionValidator resolves tokens to sessions. *SessionManager implements it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*Session, error)
}

// Gate enforces requirements in front of protected operations.
// Missing or invalid sessions are rejected as unauthenticated, valid sessions
// with the wrong role as forbidden.
type Gate struct {
	sessions SessionValidator
}

// NewGate creates a Gate.
func NewGate(sessions SessionValidator) (*Gate, error) {
	if sessions == nil {
		return nil, oops.Errorf("session validator is required")
	}
	return &Gate{sessions: sessions}, nil
}

// Check validates token and applies req.
func (g *Gate) Check(ctx context.Context, token string, req Requirement) (*Session, error) {
	session, err := g.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !req.Allows(session) {
		return nil, oops.Code(CodeForbidden).
			With("required_role", req.role.String()).
			With("role", session.Role.String()).
			Errorf("role %s may not perform this operation", session.Role)
	}
	return session, nil
}

// Guard runs op only when token satisfies req. The session is attached to
// the context passed to op.
func (g *Gate) Guard(ctx context.Context, token string, req Requirement, op func(ctx context.Context, s *Session) error) error {
	session, err := g.Check(ctx, token, req)
	if err != nil {
		return err
	}
	return op(WithSession(ctx, session), session)
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
