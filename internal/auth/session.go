// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/medtrack/medtrack/pkg/errutil"
)

// Session token configuration.
const (
	SessionTokenBytes = 32        // 32 bytes = 64 hex chars
	DefaultSessionTTL = time.Hour // absolute lifetime, never extended
)

// Session is a server-side login session. The plaintext token is never
// stored; TokenHash is its SHA-256.
type Session struct {
	ID        ulid.ULID `json:"id"`
	TokenHash string    `json:"token_hash"`
	UserID    ulid.ULID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpiredAt reports whether the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// ClientMeta describes the client a session is issued to.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// SessionRepository persists sessions keyed by token hash.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash returns the session for a token hash, or ErrNotFound.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Delete removes a session. Missing sessions are not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByUser removes every session of a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionManager issues, validates and revokes sessions.
type SessionManager struct {
	sessions SessionRepository
	users    UserRepository
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionClock overrides the time source.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// WithSessionLogger sets the logger for best-effort cleanup failures.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewSessionManager creates a SessionManager. A non-positive ttl selects
// DefaultSessionTTL.
func NewSessionManager(sessions SessionRepository, users UserRepository, ttl time.Duration, opts ...SessionOption) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := &SessionManager{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the fixed session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create issues a session for user and returns it with the plaintext token.
func (m *SessionManager) Create(ctx context.Context, user *User, client ClientMeta) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}

	now := m.now().UTC()
	session := &Session{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return session, token, nil
}

// Validate resolves a token to its session. Expired sessions, sessions of
// deactivated or unknown users, and storage failures are all rejections;
// the expiry is never extended.
func (m *SessionManager) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionMissing).Errorf("no session token presented")
	}
	tokenHash := HashSessionToken(token)

	session, err := m.sessions.GetByTokenHash(ctx, tokenHash)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeSessionInvalid).Errorf("invalid session token")
	}
	if err != nil {
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpiredAt(m.now()) {
		m.discard(ctx, tokenHash, "expired")
		return nil, oops.Code(CodeSessionExpired).
			With("expired_at", session.ExpiresAt).
			Errorf("session has expired")
	}

	user, err := m.users.GetByEmail(ctx, session.Email)
	if errors.Is(err, ErrNotFound) {
		m.discard(ctx, tokenHash, "user missing")
		return nil, oops.Code(CodeSessionInvalid).Errorf("session user no longer exists")
	}
	if err != nil {
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session user").
			Wrap(err)
	}
	if !user.IsActive || user.ID != session.UserID {
		m.discard(ctx, tokenHash, "user inactive")
		return nil, oops.Code(CodeSessionInvalid).
			With("user_id", session.UserID.String()).
			Errorf("session user is not active")
	}
	return session, nil
}

// Destroy revokes the session for token. Destroying an unknown or already
// revoked session succeeds.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

// DestroyAll revokes every session of a user.
func (m *SessionManager) DestroyAll(ctx context.Context, userID ulid.ULID) error {
	if err := m.sessions.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// discard deletes a rejected session; failure only leaves a dead row behind.
func (m *SessionManager) discard(ctx context.Context, tokenHash, reason string) {
	if err := m.sessions.Delete(ctx, tokenHash); err != nil {
		errutil.LogError(ctx, m.logger, "failed to delete rejected session",
			oops.With("reason", reason).Wrap(err))
	}
}
