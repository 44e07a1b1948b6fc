// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medtrack/medtrack/internal/notify"
	"github.com/medtrack/medtrack/pkg/errutil"
)

// dummyPassword is hashed once per Service. Its digest is verified when the
// email is unknown so that response time does not reveal whether an account
// exists.
//
//nolint:gosec // G101: not a credential
const dummyPassword = "medtrack-unknown-account"

// Notifier receives account event messages. Delivery is best effort and
// never reported back.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message)
}

type discardNotifier struct{}

func (discardNotifier) Send(context.Context, notify.Message) {}

// Service coordinates signup, login, logout and deactivation.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	limiter  *LoginLimiter
	sessions *SessionManager
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	appName  string

	// dummyHash uses the hasher's own cost parameters.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sets the account event notifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAppName sets the product name used in notification text.
func WithAppName(name string) ServiceOption {
	return func(s *Service) {
		if name != "" {
			s.appName = name
		}
	}
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, hasher PasswordHasher, limiter *LoginLimiter, sessions *SessionManager, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if limiter == nil {
		return nil, oops.Errorf("login limiter is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	s := &Service{
		users:    users,
		hasher:   hasher,
		limiter:  limiter,
		sessions: sessions,
		notifier: discardNotifier{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/medtrack/medtrack/internal/auth"),
		appName:  "MedTrack",
	}
	for _, opt := range opts {
		opt(s)
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.With("operation", "hash dummy password").Wrap(err)
	}
	s.dummyHash = dummyHash
	return s, nil
}

// Signup registers a user with role and sends a welcome message.
func (s *Service) Signup(ctx context.Context, role Role, name, email, password string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Signup", trace.WithAttributes(attribute.String("role", role.String())))
	defer span.End()

	// Validate the cheap fields before paying for a hash.
	if err := validateProfile(email, name, role); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.With("operation", "hash password").Wrap(err)
	}
	user, err := NewUser(email, name, role, hash)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "role", role.String())
	s.notifier.Send(ctx, notify.Message{
		Event:   notify.EventSignup,
		To:      user.Email,
		Subject: fmt.Sprintf("Welcome to %s!", s.appName),
		Body:    fmt.Sprintf("Hi %s,\n\nYour %s account has been created.", user.Name, user.Role),
	})
	return user, nil
}

// Login authenticates email and password for role on behalf of client.
// A locked client is rejected before any credential check. Unknown emails,
// wrong passwords, role mismatches and deactivated users are reported
// identically and each counts as a failure for the client.
func (s *Service) Login(ctx context.Context, role Role, email, password string, client ClientMeta) (*Session, string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login", trace.WithAttributes(attribute.String("role", role.String())))
	defer span.End()

	if email == "" || password == "" {
		return nil, "", oops.Code(CodeValidation).Errorf("email and password are required")
	}

	if s.limiter.IsLocked(client.IPAddress) {
		retryAfter := s.limiter.Remaining(client.IPAddress)
		s.logger.WarnContext(ctx, "login rejected for locked client", "client", client.IPAddress)
		return nil, "", oops.Code(CodeRateLimited).
			With("client", client.IPAddress).
			With("retry_after", retryAfter).
			Errorf("too many failed login attempts, try again later")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	found := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, "", oops.Code("LOGIN_FAILED").With("operation", "get user by email").Wrap(lookupErr)
	}

	targetHash := s.dummyHash
	if found {
		targetHash = user.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && found {
		return nil, "", oops.Code("LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	if !found || !valid || user.Role != role || !user.IsActive {
		s.limiter.RecordFailure(client.IPAddress)
		s.logger.InfoContext(ctx, "login failed",
			"client", client.IPAddress,
			"failures", s.limiter.Failures(client.IPAddress))
		return nil, "", oops.Code(CodeInvalidCredentials).Errorf("invalid credentials or role")
	}

	s.limiter.RecordSuccess(client.IPAddress)

	session, token, err := s.sessions.Create(ctx, user, client)
	if err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String(), "role", role.String())
	s.notifier.Send(ctx, notify.Message{
		Event:   notify.EventLogin,
		To:      user.Email,
		Subject: fmt.Sprintf("New login to %s", s.appName),
		Body:    fmt.Sprintf("%s has logged in to %s at %s.", user.Name, s.appName, session.IssuedAt.Format(time.RFC1123)),
	})
	return session, token, nil
}

// Logout revokes the session behind token and emits a logout event.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user logged out", "user_id", session.UserID.String())
	s.notifier.Send(ctx, notify.Message{
		Event:   notify.EventLogout,
		To:      session.Email,
		Subject: fmt.Sprintf("Logged out of %s", s.appName),
		Body:    fmt.Sprintf("%s has logged out from %s.", session.Name, s.appName),
	})
	return nil
}

// Deactivate disables the user registered under email and revokes all of
// their sessions.
func (s *Service) Deactivate(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeUserNotFound).With("email", email).Wrap(err)
	}
	if err != nil {
		return oops.With("operation", "get user by email").Wrap(err)
	}

	if user.IsActive {
		user.IsActive = false
		if err := s.users.Update(ctx, user); err != nil {
			return oops.With("operation", "deactivate user").Wrap(err)
		}
	}
	if err := s.sessions.DestroyAll(ctx, user.ID); err != nil {
		errutil.LogError(ctx, s.logger, "failed to revoke sessions of deactivated user", err)
		return err
	}
	s.logger.InfoContext(ctx, "user deactivated", "user_id", user.ID.String())
	return nil
}
