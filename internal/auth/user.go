// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a registered patient or doctor. Users are never deleted; they are
// deactivated instead.
type User struct {
	ID           ulid.ULID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"password_hash"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser creates an active user with a fresh ID.
// The email is used verbatim as the identity key.
func NewUser(email, name string, role Role, passwordHash string) (*User, error) {
	if err := validateProfile(email, name, role); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeValidation).With("field", "password_hash").Errorf("password hash is required")
	}
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func validateProfile(email, name string, role Role) error {
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") {
		return oops.Code(CodeValidation).With("field", "email").Errorf("a valid email is required")
	}
	if strings.TrimSpace(name) == "" {
		return oops.Code(CodeValidation).With("field", "name").Errorf("name is required")
	}
	_, err := ParseRole(string(role))
	return err
}

// UserRepository persists users keyed by email.
type UserRepository interface {
	// GetByEmail returns the user registered under email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create stores a new user. Concurrent creates for the same email yield
	// one success; the others fail with CodeEmailExists.
	Create(ctx context.Context, user *User) error

	// Update replaces a stored user.
	Update(ctx context.Context, user *User) error
}
