// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package repository implements the auth repositories on top of store.Store,
// so they work unchanged against every storage backend.
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/store"
)

// Table names used in the backing store.
const (
	UsersTable    = "users"
	SessionsTable = "sessions"
)

// UserRepository implements auth.UserRepository. Users are keyed by email.
type UserRepository struct {
	store store.Store
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// GetByEmail returns the user registered under email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	item, err := r.store.Get(ctx, UsersTable, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, oops.With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user").Wrap(err)
	}

	var user auth.User
	if err := json.Unmarshal(item.Value, &user); err != nil {
		return nil, oops.Code("USER_DECODE_FAILED").With("email", email).Wrap(err)
	}
	return &user, nil
}

// Create stores a new user, failing with auth.CodeEmailExists when the email
// is already registered.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	item, err := userItem(user)
	if err != nil {
		return err
	}
	err = r.store.PutIfAbsent(ctx, item)
	if errors.Is(err, store.ErrAlreadyExists) {
		return oops.Code(auth.CodeEmailExists).
			With("email", user.Email).
			Errorf("an account with this email already exists")
	}
	if err != nil {
		return oops.With("operation", "create user").Wrap(err)
	}
	return nil
}

// Update replaces a stored user.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	item, err := userItem(user)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, item); err != nil {
		return oops.With("operation", "update user").With("user_id", user.ID.String()).Wrap(err)
	}
	return nil
}

func userItem(user *auth.User) (store.Item, error) {
	value, err := json.Marshal(user)
	if err != nil {
		return store.Item{}, oops.Code("USER_ENCODE_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	return store.Item{
		Table:     UsersTable,
		Key:       user.Email,
		OwnerID:   user.ID.String(),
		Value:     value,
		CreatedAt: user.CreatedAt,
	}, nil
}
