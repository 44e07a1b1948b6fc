// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/internal/store"
)

// SessionRepository implements auth.SessionRepository. Sessions are keyed by
// token hash and owned by their user.
type SessionRepository struct {
	store store.Store
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(s store.Store) *SessionRepository {
	return &SessionRepository{store: s}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	value, err := json.Marshal(session)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	err = r.store.PutIfAbsent(ctx, store.Item{
		Table:     SessionsTable,
		Key:       session.TokenHash,
		OwnerID:   session.UserID.String(),
		Value:     value,
		CreatedAt: session.IssuedAt,
	})
	if err != nil {
		return oops.With("operation", "create session").With("user_id", session.UserID.String()).Wrap(err)
	}
	return nil
}

// GetByTokenHash returns the session stored under tokenHash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	item, err := r.store.Get(ctx, SessionsTable, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, oops.Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get session").Wrap(err)
	}

	var session auth.Session
	if err := json.Unmarshal(item.Value, &session); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return &session, nil
}

// Delete removes the session stored under tokenHash.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if err := r.store.Delete(ctx, SessionsTable, tokenHash); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteByUser removes every session owned by userID.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	items, err := r.store.Query(ctx, SessionsTable, store.Query{OwnerID: userID.String()})
	if err != nil {
		return oops.With("operation", "list user sessions").With("user_id", userID.String()).Wrap(err)
	}
	for _, item := range items {
		if err := r.store.Delete(ctx, SessionsTable, item.Key); err != nil {
			return oops.With("operation", "delete user session").With("user_id", userID.String()).Wrap(err)
		}
	}
	return nil
}
