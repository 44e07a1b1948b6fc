// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package store provides the storage backends behind every MedTrack entity.
//
// A Store is a keyed item store partitioned into logical tables. Items carry an
// owner and an optional participant so that scoped queries can be answered by
// any backend without knowing the shape of the stored value.
package store

import (
	"context"
	"errors"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

var (
	// ErrNotFound is returned when no item exists for a table and key.
	ErrNotFound = errors.New("item not found")
	// ErrAlreadyExists is returned by PutIfAbsent when the key is taken.
	ErrAlreadyExists = errors.New("item already exists")
)

// Item is a single stored value.
type Item struct {
	Table string
	Key   string
	// OwnerID scopes the item to a user. Empty for unscoped items.
	OwnerID string
	// ParticipantID grants a second user read visibility.
	ParticipantID string
	// Value is the JSON encoded entity.
	Value     []byte
	CreatedAt time.Time
}

// Query selects items from a table.
type Query struct {
	// OwnerID matches items owned by, or shared with, this user.
	OwnerID string
}

// Store is the storage abstraction used by the credential, session and
// record layers.
type Store interface {
	// Get returns the item stored under key, or ErrNotFound.
	Get(ctx context.Context, table, key string) (Item, error)
	// Put inserts or replaces an item. CreatedAt of an existing item is kept.
	Put(ctx context.Context, item Item) error
	// PutIfAbsent inserts an item only when the key is free. Concurrent calls
	// for the same key yield exactly one success; the rest get ErrAlreadyExists.
	PutIfAbsent(ctx context.Context, item Item) error
	// Delete removes an item. Deleting a missing key is not an error.
	Delete(ctx context.Context, table, key string) error
	// Query returns items whose owner or participant matches, newest first.
	Query(ctx context.Context, table string, q Query) ([]Item, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close()
}
