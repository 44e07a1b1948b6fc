// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"
)

// MemoryStore is a process-local Store. Values are copied on the way in and
// out so callers never share backing arrays with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Item
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]Item),
		now:    time.Now,
	}
}

// Get returns a copy of the item stored under key.
func (s *MemoryStore) Get(_ context.Context, table, key string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.tables[table][key]
	if !ok {
		return Item{}, oops.With("table", table).With("key", key).Wrap(ErrNotFound)
	}
	return cloneItem(item), nil
}

// Put inserts or replaces an item.
func (s *MemoryStore) Put(_ context.Context, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.table(item.Table)
	if existing, ok := rows[item.Key]; ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	rows[item.Key] = cloneItem(item)
	return nil
}

// PutIfAbsent inserts an item only if its key is unused.
func (s *MemoryStore) PutIfAbsent(_ context.Context, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.table(item.Table)
	if _, ok := rows[item.Key]; ok {
		return oops.With("table", item.Table).With("key", item.Key).Wrap(ErrAlreadyExists)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	rows[item.Key] = cloneItem(item)
	return nil
}

// Delete removes an item if present.
func (s *MemoryStore) Delete(_ context.Context, table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tables[table], key)
	return nil
}

// Query returns copies of every matching item, newest first.
func (s *MemoryStore) Query(_ context.Context, table string, q Query) ([]Item, error) {
	if q.OwnerID == "" {
		return nil, oops.Code("INVALID_QUERY").With("table", table).Errorf("owner id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []Item
	for _, item := range s.tables[table] {
		if item.OwnerID == q.OwnerID || (item.ParticipantID != "" && item.ParticipantID == q.OwnerID) {
			items = append(items, cloneItem(item))
		}
	}
	sortNewestFirst(items)
	return items, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// table returns the row map for name, creating it. Caller holds the write lock.
func (s *MemoryStore) table(name string) map[string]Item {
	rows, ok := s.tables[name]
	if !ok {
		rows = make(map[string]Item)
		s.tables[name] = rows
	}
	return rows
}

func cloneItem(item Item) Item {
	if item.Value != nil {
		value := make([]byte, len(item.Value))
		copy(value, item.Value)
		item.Value = value
	}
	return item
}

func validateItem(item Item) error {
	if item.Table == "" || item.Key == "" {
		return oops.Code("INVALID_ITEM").
			With("table", item.Table).
			With("key", item.Key).
			Errorf("table and key are required")
	}
	return nil
}

// sortNewestFirst orders by creation time descending. Keys break ties so the
// order is stable for items written in the same instant.
func sortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Key > items[j].Key
	})
}
