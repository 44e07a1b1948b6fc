// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool used by PostgresStore.
// pgxmock.PgxPoolIface satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a single PostgreSQL table.
// The schema is owned by the embedded migrations, see Migrator.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore connects to PostgreSQL and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return &PostgresStore{pool: pool}, nil
}

func newPostgresStoreWithPool(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the item stored under key.
func (s *PostgresStore) Get(ctx context.Context, table, key string) (Item, error) {
	item := Item{Table: table, Key: key}
	err := s.pool.QueryRow(ctx, `
		SELECT owner_id, participant_id, value, created_at
		FROM medtrack_items
		WHERE table_name = $1 AND item_key = $2
	`, table, key).Scan(&item.OwnerID, &item.ParticipantID, &item.Value, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, oops.With("table", table).With("key", key).Wrap(ErrNotFound)
	}
	if err != nil {
		return Item{}, oops.Code("STORE_GET_FAILED").
			With("table", table).
			With("key", key).
			Wrap(err)
	}
	return item, nil
}

// Put upserts an item, keeping the original created_at on update.
func (s *PostgresStore) Put(ctx context.Context, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO medtrack_items (table_name, item_key, owner_id, participant_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (table_name, item_key) DO UPDATE
		SET owner_id = EXCLUDED.owner_id,
		    participant_id = EXCLUDED.participant_id,
		    value = EXCLUDED.value,
		    updated_at = NOW()
	`, item.Table, item.Key, item.OwnerID, item.ParticipantID, item.Value, createdAt(item))
	if err != nil {
		return oops.Code("STORE_PUT_FAILED").
			With("table", item.Table).
			With("key", item.Key).
			Wrap(err)
	}
	return nil
}

// PutIfAbsent inserts an item, relying on the primary key for atomicity.
func (s *PostgresStore) PutIfAbsent(ctx context.Context, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO medtrack_items (table_name, item_key, owner_id, participant_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (table_name, item_key) DO NOTHING
	`, item.Table, item.Key, item.OwnerID, item.ParticipantID, item.Value, createdAt(item))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.With("table", item.Table).With("key", item.Key).Wrap(ErrAlreadyExists)
		}
		return oops.Code("STORE_PUT_FAILED").
			With("table", item.Table).
			With("key", item.Key).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("table", item.Table).With("key", item.Key).Wrap(ErrAlreadyExists)
	}
	return nil
}

// Delete removes an item if present.
func (s *PostgresStore) Delete(ctx context.Context, table, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM medtrack_items WHERE table_name = $1 AND item_key = $2`,
		table, key)
	if err != nil {
		return oops.Code("STORE_DELETE_FAILED").
			With("table", table).
			With("key", key).
			Wrap(err)
	}
	return nil
}

// Query returns items owned by or shared with q.OwnerID, newest first.
func (s *PostgresStore) Query(ctx context.Context, table string, q Query) ([]Item, error) {
	if q.OwnerID == "" {
		return nil, oops.Code("INVALID_QUERY").With("table", table).Errorf("owner id is required")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT item_key, owner_id, participant_id, value, created_at
		FROM medtrack_items
		WHERE table_name = $1 AND (owner_id = $2 OR participant_id = $2)
		ORDER BY created_at DESC, item_key DESC
	`, table, q.OwnerID)
	if err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").
			With("table", table).
			With("owner_id", q.OwnerID).
			Wrap(err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item := Item{Table: table}
		if err := rows.Scan(&item.Key, &item.OwnerID, &item.ParticipantID, &item.Value, &item.CreatedAt); err != nil {
			return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "scan item row").Wrap(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "iterate item rows").Wrap(err)
	}
	return items, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func createdAt(item Item) time.Time {
	if item.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return item.CreatedAt
}
