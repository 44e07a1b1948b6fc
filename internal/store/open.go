// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package store

import (
	"context"

	"github.com/samber/oops"
)

// Open returns the backend named by backend. It is called once at startup;
// nothing downstream branches on which backend was chosen.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendPostgres:
		if dsn == "" {
			return nil, oops.Code("STORE_CONFIG_INVALID").
				With("backend", backend).
				Errorf("database url is required for the postgres backend")
		}
		pg, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, oops.Code("STORE_CONFIG_INVALID").
			With("backend", backend).
			Errorf("unknown storage backend %q", backend)
	}
}
