// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package records

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/medtrack/medtrack/internal/store"
)

// Kind constrains Repository to pointer record types, e.g. *Activity.
type Kind[T any] interface {
	*T
	Record
}

// Repository stores records of one kind in a store table.
type Repository[T any, P Kind[T]] struct {
	store    store.Store
	table    string
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewRepository creates a repository for records of type T in table.
func NewRepository[T any, P Kind[T]](s store.Store, table string, opts ...Option) *Repository[T, P] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T, P]{
		store:    s,
		table:    table,
		now:      o.now,
		validate: newValidator(),
	}
}

// Table returns the backing table name.
func (r *Repository[T, P]) Table() string {
	return r.table
}

// Append stores rec under owner and returns its new ID. Identity fields set
// by the caller are overwritten.
func (r *Repository[T, P]) Append(ctx context.Context, owner ulid.ULID, rec P) (ulid.ULID, error) {
	if owner.IsZero() {
		return ulid.ULID{}, oops.Code(CodeInvalid).With("table", r.table).Errorf("record owner is required")
	}

	now := r.now().UTC()
	rec.defaults(now)
	m := rec.meta()
	m.ID = ulid.Make()
	m.OwnerID = owner
	m.CreatedAt = now

	if err := r.check(rec); err != nil {
		return ulid.ULID{}, err
	}
	item, err := r.item(rec)
	if err != nil {
		return ulid.ULID{}, err
	}
	if err := r.store.PutIfAbsent(ctx, item); err != nil {
		return ulid.ULID{}, oops.With("operation", "append record").With("table", r.table).Wrap(err)
	}
	return m.ID, nil
}

// ListByOwner returns records owned by, or shared with, owner. Results are
// newest first, filtered, then truncated to limit when limit > 0. Each call
// reads a fresh snapshot.
func (r *Repository[T, P]) ListByOwner(ctx context.Context, owner ulid.ULID, f Filter, limit int) ([]T, error) {
	items, err := r.store.Query(ctx, r.table, store.Query{OwnerID: owner.String()})
	if err != nil {
		return nil, oops.With("operation", "list records").With("table", r.table).Wrap(err)
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, err := r.decode(item)
		if err != nil {
			return nil, err
		}
		if !f.matches(P(rec)) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Get returns the record id if viewer owns it or participates in it.
// Records the viewer may not see are reported as not found.
func (r *Repository[T, P]) Get(ctx context.Context, viewer, id ulid.ULID) (P, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.meta().OwnerID != viewer && (rec.participant().IsZero() || rec.participant() != viewer) {
		return nil, r.notFound(id)
	}
	return rec, nil
}

// Update applies mutate to the record id owned by owner and stores the
// result. Participants cannot update.
func (r *Repository[T, P]) Update(ctx context.Context, owner, id ulid.ULID, mutate func(P) error) (P, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.meta().OwnerID != owner {
		return nil, r.notFound(id)
	}

	if err := mutate(rec); err != nil {
		return nil, err
	}
	// Identity is not mutable.
	m := rec.meta()
	m.ID = id
	m.OwnerID = owner

	if err := r.check(rec); err != nil {
		return nil, err
	}
	item, err := r.item(rec)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, item); err != nil {
		return nil, oops.With("operation", "update record").With("table", r.table).Wrap(err)
	}
	return rec, nil
}

func (r *Repository[T, P]) load(ctx context.Context, id ulid.ULID) (P, error) {
	item, err := r.store.Get(ctx, r.table, id.String())
	if errors.Is(err, store.ErrNotFound) {
		return nil, r.notFound(id)
	}
	if err != nil {
		return nil, oops.With("operation", "get record").With("table", r.table).Wrap(err)
	}
	rec, err := r.decode(item)
	if err != nil {
		return nil, err
	}
	return P(rec), nil
}

func (r *Repository[T, P]) decode(item store.Item) (*T, error) {
	rec := new(T)
	if err := json.Unmarshal(item.Value, rec); err != nil {
		return nil, oops.Code("RECORD_DECODE_FAILED").
			With("table", r.table).
			With("key", item.Key).
			Wrap(err)
	}
	return rec, nil
}

func (r *Repository[T, P]) item(rec P) (store.Item, error) {
	m := rec.meta()
	value, err := json.Marshal(rec)
	if err != nil {
		return store.Item{}, oops.Code("RECORD_ENCODE_FAILED").With("table", r.table).Wrap(err)
	}
	item := store.Item{
		Table:     r.table,
		Key:       m.ID.String(),
		OwnerID:   m.OwnerID.String(),
		Value:     value,
		CreatedAt: m.CreatedAt,
	}
	if p := rec.participant(); !p.IsZero() {
		item.ParticipantID = p.String()
	}
	return item, nil
}

func (r *Repository[T, P]) check(rec P) error {
	err := r.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return oops.Code(CodeInvalid).With("table", r.table).Wrap(err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return oops.Code(CodeInvalid).
		With("table", r.table).
		With("fields", fields).
		Errorf("invalid or missing fields: %s", strings.Join(fields, ", "))
}

func (r *Repository[T, P]) notFound(id ulid.ULID) error {
	return oops.Code(CodeNotFound).With("table", r.table).With("id", id.String()).Wrap(ErrNotFound)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
