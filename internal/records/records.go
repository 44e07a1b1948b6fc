// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package records stores the health-tracking records users create:
// activities, health metrics, goals, appointments and notifications.
// Every record has an owner; appointments are also readable by the doctor
// they were booked with.
package records

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// DateLayout is the calendar date format used by record dates and filters.
const DateLayout = "2006-01-02"

// Error codes attached to errors returned by this package.
const (
	CodeInvalid    = "RECORD_INVALID"
	CodeNotFound   = "RECORD_NOT_FOUND"
	CodeTransition = "RECORD_INVALID_TRANSITION"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("record not found")

// Meta holds the fields every record carries. The store assigns them.
type Meta struct {
	ID        ulid.ULID `json:"id"`
	OwnerID   ulid.ULID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Meta) meta() *Meta { return m }

// Record is implemented by pointers to the record kinds in this package.
type Record interface {
	meta() *Meta
	// defaults fills optional fields and resets server-owned ones before
	// validation.
	defaults(now time.Time)
	// category is the kind-specific value matched by Filter.Category.
	category() string
	// day is the record's calendar date, or "" to use the creation date.
	day() string
	state() string
	// participant is a non-owner user allowed to read the record.
	participant() ulid.ULID
}

// Filter narrows ListByOwner results. Zero fields match everything.
type Filter struct {
	Category string
	From     string // inclusive, DateLayout
	To       string // inclusive, DateLayout
	Status   string
}

func (f Filter) matches(rec Record) bool {
	if f.Category != "" && rec.category() != f.Category {
		return false
	}
	if f.Status != "" && rec.state() != f.Status {
		return false
	}
	if f.From == "" && f.To == "" {
		return true
	}
	day := rec.day()
	if day == "" {
		day = rec.meta().CreatedAt.Format(DateLayout)
	}
	if f.From != "" && day < f.From {
		return false
	}
	if f.To != "" && day > f.To {
		return false
	}
	return true
}
