// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/medtrack/internal/auth"
	"github.com/medtrack/medtrack/pkg/errutil"
)

func TestParseRole(t *testing.T) {
	r, err := auth.ParseRole("patient")
	require.NoError(t, err)
	assert.Equal(t, auth.RolePatient, r)

	r, err = auth.ParseRole("doctor")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleDoctor, r)

	for _, bad := range []string{"", "admin", "Doctor", "nurse"} {
		_, err := auth.ParseRole(bad)
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	}
}

func TestNewUser(t *testing.T) {
	user, err := auth.NewUser("a@x.com", "Alice", auth.RolePatient, "hash")
	require.NoError(t, err)
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "a@x.com", user.Email)
	assert.True(t, user.IsActive)
	assert.False(t, user.CreatedAt.IsZero())

	tests := []struct {
		name  string
		email string
		uname string
		role  auth.Role
		hash  string
		field string
	}{
		{name: "empty email", email: "", uname: "A", role: auth.RolePatient, hash: "h", field: "email"},
		{name: "email without at", email: "ax.com", uname: "A", role: auth.RolePatient, hash: "h", field: "email"},
		{name: "blank name", email: "a@x.com", uname: "  ", role: auth.RolePatient, hash: "h", field: "name"},
		{name: "bad role", email: "a@x.com", uname: "A", role: "admin", hash: "h"},
		{name: "missing hash", email: "a@x.com", uname: "A", role: auth.RoleDoctor, hash: "", field: "password_hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewUser(tt.email, tt.uname, tt.role, tt.hash)
			errutil.AssertErrorCode(t, err, auth.CodeValidation)
			if tt.field != "" {
				errutil.AssertErrorContext(t, err, "field", tt.field)
			}
		})
	}
}
