// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package auth

import "github.com/samber/oops"

// Role is the fixed role a user registers with.
type Role string

// Supported roles.
const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor:
		return r, nil
	default:
		return "", oops.Code(CodeValidation).With("role", s).Errorf("unknown role %q", s)
	}
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
