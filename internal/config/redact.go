// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package config

import "net/url"

// redactURL masks the password of a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "********"
	}
	return u.Redacted()
}
