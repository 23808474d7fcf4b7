// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package logging

// SanitizeToken masks a bearer or refresh token for log output.
// Only the first four characters survive so two tokens can still be told apart.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***"
}

// SanitizeSessionID masks a session cookie value.
func SanitizeSessionID(id string) string {
	if len(id) <= 12 {
		return "***"
	}
	return id[:8] + "***"
}
