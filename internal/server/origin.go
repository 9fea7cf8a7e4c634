// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	normalized := make(map[string]struct{}, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			continue
		}

		normalized[normalizedOrigin] = struct{}{}
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	return normalized, true
}

// originChecker builds the CheckOrigin function used by the websocket
// upgrader. Requests without an Origin header come from non-browser clients
// and are let through.
func originChecker(allowed []string, log *slog.Logger) func(r *http.Request) bool {
	origins, allowAll := normalizeOrigins(allowed)

	return func(r *http.Request) bool {
		originHeader := r.Header.Get("Origin")
		if originHeader == "" || allowAll {
			return true
		}

		if normalizedOrigin, ok := normalizeOrigin(originHeader); ok {
			if _, exists := origins[normalizedOrigin]; exists {
				return true
			}
		}

		log.Warn("Blocked WebSocket connection from disallowed origin", "origin", originHeader, "addr", r.RemoteAddr)
		return false
	}
}
