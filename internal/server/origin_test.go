package server

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelError)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://localhost:8080"}, "", true},
		{"exact match", []string{"http://localhost:8080"}, "http://localhost:8080", true},
		{"case insensitive", []string{"HTTP://LocalHost:8080"}, "http://localhost:8080", true},
		{"path ignored", []string{"http://localhost:8080/app"}, "http://localhost:8080", true},
		{"other port", []string{"http://localhost:8080"}, "http://localhost:3000", false},
		{"other scheme", []string{"http://localhost:8080"}, "https://localhost:8080", false},
		{"wildcard", []string{"*"}, "https://anywhere.example", true},
		{"malformed origin", []string{"http://localhost:8080"}, "localhost", false},
		{"empty allow list", nil, "http://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/whiteboard", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, originChecker(tt.allowed, log)(r))
		})
	}
}
