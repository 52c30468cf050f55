package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/telhawk-systems/loginwatch/internal/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		want string
	}{
		{Service("loginwatch"), FieldService, "loginwatch"},
		{Computer("PC1"), FieldComputer, "PC1"},
		{Username("alice"), FieldUsername, "alice"},
		{IP("10.0.0.1"), FieldIP, "10.0.0.1"},
		{EventID("evt-1"), FieldEventID, "evt-1"},
		{Outcome("created"), FieldOutcome, "created"},
	}
	for _, tt := range tests {
		if tt.attr.Key != tt.key {
			t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
		}
		if tt.attr.Value.String() != tt.want {
			t.Errorf("expected value %q, got %q", tt.want, tt.attr.Value.String())
		}
	}
}

func TestWithContext_RequestID(t *testing.T) {
	logger := Default()

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	if got := logger.WithContext(ctx); got == logger.Logger {
		t.Error("expected a derived logger when a request ID is present")
	}

	if got := logger.WithContext(context.Background()); got != logger.Logger {
		t.Error("expected the base logger when no request ID is present")
	}
}
