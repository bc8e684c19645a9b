package logger

import (
	"context"
	"testing"
)

// TestParseLevel verifies level names map to slog levels and unknown names fall back to INFO
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{"info", LevelInfo, false},
		{"warning", LevelWarning, false},
		{"WARN", LevelWarning, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestConfigureSetsLevel verifies Configure applies the requested level
func TestConfigureSetsLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	if err := Configure(context.Background(), Options{Level: "debug"}); err != nil {
		t.Fatalf("Configure() failed: %v", err)
	}
	if GetLevel() != LevelDebug {
		t.Errorf("GetLevel() = %v, want %v", GetLevel(), LevelDebug)
	}
}

// TestWarnAndErrorAlwaysCount verifies counters move even when output is sampled away
func TestWarnAndErrorAlwaysCount(t *testing.T) {
	warnings := TotalWarnings.Load()
	errs := TotalErrors.Load()

	Warn("test warning")
	Error("test error")

	if TotalWarnings.Load() != warnings+1 {
		t.Errorf("TotalWarnings = %d, want %d", TotalWarnings.Load(), warnings+1)
	}
	if TotalErrors.Load() != errs+1 {
		t.Errorf("TotalErrors = %d, want %d", TotalErrors.Load(), errs+1)
	}
}

// TestHTTPStatus verifies only 4xx and 5xx responses are counted
func TestHTTPStatus(t *testing.T) {
	c4, c5 := Total4xxRequests.Load(), Total5xxRequests.Load()

	HTTPStatus(200)
	HTTPStatus(404)
	HTTPStatus(502)

	if got := Total4xxRequests.Load() - c4; got != 1 {
		t.Errorf("4xx delta = %d, want 1", got)
	}
	if got := Total5xxRequests.Load() - c5; got != 1 {
		t.Errorf("5xx delta = %d, want 1", got)
	}
	if _, ok := Snapshot()["http4xx"]; !ok {
		t.Error("Snapshot() missing http4xx")
	}
}
