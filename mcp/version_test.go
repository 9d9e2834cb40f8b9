package mcp

import (
	"testing"
)

func TestValidateVersion(t *testing.T) {
	detector := NewVersionDetector()

	tests := []struct {
		name        string
		version     string
		expected    string
		expectError bool
	}{
		{name: "2025-03-26", version: "2025-03-26", expected: Version20250326},
		{name: "2024-11-05", version: "2024-11-05", expected: Version20241105},
		{name: "v prefix", version: "v2024-11-05", expected: Version20241105},
		{name: "latest alias", version: "latest", expected: Version20250326},
		{name: "stable alias", version: "Stable", expected: Version20250326},
		{name: "unsupported", version: "2023-01-01", expectError: true},
		{name: "empty", version: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detector.ValidateVersion(tt.version)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.version, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNegotiate(t *testing.T) {
	detector := NewVersionDetector()

	if got := detector.Negotiate("2024-11-05"); got != Version20241105 {
		t.Errorf("expected client version to be kept, got %q", got)
	}
	if got := detector.Negotiate("1999-01-01"); got != Version20250326 {
		t.Errorf("expected fallback to newest version, got %q", got)
	}
	if got := detector.Negotiate(""); got != Version20250326 {
		t.Errorf("expected newest version for empty request, got %q", got)
	}
}

func TestIsVersionCompatible(t *testing.T) {
	detector := NewVersionDetector()

	if !detector.IsVersionCompatible("v2025-03-26", "2025-03-26") {
		t.Error("expected normalized versions to be compatible")
	}
	if detector.IsVersionCompatible("2024-11-05", "2025-03-26") {
		t.Error("expected different versions to be incompatible")
	}
}
