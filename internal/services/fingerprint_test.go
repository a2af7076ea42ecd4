package services

import (
	"testing"

	"github.com/shelfwise/catalog-backend/internal/models"
)

func TestFingerprintDeterministic(t *testing.T) {
	context := map[string]any{"operation": "fetchCatalog", "service": "enrichment"}
	first := Fingerprint(models.CategoryConnectionFailure, "connection refused", "/api/v1/items", context)
	for i := 0; i < 10; i++ {
		got := Fingerprint(models.CategoryConnectionFailure, "connection refused", "/api/v1/items", context)
		if got != first {
			t.Fatalf("fingerprint changed between calls: %s vs %s", got, first)
		}
	}
	if len(first) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(first))
	}
}

func TestFingerprintIgnoresVolatileLiterals(t *testing.T) {
	base := Fingerprint(models.CategoryGenericAPIError,
		"request req-1 failed after 150ms at 2024-03-01T10:00:00Z", "/api/v1/items", nil)

	variants := []string{
		"request req-2 failed after 980ms at 2024-03-01T10:05:33Z",
		"request req-17 failed after 3s at 2025-01-20T23:59:59Z",
	}
	for _, msg := range variants {
		got := Fingerprint(models.CategoryGenericAPIError, msg, "/api/v1/items", nil)
		if got != base {
			t.Errorf("fingerprint(%q) = %s, want %s", msg, got, base)
		}
	}
}

func TestFingerprintIgnoresUUIDs(t *testing.T) {
	a := Fingerprint(models.CategoryAuthFailure,
		"session 9b2f0a44-1c3d-4e5f-8a6b-7c8d9e0f1a2b expired", "", nil)
	b := Fingerprint(models.CategoryAuthFailure,
		"session 00000000-1111-2222-3333-444444444444 expired", "", nil)
	if a != b {
		t.Errorf("fingerprints differ across UUID variants: %s vs %s", a, b)
	}
}

func TestFingerprintVariesByCategory(t *testing.T) {
	a := Fingerprint(models.CategoryConnectionFailure, "operation failed", "", nil)
	b := Fingerprint(models.CategoryAuthFailure, "operation failed", "", nil)
	if a == b {
		t.Error("expected different fingerprints for different categories")
	}
}

func TestFingerprintVariesByEndpoint(t *testing.T) {
	a := Fingerprint(models.CategoryGenericAPIError, "request failed", "/api/v1/items", nil)
	b := Fingerprint(models.CategoryGenericAPIError, "request failed", "/api/v1/orders", nil)
	if a == b {
		t.Error("expected different fingerprints for different endpoints")
	}
}

func TestFingerprintSelectedContextKeys(t *testing.T) {
	a := Fingerprint(models.CategoryGenericAPIError, "request failed", "",
		map[string]any{"operation": "sync"})
	b := Fingerprint(models.CategoryGenericAPIError, "request failed", "",
		map[string]any{"operation": "import"})
	if a == b {
		t.Error("expected operation context key to affect the fingerprint")
	}

	// Keys outside the selected set do not participate.
	c := Fingerprint(models.CategoryGenericAPIError, "request failed", "",
		map[string]any{"operation": "sync", "requestId": "abc-123"})
	if a != c {
		t.Error("expected unselected context keys to be ignored")
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Connection Refused", "connection refused"},
		{"failed at 2024-03-01T10:00:00Z", "failed at <timestamp>"},
		{"retry in 250ms", "retry in <duration>"},
		{"retry in 5 minutes", "retry in <duration>"},
		{"order 12345 missing", "order <n> missing"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		if got := NormalizeMessage(tt.in); got != tt.want {
			t.Errorf("NormalizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
