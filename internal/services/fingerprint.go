package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/shelfwise/catalog-backend/internal/models"
)

// Variable substrings stripped before hashing so that structurally identical
// failures with different literal values collapse to one fingerprint.
// Order matters: timestamps and UUIDs contain digit runs, so they are
// replaced before bare numbers.
var (
	isoTimestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[t ]\d{2}:\d{2}:\d{2}(\.\d+)?(z|[+-]\d{2}:?\d{2})?`)
	uuidPattern         = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	durationPattern     = regexp.MustCompile(`\b\d+(\.\d+)?(ms|s|m|h)\b|\b\d+\s*(milliseconds?|seconds?|minutes?|hours?)\b`)
	numberPattern       = regexp.MustCompile(`\b\d+\b`)
)

// context keys that participate in the fingerprint when present.
var fingerprintContextKeys = []string{"operation", "type", "service"}

// Fingerprint computes the stable identity hash for a failure. Deterministic:
// identical inputs always produce identical output. The hash is SHA-256
// truncated to 128 bits, hex-encoded.
func Fingerprint(category models.ErrorCategory, message, endpoint string, context map[string]any) string {
	parts := []string{string(category), NormalizeMessage(message), endpoint}
	for _, key := range fingerprintContextKeys {
		if value, ok := context[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, value))
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

// NormalizeMessage lowercases, trims, and replaces volatile literals
// (timestamps, UUIDs, durations, bare integers) with fixed placeholders.
func NormalizeMessage(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = isoTimestampPattern.ReplaceAllString(normalized, "<timestamp>")
	normalized = uuidPattern.ReplaceAllString(normalized, "<uuid>")
	normalized = durationPattern.ReplaceAllString(normalized, "<duration>")
	normalized = numberPattern.ReplaceAllString(normalized, "<n>")
	return normalized
}
