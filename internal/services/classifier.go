package services

import (
	"strings"

	"github.com/shelfwise/catalog-backend/internal/models"
)

// classifierRule matches a category by substrings of the lowercased message
// or endpoint. Rules are evaluated in order; the first match wins, so more
// specific categories must come before generic ones.
type classifierRule struct {
	category         models.ErrorCategory
	severity         models.Severity
	messageKeywords  []string
	endpointKeywords []string
}

var classifierRules = []classifierRule{
	{
		category: models.CategoryRateLimit,
		severity: models.SeverityWarning,
		messageKeywords: []string{
			"rate limit", "rate-limit", "too many requests", "429", "throttl",
		},
	},
	{
		category: models.CategoryAuthFailure,
		severity: models.SeverityCritical,
		messageKeywords: []string{
			"unauthorized", "401", "403", "forbidden", "invalid token",
			"token expired", "authentication", "auth failed", "permission denied",
		},
	},
	{
		category: models.CategoryConnectionFailure,
		severity: models.SeverityCritical,
		messageKeywords: []string{
			"connection refused", "connection reset", "connection timed out",
			"econnrefused", "econnreset", "etimedout", "dial tcp", "no such host",
			"network unreachable", "broken pipe", "connect failed",
		},
	},
	{
		category: models.CategoryResourceExhaustion,
		severity: models.SeverityCritical,
		messageKeywords: []string{
			"out of memory", "oom", "no space left", "disk full", "enospc",
			"quota exceeded", "resource exhausted", "too many open files",
			"pool exhausted",
		},
	},
	{
		category: models.CategoryDeploymentFailure,
		severity: models.SeverityCritical,
		messageKeywords: []string{
			"deploy failed", "deployment failed", "rollout", "build failed",
			"migration failed", "healthcheck failed", "health check failed",
		},
	},
	{
		category: models.CategoryGenericAPIError,
		severity: models.SeverityWarning,
		messageKeywords: []string{
			"internal server error", "500", "502", "503", "504", "bad gateway",
			"api error", "request failed", "upstream",
		},
		endpointKeywords: []string{"/api/"},
	},
}

// impactEntry holds the operator-facing text for a (category, severity) pair.
type impactEntry struct {
	userImpact      string
	suggestedAction string
}

var impactTable = map[models.ErrorCategory]map[models.Severity]impactEntry{
	models.CategoryConnectionFailure: {
		models.SeverityCritical: {
			userImpact:      "Catalog data may be unavailable or stale for all users",
			suggestedAction: "Check upstream service health and network connectivity",
		},
		models.SeverityWarning: {
			userImpact:      "Some catalog requests may be slow or intermittently failing",
			suggestedAction: "Monitor connection error rate; investigate if it climbs",
		},
	},
	models.CategoryRateLimit: {
		models.SeverityWarning: {
			userImpact:      "Some requests are being rejected until the rate window resets",
			suggestedAction: "Reduce request volume or raise the upstream quota",
		},
		models.SeverityCritical: {
			userImpact:      "A large share of traffic is being rejected",
			suggestedAction: "Enable request shedding and contact the upstream provider",
		},
	},
	models.CategoryAuthFailure: {
		models.SeverityCritical: {
			userImpact:      "Users may be unable to sign in or access protected catalog features",
			suggestedAction: "Verify credentials, token signing keys and identity provider status",
		},
		models.SeverityWarning: {
			userImpact:      "Isolated authentication failures observed",
			suggestedAction: "Check for expired tokens or clock skew",
		},
	},
	models.CategoryResourceExhaustion: {
		models.SeverityCritical: {
			userImpact:      "Service degradation or outage likely as resources are exhausted",
			suggestedAction: "Scale the affected resource and look for leaks or runaway queries",
		},
		models.SeverityWarning: {
			userImpact:      "Resource headroom is shrinking",
			suggestedAction: "Review capacity before limits are hit",
		},
	},
	models.CategoryDeploymentFailure: {
		models.SeverityCritical: {
			userImpact:      "New functionality is not reaching users; service may be mid-rollback",
			suggestedAction: "Inspect the failed deploy, roll back if needed",
		},
		models.SeverityWarning: {
			userImpact:      "A deployment step reported problems",
			suggestedAction: "Review deployment logs before the next release",
		},
	},
	models.CategoryGenericAPIError: {
		models.SeverityCritical: {
			userImpact:      "A sensitive API surface is failing",
			suggestedAction: "Investigate immediately; auth or admin paths are affected",
		},
		models.SeverityWarning: {
			userImpact:      "Some API requests are failing",
			suggestedAction: "Check server logs for the failing route",
		},
	},
	models.CategoryUnknown: {
		models.SeverityWarning: {
			userImpact:      "Impact unknown",
			suggestedAction: "Inspect the error message and classify manually",
		},
		models.SeverityCritical: {
			userImpact:      "Impact unknown but reported as critical",
			suggestedAction: "Triage immediately",
		},
	},
}

// sensitive endpoint fragments that escalate a generic API error to critical.
var escalationEndpoints = []string{"/auth", "/admin", "/login", "/token", "/payment"}

// Classify maps a raw failure to its classification. Pure and total: input
// that matches no rule comes back as unknown/warning. Matching is
// substring-based against the lowercased message and endpoint, in rule
// priority order.
func Classify(message, endpoint string, context map[string]any) models.Classification {
	loweredMsg := strings.ToLower(strings.TrimSpace(message))
	loweredEndpoint := strings.ToLower(endpoint)

	category := models.CategoryUnknown
	severity := models.SeverityWarning

	for _, rule := range classifierRules {
		if rule.matches(loweredMsg, loweredEndpoint) {
			category = rule.category
			severity = rule.severity
			break
		}
	}

	if category == models.CategoryGenericAPIError && isEscalatedEndpoint(loweredEndpoint) {
		severity = models.SeverityCritical
	}
	if flag, ok := context["critical"].(bool); ok && flag {
		severity = models.SeverityCritical
	}

	entry := lookupImpact(category, severity)
	return models.Classification{
		Category:        category,
		Severity:        severity,
		UserImpact:      entry.userImpact,
		SuggestedAction: entry.suggestedAction,
	}
}

func (r classifierRule) matches(message, endpoint string) bool {
	for _, kw := range r.messageKeywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	if endpoint != "" {
		for _, kw := range r.endpointKeywords {
			if strings.Contains(endpoint, kw) {
				return true
			}
		}
	}
	return false
}

func isEscalatedEndpoint(endpoint string) bool {
	for _, fragment := range escalationEndpoints {
		if strings.Contains(endpoint, fragment) {
			return true
		}
	}
	return false
}

func lookupImpact(category models.ErrorCategory, severity models.Severity) impactEntry {
	if bySeverity, ok := impactTable[category]; ok {
		if entry, ok := bySeverity[severity]; ok {
			return entry
		}
		// Fall back to the category's warning entry for severities without
		// dedicated text.
		if entry, ok := bySeverity[models.SeverityWarning]; ok {
			return entry
		}
	}
	return impactTable[models.CategoryUnknown][models.SeverityWarning]
}
