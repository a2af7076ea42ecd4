package models

import (
	"time"

	"gorm.io/gorm"
)

type ErrorCategory string

const (
	CategoryConnectionFailure  ErrorCategory = "connection-failure"
	CategoryRateLimit          ErrorCategory = "rate-limit"
	CategoryAuthFailure        ErrorCategory = "auth-failure"
	CategoryResourceExhaustion ErrorCategory = "resource-exhaustion"
	CategoryDeploymentFailure  ErrorCategory = "deployment-failure"
	CategoryGenericAPIError    ErrorCategory = "generic-api-error"
	CategoryUnknown            ErrorCategory = "unknown"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

type ErrorLevel string

const (
	ErrorLevelWarn  ErrorLevel = "warn"
	ErrorLevelError ErrorLevel = "error"
)

// Classification is the deterministic output of the classifier for one event.
type Classification struct {
	Category        ErrorCategory `json:"category"`
	Severity        Severity      `json:"severity"`
	UserImpact      string        `json:"userImpact"`
	SuggestedAction string        `json:"suggestedAction"`
}

// CauseSnapshot captures the underlying error chain at report time.
type CauseSnapshot struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ErrorEvent is a single reported failure after classification and
// fingerprinting. It is transient: the ingest queue persists it into an
// ErrorLog, and the notification broker may turn it into an AdminNotification.
type ErrorEvent struct {
	Timestamp      time.Time
	Level          ErrorLevel
	Message        string
	Endpoint       string
	Context        map[string]any
	Cause          *CauseSnapshot
	Classification Classification
	Fingerprint    string
}

// ErrorLog is the persisted record of a fingerprint within one dedup window.
// Repeated occurrences of the same fingerprint inside the window bump
// OccurrenceCount and LastSeen instead of inserting a new row.
type ErrorLog struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	Fingerprint     string          `json:"fingerprint" gorm:"size:32;not null;index"`
	Category        ErrorCategory   `json:"category" gorm:"index"`
	Severity        Severity        `json:"severity" gorm:"index"`
	Message         string          `json:"message" gorm:"type:text"`
	Endpoint        string          `json:"endpoint,omitempty"`
	Context         map[string]any  `json:"context" gorm:"type:jsonb;serializer:json"`
	Cause           *CauseSnapshot  `json:"cause,omitempty" gorm:"type:jsonb;serializer:json"`
	UserImpact      string          `json:"userImpact"`
	SuggestedAction string          `json:"suggestedAction"`
	OccurrenceCount int             `json:"occurrenceCount" gorm:"not null;default:1"`
	FirstSeen       time.Time       `json:"firstSeen"`
	LastSeen        time.Time       `json:"lastSeen" gorm:"index"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (ErrorLog) TableName() string {
	return "error_logs"
}
