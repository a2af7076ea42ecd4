package models

import (
	"encoding/json"
	"time"
)

// AdminNotification is an ephemeral alert owned by the notification broker.
// It never leaves the broker by reference: subscribers receive serialized
// frames, API responses receive copies.
type AdminNotification struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	Category        ErrorCategory  `json:"category"`
	Severity        Severity       `json:"severity"`
	Message         string         `json:"message"`
	UserImpact      string         `json:"userImpact"`
	SuggestedAction string         `json:"suggestedAction"`
	Context         map[string]any `json:"context,omitempty"`
	Acknowledged    bool           `json:"acknowledged"`
}

// Frame types on the notification stream.
const (
	FrameTypeNotification   = "notification"
	FrameTypeAcknowledgment = "acknowledgment"
)

// NotificationFrame is the wire shape of a broadcast notification.
type NotificationFrame struct {
	Type string `json:"type"`
	AdminNotification
}

// AcknowledgmentFrame tells subscribers which notifications were acknowledged.
// AcknowledgedIDs is either a list of notification IDs or the string "all".
type AcknowledgmentFrame struct {
	Type            string    `json:"type"`
	AcknowledgedIDs any       `json:"acknowledgedIds"`
	Timestamp       time.Time `json:"timestamp"`
}

// EncodeNotificationFrame serializes a notification for the stream.
func EncodeNotificationFrame(n AdminNotification) ([]byte, error) {
	return json.Marshal(NotificationFrame{Type: FrameTypeNotification, AdminNotification: n})
}

// EncodeAcknowledgmentFrame serializes an acknowledgment event. Pass ids as a
// []string, or nil with all=true for an acknowledge-all.
func EncodeAcknowledgmentFrame(ids []string, all bool, at time.Time) ([]byte, error) {
	frame := AcknowledgmentFrame{Type: FrameTypeAcknowledgment, Timestamp: at}
	if all {
		frame.AcknowledgedIDs = "all"
	} else {
		frame.AcknowledgedIDs = ids
	}
	return json.Marshal(frame)
}
