package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/catalog-backend/internal/logger"
	"github.com/shelfwise/catalog-backend/internal/models"
)

const (
	// DefaultCooldown suppresses repeat alerts for the same category+message.
	// Deliberately coarser than the store's fingerprint: cooldown controls
	// alert noise, the dedup window controls historical grouping.
	DefaultCooldown = 5 * time.Minute

	// DefaultRetention caps the pending notifications kept in memory.
	DefaultRetention = 100
)

// NotificationBroker owns the ephemeral alerting state: pending notifications,
// cooldown timestamps, and acknowledgment. One instance exists per process,
// constructed at boot and passed to whatever serves the endpoints. State is
// lost on restart; the error-log store is the durable side.
type NotificationBroker struct {
	registry  *SubscriberRegistry
	cooldown  time.Duration
	retention int
	now       func() time.Time

	mu          sync.Mutex
	pending     []*models.AdminNotification
	lastAlerted map[string]time.Time
}

// NewNotificationBroker creates a broker broadcasting through the given
// registry. Zero cooldown/retention select the defaults.
func NewNotificationBroker(registry *SubscriberRegistry, cooldown time.Duration, retention int) *NotificationBroker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &NotificationBroker{
		registry:    registry,
		cooldown:    cooldown,
		retention:   retention,
		now:         time.Now,
		pending:     make([]*models.AdminNotification, 0),
		lastAlerted: make(map[string]time.Time),
	}
}

// Notify creates and broadcasts a notification for the failure, unless its
// category+message cooldown key alerted within the cooldown window, in which
// case it returns nil and nothing else happens. On success the notification
// is retained (trimmed to the cap, oldest evicted) and broadcast to all
// subscribers.
func (b *NotificationBroker) Notify(classification models.Classification, message string, context map[string]any) *models.AdminNotification {
	key := string(classification.Category) + "|" + message

	b.mu.Lock()
	now := b.now()
	if last, ok := b.lastAlerted[key]; ok && now.Sub(last) < b.cooldown {
		b.mu.Unlock()
		return nil
	}

	notification := &models.AdminNotification{
		ID:              uuid.NewString(),
		Timestamp:       now,
		Category:        classification.Category,
		Severity:        classification.Severity,
		Message:         message,
		UserImpact:      classification.UserImpact,
		SuggestedAction: classification.SuggestedAction,
		Context:         context,
		Acknowledged:    false,
	}

	b.lastAlerted[key] = now
	b.pending = append(b.pending, notification)
	b.trimLocked()

	frame, err := models.EncodeNotificationFrame(*notification)
	if err == nil {
		// Broadcast under the broker lock so frames hit subscribers in the
		// same order notifications were created. Registry sends never block.
		b.registry.Broadcast(frame)
	}
	result := *notification
	b.mu.Unlock()

	if err != nil {
		logger.WithError(err, "notification_broker").Error("Failed to encode notification frame")
	}
	return &result
}

// trimLocked evicts oldest-by-timestamp notifications over the retention cap.
// Caller holds b.mu.
func (b *NotificationBroker) trimLocked() {
	if len(b.pending) <= b.retention {
		return
	}
	sort.SliceStable(b.pending, func(i, j int) bool {
		return b.pending[i].Timestamp.Before(b.pending[j].Timestamp)
	})
	evicted := len(b.pending) - b.retention
	b.pending = append([]*models.AdminNotification(nil), b.pending[evicted:]...)
}

// Acknowledge marks the notification acknowledged. Returns whether the id was
// found, not whether state changed: acknowledging twice is an idempotent
// success. A state change is broadcast to subscribers.
func (b *NotificationBroker) Acknowledge(id string) bool {
	b.mu.Lock()
	var found, flipped bool
	for _, n := range b.pending {
		if n.ID == id {
			found = true
			if !n.Acknowledged {
				n.Acknowledged = true
				flipped = true
			}
			break
		}
	}
	var frame []byte
	var err error
	if flipped {
		frame, err = models.EncodeAcknowledgmentFrame([]string{id}, false, b.now())
		if err == nil {
			b.registry.Broadcast(frame)
		}
	}
	b.mu.Unlock()

	if err != nil {
		logger.WithError(err, "notification_broker").Error("Failed to encode acknowledgment frame")
	}
	return found
}

// AcknowledgeAll acknowledges every pending notification and returns how many
// actually flipped.
func (b *NotificationBroker) AcknowledgeAll() int {
	b.mu.Lock()
	count := 0
	for _, n := range b.pending {
		if !n.Acknowledged {
			n.Acknowledged = true
			count++
		}
	}
	var err error
	if count > 0 {
		var frame []byte
		frame, err = models.EncodeAcknowledgmentFrame(nil, true, b.now())
		if err == nil {
			b.registry.Broadcast(frame)
		}
	}
	b.mu.Unlock()

	if err != nil {
		logger.WithError(err, "notification_broker").Error("Failed to encode acknowledgment frame")
	}
	return count
}

// Pending returns copies of retained notifications, newest first.
func (b *NotificationBroker) Pending() []models.AdminNotification {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]models.AdminNotification, 0, len(b.pending))
	for _, n := range b.pending {
		result = append(result, *n)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// PendingCount reports the number of retained notifications.
func (b *NotificationBroker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Subscribe attaches a new subscriber and replays all pending unacknowledged
// critical notifications to it, so a client connecting mid-incident sees
// active alerts immediately. The replay goes only to the new subscriber.
// Holding the broker lock across attach+replay means no broadcast can slip
// between the snapshot and the replay, so the client neither misses nor
// double-receives a frame.
func (b *NotificationBroker) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := b.registry.Attach()

	var frames [][]byte
	for _, n := range b.pending {
		if n.Severity != models.SeverityCritical || n.Acknowledged {
			continue
		}
		frame, err := models.EncodeNotificationFrame(*n)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	if len(frames) > 0 {
		b.registry.Replay(sub.ID, frames)
	}
	return sub
}

// Unsubscribe detaches a subscriber.
func (b *NotificationBroker) Unsubscribe(id string) {
	b.registry.Detach(id)
}
