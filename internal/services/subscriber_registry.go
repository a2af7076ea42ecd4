package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shelfwise/catalog-backend/internal/logger"
)

// defaultSubscriberBuffer must exceed the broker retention cap so a replay of
// every pending critical notification fits without blocking.
const defaultSubscriberBuffer = 128

// Subscriber is one attached live listener. The transport (NDJSON handler or
// websocket client) drains Frames and detaches when the connection drops.
type Subscriber struct {
	ID     string
	frames chan []byte
}

// Frames is the subscriber's outbound frame channel. It is closed when the
// subscriber is detached or removed after a failed send.
func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

// SubscriberRegistry manages the set of attached listeners and performs
// fan-out. All mutations happen under one mutex, so a broadcast pass is
// atomic with respect to concurrent attach and detach.
type SubscriberRegistry struct {
	mu         sync.Mutex
	subs       map[string]*Subscriber
	bufferSize int
}

// NewSubscriberRegistry creates a registry. bufferSize <= 0 selects the
// default per-subscriber frame buffer.
func NewSubscriberRegistry(bufferSize int) *SubscriberRegistry {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}
	return &SubscriberRegistry{
		subs:       make(map[string]*Subscriber),
		bufferSize: bufferSize,
	}
}

// Attach registers a new subscriber and returns it. The caller owns draining
// its frame channel and must Detach when the connection ends.
func (r *SubscriberRegistry) Attach() *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		frames: make(chan []byte, r.bufferSize),
	}

	r.mu.Lock()
	r.subs[sub.ID] = sub
	count := len(r.subs)
	r.mu.Unlock()

	logger.WithSubscriber(sub.ID).WithField("subscribers", count).Info("Subscriber attached")
	return sub
}

// Detach removes a subscriber and closes its frame channel. Safe to call
// concurrently with an in-progress broadcast, and idempotent.
func (r *SubscriberRegistry) Detach(id string) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
		close(sub.frames)
	}
	count := len(r.subs)
	r.mu.Unlock()

	if ok {
		logger.WithSubscriber(id).WithField("subscribers", count).Info("Subscriber detached")
	}
}

// Broadcast writes the frame to every attached subscriber. A subscriber whose
// buffer is full cannot keep up and is removed in the same pass; its channel
// closes, which ends its transport goroutine. Failures never surface to the
// caller and never abort delivery to the remaining subscribers.
func (r *SubscriberRegistry) Broadcast(frame []byte) {
	r.mu.Lock()
	var removed []string
	for id, sub := range r.subs {
		select {
		case sub.frames <- frame:
		default:
			delete(r.subs, id)
			close(sub.frames)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		logger.WithSubscriber(id).Warn("Subscriber frame buffer full, removed from registry")
	}
}

// Replay queues frames directly to a single subscriber, bypassing broadcast.
// Used to catch a late-attaching client up on pending critical alerts.
func (r *SubscriberRegistry) Replay(id string, frames [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return
	}
	for _, frame := range frames {
		select {
		case sub.frames <- frame:
		default:
			// Replay overflow: drop the rest rather than block.
			return
		}
	}
}

// Count reports the number of attached subscribers.
func (r *SubscriberRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// CloseAll detaches every subscriber; used on shutdown.
func (r *SubscriberRegistry) CloseAll() {
	r.mu.Lock()
	for id, sub := range r.subs {
		delete(r.subs, id)
		close(sub.frames)
	}
	r.mu.Unlock()
}
