package services

import (
	"sync"
	"time"

	"github.com/shelfwise/catalog-backend/internal/logger"
	"github.com/shelfwise/catalog-backend/internal/models"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = 5 * time.Second
)

// IngestQueue buffers classified error events and flushes them to the store
// in ordered batches. A flush runs when the buffer reaches batchSize or
// batchDelay after the first unflushed event, whichever comes first.
//
// A single worker goroutine performs all flushes, so at most one flush is in
// flight and events hit the store strictly in arrival order. That ordering is
// what lets two same-fingerprint events in one batch merge instead of racing
// the store's find-then-insert.
type IngestQueue struct {
	store      ErrorLogStore
	batchSize  int
	batchDelay time.Duration

	mu      sync.Mutex
	pending []models.ErrorEvent
	timer   *time.Timer
	stopped bool

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewIngestQueue creates a queue flushing to the given store. Zero values
// select the defaults (batch of 10, 5s delay). Call Start before submitting.
func NewIngestQueue(store ErrorLogStore, batchSize int, batchDelay time.Duration) *IngestQueue {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	return &IngestQueue{
		store:      store,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the flush worker.
func (q *IngestQueue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop flushes whatever is pending and shuts the worker down. Events
// submitted after Stop are dropped.
func (q *IngestQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()
}

// Submit enqueues an event. Returns immediately; persistence happens on the
// flush worker. Returns false if the queue has been stopped.
func (q *IngestQueue) Submit(event models.ErrorEvent) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, event)
	if len(q.pending) == 1 {
		// First unflushed event starts the delay timer.
		q.timer = time.AfterFunc(q.batchDelay, q.requestFlush)
	}
	full := len(q.pending) >= q.batchSize
	q.mu.Unlock()

	if full {
		q.requestFlush()
	}
	return true
}

// PendingCount reports how many events are waiting for a flush.
func (q *IngestQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// requestFlush signals the worker. The kick channel has capacity one: a flush
// requested while another is running coalesces into a single deferred flush
// instead of running concurrently.
func (q *IngestQueue) requestFlush() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *IngestQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.kick:
			q.flush()
		case <-q.done:
			q.flush()
			return
		}
	}
}

// flush drains the buffer and records each event in arrival order. Store
// failures are logged and the event is dropped; analytics persistence is
// best-effort and must never take the pipeline down.
func (q *IngestQueue) flush() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	for _, event := range batch {
		if err := q.store.Record(event); err != nil {
			logger.WithError(err, "ingest_queue").WithField("fingerprint", event.Fingerprint).
				Error("Failed to persist error event, dropping")
		}
	}
}
