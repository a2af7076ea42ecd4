package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/catalog-backend/internal/models"
	"github.com/shelfwise/catalog-backend/internal/services"
)

type fakeErrorLogStore struct {
	mu      sync.Mutex
	records []models.ErrorLog
	err     error
}

func (s *fakeErrorLogStore) Record(event models.ErrorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, models.ErrorLog{
		ID:              uint(len(s.records) + 1),
		Fingerprint:     event.Fingerprint,
		Category:        event.Classification.Category,
		Severity:        event.Classification.Severity,
		Message:         event.Message,
		OccurrenceCount: 1,
		FirstSeen:       event.Timestamp,
		LastSeen:        event.Timestamp,
	})
	return nil
}

func (s *fakeErrorLogStore) List(filter services.ErrorLogFilter) ([]models.ErrorLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, 0, s.err
	}
	return append([]models.ErrorLog(nil), s.records...), int64(len(s.records)), nil
}

func (s *fakeErrorLogStore) GetByID(id uint) (*models.ErrorLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ID == id {
			r := record
			return &r, nil
		}
	}
	return nil, errors.New("record not found")
}

func (s *fakeErrorLogStore) GetByFingerprint(fingerprint string) ([]models.ErrorLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ErrorLog
	for _, record := range s.records {
		if record.Fingerprint == fingerprint {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *fakeErrorLogStore) Stats() (*services.ErrorLogStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &services.ErrorLogStats{Total: int64(len(s.records))}, nil
}

func (s *fakeErrorLogStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func setupErrorRouter(t *testing.T, store services.ErrorLogStore) (*gin.Engine, *services.IngestQueue, *services.NotificationBroker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := services.NewSubscriberRegistry(0)
	broker := services.NewNotificationBroker(registry, time.Minute, 0)
	queue := services.NewIngestQueue(store, 1, time.Hour)
	queue.Start()
	t.Cleanup(queue.Stop)

	controller := NewErrorController(store, queue, broker)

	r := gin.New()
	r.POST("/errors", controller.ReportError)
	r.GET("/errors", controller.GetErrorLogs)
	r.GET("/errors/stats", controller.GetErrorStats)
	r.GET("/errors/fingerprint/:fingerprint", controller.GetErrorLogsByFingerprint)
	r.GET("/errors/:id", controller.GetErrorLog)
	return r, queue, broker
}

func TestReportErrorAccepted(t *testing.T) {
	store := &fakeErrorLogStore{}
	r, _, broker := setupErrorRouter(t, store)

	body, _ := json.Marshal(map[string]any{
		"level":    "error",
		"message":  "dial tcp 10.0.0.5:5432: connection refused",
		"endpoint": "/api/v1/items",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/errors", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var resp struct {
		Fingerprint string `json:"fingerprint"`
		Category    string `json:"category"`
		Notified    bool   `json:"notified"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Fingerprint == "" {
		t.Error("expected a fingerprint in the response")
	}
	if resp.Category != string(models.CategoryConnectionFailure) {
		t.Errorf("category = %s, want %s", resp.Category, models.CategoryConnectionFailure)
	}
	if !resp.Notified {
		t.Error("error-level event should notify the broker")
	}
	if broker.PendingCount() != 1 {
		t.Errorf("broker pending = %d, want 1", broker.PendingCount())
	}

	// Persistence is asynchronous.
	deadline := time.Now().Add(time.Second)
	for store.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.count() != 1 {
		t.Errorf("store records = %d, want 1", store.count())
	}
}

func TestReportErrorWarnLevelDoesNotNotify(t *testing.T) {
	store := &fakeErrorLogStore{}
	r, _, broker := setupErrorRouter(t, store)

	body, _ := json.Marshal(map[string]any{
		"level":   "warn",
		"message": "upstream returned 429",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/errors", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if broker.PendingCount() != 0 {
		t.Errorf("broker pending = %d, want 0 for warn level", broker.PendingCount())
	}
}

func TestReportErrorInvalidPayload(t *testing.T) {
	store := &fakeErrorLogStore{}
	r, _, _ := setupErrorRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/errors", bytes.NewReader([]byte(`{"level":"error"}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing message", w.Code)
	}
}

func TestGetErrorLogsStoreFailure(t *testing.T) {
	store := &fakeErrorLogStore{err: errors.New("storage unavailable")}
	r, _, _ := setupErrorRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/errors", nil)
	r.ServeHTTP(w, req)

	// Query failures surface as an empty result with an error indicator, not
	// as a 5xx.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		ErrorLogs []models.ErrorLog `json:"errorLogs"`
		Error     string            `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.ErrorLogs) != 0 {
		t.Errorf("errorLogs = %v, want empty", resp.ErrorLogs)
	}
	if resp.Error == "" {
		t.Error("expected an error indicator")
	}
}

func TestGetErrorLogByID(t *testing.T) {
	store := &fakeErrorLogStore{}
	store.Record(models.ErrorEvent{
		Timestamp:   time.Now(),
		Message:     "connection refused",
		Fingerprint: "abc123",
		Classification: models.Classification{
			Category: models.CategoryConnectionFailure,
			Severity: models.SeverityCritical,
		},
	})
	r, _, _ := setupErrorRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/errors/1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/errors/999", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/errors/not-a-number", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
