package controllers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/catalog-backend/internal/models"
	"github.com/shelfwise/catalog-backend/internal/services"
)

func setupNotificationServer(t *testing.T) (*httptest.Server, *services.NotificationBroker, *services.SubscriberRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := services.NewSubscriberRegistry(0)
	broker := services.NewNotificationBroker(registry, time.Minute, 0)
	controller := NewNotificationController(broker)

	r := gin.New()
	r.GET("/notifications", controller.GetNotifications)
	r.GET("/notifications/stream", controller.Stream)
	r.POST("/notifications/:id/acknowledge", controller.Acknowledge)
	r.POST("/notifications/acknowledge-all", controller.AcknowledgeAll)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, broker, registry
}

func waitForSubscribers(t *testing.T, registry *services.SubscriberRegistry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for registry.Count() != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if registry.Count() != want {
		t.Fatalf("subscriber count = %d, want %d", registry.Count(), want)
	}
}

func TestStreamDeliversNotificationFrames(t *testing.T) {
	srv, broker, registry := setupNotificationServer(t)

	resp, err := http.Get(srv.URL + "/notifications/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %s, want application/x-ndjson", ct)
	}

	waitForSubscribers(t, registry, 1)

	broker.Notify(models.Classification{
		Category: models.CategoryConnectionFailure,
		Severity: models.SeverityCritical,
	}, "connection refused", nil)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}

	var frame struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if frame.Type != models.FrameTypeNotification || frame.Message != "connection refused" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestStreamReplaysCriticalsOnAttach(t *testing.T) {
	srv, broker, registry := setupNotificationServer(t)

	broker.Notify(models.Classification{
		Category: models.CategoryConnectionFailure,
		Severity: models.SeverityCritical,
	}, "connection refused", nil)

	resp, err := http.Get(srv.URL + "/notifications/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	waitForSubscribers(t, registry, 1)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}

	var frame struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Message != "connection refused" {
		t.Errorf("replayed frame = %+v", frame)
	}
}

func TestStreamDetachesOnClientDisconnect(t *testing.T) {
	srv, _, registry := setupNotificationServer(t)

	resp, err := http.Get(srv.URL + "/notifications/stream")
	if err != nil {
		t.Fatal(err)
	}
	waitForSubscribers(t, registry, 1)

	resp.Body.Close()
	waitForSubscribers(t, registry, 0)
}

func TestAcknowledgeEndpoints(t *testing.T) {
	srv, broker, _ := setupNotificationServer(t)

	n := broker.Notify(models.Classification{
		Category: models.CategoryRateLimit,
		Severity: models.SeverityWarning,
	}, "rate limit hit", nil)
	if n == nil {
		t.Fatal("notify failed")
	}

	resp, err := http.Post(srv.URL+"/notifications/"+n.ID+"/acknowledge", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("acknowledge status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/notifications/unknown-id/acknowledge", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("acknowledge unknown status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/notifications/acknowledge-all", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Acknowledged int `json:"acknowledged"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Acknowledged != 0 {
		t.Errorf("acknowledge-all flipped %d, want 0 (already acknowledged)", body.Acknowledged)
	}
}

func TestGetNotificationsNewestFirst(t *testing.T) {
	srv, broker, _ := setupNotificationServer(t)

	broker.Notify(models.Classification{
		Category: models.CategoryRateLimit,
		Severity: models.SeverityWarning,
	}, "first alert", nil)
	time.Sleep(10 * time.Millisecond)
	broker.Notify(models.Classification{
		Category: models.CategoryRateLimit,
		Severity: models.SeverityWarning,
	}, "second alert", nil)

	resp, err := http.Get(srv.URL + "/notifications")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Notifications []models.AdminNotification `json:"notifications"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(body.Notifications))
	}
	if body.Notifications[0].Message != "second alert" {
		t.Errorf("first listed = %q, want newest", body.Notifications[0].Message)
	}
}
