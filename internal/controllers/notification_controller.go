package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/shelfwise/catalog-backend/internal/logger"
	"github.com/shelfwise/catalog-backend/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for the HTTP surface is handled by middleware; the admin UI
		// connects from a configured origin.
		return true
	},
}

type NotificationController struct {
	broker *services.NotificationBroker
}

func NewNotificationController(broker *services.NotificationBroker) *NotificationController {
	return &NotificationController{broker: broker}
}

// GetNotifications returns the retained notifications, newest first.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": nc.broker.Pending()})
}

// Acknowledge marks one notification acknowledged. 404 only when the id is
// unknown; acknowledging twice succeeds.
func (nc *NotificationController) Acknowledge(c *gin.Context) {
	id := c.Param("id")
	if !nc.broker.Acknowledge(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "id": id})
}

// AcknowledgeAll acknowledges every pending notification.
func (nc *NotificationController) AcknowledgeAll(c *gin.Context) {
	count := nc.broker.AcknowledgeAll()
	c.JSON(http.StatusOK, gin.H{"acknowledged": count})
}

// Stream serves the primary live transport: a long-lived chunked response of
// newline-delimited JSON frames. Pending critical alerts are replayed on
// attach; the subscriber is detached when the client disconnects or a write
// fails.
func (nc *NotificationController) Stream(c *gin.Context) {
	sub := nc.broker.Subscribe()
	defer nc.broker.Unsubscribe(sub.ID)

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				// Removed by the registry (buffer overflow or shutdown).
				return
			}
			if _, err := c.Writer.Write(append(frame, '\n')); err != nil {
				logger.WithSubscriber(sub.ID).WithField("error", err.Error()).
					Warn("Stream write failed, detaching subscriber")
				return
			}
			c.Writer.Flush()
		}
	}
}

// StreamWebSocket serves the same frames over a websocket for clients that
// prefer it to chunked NDJSON.
func (nc *NotificationController) StreamWebSocket(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err, "notification_controller").Warn("WebSocket upgrade failed")
		return
	}

	sub := nc.broker.Subscribe()
	go nc.wsReadPump(conn, sub.ID)
	nc.wsWritePump(conn, sub)
}

// wsReadPump discards client messages and detects disconnects.
func (nc *NotificationController) wsReadPump(conn *websocket.Conn, subscriberID string) {
	defer func() {
		nc.broker.Unsubscribe(subscriberID)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsWritePump forwards frames from the subscriber channel to the connection.
func (nc *NotificationController) wsWritePump(conn *websocket.Conn, sub *services.Subscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		nc.broker.Unsubscribe(sub.ID)
		conn.Close()
	}()
	for {
		select {
		case frame, ok := <-sub.Frames():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.WithSubscriber(sub.ID).WithField("error", err.Error()).
					Warn("WebSocket write failed, detaching subscriber")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
