package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
)

// StatusStreamHandler pushes job status events to websocket clients. A
// client may pass ?job=<id> to follow a single job.
type StatusStreamHandler struct {
	hub *queue.StatusHub
	log zerolog.Logger
}

// NewStatusStreamHandler creates a new status stream handler
func NewStatusStreamHandler(hub *queue.StatusHub, log zerolog.Logger) *StatusStreamHandler {
	return &StatusStreamHandler{
		hub: hub,
		log: log.With().Str("component", "status_stream").Logger(),
	}
}

// Upgrade rejects plain HTTP requests to the websocket route.
func (h *StatusStreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle processes WebSocket connections
func (h *StatusStreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Query("job")
	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	h.log.Debug().Str("job", jobID).Msg("Status subscriber connected")

	// The client never sends anything meaningful; reading detects disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.log.Debug().Str("job", jobID).Msg("Status subscriber disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if jobID != "" && ev.JobID != jobID {
				continue
			}
			if err := c.WriteJSON(ev); err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ping.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
