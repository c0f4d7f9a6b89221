package http

import (
	"bufio"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// sseHeartbeatInterval is how often an idle stream gets a comment line, to
// keep intermediate proxies from timing out the connection.
const sseHeartbeatInterval = 15 * time.Second

// SSEHandler streams the realtime event bus to browser EventSource
// clients, replaying missed events by Last-Event-ID on reconnect.
type SSEHandler struct {
	bus out.RealtimePort
	log zerolog.Logger
}

func NewSSEHandler(bus out.RealtimePort, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{bus: bus, log: log.With().Str("handler", "sse").Logger()}
}

func (h *SSEHandler) Register(router fiber.Router) {
	router.Get("/events", h.Stream)
	router.Get("/events/status", h.Status)
}

func (h *SSEHandler) Stream(c *fiber.Ctx) error {
	sessionID := SessionID(c)
	if sessionID == "" {
		return ErrorResponse(c, 401, "unauthorized")
	}

	ch, cancel := h.bus.Subscribe(sessionID)
	defer cancel()

	var replay []*domain.Event
	if lastIDStr := c.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			replay = h.bus.Replay(lastID, nil)
		}
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	h.log.Info().Str("session_id", sessionID).Msg("sse client connected")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.log.Info().Str("session_id", sessionID).Msg("sse client disconnected")

		for _, evt := range replay {
			if !writeEvent(w, evt) {
				return
			}
		}

		ticker := time.NewTicker(sseHeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !writeEvent(w, evt) {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, evt *domain.Event) bool {
	data, err := json.Marshal(evt)
	if err != nil {
		return true
	}
	if _, err := w.WriteString("id: " + strconv.FormatInt(evt.Seq, 10) + "\n"); err != nil {
		return false
	}
	if _, err := w.WriteString("event: " + string(evt.Type) + "\n"); err != nil {
		return false
	}
	if _, err := w.WriteString("data: "); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

func (h *SSEHandler) Status(c *fiber.Ctx) error {
	return SuccessResponse(c, fiber.Map{"connected_clients": h.bus.ConnectedCount()})
}
