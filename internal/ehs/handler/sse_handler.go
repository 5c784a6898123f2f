package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
	"github.com/sagrado26/ehstoolkit-sub000/internal/middleware"
)

const (
	sseHeartbeat = 30 * time.Second
	sseBuffer    = 64
)

// SSEHandler 把 hub 中的变更事件推送给浏览器
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: sseHeartbeat}
}

// Stream GET /api/events?token=xxx
// EventSource 无法带 Authorization 头，令牌走 query
func (h *SSEHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		ServiceUnavailable(c, "Event stream is not available")
		return
	}

	client := &sse.Client{
		ID:     uuid.New().String(),
		UserID: middleware.UserID(c),
		Events: make(chan sse.Event, sseBuffer),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"clientId": client.ID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	done := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case ev, ok := <-client.Events:
			if !ok {
				return false
			}
			// Data 已是 JSON 文本，原样写出
			c.SSEvent(ev.EventType, ev.Data)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		}
	})
}
