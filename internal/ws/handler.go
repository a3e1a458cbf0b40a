package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-gateway/internal/observability"
)

// Handler upgrades HTTP requests to chat sessions.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler builds a Handler accepting browser origins from allowedOrigins.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Handle upgrades the connection, registers the session and starts its pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	meta := observability.ClientMetaFromRequest(c.Request)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed ip=%s request_id=%s: %v", meta.IP, meta.RequestID, err)
		span.RecordError(err)
		observability.IncWSEvent(wsKind, "ws_upgrade_failed")
		return
	}

	info := ConnInfo{
		ConnID:      newSessionID(),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("chat.session_id", info.ConnID))

	// the request context ends with this handler; keep its trace values only
	client := newClient(h.hub, conn, info, context.WithoutCancel(ctx))
	if !h.hub.pumps.add() {
		log.Printf("ws register failed session=%s: %v", info.ConnID, ErrHubStopped)
		_ = conn.Close()
		return
	}
	if err := h.hub.Register(client); err != nil {
		h.hub.pumps.done()
		log.Printf("ws register failed session=%s: %v", info.ConnID, err)
		_ = conn.Close()
		return
	}

	observability.IncWSActive(wsKind)
	observability.IncWSEvent(wsKind, "ws_connect")
	publishWSEvent(ctx, info, "ws_connect", "")
	log.Printf("ws connected session=%s ip=%s request_id=%s", info.ConnID, info.IP, info.RequestID)

	go client.writePump()
	go client.readPump()
}
