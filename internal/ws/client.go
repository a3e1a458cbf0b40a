package ws

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 << 10
	sendBufferSize = 256
)

// Client is one websocket connection. The hub owns send and is the only
// party that closes it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
	info ConnInfo
	ctx  context.Context
}

func newClient(hub *Hub, conn *websocket.Conn, info ConnInfo, ctx context.Context) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		id:   info.ConnID,
		info: info,
		ctx:  ctx,
	}
}

func (c *Client) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// readPump decodes frames into the hub until the connection fails. Any read
// error or a frame that is not a JSON envelope ends the session. The caller
// must have joined the hub's pump group.
func (c *Client) readPump() {
	var closeReason string
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()

		observability.DecWSActive(wsKind)
		observability.IncWSEvent(wsKind, "ws_disconnect")
		publishWSEvent(c.context(), c.info, "ws_disconnect", closeReason)
		c.hub.pumps.done()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read failed session=%s: %v", c.id, err)
				observability.IncWSEvent(wsKind, "ws_error")
				publishWSEvent(c.context(), c.info, "ws_error", closeReason)
			}
			return
		}

		ev, err := chat.DecodeEvent(raw)
		if errors.Is(err, chat.ErrMalformedFrame) {
			closeReason = err.Error()
			log.Printf("ws malformed frame session=%s bytes=%d", c.id, len(raw))
			observability.IncWSEvent(wsKind, "ws_error")
			publishWSEvent(c.context(), c.info, "ws_error", closeReason)
			return
		}
		select {
		case c.hub.inbound <- inboundFrame{client: c, event: ev, err: err}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump writes one frame per hub message and keeps the peer alive with
// pings. It exits when the hub closes send.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("ws write failed session=%s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
