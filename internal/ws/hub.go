package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/telemetry"
)

const (
	wsKind               = "room"
	defaultSweepInterval = time.Minute
)

var ErrHubStopped = errors.New("hub stopped")

type inboundFrame struct {
	client *Client
	event  chat.Event
	err    error
}

// Hub is the single owner of the router state and the client table. Every
// event, connect, disconnect, sweep and read query runs on the Run goroutine,
// one at a time.
type Hub struct {
	router        *chat.Router
	clients       map[string]*Client
	register      chan *Client
	unregister    chan *Client
	inbound       chan inboundFrame
	queries       chan func(*chat.Router)
	sweepInterval time.Duration
	audit         *telemetry.AuditEmitter
	done          chan struct{}
	pumps         pumpGroup
}

// pumpGroup counts read pumps that still have disconnect work to publish.
// Once waited on it refuses new members.
type pumpGroup struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func (g *pumpGroup) add() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

func (g *pumpGroup) done() {
	g.wg.Done()
}

func (g *pumpGroup) wait(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewHub creates a hub around router. A nil audit emitter disables audit
// records.
func NewHub(router *chat.Router, sweepInterval time.Duration, audit *telemetry.AuditEmitter) *Hub {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &Hub{
		router:        router,
		clients:       make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		inbound:       make(chan inboundFrame, 256),
		queries:       make(chan func(*chat.Router)),
		sweepInterval: sweepInterval,
		audit:         audit,
		done:          make(chan struct{}),
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("hub shutting down clients=%d", len(h.clients))
			h.closeAllClients()
			close(h.done)
			return
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case f := <-h.inbound:
			h.handleInbound(f)
		case fn := <-h.queries:
			fn(h.router)
		case <-ticker.C:
			if evicted := h.router.Sweep(); evicted > 0 {
				log.Printf("hub sweep evicted=%d", evicted)
			}
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Drain waits for Run to return and then for every read pump to finish its
// disconnect bookkeeping. Call it after cancelling the Run context and before
// closing the event publisher.
func (h *Hub) Drain(ctx context.Context) error {
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return h.pumps.wait(ctx)
}

// Register hands a new connection to the hub.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.id] = c
	h.EmitToSession(c.id, chat.OutConnected, chat.ConnectedPayload{SessionID: c.id})
}

// handleUnregister drops the connection before routing the disconnect, so
// the departed session is never a recipient of its own "left" broadcast.
func (h *Hub) handleUnregister(c *Client) {
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		close(c.send)
	}
	ev := chat.Disconnect{}
	h.apply(c, ev, h.router.Handle(c.id, ev))
}

func (h *Hub) handleInbound(f inboundFrame) {
	if _, ok := h.clients[f.client.id]; !ok {
		return
	}
	if f.err != nil {
		h.apply(f.client, nil, chat.Reject(f.client.id, nil, f.err))
		return
	}
	h.apply(f.client, f.event, h.router.Handle(f.client.id, f.event))
}

// apply records the outcome of one routed event and emits its fanout.
func (h *Hub) apply(c *Client, ev chat.Event, res chat.Result) {
	name := "invalid"
	if ev != nil {
		name = ev.Name()
	}

	_, span := otel.Tracer("chat-gateway/ws").Start(c.context(), "chat."+name)
	span.SetAttributes(
		attribute.String("chat.session_id", c.id),
		attribute.Int("chat.outbound", len(res.Outbound)),
	)
	defer span.End()

	observability.IncWSEvent(wsKind, name)
	if res.Err != nil {
		code := chat.ErrorCode(res.Err)
		span.SetStatus(codes.Error, code)
		observability.IncRouterRejection(code)
		log.Printf("hub rejected event=%s session=%s code=%s reason=%q", name, c.id, code, res.Err.Error())
		h.emitAudit(c, "WARN", fmt.Sprintf("rejected %s: %s", name, res.Err.Error()))
	}

	if res.Session != nil {
		switch ev.(type) {
		case chat.Join:
			log.Printf("hub joined session=%s username=%s", c.id, res.Session.Username)
			h.emitAudit(c, "INFO", fmt.Sprintf("%s joined the chat", res.Session.Username))
		case chat.Disconnect:
			log.Printf("hub left session=%s username=%s", c.id, res.Session.Username)
			h.emitAudit(c, "INFO", fmt.Sprintf("%s left the chat", res.Session.Username))
		}
	}

	for _, o := range res.Outbound {
		switch o.Event {
		case chat.OutPublicMessage:
			observability.IncMessage("room")
		case chat.OutPrivateMessage:
			observability.IncMessage("private")
		}
	}
	chat.Dispatch(h, res.Outbound)
}

func (h *Hub) emitAudit(c *Client, level, text string) {
	if h.audit == nil {
		return
	}
	sessionID := c.id
	h.audit.Emit(c.context(), level, text, c.info.RequestID, &sessionID)
}

// EmitToAll implements chat.Transport.
func (h *Hub) EmitToAll(event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}
	for _, c := range h.clients {
		h.deliver(c, frame)
	}
}

// EmitToSession implements chat.Transport. Unknown sessions are ignored.
func (h *Hub) EmitToSession(sessionID, event string, payload any) {
	c, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if frame, ok := encodeFrame(event, payload); ok {
		h.deliver(c, frame)
	}
}

// EmitToSessions implements chat.Transport. Unknown sessions are ignored.
func (h *Hub) EmitToSessions(sessionIDs []string, event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}
	seen := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := h.clients[id]; ok {
			h.deliver(c, frame)
		}
	}
}

// deliver never blocks the loop: a client whose buffer is full is evicted and
// its pumps shut the connection down, which routes the disconnect.
func (h *Hub) deliver(c *Client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.Printf("hub evicting slow client session=%s", c.id)
		delete(h.clients, c.id)
		close(c.send)
		observability.IncWSEvent(wsKind, "ws_evicted")
	}
}

func (h *Hub) closeAllClients() {
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

func encodeFrame(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: payload})
	if err != nil {
		log.Printf("hub encode failed event=%s: %v", event, err)
		return nil, false
	}
	return data, true
}

// query runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) query(ctx context.Context, fn func(*chat.Router)) error {
	finished := make(chan struct{})
	wrapped := func(r *chat.Router) {
		fn(r)
		close(finished)
	}
	select {
	case h.queries <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentMessages returns the last limit room messages, oldest first.
func (h *Hub) RecentMessages(ctx context.Context, limit int) ([]*models.Message, error) {
	var out []*models.Message
	if err := h.query(ctx, func(r *chat.Router) {
		out = r.RecentMessages(limit)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Sessions returns the presence list.
func (h *Hub) Sessions(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	if err := h.query(ctx, func(r *chat.Router) {
		out = r.Sessions()
	}); err != nil {
		return nil, err
	}
	return out, nil
}
