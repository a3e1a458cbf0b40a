package ws

import "time"

// ConnInfo describes one websocket connection. ConnID doubles as the chat
// session id.
type ConnInfo struct {
	ConnID      string
	IP          string
	UserAgent   string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
