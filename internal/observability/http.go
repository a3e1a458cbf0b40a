package observability

import (
	"net"
	"net/http"
	"strings"
)

const (
	RequestIDHeader = "X-Request-ID"
	// SessionIDHeader names the chat session an HTTP call acts for.
	SessionIDHeader = "X-Session-ID"
)

// ClientMeta is what the gateway records about the peer behind a request,
// both for HTTP calls and for websocket handshakes.
type ClientMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

func ClientMetaFromRequest(r *http.Request) ClientMeta {
	return ClientMeta{
		RequestID: RequestIDFromRequest(r),
		IP:        IPFromRequest(r),
		UserAgent: r.UserAgent(),
	}
}

func RequestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(RequestIDHeader))
}

// IPFromRequest prefers the first parseable X-Forwarded-For hop, then
// X-Real-IP, then the socket peer.
func IPFromRequest(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseIP(hop); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return ""
}
