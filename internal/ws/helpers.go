package ws

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/observability"
)

const wsEventsRoutingKey = "ws_events.room"

func newSessionID() string {
	return uuid.NewString()
}

func publishWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, wsEventsRoutingKey, observability.NewEventEnvelope("ws_events", event,
		map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        wsKind,
				"event":       event,
				"session_id":  info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"ip":         info.IP,
				"user_agent": info.UserAgent,
			},
		},
	), observability.BuildHeaders(info.RequestID, info.TraceID))
}

// originAllowed matches the Origin header against the configured client
// origins. An empty list or "*" allows everything; requests without an
// Origin header come from non-browser clients and are allowed.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}
