package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chat-gateway/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// AuditEmitter records session lifecycle and rejected events on the broker.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	SessionID     *string      `json:"session_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes one audit record. Publish failures are logged, not returned.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, sessionID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		SessionID:     sessionID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}

	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, observability.BuildHeaders(requestID, traceID)); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("audit publish failed level=%s request_id=%s: %v", level, requestID, err)
	}
}
