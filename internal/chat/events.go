package chat

import (
	"encoding/json"
	"fmt"

	"chat-gateway/internal/models"
)

// Inbound event names.
const (
	EventJoin            = "join"
	EventSendPublic      = "sendPublic"
	EventSendPrivate     = "sendPrivate"
	EventToggleReaction  = "toggleReaction"
	EventTyping          = "typing"
	EventFetchPrivateLog = "fetchPrivateLog"
	EventStatusUpdate    = "statusUpdate"
	EventDisconnect      = "disconnect"
)

// Event is one inbound event from a session.
type Event interface {
	Name() string
}

type Join struct {
	Username string `json:"username"`
}

type SendPublic struct {
	Body       string             `json:"body"`
	Kind       models.Kind        `json:"kind"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

type SendPrivate struct {
	To         string             `json:"to"`
	Body       string             `json:"body"`
	Kind       models.Kind        `json:"kind"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

// ReactionScope names the log a reaction targets.
type ReactionScope string

const (
	ScopeRoom    ReactionScope = "room"
	ScopePrivate ReactionScope = "private"
)

type ToggleReaction struct {
	MessageID       int64         `json:"messageId"`
	Symbol          string        `json:"symbol"`
	Scope           ReactionScope `json:"scope"`
	ConversationKey string        `json:"conversationKey,omitempty"`
}

type Typing struct {
	IsTyping bool `json:"isTyping"`
}

type FetchPrivateLog struct {
	OtherSessionID string `json:"otherSessionId"`
}

type StatusUpdate struct {
	Status models.Status `json:"status"`
}

// Disconnect is produced by the transport when a connection ends.
type Disconnect struct{}

func (Join) Name() string            { return EventJoin }
func (SendPublic) Name() string      { return EventSendPublic }
func (SendPrivate) Name() string     { return EventSendPrivate }
func (ToggleReaction) Name() string  { return EventToggleReaction }
func (Typing) Name() string          { return EventTyping }
func (FetchPrivateLog) Name() string { return EventFetchPrivateLog }
func (StatusUpdate) Name() string    { return EventStatusUpdate }
func (Disconnect) Name() string      { return EventDisconnect }

// Frame is the JSON envelope used on the wire in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent parses one inbound frame. Disconnect cannot be sent by clients.
func DecodeEvent(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, ErrMalformedFrame
	}

	var ev Event
	switch f.Event {
	case EventJoin:
		ev = &Join{}
	case EventSendPublic:
		ev = &SendPublic{}
	case EventSendPrivate:
		ev = &SendPrivate{}
	case EventToggleReaction:
		ev = &ToggleReaction{}
	case EventTyping:
		ev = &Typing{}
	case EventFetchPrivateLog:
		ev = &FetchPrivateLog{}
	case EventStatusUpdate:
		ev = &StatusUpdate{}
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidEvent, f.Event)
	}

	if len(f.Data) > 0 && string(f.Data) != "null" {
		if err := json.Unmarshal(f.Data, ev); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload", ErrInvalidEvent, f.Event)
		}
	}
	return deref(ev), nil
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *Join:
		return *e
	case *SendPublic:
		return *e
	case *SendPrivate:
		return *e
	case *ToggleReaction:
		return *e
	case *Typing:
		return *e
	case *FetchPrivateLog:
		return *e
	case *StatusUpdate:
		return *e
	}
	return ev
}
