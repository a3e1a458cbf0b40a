package chat

import (
	"time"

	"chat-gateway/internal/models"
)

// Outbound event names.
const (
	OutConnected         = "connected"
	OutPresence          = "presence"
	OutRoomSystemMessage = "roomSystemMessage"
	OutRoomHistory       = "roomHistory"
	OutPublicMessage     = "publicMessage"
	OutPrivateMessage    = "privateMessage"
	OutReactionsUpdated  = "reactionsUpdated"
	OutTypingUsers       = "typingUsers"
	OutPrivateLogLoaded  = "privateLogLoaded"
	OutError             = "error"
)

// Audience selects the recipients of an outbound event.
type Audience int

const (
	AudienceAll Audience = iota
	AudienceSession
	AudienceSessions
)

// Outbound describes one emission; the router returns these instead of
// writing to connections.
type Outbound struct {
	Audience   Audience
	SessionIDs []string
	Event      string
	Payload    any
}

func toAll(event string, payload any) Outbound {
	return Outbound{Audience: AudienceAll, Event: event, Payload: payload}
}

func toSession(sessionID, event string, payload any) Outbound {
	return Outbound{Audience: AudienceSession, SessionIDs: []string{sessionID}, Event: event, Payload: payload}
}

func toSessions(sessionIDs []string, event string, payload any) Outbound {
	return Outbound{Audience: AudienceSessions, SessionIDs: sessionIDs, Event: event, Payload: payload}
}

// Transport delivers outbound events. Emitting to a session that is no
// longer connected is a no-op.
type Transport interface {
	EmitToAll(event string, payload any)
	EmitToSession(sessionID, event string, payload any)
	EmitToSessions(sessionIDs []string, event string, payload any)
}

// Dispatch hands every outbound description to t in order.
func Dispatch(t Transport, out []Outbound) {
	for _, o := range out {
		switch o.Audience {
		case AudienceAll:
			t.EmitToAll(o.Event, o.Payload)
		case AudienceSession:
			if len(o.SessionIDs) > 0 {
				t.EmitToSession(o.SessionIDs[0], o.Event, o.Payload)
			}
		case AudienceSessions:
			t.EmitToSessions(o.SessionIDs, o.Event, o.Payload)
		}
	}
}

// Payloads.

type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
}

type PresencePayload struct {
	Sessions []models.Session `json:"sessions"`
}

type SystemMessageKind string

const (
	SystemJoined SystemMessageKind = "joined"
	SystemLeft   SystemMessageKind = "left"
)

type RoomSystemMessagePayload struct {
	Text      string            `json:"text"`
	Kind      SystemMessageKind `json:"kind"`
	Username  string            `json:"username"`
	SessionID string            `json:"sessionId"`
	CreatedAt time.Time         `json:"createdAt"`
}

type MessagesPayload struct {
	Messages []*models.Message `json:"messages"`
}

type MessagePayload struct {
	Message *models.Message `json:"message"`
}

type ReactionsUpdatedPayload struct {
	MessageID       int64            `json:"messageId"`
	Reactions       models.Reactions `json:"reactions"`
	Scope           ReactionScope    `json:"scope"`
	ConversationKey string           `json:"conversationKey,omitempty"`
}

type TypingUsersPayload struct {
	Usernames []string `json:"usernames"`
}

type PrivateLogLoadedPayload struct {
	ConversationKey string            `json:"conversationKey"`
	Messages        []*models.Message `json:"messages"`
}

type ErrorPayload struct {
	Event  string `json:"event,omitempty"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
