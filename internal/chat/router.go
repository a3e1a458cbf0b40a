package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

const (
	MaxBodyLength   = 500
	// HistoryOnJoin is how many room messages a newly joined session receives.
	HistoryOnJoin   = 50
	maxSymbolLength = 32
)

// Result is the outcome of handling one event.
type Result struct {
	Outbound []Outbound
	// Err is set when the event was rejected; Outbound then holds only the
	// error signal for the originator.
	Err error
	// Session is the session that joined or left, when the event did so.
	Session *models.Session
}

// Router applies inbound events to the registry, typing tracker and message
// store and describes the resulting fanout. It must only be driven from a
// single goroutine.
type Router struct {
	sessions repositories.SessionRepository
	typing   repositories.TypingRepository
	messages repositories.MessageRepository
	now      func() time.Time
}

// NewRouter builds a Router over the given state.
func NewRouter(sessions repositories.SessionRepository, typing repositories.TypingRepository, messages repositories.MessageRepository) *Router {
	return &Router{
		sessions: sessions,
		typing:   typing,
		messages: messages,
		now:      time.Now,
	}
}

// Handle processes ev on behalf of sessionID.
func (r *Router) Handle(sessionID string, ev Event) Result {
	var (
		res Result
		err error
	)
	switch e := ev.(type) {
	case Join:
		res, err = r.join(sessionID, e)
	case SendPublic:
		res, err = r.sendPublic(sessionID, e)
	case SendPrivate:
		res, err = r.sendPrivate(sessionID, e)
	case ToggleReaction:
		res, err = r.toggleReaction(sessionID, e)
	case Typing:
		res, err = r.setTyping(sessionID, e)
	case FetchPrivateLog:
		res, err = r.fetchPrivateLog(sessionID, e)
	case StatusUpdate:
		res, err = r.statusUpdate(sessionID, e)
	case Disconnect:
		res = r.disconnect(sessionID)
	default:
		err = fmt.Errorf("%w: unsupported event", ErrInvalidEvent)
	}
	if err != nil {
		return Reject(sessionID, ev, err)
	}
	return res
}

// Reject builds the result for a refused event: an error signal to the
// originator and nothing else.
func Reject(sessionID string, ev Event, err error) Result {
	name := ""
	if ev != nil {
		name = ev.Name()
	}
	return Result{
		Err: err,
		Outbound: []Outbound{toSession(sessionID, OutError, ErrorPayload{
			Event:  name,
			Code:   ErrorCode(err),
			Reason: err.Error(),
		})},
	}
}

// Sweep trims every log to its ceiling. Call it between events.
func (r *Router) Sweep() int {
	return r.messages.EnforceCeilings()
}

// Sessions returns the presence list.
func (r *Router) Sessions() []models.Session {
	return r.sessions.List()
}

// RecentMessages returns the last limit room messages, oldest first.
func (r *Router) RecentMessages(limit int) []*models.Message {
	return r.messages.GetPublic(limit)
}

func (r *Router) join(sessionID string, e Join) (Result, error) {
	s, err := r.sessions.Join(sessionID, e.Username)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Session: &s,
		Outbound: []Outbound{
			r.presence(),
			toAll(OutRoomSystemMessage, r.systemMessage(s, SystemJoined)),
			toSession(sessionID, OutRoomHistory, MessagesPayload{Messages: r.messages.GetPublic(HistoryOnJoin)}),
		},
	}, nil
}

func (r *Router) sendPublic(sessionID string, e SendPublic) (Result, error) {
	sender, ok := r.sessions.Get(sessionID)
	if !ok {
		return Result{}, ErrUnknownSession
	}
	msg, err := buildMessage(sender, e.Body, e.Kind, e.Attachment)
	if err != nil {
		return Result{}, err
	}
	stored := r.messages.AppendPublic(msg)
	return Result{Outbound: []Outbound{toAll(OutPublicMessage, MessagePayload{Message: stored})}}, nil
}

func (r *Router) sendPrivate(sessionID string, e SendPrivate) (Result, error) {
	sender, ok := r.sessions.Get(sessionID)
	if !ok {
		return Result{}, ErrUnknownSession
	}
	if e.To == sessionID {
		return Result{}, fmt.Errorf("%w: cannot send a private message to yourself", ErrInvalidMessage)
	}
	if _, ok := r.sessions.Get(e.To); !ok {
		return Result{}, fmt.Errorf("%w: recipient is not connected", ErrUnknownSession)
	}
	msg, err := buildMessage(sender, e.Body, e.Kind, e.Attachment)
	if err != nil {
		return Result{}, err
	}
	msg.RecipientID = e.To

	stored := r.messages.AppendPrivate(models.NewConversationKey(sessionID, e.To), msg)
	return Result{Outbound: []Outbound{
		toSessions([]string{sessionID, e.To}, OutPrivateMessage, MessagePayload{Message: stored}),
	}}, nil
}

func (r *Router) toggleReaction(sessionID string, e ToggleReaction) (Result, error) {
	sender, ok := r.sessions.Get(sessionID)
	if !ok {
		return Result{}, ErrUnknownSession
	}
	symbol := strings.TrimSpace(e.Symbol)
	if symbol == "" || utf8.RuneCountInString(symbol) > maxSymbolLength {
		return Result{}, fmt.Errorf("%w: bad reaction symbol", ErrInvalidMessage)
	}

	switch e.Scope {
	case ScopeRoom, "":
		reactions, err := r.messages.ToggleReaction(e.MessageID, sender.Username, symbol, repositories.RoomScope())
		if err != nil {
			return Result{}, err
		}
		return Result{Outbound: []Outbound{toAll(OutReactionsUpdated, ReactionsUpdatedPayload{
			MessageID: e.MessageID,
			Reactions: reactions,
			Scope:     ScopeRoom,
		})}}, nil

	case ScopePrivate:
		key, err := models.ParseConversationKey(e.ConversationKey)
		if err != nil || !key.Has(sessionID) {
			return Result{}, ErrMessageNotFound
		}
		reactions, err := r.messages.ToggleReaction(e.MessageID, sender.Username, symbol, repositories.PrivateScope(key))
		if err != nil {
			return Result{}, err
		}
		return Result{Outbound: []Outbound{toSessions(key.Participants(), OutReactionsUpdated, ReactionsUpdatedPayload{
			MessageID:       e.MessageID,
			Reactions:       reactions,
			Scope:           ScopePrivate,
			ConversationKey: key.String(),
		})}}, nil
	}
	return Result{}, fmt.Errorf("%w: unknown reaction scope %q", ErrInvalidEvent, e.Scope)
}

func (r *Router) setTyping(sessionID string, e Typing) (Result, error) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return Result{}, ErrUnknownSession
	}
	usernames := r.typing.SetTyping(sessionID, s.Username, e.IsTyping)
	return Result{Outbound: []Outbound{toAll(OutTypingUsers, TypingUsersPayload{Usernames: usernames})}}, nil
}

func (r *Router) fetchPrivateLog(sessionID string, e FetchPrivateLog) (Result, error) {
	if e.OtherSessionID == "" {
		return Result{}, fmt.Errorf("%w: otherSessionId is required", ErrUnknownSession)
	}
	key := models.NewConversationKey(sessionID, e.OtherSessionID)
	return Result{Outbound: []Outbound{toSession(sessionID, OutPrivateLogLoaded, PrivateLogLoadedPayload{
		ConversationKey: key.String(),
		Messages:        r.messages.GetPrivate(key),
	})}}, nil
}

func (r *Router) statusUpdate(sessionID string, e StatusUpdate) (Result, error) {
	if !e.Status.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if err := r.sessions.SetStatus(sessionID, e.Status); err != nil {
		return Result{}, ErrUnknownSession
	}
	return Result{Outbound: []Outbound{r.presence()}}, nil
}

// disconnect removes the session and its typing flag before any of the
// resulting broadcasts are built.
func (r *Router) disconnect(sessionID string) Result {
	s, ok := r.sessions.Remove(sessionID)
	r.typing.Clear(sessionID)
	if !ok {
		return Result{}
	}
	return Result{
		Session: &s,
		Outbound: []Outbound{
			toAll(OutRoomSystemMessage, r.systemMessage(s, SystemLeft)),
			r.presence(),
			toAll(OutTypingUsers, TypingUsersPayload{Usernames: r.typing.Usernames()}),
		},
	}
}

func (r *Router) presence() Outbound {
	return toAll(OutPresence, PresencePayload{Sessions: r.sessions.List()})
}

func (r *Router) systemMessage(s models.Session, kind SystemMessageKind) RoomSystemMessagePayload {
	return RoomSystemMessagePayload{
		Text:      fmt.Sprintf("%s %s", s.Username, kind),
		Kind:      kind,
		Username:  s.Username,
		SessionID: s.ID,
		CreatedAt: r.now().UTC(),
	}
}

func buildMessage(sender models.Session, body string, kind models.Kind, att *models.Attachment) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return models.Message{}, fmt.Errorf("%w: body exceeds %d characters", ErrInvalidMessage, MaxBodyLength)
	}
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() {
		return models.Message{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, kind)
	}
	if kind != models.KindText && att == nil {
		return models.Message{}, fmt.Errorf("%w: %s message needs an attachment", ErrInvalidMessage, kind)
	}
	return models.Message{
		SenderSessionID: sender.ID,
		SenderUsername:  sender.Username,
		Body:            body,
		Kind:            kind,
		Attachment:      att,
	}, nil
}
