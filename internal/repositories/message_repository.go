package repositories

import (
	"errors"
	"sort"
	"time"

	"chat-gateway/internal/models"
)

const (
	DefaultRoomLogCapacity         = 1000
	DefaultConversationLogCapacity = 100
)

var ErrMessageNotFound = errors.New("message not found")

// Scope addresses either the room log or one conversation log. The zero
// value is the room.
type Scope struct {
	Conversation models.ConversationKey
}

// RoomScope addresses the public room log.
func RoomScope() Scope {
	return Scope{}
}

// PrivateScope addresses the log of one conversation.
func PrivateScope(key models.ConversationKey) Scope {
	return Scope{Conversation: key}
}

func (s Scope) IsPrivate() bool {
	return !s.Conversation.IsZero()
}

// MessageRepository stores bounded room and conversation logs and owns
// reaction mutation. Returned messages are copies.
type MessageRepository interface {
	AppendPublic(msg models.Message) *models.Message
	AppendPrivate(key models.ConversationKey, msg models.Message) *models.Message
	ToggleReaction(messageID int64, username, symbol string, scope Scope) (models.Reactions, error)
	GetPublic(limit int) []*models.Message
	GetPrivate(key models.ConversationKey) []*models.Message
	EnforceCeilings() int
}

// MessageStore is an in-memory MessageRepository. It is not safe for
// concurrent use; the hub loop owns it.
type MessageStore struct {
	room          []*models.Message
	conversations map[models.ConversationKey][]*models.Message
	roomCap       int
	convCap       int
	lastID        int64
	now           func() time.Time
}

// NewMessageStore constructs a store with the given log ceilings. Non-positive
// values fall back to the defaults.
func NewMessageStore(roomCapacity, conversationCapacity int) *MessageStore {
	if roomCapacity <= 0 {
		roomCapacity = DefaultRoomLogCapacity
	}
	if conversationCapacity <= 0 {
		conversationCapacity = DefaultConversationLogCapacity
	}
	return &MessageStore{
		conversations: make(map[models.ConversationKey][]*models.Message),
		roomCap:       roomCapacity,
		convCap:       conversationCapacity,
		now:           time.Now,
	}
}

// nextID returns a strictly increasing id based on the clock in microseconds,
// falling back to last+1 for same-tick bursts or a clock that went backwards.
func (s *MessageStore) nextID(at time.Time) int64 {
	id := at.UnixMicro()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *MessageStore) stamp(msg models.Message) *models.Message {
	at := s.now().UTC()
	msg.ID = s.nextID(at)
	msg.CreatedAt = at
	msg.Reactions = models.Reactions{}
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	return &msg
}

// AppendPublic stamps msg and appends it to the room log.
func (s *MessageStore) AppendPublic(msg models.Message) *models.Message {
	stored := s.stamp(msg)
	stored.Private = false
	s.room = enforceCeiling(append(s.room, stored), s.roomCap)
	return stored.Clone()
}

// AppendPrivate stamps msg and appends it to the conversation log for key.
func (s *MessageStore) AppendPrivate(key models.ConversationKey, msg models.Message) *models.Message {
	stored := s.stamp(msg)
	stored.Private = true
	s.conversations[key] = enforceCeiling(append(s.conversations[key], stored), s.convCap)
	return stored.Clone()
}

// ToggleReaction adds username under symbol, or removes it when already
// present. A symbol left with no users is deleted.
func (s *MessageStore) ToggleReaction(messageID int64, username, symbol string, scope Scope) (models.Reactions, error) {
	log := s.room
	if scope.IsPrivate() {
		log = s.conversations[scope.Conversation]
	}
	msg := findMessage(log, messageID)
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	users := msg.Reactions[symbol]
	idx := -1
	for i, u := range users {
		if u == username {
			idx = i
			break
		}
	}
	if idx == -1 {
		msg.Reactions[symbol] = append(users, username)
	} else {
		users = append(users[:idx], users[idx+1:]...)
		if len(users) == 0 {
			delete(msg.Reactions, symbol)
		} else {
			msg.Reactions[symbol] = users
		}
	}
	return msg.Reactions.Clone(), nil
}

// GetPublic returns the last limit room messages, oldest first.
func (s *MessageStore) GetPublic(limit int) []*models.Message {
	if limit <= 0 {
		return []*models.Message{}
	}
	log := s.room
	if limit < len(log) {
		log = log[len(log)-limit:]
	}
	return cloneLog(log)
}

// GetPrivate returns the retained conversation log, oldest first.
func (s *MessageStore) GetPrivate(key models.ConversationKey) []*models.Message {
	return cloneLog(s.conversations[key])
}

// EnforceCeilings trims every log to its ceiling and returns how many
// messages were evicted.
func (s *MessageStore) EnforceCeilings() int {
	evicted := 0
	if n := len(s.room) - s.roomCap; n > 0 {
		evicted += n
	}
	s.room = enforceCeiling(s.room, s.roomCap)
	for key, log := range s.conversations {
		if n := len(log) - s.convCap; n > 0 {
			evicted += n
		}
		s.conversations[key] = enforceCeiling(log, s.convCap)
	}
	return evicted
}

// enforceCeiling drops the oldest entries until len(log) <= max. The kept
// tail is copied so the evicted messages can be collected.
func enforceCeiling(log []*models.Message, max int) []*models.Message {
	if len(log) <= max {
		return log
	}
	kept := make([]*models.Message, max)
	copy(kept, log[len(log)-max:])
	return kept
}

// findMessage relies on ids increasing along the log.
func findMessage(log []*models.Message, id int64) *models.Message {
	i := sort.Search(len(log), func(i int) bool { return log[i].ID >= id })
	if i < len(log) && log[i].ID == id {
		return log[i]
	}
	return nil
}

func cloneLog(log []*models.Message) []*models.Message {
	out := make([]*models.Message, 0, len(log))
	for _, m := range log {
		out = append(out, m.Clone())
	}
	return out
}
