package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// conversationKeySeparator never appears in transport-issued session ids.
const conversationKeySeparator = ":"

var ErrInvalidConversationKey = errors.New("invalid conversation key")

// ConversationKey identifies the private conversation between two sessions.
// It is an ordered pair, so it is comparable and usable as a map key.
type ConversationKey struct {
	Low  string
	High string
}

// NewConversationKey returns the key for the pair (a, b). The argument order
// does not matter.
func NewConversationKey(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

// ParseConversationKey parses the string form produced by String.
func ParseConversationKey(s string) (ConversationKey, error) {
	parts := strings.Split(s, conversationKeySeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ConversationKey{}, ErrInvalidConversationKey
	}
	key := NewConversationKey(parts[0], parts[1])
	if key.String() != s {
		return ConversationKey{}, ErrInvalidConversationKey
	}
	return key, nil
}

func (k ConversationKey) String() string {
	return k.Low + conversationKeySeparator + k.High
}

// IsZero reports whether k is the zero key.
func (k ConversationKey) IsZero() bool {
	return k.Low == "" && k.High == ""
}

// Participants returns both session ids in key order.
func (k ConversationKey) Participants() []string {
	return []string{k.Low, k.High}
}

// Has reports whether sessionID is one of the participants.
func (k ConversationKey) Has(sessionID string) bool {
	return sessionID != "" && (k.Low == sessionID || k.High == sessionID)
}

func (k ConversationKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}
