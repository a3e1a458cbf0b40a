package repositories

// TypingRepository tracks which sessions are typing in the room.
type TypingRepository interface {
	SetTyping(sessionID, username string, isTyping bool) []string
	Clear(sessionID string)
	Usernames() []string
}

// TypingTracker is an in-memory TypingRepository. Expiry of stale entries is
// left to clients re-sending typing stop/start.
type TypingTracker struct {
	typing map[string]string
	order  []string
}

// NewTypingTracker constructs an empty TypingTracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{typing: make(map[string]string)}
}

// SetTyping records or clears the typing flag for sessionID and returns the
// usernames currently typing.
func (t *TypingTracker) SetTyping(sessionID, username string, isTyping bool) []string {
	if isTyping {
		if _, ok := t.typing[sessionID]; !ok {
			t.order = append(t.order, sessionID)
		}
		t.typing[sessionID] = username
	} else {
		t.Clear(sessionID)
	}
	return t.Usernames()
}

// Clear removes sessionID. Unknown ids are ignored.
func (t *TypingTracker) Clear(sessionID string) {
	if _, ok := t.typing[sessionID]; !ok {
		return
	}
	delete(t.typing, sessionID)
	for i, id := range t.order {
		if id == sessionID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *TypingTracker) Usernames() []string {
	out := make([]string, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.typing[id])
	}
	return out
}
