package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chat-gateway/internal/models"
)

const (
	MinUsernameLength = 2
	MaxUsernameLength = 30
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrSessionExists   = errors.New("session already joined")
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository tracks joined sessions and their presence metadata.
type SessionRepository interface {
	Join(sessionID, username string) (models.Session, error)
	Get(sessionID string) (models.Session, bool)
	SetStatus(sessionID string, status models.Status) error
	Remove(sessionID string) (models.Session, bool)
	List() []models.Session
	Len() int
}

// SessionRegistry is an in-memory SessionRepository. It is not safe for
// concurrent use; the hub loop owns it.
type SessionRegistry struct {
	sessions map[string]*models.Session
	order    []string
	now      func() time.Time
}

// NewSessionRegistry constructs an empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*models.Session),
		now:      time.Now,
	}
}

// NormalizeUsername trims the username and checks its length in runes.
func NormalizeUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return "", fmt.Errorf("%w: must be %d-%d characters", ErrInvalidUsername, MinUsernameLength, MaxUsernameLength)
	}
	return name, nil
}

// Join registers sessionID under username with status online.
func (r *SessionRegistry) Join(sessionID, username string) (models.Session, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return models.Session{}, err
	}
	if _, ok := r.sessions[sessionID]; ok {
		return models.Session{}, ErrSessionExists
	}

	s := &models.Session{
		ID:       sessionID,
		Username: name,
		JoinedAt: r.now().UTC(),
		Status:   models.StatusOnline,
	}
	r.sessions[sessionID] = s
	r.order = append(r.order, sessionID)
	return *s, nil
}

// Get returns the session registered under sessionID.
func (r *SessionRegistry) Get(sessionID string) (models.Session, bool) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	return *s, true
}

// SetStatus updates the presence status of a joined session.
func (r *SessionRegistry) SetStatus(sessionID string, status models.Status) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.Status = status
	return nil
}

// Remove drops the session and returns the removed record.
func (r *SessionRegistry) Remove(sessionID string) (models.Session, bool) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Session{}, false
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *s, true
}

// List returns the joined sessions in join order.
func (r *SessionRegistry) List() []models.Session {
	out := make([]models.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sessions[id])
	}
	return out
}

func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}
