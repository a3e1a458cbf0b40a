package models

import "time"

// Status is the presence state a session advertises to the room.
type Status string

const (
	StatusOnline Status = "online"
	StatusAway   Status = "away"
)

// Valid reports whether s is a known presence status.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusAway
}

// Session is a joined connection and its presence metadata.
type Session struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
	Status   Status    `json:"status"`
}
