package models

import "time"

// Kind classifies a message body.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// Valid reports whether k is a known message kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}

// Attachment is the file metadata produced by the upload endpoint.
type Attachment struct {
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
}

// Reactions maps a reaction symbol to the usernames that reacted with it.
type Reactions map[string][]string

// Clone returns a deep copy of r.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for symbol, users := range r {
		out[symbol] = append([]string(nil), users...)
	}
	return out
}

// Message is a room or private message. Reactions are the only field that
// changes after the message is stored.
type Message struct {
	ID              int64       `json:"id"`
	SenderSessionID string      `json:"senderId"`
	SenderUsername  string      `json:"sender"`
	RecipientID     string      `json:"recipientId,omitempty"`
	Body            string      `json:"body"`
	Kind            Kind        `json:"kind"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	Private         bool        `json:"isPrivate"`
	Reactions       Reactions   `json:"reactions"`
}

// Clone returns a copy of m that shares no mutable state with it.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if m.Attachment != nil {
		att := *m.Attachment
		out.Attachment = &att
	}
	out.Reactions = m.Reactions.Clone()
	return &out
}
