package chat

import (
	"errors"
	"fmt"

	"chat-gateway/internal/repositories"
)

var (
	ErrInvalidUsername = repositories.ErrInvalidUsername
	ErrInvalidMessage  = errors.New("invalid message")
	ErrUnknownSession  = errors.New("unknown session")
	ErrMessageNotFound = repositories.ErrMessageNotFound
	ErrAlreadyJoined   = repositories.ErrSessionExists
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidEvent    = errors.New("invalid event")

	// ErrMalformedFrame is a frame that is not a JSON envelope at all. The
	// transport treats it as a fault and ends the session.
	ErrMalformedFrame = fmt.Errorf("%w: malformed frame", ErrInvalidEvent)
)

// ErrorCode maps an error to the stable code sent to clients and used as a
// metrics label.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidUsername):
		return "InvalidUsername"
	case errors.Is(err, ErrInvalidMessage):
		return "InvalidMessage"
	case errors.Is(err, ErrUnknownSession):
		return "UnknownSession"
	case errors.Is(err, ErrMessageNotFound):
		return "MessageNotFound"
	case errors.Is(err, ErrAlreadyJoined):
		return "AlreadyJoined"
	case errors.Is(err, ErrInvalidStatus):
		return "InvalidStatus"
	case errors.Is(err, ErrInvalidEvent):
		return "InvalidEvent"
	default:
		return "Internal"
	}
}
