package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/models"
)

const defaultMessagesLimit = 100

// RoomReader answers read-only questions about the room.
type RoomReader interface {
	RecentMessages(ctx context.Context, limit int) ([]*models.Message, error)
	Sessions(ctx context.Context) ([]models.Session, error)
}

// RoomHandler serves the room log and presence list over HTTP.
type RoomHandler struct {
	room     RoomReader
	maxLimit int
}

// NewRoomHandler builds a RoomHandler. maxLimit caps ?limit=, normally the
// room log capacity.
func NewRoomHandler(room RoomReader, maxLimit int) *RoomHandler {
	if maxLimit <= 0 {
		maxLimit = defaultMessagesLimit
	}
	return &RoomHandler{room: room, maxLimit: maxLimit}
}

// GetMessages returns the most recent room messages, oldest first.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	limit := defaultMessagesLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	msgs, err := h.room.RecentMessages(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "load messages", err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// GetUsers returns the sessions currently in the room.
func (h *RoomHandler) GetUsers(c *gin.Context) {
	sessions, err := h.room.Sessions(c.Request.Context())
	if err != nil {
		h.fail(c, "load users", err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *RoomHandler) fail(c *gin.Context, action string, err error) {
	log.Printf("room handler %s failed request_id=%s: %v", action, requestIDFromContext(c), err)
	status := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": "failed to " + action})
}
