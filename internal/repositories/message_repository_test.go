package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/models"
)

func text(body string) models.Message {
	return models.Message{SenderSessionID: "s1", SenderUsername: "alice", Body: body, Kind: models.KindText}
}

func TestMessageStoreAppendPublicStamps(t *testing.T) {
	store := NewMessageStore(0, 0)

	m := store.AppendPublic(text("hi"))
	assert.NotZero(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.NotNil(t, m.Reactions)
	assert.Empty(t, m.Reactions)
	assert.False(t, m.Private)

	got := store.GetPublic(10)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Body)
}

func TestMessageStoreIDsStrictlyIncreaseWithinSameInstant(t *testing.T) {
	store := NewMessageStore(0, 0)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	var last int64
	for i := 0; i < 50; i++ {
		m := store.AppendPublic(text("burst"))
		require.Greater(t, m.ID, last)
		last = m.ID
	}
}

func TestMessageStoreIDsSurviveClockGoingBackwards(t *testing.T) {
	store := NewMessageStore(0, 0)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return at }
	first := store.AppendPublic(text("a"))

	at = at.Add(-time.Hour)
	second := store.AppendPublic(text("b"))
	assert.Greater(t, second.ID, first.ID)
}

func TestMessageStoreRoomCeiling(t *testing.T) {
	store := NewMessageStore(0, 0)
	for i := 0; i < DefaultRoomLogCapacity+25; i++ {
		store.AppendPublic(text(fmt.Sprintf("m%d", i)))
		require.LessOrEqual(t, len(store.room), DefaultRoomLogCapacity)
	}

	all := store.GetPublic(DefaultRoomLogCapacity * 2)
	require.Len(t, all, DefaultRoomLogCapacity)
	assert.Equal(t, "m25", all[0].Body)
	assert.Equal(t, fmt.Sprintf("m%d", DefaultRoomLogCapacity+24), all[len(all)-1].Body)
}

func TestMessageStoreConversationCeiling(t *testing.T) {
	store := NewMessageStore(0, 0)
	key := models.NewConversationKey("a", "b")
	for i := 0; i < DefaultConversationLogCapacity*2; i++ {
		store.AppendPrivate(key, text(fmt.Sprintf("p%d", i)))
	}

	log := store.GetPrivate(key)
	require.Len(t, log, DefaultConversationLogCapacity)
	assert.Equal(t, fmt.Sprintf("p%d", DefaultConversationLogCapacity), log[0].Body)
	assert.True(t, log[0].Private)
}

func TestEnforceCeilingIsIdempotent(t *testing.T) {
	log := make([]*models.Message, 0, 10)
	for i := 0; i < 10; i++ {
		log = append(log, &models.Message{ID: int64(i + 1)})
	}

	once := enforceCeiling(log, 4)
	twice := enforceCeiling(once, 4)
	require.Len(t, twice, 4)
	assert.Equal(t, once, twice)
	assert.Equal(t, int64(7), twice[0].ID)

	assert.Len(t, enforceCeiling(log[:3], 4), 3)
}

func TestMessageStoreEnforceCeilingsSweep(t *testing.T) {
	store := NewMessageStore(5, 2)
	key := models.NewConversationKey("a", "b")
	// bypass inline trimming to simulate logs that outgrew a lowered ceiling
	for i := 0; i < 8; i++ {
		store.room = append(store.room, &models.Message{ID: int64(i + 1)})
	}
	store.conversations[key] = []*models.Message{{ID: 1}, {ID: 2}, {ID: 3}}

	assert.Equal(t, 4, store.EnforceCeilings())
	assert.Len(t, store.room, 5)
	assert.Len(t, store.conversations[key], 2)
	assert.Equal(t, 0, store.EnforceCeilings())
}

func TestMessageStoreGetPublicLimit(t *testing.T) {
	store := NewMessageStore(0, 0)
	for i := 0; i < 5; i++ {
		store.AppendPublic(text(fmt.Sprintf("m%d", i)))
	}

	got := store.GetPublic(2)
	require.Len(t, got, 2)
	assert.Equal(t, "m3", got[0].Body)
	assert.Equal(t, "m4", got[1].Body)
	assert.Len(t, store.GetPublic(100), 5)
}

func TestMessageStoreGetPublicNonPositiveLimitIsEmpty(t *testing.T) {
	store := NewMessageStore(0, 0)
	store.AppendPublic(text("m0"))

	for _, limit := range []int{0, -1} {
		got := store.GetPublic(limit)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestMessageStoreToggleReactionIsInvolution(t *testing.T) {
	store := NewMessageStore(0, 0)
	m := store.AppendPublic(text("hi"))

	r, err := store.ToggleReaction(m.ID, "alice", "👍", RoomScope())
	require.NoError(t, err)
	assert.Equal(t, models.Reactions{"👍": {"alice"}}, r)

	r, err = store.ToggleReaction(m.ID, "alice", "👍", RoomScope())
	require.NoError(t, err)
	assert.Equal(t, models.Reactions{}, r)
	_, present := r["👍"]
	assert.False(t, present)
}

func TestMessageStoreToggleReactionKeepsOtherUsers(t *testing.T) {
	store := NewMessageStore(0, 0)
	m := store.AppendPublic(text("hi"))

	_, _ = store.ToggleReaction(m.ID, "alice", "🎉", RoomScope())
	_, _ = store.ToggleReaction(m.ID, "bob", "🎉", RoomScope())
	r, err := store.ToggleReaction(m.ID, "alice", "🎉", RoomScope())
	require.NoError(t, err)
	assert.Equal(t, models.Reactions{"🎉": {"bob"}}, r)
}

func TestMessageStoreToggleReactionScopes(t *testing.T) {
	store := NewMessageStore(0, 0)
	key := models.NewConversationKey("a", "b")
	room := store.AppendPublic(text("room"))
	priv := store.AppendPrivate(key, text("private"))

	_, err := store.ToggleReaction(priv.ID, "alice", "👍", RoomScope())
	require.ErrorIs(t, err, ErrMessageNotFound)

	_, err = store.ToggleReaction(room.ID, "alice", "👍", PrivateScope(key))
	require.ErrorIs(t, err, ErrMessageNotFound)

	_, err = store.ToggleReaction(priv.ID, "alice", "👍", PrivateScope(models.NewConversationKey("a", "c")))
	require.ErrorIs(t, err, ErrMessageNotFound)

	r, err := store.ToggleReaction(priv.ID, "alice", "👍", PrivateScope(key))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, r["👍"])
}

func TestMessageStoreReturnsCopies(t *testing.T) {
	store := NewMessageStore(0, 0)
	m := store.AppendPublic(text("hi"))
	m.Reactions["x"] = []string{"mallory"}

	r, err := store.ToggleReaction(m.ID, "alice", "👍", RoomScope())
	require.NoError(t, err)
	r["👍"] = append(r["👍"], "mallory")

	got := store.GetPublic(1)[0]
	assert.Equal(t, models.Reactions{"👍": {"alice"}}, got.Reactions)
}
