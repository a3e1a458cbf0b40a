package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	router := chat.NewRouter(
		repositories.NewSessionRegistry(),
		repositories.NewTypingTracker(),
		repositories.NewMessageStore(0, 0),
	)
	hub := NewHub(router, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub, cancel
}

func fakeClient(hub *Hub, id string, buffer int) *Client {
	return &Client{hub: hub, id: id, send: make(chan []byte, buffer), info: ConnInfo{ConnID: id}}
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()
	c := fakeClient(hub, id, sendBufferSize)
	require.NoError(t, hub.Register(c))
	f := next(t, c)
	require.Equal(t, chat.OutConnected, f.Event)
	return c
}

func next(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed for %s", c.id)
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame on %s", c.id)
		return frame{}
	}
}

func nextEvents(t *testing.T, c *Client, n int) []string {
	t.Helper()
	events := make([]string, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, next(t, c).Event)
	}
	return events
}

func send(hub *Hub, c *Client, ev chat.Event) {
	hub.inbound <- inboundFrame{client: c, event: ev}
}

func join(t *testing.T, hub *Hub, c *Client, username string) {
	t.Helper()
	send(hub, c, chat.Join{Username: username})
	require.Equal(t, []string{chat.OutPresence, chat.OutRoomSystemMessage, chat.OutRoomHistory}, nextEvents(t, c, 3))
}

func requireClosed(t *testing.T, c *Client) {
	t.Helper()
	select {
	case _, ok := <-c.send:
		require.False(t, ok, "expected send channel of %s to be closed", c.id)
	case <-time.After(2 * time.Second):
		t.Fatalf("send channel of %s not closed", c.id)
	}
}

func TestHubRegisterSendsSessionID(t *testing.T) {
	hub, _ := startHub(t)
	c := fakeClient(hub, "s1", sendBufferSize)
	require.NoError(t, hub.Register(c))

	f := next(t, c)
	assert.Equal(t, chat.OutConnected, f.Event)
	assert.JSONEq(t, `{"sessionId":"s1"}`, string(f.Data))
}

func TestHubJoinFanout(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	join(t, hub, alice, "alice")
	bob := connect(t, hub, "s2")
	join(t, hub, bob, "bob")

	// alice only sees the broadcasts of bob's join, not his history
	assert.Equal(t, []string{chat.OutPresence, chat.OutRoomSystemMessage}, nextEvents(t, alice, 2))
	assert.Empty(t, alice.send)
}

func TestHubBroadcastsReachConnectionsBeforeJoin(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	lurker := connect(t, hub, "s2")

	join(t, hub, alice, "alice")
	assert.Equal(t, []string{chat.OutPresence, chat.OutRoomSystemMessage}, nextEvents(t, lurker, 2))

	send(hub, alice, chat.SendPublic{Body: "hello"})
	require.Equal(t, chat.OutPublicMessage, next(t, alice).Event)
	assert.Equal(t, chat.OutPublicMessage, next(t, lurker).Event)

	// the history reply of a later join goes to the joiner alone
	join(t, hub, lurker, "lurker")
	assert.Equal(t, []string{chat.OutPresence, chat.OutRoomSystemMessage}, nextEvents(t, alice, 2))
	assert.Empty(t, alice.send)
}

func TestHubPrivateMessageReachesOnlyParticipants(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	join(t, hub, alice, "alice")
	bob := connect(t, hub, "s2")
	join(t, hub, bob, "bob")
	nextEvents(t, alice, 2)
	carol := connect(t, hub, "s3")
	join(t, hub, carol, "carol")
	nextEvents(t, alice, 2)
	nextEvents(t, bob, 2)

	send(hub, alice, chat.SendPrivate{To: "s2", Body: "psst"})

	fa := next(t, alice)
	fb := next(t, bob)
	assert.Equal(t, chat.OutPrivateMessage, fa.Event)
	assert.Equal(t, chat.OutPrivateMessage, fb.Event)
	assert.JSONEq(t, string(fa.Data), string(fb.Data))
	assert.Empty(t, carol.send)
}

func TestHubDisconnectExcludesDepartedSession(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	join(t, hub, alice, "alice")
	bob := connect(t, hub, "s2")
	join(t, hub, bob, "bob")
	nextEvents(t, alice, 2)

	hub.unregister <- bob
	requireClosed(t, bob)

	assert.Equal(t, []string{chat.OutRoomSystemMessage, chat.OutPresence, chat.OutTypingUsers}, nextEvents(t, alice, 3))

	sessions, err := hub.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice", sessions[0].Username)
}

func TestHubDecodeErrorAnswersOriginatorOnly(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	bob := connect(t, hub, "s2")

	_, err := chat.DecodeEvent([]byte(`{"event":"launchRockets"}`))
	hub.inbound <- inboundFrame{client: alice, err: err}

	f := next(t, alice)
	require.Equal(t, chat.OutError, f.Event)
	var payload chat.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "InvalidEvent", payload.Code)
	assert.Empty(t, bob.send)
}

func TestHubRejectsEventBeforeJoin(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")

	send(hub, alice, chat.SendPublic{Body: "hello"})

	f := next(t, alice)
	require.Equal(t, chat.OutError, f.Event)
	assert.Contains(t, string(f.Data), `"UnknownSession"`)
}

func TestHubEvictsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	join(t, hub, alice, "alice")

	slow := fakeClient(hub, "s2", 1)
	require.NoError(t, hub.Register(slow))
	// connected fills the buffer; the next broadcast overflows it
	send(hub, alice, chat.SendPublic{Body: "one"})
	require.Equal(t, chat.OutPublicMessage, next(t, alice).Event)

	raw, ok := <-slow.send
	require.True(t, ok)
	assert.Contains(t, string(raw), chat.OutConnected)
	requireClosed(t, slow)

	// the read pump reports the closed connection; no double close
	hub.unregister <- slow
	send(hub, alice, chat.SendPublic{Body: "two"})
	assert.Equal(t, chat.OutPublicMessage, next(t, alice).Event)
}

func TestHubIgnoresFramesFromUnknownClients(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	ghost := fakeClient(hub, "ghost", 4)

	send(hub, ghost, chat.Join{Username: "ghost"})
	send(hub, alice, chat.Join{Username: "alice"})

	f := next(t, alice)
	require.Equal(t, chat.OutPresence, f.Event)
	assert.NotContains(t, string(f.Data), "ghost")
	assert.Empty(t, ghost.send)
}

func TestHubRecentMessagesQuery(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(t, hub, "s1")
	join(t, hub, alice, "alice")

	for _, body := range []string{"a", "b", "c"} {
		send(hub, alice, chat.SendPublic{Body: body})
		next(t, alice)
	}

	msgs, err := hub.RecentMessages(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Body)
	assert.Equal(t, "c", msgs[1].Body)

	msgs[0].Body = "tampered"
	again, err := hub.RecentMessages(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "b", again[0].Body)
}

func TestHubStopClosesClientsAndRejectsQueries(t *testing.T) {
	hub, cancel := startHub(t)
	alice := connect(t, hub, "s1")

	cancel()
	<-hub.Done()
	requireClosed(t, alice)

	_, err := hub.Sessions(context.Background())
	assert.ErrorIs(t, err, ErrHubStopped)
	assert.ErrorIs(t, hub.Register(fakeClient(hub, "late", 1)), ErrHubStopped)
}

func TestHubQueryHonoursContext(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()
	<-hub.Done()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	_, err := hub.RecentMessages(ctx, 10)
	assert.Error(t, err)
}

func TestHubDrainWaitsForPumps(t *testing.T) {
	hub, cancel := startHub(t)
	require.True(t, hub.pumps.add())

	drained := make(chan error, 1)
	go func() {
		cancel()
		drained <- hub.Drain(context.Background())
	}()

	select {
	case err := <-drained:
		t.Fatalf("drain returned before the pump finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	hub.pumps.done()
	select {
	case err := <-drained:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not return after the pump finished")
	}
	assert.False(t, hub.pumps.add(), "a drained hub accepts no new pumps")
}

func TestHubDrainHonoursContext(t *testing.T) {
	hub, cancel := startHub(t)
	require.True(t, hub.pumps.add())
	t.Cleanup(hub.pumps.done)
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, hub.Drain(ctx), context.DeadlineExceeded)
}

// sweepRecorder reports every ceiling pass the hub runs.
type sweepRecorder struct {
	*repositories.MessageStore
	ceiling int
	room    []*models.Message
	passes  chan int
}

func (s *sweepRecorder) EnforceCeilings() int {
	evicted := 0
	if n := len(s.room) - s.ceiling; n > 0 {
		evicted = n
		s.room = s.room[n:]
	}
	select {
	case s.passes <- evicted:
	default:
	}
	return evicted
}

func TestHubRunSweepsOnTicker(t *testing.T) {
	store := &sweepRecorder{
		MessageStore: repositories.NewMessageStore(0, 0),
		ceiling:      3,
		room:         make([]*models.Message, 5),
		passes:       make(chan int, 16),
	}
	router := chat.NewRouter(repositories.NewSessionRegistry(), repositories.NewTypingTracker(), store)
	hub := NewHub(router, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	defer func() {
		cancel()
		<-hub.Done()
	}()

	pass := func() int {
		select {
		case n := <-store.passes:
			return n
		case <-time.After(2 * time.Second):
			t.Fatal("hub never swept")
			return -1
		}
	}
	assert.Equal(t, 2, pass())
	assert.Equal(t, 0, pass())
	_, err := hub.Sessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.room, 3)
}
