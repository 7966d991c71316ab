package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(hub *Hub, roomID, userID string) *Client {
	return &Client{
		roomID: roomID,
		userID: userID,
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		logger: zap.NewNop(),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func waitForRoomSize(t *testing.T, hub *Hub, roomID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.RoomSize(roomID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d", roomID, want)
}

func TestHub_PublishReachesRoomMembers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	first := newTestClient(hub, "org-1", "user-1")
	second := newTestClient(hub, "org-1", "user-2")
	hub.register <- first
	hub.register <- second
	waitForRoomSize(t, hub, "org-1", 2)

	hub.Publish("org-1", "deviceHeartbeat", map[string]string{"deviceId": "dev-1"})

	for _, c := range []*Client{first, second} {
		event := receive(t, c)
		assert.Equal(t, "deviceHeartbeat", event.Event)
		assert.JSONEq(t, `{"deviceId":"dev-1"}`, string(event.Data))
		assert.NotZero(t, event.Timestamp)
	}

	hub.unregister <- first
	hub.unregister <- second
	waitForRoomSize(t, hub, "org-1", 0)
	hub.Stop()
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	member := newTestClient(hub, "org-1", "user-1")
	outsider := newTestClient(hub, "org-2", "user-2")
	hub.register <- member
	hub.register <- outsider
	waitForRoomSize(t, hub, "org-1", 1)
	waitForRoomSize(t, hub, "org-2", 1)

	hub.Publish("org-1", "deviceHeartbeat", map[string]string{"deviceId": "dev-1"})

	receive(t, member)
	select {
	case <-outsider.send:
		t.Fatal("event leaked across rooms")
	case <-time.After(50 * time.Millisecond):
	}

	hub.unregister <- member
	hub.unregister <- outsider
	waitForRoomSize(t, hub, "org-2", 0)
	hub.Stop()
}

func TestHub_PublishToEmptyRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	// No members; the event is dropped without blocking the loop.
	hub.Publish("org-empty", "deviceHeartbeat", map[string]string{"deviceId": "dev-1"})
	assert.Equal(t, 0, hub.RoomSize("org-empty"))
}

func TestHub_DropAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Stop()

	// Fill the unregister buffer; with no event loop running, one more send
	// would block forever without the shutdown path.
	for i := 0; i < cap(hub.unregister); i++ {
		hub.unregister <- newTestClient(hub, "org-1", "user-buf")
	}

	done := make(chan struct{})
	go func() {
		hub.drop(newTestClient(hub, "org-1", "user-late"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	stray := newTestClient(hub, "org-1", "user-1")
	hub.unregister <- stray

	// The send channel stays open for clients the hub never saw.
	hub.Publish("org-1", "deviceHeartbeat", nil)
	assert.Equal(t, 0, hub.RoomSize("org-1"))
}
