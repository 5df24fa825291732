package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/bot"
	"chatpilot/internal/entity"
	"chatpilot/internal/hub"
	"chatpilot/internal/llm"
	"chatpilot/internal/store"
)

type wsFixture struct {
	store  *store.Memory
	hub    *hub.Hub
	server *httptest.Server
}

func newWSFixture(t *testing.T, responder *bot.Responder) *wsFixture {
	t.Helper()
	st := newTestStore()
	h := hub.New()
	wsh := NewWSHandler(st, h, responder)
	srv := httptest.NewServer(http.HandlerFunc(wsh.HandleWS))
	t.Cleanup(srv.Close)
	return &wsFixture{store: st, hub: h, server: srv}
}

// settle gives the read pumps time to process registrations sent on a
// different connection before the test proceeds.
func settle() { time.Sleep(200 * time.Millisecond) }

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "payload": payload}))
}

type wsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func expectNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var ev wsEvent
	err := conn.ReadJSON(&ev)
	require.Error(t, err, "unexpected event %q", ev.Event)
}

func TestWSSendMessageRelaysToPeer(t *testing.T) {
	f := newWSFixture(t, nil)
	alice := f.dial(t)
	bob := f.dial(t)

	send(t, alice, hub.EventRegisterUser, "alice")
	send(t, alice, hub.EventJoinRoom, "alice_bob")
	send(t, bob, hub.EventRegisterUser, "bob")
	settle()

	send(t, alice, hub.EventSendMessage, map[string]any{
		"senderId": "alice", "receiverId": "bob", "content": "hi bob",
	})

	ev := readEvent(t, bob)
	require.Equal(t, hub.EventReceiveMessage, ev.Event)
	var msg entity.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &msg))
	require.Equal(t, "hi bob", msg.Content)
	require.Equal(t, "alice_bob", msg.Room)
	require.NotEmpty(t, msg.ID)

	// The sender's own session must not echo.
	expectNothing(t, alice)

	// The message survives the socket: the REST read path sees it.
	stored, err := f.store.MessagesByPair(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestWSSendIntoBlockedConversation(t *testing.T) {
	f := newWSFixture(t, nil)
	ctx := context.Background()
	conv, err := f.store.GetOrCreateConversation(ctx, "alice", "bob", "alice")
	require.NoError(t, err)
	_, err = f.store.SetConversationStatus(ctx, conv.ID, entity.StatusBlocked)
	require.NoError(t, err)

	alice := f.dial(t)
	send(t, alice, hub.EventRegisterUser, "alice")
	send(t, alice, hub.EventSendMessage, map[string]any{
		"senderId": "alice", "receiverId": "bob", "content": "let me in",
	})

	ev := readEvent(t, alice)
	require.Equal(t, hub.EventError, ev.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "conversation is blocked", payload["message"])

	stored, err := f.store.MessagesByPair(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Empty(t, stored, "rejected message must not persist")
}

func TestWSPendingApprovalReportedToSender(t *testing.T) {
	f := newWSFixture(t, nil)
	ctx := context.Background()
	_, err := f.store.GetOrCreateConversation(ctx, "alice", "bob", "alice")
	require.NoError(t, err)

	bob := f.dial(t)
	send(t, bob, hub.EventRegisterUser, "bob")
	send(t, bob, hub.EventSendMessage, map[string]any{
		"senderId": "bob", "receiverId": "alice", "content": "hello?",
	})

	ev := readEvent(t, bob)
	require.Equal(t, hub.EventError, ev.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "conversation is pending approval", payload["message"])
}

func TestWSAcceptRequestRelayedToInitiator(t *testing.T) {
	f := newWSFixture(t, nil)
	alice := f.dial(t)
	bob := f.dial(t)
	send(t, alice, hub.EventRegisterUser, "alice")
	send(t, bob, hub.EventRegisterUser, "bob")
	settle()

	send(t, bob, hub.EventAcceptRequest, map[string]any{
		"conversationId": "c1", "acceptedBy": "bob", "receiverId": "alice",
	})

	ev := readEvent(t, alice)
	require.Equal(t, hub.EventRequestAccepted, ev.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "c1", payload["conversationId"])
	expectNothing(t, bob)
}

func TestWSBotConversationFlow(t *testing.T) {
	st := newTestStore()
	botUser, err := st.CreateUser(context.Background(), entity.User{
		Username: "Pilot Bot", Email: testBotEmail, PhoneNumber: "0000000000",
	}, "")
	require.NoError(t, err)

	h := hub.New()
	responder := bot.New(st, h, llm.NewFakeClient("fake", llm.FakeResult{Text: "Greetings, human."}), testBotEmail)
	responder.Delay = 0

	wsh := NewWSHandler(st, h, responder)
	srv := httptest.NewServer(http.HandlerFunc(wsh.HandleWS))
	t.Cleanup(srv.Close)
	f := &wsFixture{store: st, hub: h, server: srv}

	alice := f.dial(t)
	send(t, alice, hub.EventRegisterUser, "alice")
	send(t, alice, hub.EventSendMessage, map[string]any{
		"senderId": "alice", "receiverId": botUser.ID, "content": "hello bot",
	})

	var events []string
	for i := 0; i < 3; i++ {
		events = append(events, readEvent(t, alice).Event)
	}
	require.Equal(t, []string{hub.EventBotTyping, hub.EventBotStopTyping, hub.EventReceiveMessage}, events)

	conv, err := st.ConversationByPair(context.Background(), "alice", botUser.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", conv.InitiatedBy)

	msgs, err := st.MessagesByPair(context.Background(), "alice", botUser.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.True(t, msgs[1].IsAIGenerated)
	require.Equal(t, "Greetings, human.", msgs[1].Content)
}
