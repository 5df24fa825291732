package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatpilot/internal/entity"
	"chatpilot/internal/store"
	"chatpilot/internal/util/cryptutil"
)

const testBotEmail = "bot@chatpilot.ai"

func newTestStore() *store.Memory {
	return store.NewMemory(cryptutil.New("test-secret"), testBotEmail)
}

func doGet(h http.HandlerFunc, target string, pathValues map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func doPost(h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleMessages(t *testing.T) {
	st := newTestStore()
	_, err := st.AppendMessage(context.Background(), entity.Message{SenderID: "a", ReceiverID: "b", Content: "hello"})
	require.NoError(t, err)
	h := NewChatHandler(st)

	rec := doGet(h.HandleMessages, "/api/messages/a_b", map[string]string{"room": "a_b"})
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []entity.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Content, "messages must come back decrypted")
}

func TestHandleMessagesEmptyRoom(t *testing.T) {
	h := NewChatHandler(newTestStore())
	rec := doGet(h.HandleMessages, "/api/messages/a_b", map[string]string{"room": "a_b"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleMessagesBadRoom(t *testing.T) {
	h := NewChatHandler(newTestStore())
	rec := doGet(h.HandleMessages, "/api/messages/nounderscore", map[string]string{"room": "nounderscore"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleConversationStatusNew(t *testing.T) {
	h := NewChatHandler(newTestStore())
	rec := doGet(h.HandleConversationStatus, "/api/conversation/status/a/b", map[string]string{"id1": "a", "id2": "b"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "new", body["status"])
}

func TestHandleConversationStatusExisting(t *testing.T) {
	st := newTestStore()
	conv, err := st.GetOrCreateConversation(context.Background(), "a", "b", "a")
	require.NoError(t, err)
	h := NewChatHandler(st)

	// Reversed id order resolves the same conversation.
	rec := doGet(h.HandleConversationStatus, "/api/conversation/status/b/a", map[string]string{"id1": "b", "id2": "a"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got entity.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, conv.ID, got.ID)
	require.Equal(t, entity.StatusPending, got.Status)
}

func TestHandleConversationUpdateAccept(t *testing.T) {
	st := newTestStore()
	conv, err := st.GetOrCreateConversation(context.Background(), "a", "b", "a")
	require.NoError(t, err)
	h := NewChatHandler(st)

	rec := doPost(h.HandleConversationUpdate, "/api/conversation/update",
		`{"conversationId":"`+conv.ID+`","status":"accepted","acceptedBy":"b"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got entity.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, entity.StatusAccepted, got.Status)
}

func TestHandleConversationUpdateAcceptActorChecks(t *testing.T) {
	newPending := func(t *testing.T) (*ChatHandler, string) {
		t.Helper()
		st := newTestStore()
		conv, err := st.GetOrCreateConversation(context.Background(), "a", "b", "a")
		require.NoError(t, err)
		return NewChatHandler(st), conv.ID
	}

	t.Run("initiator cannot self-accept", func(t *testing.T) {
		h, id := newPending(t)
		rec := doPost(h.HandleConversationUpdate, "/api/conversation/update",
			`{"conversationId":"`+id+`","status":"accepted","acceptedBy":"a"}`)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("outsider cannot accept", func(t *testing.T) {
		h, id := newPending(t)
		rec := doPost(h.HandleConversationUpdate, "/api/conversation/update",
			`{"conversationId":"`+id+`","status":"accepted","acceptedBy":"mallory"}`)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("acceptedBy is mandatory", func(t *testing.T) {
		h, id := newPending(t)
		rec := doPost(h.HandleConversationUpdate, "/api/conversation/update",
			`{"conversationId":"`+id+`","status":"accepted"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("blocking needs no actor", func(t *testing.T) {
		h, id := newPending(t)
		rec := doPost(h.HandleConversationUpdate, "/api/conversation/update",
			`{"conversationId":"`+id+`","status":"blocked"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleConversationUpdateIllegalTransition(t *testing.T) {
	st := newTestStore()
	conv, err := st.GetOrCreateConversation(context.Background(), "a", "b", "a")
	require.NoError(t, err)
	_, err = st.SetConversationStatus(context.Background(), conv.ID, entity.StatusBlocked)
	require.NoError(t, err)
	h := NewChatHandler(st)

	rec := doPost(h.HandleConversationUpdate, "/api/conversation/update",
		`{"conversationId":"`+conv.ID+`","status":"accepted","acceptedBy":"b"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleConversationUpdateValidation(t *testing.T) {
	h := NewChatHandler(newTestStore())

	rec := doPost(h.HandleConversationUpdate, "/api/conversation/update", `{"status":"accepted"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing conversationId")

	rec = doPost(h.HandleConversationUpdate, "/api/conversation/update", `{"conversationId":"x","status":"frozen"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "unknown status")

	rec = doPost(h.HandleConversationUpdate, "/api/conversation/update", `{"conversationId":"nope","status":"accepted","acceptedBy":"b"}`)
	require.Equal(t, http.StatusNotFound, rec.Code, "unknown conversation")
}

func TestHandleConversationsOrdering(t *testing.T) {
	st := newTestStore()
	ctx := context.Background()
	_, _ = st.CreateUser(ctx, entity.User{ID: "b1", Username: "Bea", Email: "bea@x.com", PhoneNumber: "1"}, "")
	_, _ = st.CreateUser(ctx, entity.User{ID: "c1", Username: "Cay", Email: "cay@x.com", PhoneNumber: "2"}, "")
	convB, _ := st.GetOrCreateConversation(ctx, "me", "b1", "me")
	convC, _ := st.GetOrCreateConversation(ctx, "me", "c1", "me")
	require.NoError(t, st.TouchLastMessage(ctx, convB.ID, entity.MessageSnapshot{Content: "old"}))
	require.NoError(t, st.TouchLastMessage(ctx, convC.ID, entity.MessageSnapshot{Content: "fresh"}))
	h := NewChatHandler(st)

	rec := doGet(h.HandleConversations, "/api/conversations/me", map[string]string{"userId": "me"})
	require.Equal(t, http.StatusOK, rec.Code)

	var contacts []entity.ContactSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&contacts))
	require.Len(t, contacts, 2)
	require.Equal(t, "Cay", contacts[0].Username)
}

func TestHandleHealth(t *testing.T) {
	rec := doGet(HandleHealth, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "alive", body["status"])
}
