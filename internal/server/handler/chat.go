package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatpilot/internal/entity"
	"chatpilot/internal/store"
)

type ChatHandler struct {
	store store.Store
}

func NewChatHandler(st store.Store) *ChatHandler {
	return &ChatHandler{store: st}
}

// HandleConversations lists contact summaries for a user, newest first.
func (h *ChatHandler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	contacts, err := h.store.ConversationsForUser(r.Context(), userID)
	if err != nil {
		log.Printf("handler: list conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}
	if contacts == nil {
		contacts = []entity.ContactSummary{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleMessages returns the ordered, decrypted message sequence for a
// room ("idA_idB").
func (h *ChatHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	a, b, ok := entity.SplitRoom(r.PathValue("room"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	msgs, err := h.store.MessagesByPair(r.Context(), a, b)
	if err != nil {
		log.Printf("handler: list messages: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []entity.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleConversationStatus reports the conversation between two users or
// {"status":"new"} when none exists yet.
func (h *ChatHandler) HandleConversationStatus(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.ConversationByPair(r.Context(), r.PathValue("id1"), r.PathValue("id2"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "new"})
		return
	}
	if err != nil {
		log.Printf("handler: conversation status: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type conversationUpdate struct {
	ConversationID string                    `json:"conversationId"`
	Status         entity.ConversationStatus `json:"status"`
	AcceptedBy     string                    `json:"acceptedBy,omitempty"`
}

// HandleConversationUpdate performs the accept/block transition. The
// transition table is enforced here, in the core, not in the UI.
// Accepting requires the acceptor's identity: only the participant who
// did not initiate the conversation may accept it. Blocking carries no
// actor requirement; either side can block.
func (h *ChatHandler) HandleConversationUpdate(w http.ResponseWriter, r *http.Request) {
	var req conversationUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversationId and status required")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if req.Status == entity.StatusAccepted {
		if req.AcceptedBy == "" {
			writeError(w, http.StatusBadRequest, "acceptedBy required to accept")
			return
		}
		conv, err := h.store.ConversationByID(r.Context(), req.ConversationID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		if err != nil {
			log.Printf("handler: conversation update: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to update conversation")
			return
		}
		if !conv.Has(req.AcceptedBy) || req.AcceptedBy == conv.InitiatedBy {
			writeError(w, http.StatusForbidden, "only the invited participant can accept")
			return
		}
	}
	conv, err := h.store.SetConversationStatus(r.Context(), req.ConversationID, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, store.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal status transition")
	case err != nil:
		log.Printf("handler: conversation update: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update conversation")
	default:
		writeJSON(w, http.StatusOK, conv)
	}
}
