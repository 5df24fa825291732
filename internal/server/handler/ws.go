package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatpilot/internal/bot"
	"chatpilot/internal/entity"
	"chatpilot/internal/hub"
	"chatpilot/internal/store"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// WSHandler terminates the persistent client connection and feeds the
// router. One read pump runs in the handler; one writer goroutine drains
// the session channel and keeps the connection alive with pings.
type WSHandler struct {
	store     store.Store
	hub       *hub.Hub
	responder *bot.Responder
}

func NewWSHandler(st store.Store, h *hub.Hub, r *bot.Responder) *WSHandler {
	return &WSHandler{store: st, hub: h, responder: r}
}

type wsInbound struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type messageInput struct {
	Room       string    `json:"room"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type acceptRequest struct {
	ConversationID string `json:"conversationId"`
	AcceptedBy     string `json:"acceptedBy"`
	ReceiverID     string `json:"receiverId"`
}

func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	session := h.hub.Register()
	defer h.hub.Unregister(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("ws: set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-session.Out():
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(env); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		h.dispatch(ctx, session, in)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, session *hub.Session, in wsInbound) {
	switch in.Event {
	case hub.EventRegisterUser:
		var userID string
		if err := json.Unmarshal(in.Payload, &userID); err == nil && userID != "" {
			session.Subscribe(userID)
		}
	case hub.EventJoinRoom:
		var room string
		if err := json.Unmarshal(in.Payload, &room); err == nil && room != "" {
			session.Subscribe(room)
		}
	case hub.EventSendMessage:
		var input messageInput
		if err := json.Unmarshal(in.Payload, &input); err != nil {
			h.hub.Send(session, hub.EventError, map[string]string{"message": "invalid message payload"})
			return
		}
		h.handleSend(ctx, session, input)
	case hub.EventAcceptRequest:
		var req acceptRequest
		if err := json.Unmarshal(in.Payload, &req); err != nil || req.ReceiverID == "" {
			return
		}
		// The status write itself happens over REST; the channel only
		// relays the acceptance to the waiting initiator.
		h.hub.PublishExcept(session, hub.EventRequestAccepted, req, req.ReceiverID)
	default:
		log.Printf("ws: unknown event %q", in.Event)
	}
}

// handleSend persists, updates the conversation, relays to the room and
// the receiver's direct channel, and hands the message to the responder.
// A persistence failure is reported back to the sender; the message is
// never silently lost.
func (h *WSHandler) handleSend(ctx context.Context, session *hub.Session, input messageInput) {
	msg, err := h.store.AppendMessage(ctx, entity.Message{
		SenderID:   input.SenderID,
		ReceiverID: input.ReceiverID,
		Content:    input.Content,
		Timestamp:  input.Timestamp,
	})
	if err != nil {
		log.Printf("ws: append message: %v", err)
		h.hub.Send(session, hub.EventError, map[string]string{"message": sendFailureReason(err)})
		return
	}

	conv, err := h.store.GetOrCreateConversation(ctx, msg.SenderID, msg.ReceiverID, msg.SenderID)
	if err != nil {
		log.Printf("ws: get-or-create conversation: %v", err)
	} else if err := h.store.TouchLastMessage(ctx, conv.ID, msg.Snapshot()); err != nil {
		log.Printf("ws: touch conversation: %v", err)
	}

	// Dual addressing: the room covers a peer viewing the conversation,
	// the receiver id covers one connected elsewhere in the app.
	h.hub.PublishExcept(session, hub.EventReceiveMessage, msg, msg.Room, msg.ReceiverID)

	if h.responder != nil {
		h.responder.Maybe(msg)
	}
}

func sendFailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrPendingApproval):
		return "conversation is pending approval"
	case errors.Is(err, store.ErrBlocked):
		return "conversation is blocked"
	default:
		return "failed to save message"
	}
}
