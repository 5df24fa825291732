package entity

import (
	"sort"
	"strings"
	"time"
)

// ConversationStatus is the admission state between two participants.
type ConversationStatus string

const (
	StatusPending  ConversationStatus = "pending"
	StatusAccepted ConversationStatus = "accepted"
	StatusBlocked  ConversationStatus = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusBlocked:
		return true
	}
	return false
}

// CanTransition reports whether a conversation may move from s to next.
// blocked is terminal; accepted can only be blocked; pending can go either way.
func (s ConversationStatus) CanTransition(next ConversationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusAccepted || next == StatusBlocked
	case StatusAccepted:
		return next == StatusBlocked
	default:
		return false
	}
}

// MessageStatus tracks per-message delivery state.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// User is the public identity record. Passwords never leave the store.
type User struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// Message is an append-only chat message. Content is plaintext everywhere
// outside the store; the store encrypts at rest.
type Message struct {
	ID            string        `json:"_id"`
	Room          string        `json:"room,omitempty"`
	SenderID      string        `json:"senderId"`
	ReceiverID    string        `json:"receiverId"`
	Content       string        `json:"content"`
	Timestamp     time.Time     `json:"timestamp"`
	IsAIGenerated bool          `json:"isAiGenerated"`
	Status        MessageStatus `json:"status"`
}

// Snapshot reduces a message to the summary embedded in a conversation.
func (m Message) Snapshot() MessageSnapshot {
	return MessageSnapshot{
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

// MessageSnapshot is the lastMessage summary carried on a conversation.
type MessageSnapshot struct {
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation tracks admission state for one unordered participant pair.
// ParticipantA/ParticipantB are stored in canonical (sorted) order so the
// pair key is stable regardless of who wrote first.
type Conversation struct {
	ID           string             `json:"_id"`
	ParticipantA string             `json:"participantA"`
	ParticipantB string             `json:"participantB"`
	Status       ConversationStatus `json:"status"`
	InitiatedBy  string             `json:"initiatedBy"`
	LastMessage  *MessageSnapshot   `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Has reports whether userID is one of the two participants.
func (c Conversation) Has(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// ContactSummary is one row of a user's conversation list: the peer's
// public profile annotated with the conversation state.
type ContactSummary struct {
	User
	ConversationID string             `json:"conversationId"`
	Status         ConversationStatus `json:"status"`
	LastMessage    *MessageSnapshot   `json:"lastMessage,omitempty"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// RoomID derives the shared channel identifier for two users. Both sides
// compute the same value because the ids are sorted before joining.
func RoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// PairKey is the natural key for a conversation. It is identical to the
// room id on purpose: one conversation per room.
func PairKey(a, b string) string {
	return RoomID(a, b)
}

// SplitRoom recovers the two participant ids from a room identifier.
func SplitRoom(room string) (string, string, bool) {
	a, b, ok := strings.Cut(room, "_")
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}
