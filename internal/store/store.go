// Package store is the durable layer for users, conversations and
// messages. Message bodies are encrypted at rest; every read path hands
// plaintext back to callers. Two backends exist: Postgres (pgx) for real
// deployments and an in-memory store for tests and DSN-less runs.
package store

import (
	"context"
	"errors"

	"chatpilot/internal/entity"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique constraint (email, phone)
	// would be violated.
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrIllegalTransition is returned for a disallowed status change.
	ErrIllegalTransition = errors.New("store: illegal status transition")
	// ErrPendingApproval is returned when the non-initiating participant
	// tries to write into a conversation that is still pending.
	ErrPendingApproval = errors.New("store: conversation pending approval")
	// ErrBlocked is returned for writes into a blocked conversation.
	ErrBlocked = errors.New("store: conversation blocked")
)

// Store is the persistence contract shared by both backends.
type Store interface {
	// AppendMessage assigns id/timestamp when absent, enforces the
	// admission policy, encrypts and persists the message, and returns
	// the stored record with plaintext content.
	AppendMessage(ctx context.Context, msg entity.Message) (entity.Message, error)
	// MessagesByPair returns every message exchanged between a and b,
	// ascending by timestamp with insertion order breaking ties.
	MessagesByPair(ctx context.Context, a, b string) ([]entity.Message, error)

	// GetOrCreateConversation finds the conversation for the unordered
	// pair or atomically creates it as pending. Concurrent first writes
	// from both directions must yield exactly one record.
	GetOrCreateConversation(ctx context.Context, a, b, initiator string) (entity.Conversation, error)
	ConversationByPair(ctx context.Context, a, b string) (entity.Conversation, error)
	ConversationByID(ctx context.Context, id string) (entity.Conversation, error)
	TouchLastMessage(ctx context.Context, conversationID string, snap entity.MessageSnapshot) error
	// SetConversationStatus enforces the transition table
	// (pending->accepted, pending->blocked, accepted->blocked).
	SetConversationStatus(ctx context.Context, conversationID string, status entity.ConversationStatus) (entity.Conversation, error)
	// ConversationsForUser lists contact summaries, newest first.
	ConversationsForUser(ctx context.Context, userID string) ([]entity.ContactSummary, error)

	CreateUser(ctx context.Context, u entity.User, passwordHash string) (entity.User, error)
	UserByID(ctx context.Context, id string) (entity.User, error)
	UserByEmail(ctx context.Context, email string) (entity.User, error)
	UserByPhone(ctx context.Context, phone string) (entity.User, error)
	Users(ctx context.Context) ([]entity.User, error)

	Close() error
}

// writePolicy applies the core admission rules shared by both backends.
// The automated participant is exempt from the pending rule so the bot
// can answer the very first inbound message.
func writePolicy(conv entity.Conversation, senderID, botID string) error {
	switch conv.Status {
	case entity.StatusBlocked:
		return ErrBlocked
	case entity.StatusPending:
		if senderID != conv.InitiatedBy && senderID != botID {
			return ErrPendingApproval
		}
	}
	return nil
}
