package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatpilot/internal/entity"
	"chatpilot/internal/util/cryptutil"
)

// Memory is the in-process backend used by tests and DSN-less runs.
// The pair-key map plays the role of the Postgres unique index: the
// find-or-create race is closed under one mutex.
type Memory struct {
	box      *cryptutil.Box
	botEmail string

	mu        sync.RWMutex
	messages  []entity.Message // stored encrypted, insertion order
	convByKey map[string]*entity.Conversation
	convByID  map[string]*entity.Conversation
	users     map[string]entity.User
	passwords map[string]string
	now       func() time.Time
}

// NewMemory builds an empty in-memory store. botEmail marks the automated
// participant for the pending write policy.
func NewMemory(box *cryptutil.Box, botEmail string) *Memory {
	return &Memory{
		box:       box,
		botEmail:  botEmail,
		convByKey: make(map[string]*entity.Conversation),
		convByID:  make(map[string]*entity.Conversation),
		users:     make(map[string]entity.User),
		passwords: make(map[string]string),
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) Close() error { return nil }

func (m *Memory) AppendMessage(ctx context.Context, msg entity.Message) (entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}
	if msg.Status == "" {
		msg.Status = entity.MessageSent
	}
	msg.Room = entity.RoomID(msg.SenderID, msg.ReceiverID)

	if conv, ok := m.convByKey[entity.PairKey(msg.SenderID, msg.ReceiverID)]; ok {
		if err := writePolicy(*conv, msg.SenderID, m.botIDLocked()); err != nil {
			return entity.Message{}, err
		}
	}

	stored := msg
	stored.Content = m.box.Encrypt(msg.Content)
	m.messages = append(m.messages, stored)
	return msg, nil
}

func (m *Memory) MessagesByPair(ctx context.Context, a, b string) ([]entity.Message, error) {
	key := entity.PairKey(a, b)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entity.Message
	for _, msg := range m.messages {
		if entity.PairKey(msg.SenderID, msg.ReceiverID) != key {
			continue
		}
		msg.Content = m.box.Decrypt(msg.Content)
		out = append(out, msg)
	}
	// Insertion order already breaks ties; only reorder on timestamp.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) GetOrCreateConversation(ctx context.Context, a, b, initiator string) (entity.Conversation, error) {
	key := entity.PairKey(a, b)
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.convByKey[key]; ok {
		return *conv, nil
	}
	pa, pb, _ := entity.SplitRoom(key)
	conv := &entity.Conversation{
		ID:           uuid.NewString(),
		ParticipantA: pa,
		ParticipantB: pb,
		Status:       entity.StatusPending,
		InitiatedBy:  initiator,
		UpdatedAt:    m.now(),
	}
	m.convByKey[key] = conv
	m.convByID[conv.ID] = conv
	return *conv, nil
}

func (m *Memory) ConversationByPair(ctx context.Context, a, b string) (entity.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conv, ok := m.convByKey[entity.PairKey(a, b)]; ok {
		return *conv, nil
	}
	return entity.Conversation{}, ErrNotFound
}

func (m *Memory) ConversationByID(ctx context.Context, id string) (entity.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conv, ok := m.convByID[id]; ok {
		return *conv, nil
	}
	return entity.Conversation{}, ErrNotFound
}

func (m *Memory) TouchLastMessage(ctx context.Context, conversationID string, snap entity.MessageSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convByID[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.LastMessage = &snap
	conv.UpdatedAt = m.now()
	return nil
}

func (m *Memory) SetConversationStatus(ctx context.Context, conversationID string, status entity.ConversationStatus) (entity.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convByID[conversationID]
	if !ok {
		return entity.Conversation{}, ErrNotFound
	}
	if !conv.Status.CanTransition(status) {
		return entity.Conversation{}, ErrIllegalTransition
	}
	conv.Status = status
	conv.UpdatedAt = m.now()
	return *conv, nil
}

func (m *Memory) ConversationsForUser(ctx context.Context, userID string) ([]entity.ContactSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entity.ContactSummary
	for _, conv := range m.convByKey {
		if !conv.Has(userID) {
			continue
		}
		peer := m.users[conv.Other(userID)]
		out = append(out, entity.ContactSummary{
			User:           peer,
			ConversationID: conv.ID,
			Status:         conv.Status,
			LastMessage:    conv.LastMessage,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) CreateUser(ctx context.Context, u entity.User, passwordHash string) (entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.PhoneNumber == u.PhoneNumber {
			return entity.User{}, ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = u
	m.passwords[u.ID] = passwordHash
	return u, nil
}

func (m *Memory) UserByID(ctx context.Context, id string) (entity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return entity.User{}, ErrNotFound
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (entity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return entity.User{}, ErrNotFound
}

func (m *Memory) UserByPhone(ctx context.Context, phone string) (entity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return entity.User{}, ErrNotFound
}

func (m *Memory) Users(ctx context.Context) ([]entity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// botIDLocked resolves the automated participant's id, empty when absent.
func (m *Memory) botIDLocked() string {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, m.botEmail) {
			return u.ID
		}
	}
	return ""
}
