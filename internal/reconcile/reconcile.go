// Package reconcile is the client-side reconciliation core: it absorbs
// at-least-once, possibly out-of-order delivery from the router and the
// REST read path into a deduplicated message log and a recency-ordered
// contact list. The server never imports it; it exists so every client
// of the service satisfies one audited contract.
package reconcile

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"chatpilot/internal/entity"
)

// MessageLog is a de-duplicated, timestamp-ordered message list. The
// dual-addressed delivery of new messages (room plus receiver id) makes
// duplicates normal, not exceptional.
type MessageLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
	msgs []entity.Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{seen: make(map[string]struct{})}
}

// Add appends msg unless a message with the same id is already present.
// It reports whether the message was new.
func (l *MessageLog) Add(msg entity.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[msg.ID]; ok {
		return false
	}
	l.seen[msg.ID] = struct{}{}
	l.msgs = append(l.msgs, msg)
	return true
}

// Replace resets the log from a full REST fetch, keeping dedup intact.
func (l *MessageLog) Replace(msgs []entity.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{}, len(msgs))
	l.msgs = l.msgs[:0]
	for _, m := range msgs {
		if _, ok := l.seen[m.ID]; ok {
			continue
		}
		l.seen[m.ID] = struct{}{}
		l.msgs = append(l.msgs, m)
	}
}

// Sorted returns the messages in timestamp order; arrival order breaks
// ties so concurrent writers interleave stably.
func (l *MessageLog) Sorted() []entity.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]entity.Message{}, l.msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len reports the number of distinct messages.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// ContactList keeps conversation summaries newest-first.
type ContactList struct {
	mu       sync.Mutex
	contacts []entity.ContactSummary
}

func NewContactList(initial []entity.ContactSummary) *ContactList {
	return &ContactList{contacts: append([]entity.ContactSummary{}, initial...)}
}

// Upsert moves a known peer to the front with a fresh snapshot and
// reports whether the peer was found. Unknown peers are left for the
// next full contact fetch.
func (c *ContactList) Upsert(peerID string, snap entity.MessageSnapshot, updatedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.contacts {
		if c.contacts[i].ID != peerID {
			continue
		}
		contact := c.contacts[i]
		contact.LastMessage = &snap
		contact.UpdatedAt = updatedAt
		c.contacts = append(c.contacts[:i], c.contacts[i+1:]...)
		c.contacts = append([]entity.ContactSummary{contact}, c.contacts...)
		return true
	}
	return false
}

// Snapshot returns the current ordering.
func (c *ContactList) Snapshot() []entity.ContactSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.ContactSummary{}, c.contacts...)
}

// Cell is an always-current reference cell. Event callbacks read through
// Load at dispatch time instead of capturing a value at subscription
// time, which is how stale-closure bugs happen.
type Cell[T any] struct {
	v atomic.Pointer[T]
}

func (c *Cell[T]) Store(v T) { c.v.Store(&v) }

func (c *Cell[T]) Load() (T, bool) {
	p := c.v.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
