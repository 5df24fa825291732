// Package archive exports conversation transcripts to an S3-compatible
// bucket. The sink is optional; when unconfigured the server reports the
// feature unavailable instead of failing startup.
package archive

import (
	"context"
	"sync"
	"time"
)

// Transcript is the exported payload for one room.
type Transcript struct {
	Room       string    `json:"room"`
	ExportedAt time.Time `json:"exportedAt"`
	Messages   any       `json:"messages"`
}

// Sink stores a serialized transcript and returns the object key.
type Sink interface {
	Put(ctx context.Context, room string, payload []byte) (string, error)
}

// MemorySink collects exports in memory for tests.
type MemorySink struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{Objects: make(map[string][]byte)}
}

func (m *MemorySink) Put(ctx context.Context, room string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objectKey(room, time.Now())
	m.Objects[key] = append([]byte{}, payload...)
	return key, nil
}
