package llm

import (
	"context"
	"log"
	"time"
)

const (
	attemptsPerCredential = 2
	attemptBackoff        = 2 * time.Second
)

// Failover walks an ordered credential list: each client gets up to two
// attempts with a fixed pause in between, except that quota/auth failures
// skip straight to the next credential. The zero list fails fast with
// ErrNoCredentials and no network call.
type Failover struct {
	clients []Client

	// Timeout bounds each underlying call when > 0. The provider's own
	// deadline is the only bound otherwise.
	Timeout time.Duration

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewFailover wraps the given clients in priority order.
func NewFailover(clients ...Client) *Failover {
	return &Failover{clients: clients, sleep: time.Sleep}
}

func (f *Failover) Name() string { return "failover" }

func (f *Failover) Close() error {
	var first error
	for _, c := range f.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Available reports whether at least one credential is configured.
func (f *Failover) Available() bool { return len(f.clients) > 0 }

func (f *Failover) GenerateText(ctx context.Context, prompt string) (string, error) {
	if len(f.clients) == 0 {
		return "", ErrNoCredentials
	}
	var last error
	for _, client := range f.clients {
		for attempt := 1; attempt <= attemptsPerCredential; attempt++ {
			text, err := f.generateOne(ctx, client, prompt)
			if err == nil {
				log.Printf("llm: success with %s", client.Name())
				return text, nil
			}
			last = err
			log.Printf("llm: %s attempt %d failed: %v", client.Name(), attempt, err)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if quotaOrAuth(err) {
				break // next credential immediately
			}
			if attempt < attemptsPerCredential {
				f.sleep(attemptBackoff)
			}
		}
	}
	return "", &ExhaustedError{Last: last}
}

func (f *Failover) generateOne(ctx context.Context, client Client, prompt string) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	return client.GenerateText(ctx, prompt)
}
