// Package llm wraps the generative text provider. GeminiClient is a thin
// per-credential client over the official genai SDK; Failover layers the
// ordered-credential retry policy on top. Cross-cutting behavior lives in
// the wrapper, never in the client itself.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredentials is returned when generation is requested with an
// empty credential list. No network attempt is made.
var ErrNoCredentials = errors.New("llm: no provider credentials configured")

// ErrEmptyResponse is returned when the provider answers with no usable
// candidate text.
var ErrEmptyResponse = errors.New("llm: empty response from provider")

// ExhaustedError reports that every credential and retry failed. Last is
// the final underlying error.
type ExhaustedError struct {
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("llm: all credentials exhausted: %v", e.Last)
}
func (e *ExhaustedError) Unwrap() error { return e.Last }

// Client generates free-form text for a prompt.
type Client interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

// quotaOrAuth classifies errors that make further retries with the same
// credential pointless: rate limiting and invalid/forbidden keys.
func quotaOrAuth(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"429",
		"RESOURCE_EXHAUSTED",
		"API_KEY_INVALID",
		"PERMISSION_DENIED",
		"quota",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
