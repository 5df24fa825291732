package suggest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatpilot/internal/llm"
)

const suggestionCount = 3

// autoSendThreshold is the strict lower bound for unattended sending.
const autoSendThreshold = 90

// AutoReply is the autonomous-mode result: one reply plus the provider's
// self-reported confidence.
type AutoReply struct {
	Reply      string `json:"reply"`
	Confidence int    `json:"confidence_score"`
}

// ShouldAutoSend reports whether the reply may be sent unattended.
// Confidence strictly above the threshold is the only condition.
func (r AutoReply) ShouldAutoSend() bool { return r.Confidence > autoSendThreshold }

// Generator is the provider surface the pipeline needs; *llm.Failover
// satisfies it.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Pipeline turns chat history into suggestions, auto-replies or drafts.
type Pipeline struct {
	LLM Generator
}

func New(gen Generator) *Pipeline { return &Pipeline{LLM: gen} }

// Interactive returns reply suggestions for the tail of history: exactly
// three on any parseable output, a single degraded notice otherwise. The
// only error is the fail-fast missing-credentials case.
func (p *Pipeline) Interactive(ctx context.Context, history []Turn) ([]string, error) {
	history = Clip(history, Turn{})
	text, err := p.LLM.GenerateText(ctx, interactivePrompt(history))
	if err != nil {
		if errors.Is(err, llm.ErrNoCredentials) {
			return nil, err
		}
		log.Printf("suggest: interactive generation failed: %v", err)
		return []string{fmt.Sprintf("(System: %s)", errorMessage(err))}, nil
	}

	clean := cleanPayload(text, '[', ']')
	if items, ok := parseSuggestionList(clean); ok {
		return items, nil
	}
	if items, ok := extractQuoted(clean); ok {
		return items, nil
	}
	log.Printf("suggest: unparseable interactive output: %q", text)
	return []string{"(System: AI Pilot Unavailable)"}, nil
}

// Autonomous returns a single reply with a confidence score. Provider or
// parse failure degrades to a system-alert reply with confidence zero.
func (p *Pipeline) Autonomous(ctx context.Context, history []Turn) (AutoReply, error) {
	history = Clip(history, Turn{})
	text, err := p.LLM.GenerateText(ctx, autonomousPrompt(history))
	if err != nil {
		if errors.Is(err, llm.ErrNoCredentials) {
			return AutoReply{}, err
		}
		log.Printf("suggest: autonomous generation failed: %v", err)
		return AutoReply{Reply: fmt.Sprintf("[SYSTEM ALERT: %s]", errorMessage(err))}, nil
	}

	clean := cleanPayload(text, '{', '}')
	if reply, ok := parseAutoReply(clean); ok {
		return reply, nil
	}
	if reply, ok := extractReply(clean); ok {
		return reply, nil
	}
	log.Printf("suggest: unparseable autonomous output: %q", text)
	return AutoReply{Reply: "[SYSTEM ALERT: AI Pilot Unavailable]"}, nil
}

// GenerateDraft rewrites a free-text instruction into a casual message.
// Unlike the suggestion paths, failures propagate: the caller shows a
// structured error instead of a degraded draft.
func (p *Pipeline) GenerateDraft(ctx context.Context, instruction string, history []Turn) (string, error) {
	_ = history // context is accepted for parity with the suggestion paths
	text, err := p.LLM.GenerateText(ctx, draftPrompt(instruction))
	if err != nil {
		return "", err
	}
	return stripOuterQuotes(text), nil
}
