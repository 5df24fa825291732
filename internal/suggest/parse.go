package suggest

import (
	"encoding/json"
	"regexp"
	"strings"
)

// The provider wraps JSON in commentary or code fences often enough that
// parsing is an ordered chain of strategies. Each stage either yields a
// result or reports no-match so the next stage can run; the chain ends
// in a synthetic fallback and therefore never fails.

var (
	fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	replyRe = regexp.MustCompile(`"reply":\s*"([^"]*)"`)
	quoteRe = regexp.MustCompile(`"([^"]+)"`)
)

// stripFence extracts the body of the first fenced code block.
func stripFence(text string) (string, bool) {
	if !strings.Contains(text, "```") {
		return "", false
	}
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// sliceBracket cuts text down to the first open bracket of the expected
// kind through its last closing counterpart.
func sliceBracket(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, close)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// cleanPayload applies fence stripping and bracket slicing before any
// JSON parse attempt.
func cleanPayload(text string, open, close byte) string {
	if body, ok := stripFence(text); ok {
		text = body
	}
	text = strings.TrimSpace(text)
	if len(text) > 0 && text[0] != open {
		if sliced, ok := sliceBracket(text, open, close); ok {
			text = sliced
		}
	}
	return text
}

// parseSuggestionList accepts a JSON array with at least three string
// entries and returns the first three.
func parseSuggestionList(text string) ([]string, bool) {
	var items []string
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	if len(items) < suggestionCount {
		return nil, false
	}
	return items[:suggestionCount], true
}

// extractQuoted is the regex fallback for interactive mode: the first
// three quoted substrings anywhere in the prose.
func extractQuoted(text string) ([]string, bool) {
	matches := quoteRe.FindAllStringSubmatch(text, -1)
	if len(matches) < suggestionCount {
		return nil, false
	}
	out := make([]string, 0, suggestionCount)
	for _, m := range matches[:suggestionCount] {
		out = append(out, m[1])
	}
	return out, true
}

// parseAutoReply accepts the {reply, confidence_score} object.
func parseAutoReply(text string) (AutoReply, bool) {
	var reply AutoReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return AutoReply{}, false
	}
	if reply.Reply == "" {
		return AutoReply{}, false
	}
	return reply, true
}

// extractReply is the regex fallback for autonomous mode. Confidence is
// pinned at 85 because the provider clearly produced a reply but not a
// parseable envelope.
func extractReply(text string) (AutoReply, bool) {
	m := replyRe.FindStringSubmatch(text)
	if m == nil {
		return AutoReply{}, false
	}
	return AutoReply{Reply: m[1], Confidence: 85}, true
}

// stripOuterQuotes removes one layer of surrounding quotation marks from
// a draft result.
func stripOuterQuotes(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return text[1 : len(text)-1]
	}
	return text
}
