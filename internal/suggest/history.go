// Package suggest builds prompts from chat history, calls the provider
// through the failover client, and defensively parses the loosely
// structured output into suggestions, an auto-reply, or a draft. The
// pipeline never surfaces provider or parse failures to its caller;
// the only hard error is a missing credential configuration.
package suggest

import "strings"

// maxHistoryTurns bounds how much context reaches the provider.
const maxHistoryTurns = 8

// Turn is one entry of the chat history as the requesting side sees it.
type Turn struct {
	Sender  string `json:"sender"` // "me" or "them"
	Content string `json:"content"`
}

// Clip keeps the last maxHistoryTurns entries and guarantees the
// triggering message is the tail. trigger may be the zero Turn when the
// history already ends with it.
func Clip(history []Turn, trigger Turn) []Turn {
	out := history
	if trigger.Content != "" {
		if len(out) == 0 || out[len(out)-1] != trigger {
			out = append(append([]Turn{}, out...), trigger)
		}
	}
	if len(out) > maxHistoryTurns {
		out = out[len(out)-maxHistoryTurns:]
	}
	return out
}

// errorMessage maps a provider failure to the short operator-facing
// notice embedded in degraded results.
func errorMessage(err error) string {
	if err == nil {
		return "AI Pilot Unavailable"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "503"), strings.Contains(msg, "overloaded"):
		return "AI Server Overloaded"
	case strings.Contains(msg, "429"):
		return "AI Traffic High"
	default:
		if len(msg) > 30 {
			msg = msg[:30]
		}
		return "AI Pilot Unavailable (" + msg + ")"
	}
}
