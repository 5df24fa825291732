package suggest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func encodeHistory(history []Turn) string {
	if history == nil {
		history = []Turn{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(history)
	return buf.String()
}

func interactivePrompt(history []Turn) string {
	return fmt.Sprintf(`You are a smart AI suggestion engine for a chat app.
CONTEXT: The provided JSON is the chat history. The LAST message (at the end of the list) is what the user just received.
INSTRUCTION: Provide 3 distinct, short, and natural reply suggestions to that LAST message.
- If the last message is a question, at least one suggestion MUST be the correct answer.
- Keep other suggestions casual or conversational.
- Ignore older topics if the conversation has shifted.

Return ONLY a JSON array of 3 strings. No markdown.
Example: ["New Delhi", "It's New Delhi.", "Not sure, let me check."]

Chat History: %s`, encodeHistory(history))
}

func autonomousPrompt(history []Turn) string {
	return fmt.Sprintf(`You are a smart personal assistant helping a user reply to a chat.
CONTEXT: The provided JSON contains the recent chat history. The LAST message in the list is the one you MUST reply to.
INSTRUCTION: Generate a single, perfect response to the LAST message. Use previous messages only for context/style.
If the last message is a question (e.g., "capital of India"), your reply MUST answer it directly (e.g., "New Delhi").

Return ONLY a JSON object. No markdown.
Format: { "reply": "string", "confidence_score": number (0-100) }

Chat History: %s`, encodeHistory(history))
}

func draftPrompt(instruction string) string {
	return fmt.Sprintf(`You are an AI writing assistant for a chat app.
TASK: Rewrite the user's raw instruction into a natural, casual WhatsApp-style message.
STYLE: Short, human, minimal punctuation, maybe 1 emoji. No quotes.

User Instruction: %q

Output only the message text.`, instruction)
}
