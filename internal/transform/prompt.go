package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// buildPrompt embeds the source document, canonical schema and operator
// instructions as plain text. This is the only place domain semantics cross
// into the generation collaborator.
func buildPrompt(source string, canonicalSchema map[string]any, instructions string) (string, error) {
	schemaJSON, err := json.MarshalIndent(canonicalSchema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode canonical schema: %w", err)
	}

	var b strings.Builder
	b.WriteString("You convert CRM payloads into a canonical internal document.\n\n")
	b.WriteString("Target schema (field name -> type hint):\n")
	b.Write(schemaJSON)
	b.WriteString("\n\nSource document:\n")
	b.WriteString(source)
	if instructions != "" {
		b.WriteString("\n\nMapping instructions:\n")
		b.WriteString(instructions)
	}
	b.WriteString("\n\nRespond with a single JSON object whose top-level keys follow the target schema. No prose, no markdown.")
	return b.String(), nil
}

// estimateTokens returns a tiktoken-based token count for the prompt. Used
// for logging and the oversized-prompt guard; an encoder failure degrades to
// a bytes/4 estimate rather than blocking the call.
func estimateTokens(prompt string) int {
	codec, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return len(prompt) / 4
	}
	ids, _, err := codec.Encode(prompt)
	if err != nil {
		return len(prompt) / 4
	}
	return len(ids)
}

// stripCodeFence removes a surrounding markdown code fence from a model
// reply, e.g. "```json\n{...}\n```". Models add these even when asked not to.
func stripCodeFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
