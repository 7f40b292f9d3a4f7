package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON decodes a model response into v. Surrounding whitespace and a
// markdown code fence (```json ... ```) are tolerated; any other preamble is
// an error.
func DecodeJSON(response string, v any) error {
	text := strings.TrimSpace(response)

	if strings.HasPrefix(text, "```") {
		text = extractFromCodeBlock(text)
	}

	if text == "" {
		return fmt.Errorf("failed to parse LLM response as JSON: empty response")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}

// extractFromCodeBlock extracts content from a markdown code block.
func extractFromCodeBlock(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	// Drop the opening fence line and, if present, the closing fence.
	end := len(lines)
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		end = len(lines) - 1
	}

	return strings.Join(lines[1:end], "\n")
}
