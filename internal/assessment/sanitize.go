package assessment

import "strings"

const fence = "```"

// StripFences removes a markdown code fence wrapped around a completion.
// It drops one leading "```json" or "```" marker and one trailing "```",
// trimming whitespace around each step. Unfenced text is only trimmed.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, fence+"json")
	content = strings.TrimPrefix(content, fence)
	content = strings.TrimSuffix(content, fence)
	return strings.TrimSpace(content)
}
