package inference

import "time"

// Message is a normalized representation of a chat message.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request represents a normalized completion request sent to an upstream provider.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Usage holds token accounting as reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response represents a normalized completion response.
type Response struct {
	Message Message
	Usage   Usage
	// Latency is the wall time spent waiting on the provider.
	Latency time.Duration
}
