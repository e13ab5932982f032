package provider

import (
	"context"
	"sync"

	"github.com/straja-ai/intakerisk/internal/inference"
)

// FakeProvider returns a canned completion and records the requests it saw.
type FakeProvider struct {
	ResponseText string
	Error        error

	mu       sync.Mutex
	requests []*inference.Request
}

func (f *FakeProvider) Name() string { return "OpenAI" }

func (f *FakeProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Error != nil {
		return nil, f.Error
	}

	return &inference.Response{
		Message: inference.Message{
			Role:    inference.RoleAssistant,
			Content: f.ResponseText,
		},
		Usage: inference.Usage{
			PromptTokens:     2,
			CompletionTokens: 3,
			TotalTokens:      5,
		},
	}, nil
}

// Calls returns the number of completions requested so far.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// LastRequest returns the most recent request, or nil.
func (f *FakeProvider) LastRequest() *inference.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func NewFake(response string) *FakeProvider {
	return &FakeProvider{ResponseText: response}
}
