package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/straja-ai/intakerisk/internal/inference"
)

// openAIProvider implements Provider for the OpenAI Chat Completions API.
type openAIProvider struct {
	baseURL          string
	apiKey           string
	client           *http.Client
	maxResponseBytes int64
}

// NewOpenAI creates a new OpenAI provider. A zero timeout leaves the call
// bounded only by the request context.
func NewOpenAI(baseURL, apiKey string, timeout time.Duration, maxResponseBytes int64) Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = 4 * 1024 * 1024
	}

	return &openAIProvider{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		apiKey:           apiKey,
		maxResponseBytes: maxResponseBytes,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *openAIProvider) Name() string { return "OpenAI" }

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type openAIChatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// openAIChatResponse covers both the success body and the error envelope;
// the service may return either regardless of status code.
type openAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Choices []openAIChatChoice `json:"choices"`
	Usage   openAIChatUsage    `json:"usage"`
	Error   json.RawMessage    `json:"error"`
}

type openAIChatChoice struct {
	Index        int                `json:"index"`
	Message      *openAIChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type openAIChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (p *openAIProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	oaiReq := openAIChatRequest{
		Model:       req.Model,
		Messages:    make([]openAIChatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
	}

	for _, m := range req.Messages {
		content := m.Content
		oaiReq.Messages = append(oaiReq.Messages, openAIChatMessage{
			Role:    m.Role,
			Content: &content,
		})
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/chat/completions", p.baseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, p.maxResponseBytes+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if int64(len(respBody)) > p.maxResponseBytes {
		return nil, fmt.Errorf("openai response exceeded limit (%d bytes)", p.maxResponseBytes)
	}

	var oaiResp openAIChatResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	if apiErr := decodeOpenAIError(oaiResp.Error, resp.StatusCode); apiErr != nil {
		return nil, apiErr
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message == nil {
		return nil, fmt.Errorf("openai response had no choices: %w", ErrMalformedResponse)
	}

	first := oaiResp.Choices[0].Message
	if first.Content == nil {
		return nil, fmt.Errorf("openai choice had no content: %w", ErrMalformedResponse)
	}

	return &inference.Response{
		Message: inference.Message{
			Role:    first.Role,
			Content: *first.Content,
		},
		Usage: inference.Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// decodeOpenAIError returns nil when the envelope carries no error. The
// error field is usually an object but some compatible servers send a string.
func decodeOpenAIError(raw json.RawMessage, status int) *APIError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return nil
	}

	apiErr := &APIError{Provider: "OpenAI", StatusCode: status}

	var detail openAIErrorDetail
	if err := json.Unmarshal(trimmed, &detail); err == nil {
		apiErr.Message = detail.Message
		apiErr.Type = detail.Type
		if apiErr.Message == "" {
			apiErr.Message = string(trimmed)
		}
		return apiErr
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		apiErr.Message = text
		return apiErr
	}

	apiErr.Message = string(trimmed)
	return apiErr
}
