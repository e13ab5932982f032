package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/straja-ai/intakerisk/internal/inference"
)

// geminiProvider implements Provider on top of the Gemini Developer API.
type geminiProvider struct {
	client *genai.Client
}

// NewGemini creates a Gemini provider. baseURL is optional and mainly used
// to point the client at a local stand-in.
func NewGemini(ctx context.Context, baseURL, apiKey string, timeout time.Duration) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSuffix(baseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiProvider{client: client}, nil
}

func (p *geminiProvider) Name() string { return "Gemini" }

func (p *geminiProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	var (
		system   *genai.Content
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case inference.RoleSystem:
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
		case inference.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	gcfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, gcfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{
				Provider:   p.Name(),
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				Type:       apiErr.Status,
			}
		}
		return nil, fmt.Errorf("call gemini: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response had no candidates: %w", ErrMalformedResponse)
	}

	out := &inference.Response{
		Message: inference.Message{
			Role:    inference.RoleAssistant,
			Content: resp.Text(),
		},
		Latency: time.Since(start),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = inference.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
