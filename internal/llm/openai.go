package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider speaks the OpenAI-compatible /chat/completions API. Gemini
// and OpenAI both expose it.
type OpenAIProvider struct {
	name   string
	client openai.Client
}

// NewOpenAIProvider creates a provider for baseURL, e.g. "https://api.openai.com/v1".
// Extra options are applied last, mostly for tests.
func NewOpenAIProvider(name, baseURL, apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	base := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithAPIKey(apiKey),
		// The model chain owns retries and fallback
		option.WithMaxRetries(0),
		option.WithRequestTimeout(3 * time.Minute),
	}
	return &OpenAIProvider{
		name:   name,
		client: openai.NewClient(append(base, opts...)...),
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Body: apiBody(apiErr)}
		}
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}

	usage := Usage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
	}
	if len(completion.Choices) == 0 {
		return &Response{Usage: usage}, nil
	}
	return &Response{Content: completion.Choices[0].Message.Content, Usage: usage}, nil
}

func apiBody(e *openai.Error) string {
	if raw := strings.TrimSpace(e.RawJSON()); raw != "" {
		return raw
	}
	return e.Message
}
