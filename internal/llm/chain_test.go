package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/llm/llmtest"
	"github.com/lexiqai/lecture-notes/internal/resilience"
)

var models = []string{"model-a", "model-b", "model-c"}

func newChain(t *testing.T, p llm.Provider) *llm.Chain {
	chain, err := llm.NewChain("notes", []llm.Tier{{Provider: p, Models: models}}, llm.ChainOptions{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewChain() failed: %v", err)
	}
	return chain
}

func TestChain_FirstSuccessWins(t *testing.T) {
	p := llmtest.NewProvider("primary").Default(llmtest.Reply{Content: "notes"})

	result, err := newChain(t, p).Complete(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if result.Model != "model-a" || result.Text != "notes" {
		t.Errorf("Unexpected result %+v", result)
	}
	if got := p.Models(); len(got) != 1 {
		t.Errorf("Expected 1 attempt, got %v", got)
	}
}

func TestChain_FallsThroughEmptyAndErrors(t *testing.T) {
	p := llmtest.NewProvider("primary").
		On("model-a", llmtest.Reply{Content: "   "}).
		On("model-b", llmtest.Reply{Err: errors.New("503 unavailable")}).
		On("model-c", llmtest.Reply{Content: "third time lucky"})

	result, err := newChain(t, p).Complete(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if result.Model != "model-c" {
		t.Errorf("Expected model-c, got %s", result.Model)
	}
	got := p.Models()
	if strings.Join(got, ",") != "model-a,model-b,model-c" {
		t.Errorf("Expected models tried in order, got %v", got)
	}
}

func TestChain_AllModelsFailed(t *testing.T) {
	p := llmtest.NewProvider("primary").Default(llmtest.Reply{Content: ""})

	_, err := newChain(t, p).Complete(context.Background(), "sys", "prompt")
	var failed *llm.AllModelsFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Expected *AllModelsFailedError, got %v", err)
	}
	if strings.Join(failed.Models, ",") != "model-a,model-b,model-c" {
		t.Errorf("Expected every model named, got %v", failed.Models)
	}
	if !errors.Is(err, resilience.ErrEmptyResult) {
		t.Errorf("Expected last error to be ErrEmptyResult, got %v", failed.Last)
	}
	for _, m := range models {
		if !strings.Contains(err.Error(), m) {
			t.Errorf("Expected error message to name %s: %s", m, err.Error())
		}
	}
}

func TestNewChain_TierSelection(t *testing.T) {
	secondary := llmtest.NewProvider("secondary").Default(llmtest.Reply{Content: "ok"})

	chain, err := llm.NewChain("notes", []llm.Tier{
		{Provider: nil, Models: models},
		{Provider: secondary, Models: []string{"gpt"}},
	}, llm.ChainOptions{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewChain() failed: %v", err)
	}
	if chain.Provider.Name() != "secondary" || chain.Models[0] != "gpt" {
		t.Errorf("Expected secondary tier, got %s %v", chain.Provider.Name(), chain.Models)
	}

	if _, err := llm.NewChain("notes", []llm.Tier{{Models: models}}, llm.ChainOptions{}); !errors.Is(err, llm.ErrNoProviderConfigured) {
		t.Errorf("Expected ErrNoProviderConfigured, got %v", err)
	}
}

func TestChain_NilReportsNoProvider(t *testing.T) {
	var chain *llm.Chain
	if _, err := chain.Complete(context.Background(), "", "x"); !errors.Is(err, llm.ErrNoProviderConfigured) {
		t.Errorf("Expected ErrNoProviderConfigured, got %v", err)
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Missing bearer auth")
		}
		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if body.Model != "m" || body.Temperature != 0.3 {
			t.Errorf("Expected model m at temperature 0.3, got %s at %v", body.Model, body.Temperature)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "p" {
			t.Errorf("Expected system and user messages, got %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}],"usage":{"total_tokens":3}}`))
	}))
	defer server.Close()

	p := llm.NewOpenAIProvider("primary", server.URL+"/", "key")
	resp, err := p.Complete(context.Background(), llm.Request{Model: "m", System: "s", Prompt: "p", Temperature: 0.3})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if resp.Content != "hi" || resp.Usage.TotalTokens != 3 {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestOpenAIProvider_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"backend down"}}`))
	}))
	defer server.Close()

	_, err := llm.NewOpenAIProvider("primary", server.URL, "key").Complete(context.Background(), llm.Request{Model: "m"})
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *llm.APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", apiErr.StatusCode)
	}
	if llm.IsQuotaError(err) {
		t.Error("Expected a server error not to count as quota")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("Expected exactly 1 request, got %d", n)
	}
}

func TestOpenAIProvider_QuotaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := llm.NewOpenAIProvider("primary", server.URL, "key").Complete(context.Background(), llm.Request{Model: "m"})
	if !llm.IsQuotaError(err) {
		t.Errorf("Expected quota error, got %v", err)
	}
}
