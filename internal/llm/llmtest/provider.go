// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/lexiqai/lecture-notes/internal/llm"
)

// Reply is one scripted answer; Err wins over Content
type Reply struct {
	Content string
	Err     error
}

// Provider answers per model from a script and records every request
type Provider struct {
	ProviderName string

	mu       sync.Mutex
	replies  map[string][]Reply
	fallback *Reply
	requests []llm.Request
}

// NewProvider creates an empty scripted provider
func NewProvider(name string) *Provider {
	return &Provider{ProviderName: name, replies: make(map[string][]Reply)}
}

// On queues replies for model; the last reply repeats once the queue drains
func (p *Provider) On(model string, replies ...Reply) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[model] = append(p.replies[model], replies...)
	return p
}

// Default sets the reply for models without a script
func (p *Provider) Default(r Reply) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = &r
	return p
}

func (p *Provider) Name() string {
	return p.ProviderName
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	var reply Reply
	queue := p.replies[req.Model]
	switch {
	case len(queue) > 1:
		reply = queue[0]
		p.replies[req.Model] = queue[1:]
	case len(queue) == 1:
		reply = queue[0]
	case p.fallback != nil:
		reply = *p.fallback
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.Response{Content: reply.Content}, nil
}

// Requests returns a copy of every request received
func (p *Provider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.requests...)
}

// Models returns the model of every request in order
func (p *Provider) Models() []string {
	var out []string
	for _, r := range p.Requests() {
		out = append(out, r.Model)
	}
	return out
}
