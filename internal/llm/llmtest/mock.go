// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/capitalize-ai/travel-concierge/internal/llm"
)

var _ llm.Client = (*MockClient)(nil)

// MockClient records every request and answers through CompleteFunc.
type MockClient struct {
	mu    sync.Mutex
	calls []llm.CompletionRequest

	// CompleteFunc produces the response for each request.
	CompleteFunc func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// NewScripted answers classification requests (temperature 0) with
// classification and every other request with reply, or replyErr when set.
func NewScripted(classification, reply string, replyErr error) *MockClient {
	return &MockClient{
		CompleteFunc: func(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if req.Temperature == 0 {
				return &llm.CompletionResponse{Content: classification, Model: req.Model}, nil
			}
			if replyErr != nil {
				return nil, replyErr
			}
			return &llm.CompletionResponse{Content: reply, Model: req.Model, StopReason: "stop"}, nil
		},
	}
}

// Name implements llm.Client.
func (m *MockClient) Name() string {
	return "mock"
}

// Complete implements llm.Client.
func (m *MockClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.record(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.CompleteFunc == nil {
		return &llm.CompletionResponse{Model: req.Model}, nil
	}
	return m.CompleteFunc(ctx, req)
}

// CompleteStream emits the scripted content word by word.
func (m *MockClient) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	for i, token := range strings.SplitAfter(resp.Content, " ") {
		if token == "" {
			continue
		}
		if err := callback(token, i); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockClient) Calls() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]llm.CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) record(req *llm.CompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *req
	cp.Messages = append([]llm.ChatMessage(nil), req.Messages...)
	m.calls = append(m.calls, cp)
}
