package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Responses are returned in
// order; when the script runs out the last response repeats. Set
// CompleteFunc for full control.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Embedding []float32

	CompleteFunc  func(ctx context.Context, req CompletionRequest) (string, error)
	EmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

	Requests []CompletionRequest
	calls    int
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}

func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if m.EmbeddingFunc != nil {
		return m.EmbeddingFunc(ctx, input)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Embedding == nil {
		return nil, ErrEmbeddingsUnsupported
	}
	return m.Embedding, nil
}

func (m *MockClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	embeddings := make([][]float32, len(inputs))
	for i, input := range inputs {
		e, err := m.CreateEmbedding(ctx, input)
		if err != nil {
			return nil, err
		}
		embeddings[i] = e
	}
	return embeddings, nil
}

func (m *MockClient) Model() string {
	return "mock-model"
}

// CallCount returns how many completions have been requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

var _ Client = (*MockClient)(nil)
