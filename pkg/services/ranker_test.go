package services

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/schema"
)

func rankerDescriptors() []schema.Descriptor {
	return []schema.Descriptor{
		{Table: "teams", Columns: []schema.Column{{Name: "id"}, {Name: "name"}}},
		{Table: "projects", Columns: []schema.Column{{Name: "id"}, {Name: "name"}, {Name: "team_id"}}},
		{Table: "tasks", Columns: []schema.Column{{Name: "id"}, {Name: "title"}, {Name: "due_date"}, {Name: "status"}}},
		{Table: "users", Columns: []schema.Column{{Name: "id"}, {Name: "email"}}},
	}
}

func TestRankLexicalFallback(t *testing.T) {
	// Mock without embeddings forces the lexical path.
	client := &llm.MockClient{}
	r := NewRanker(client, zap.NewNop())

	ranked := r.Rank(context.Background(), "which tasks are due soon?", rankerDescriptors(), 2)
	if len(ranked) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(ranked))
	}

	var tables []string
	for _, d := range ranked {
		tables = append(tables, d.Table)
	}
	if !contains(tables, "tasks") {
		t.Errorf("tasks should rank for a due-date question, got %v", tables)
	}
}

func TestRankEmbeddings(t *testing.T) {
	client := &llm.MockClient{
		EmbeddingFunc: func(_ context.Context, input string) ([]float32, error) {
			// The question and the tasks table share a direction.
			if strings.Contains(input, "overdue") || strings.Contains(input, "tasks") {
				return []float32{1, 0}, nil
			}
			return []float32{0, 1}, nil
		},
	}
	r := NewRanker(client, zap.NewNop())

	ranked := r.Rank(context.Background(), "what is overdue?", rankerDescriptors(), 1)
	if len(ranked) != 1 || ranked[0].Table != "tasks" {
		t.Errorf("expected tasks to rank first, got %+v", ranked)
	}
}

func TestRankTopKBounds(t *testing.T) {
	client := &llm.MockClient{}
	r := NewRanker(client, zap.NewNop())
	descriptors := rankerDescriptors()

	if got := r.Rank(context.Background(), "anything", descriptors, 0); len(got) != len(descriptors) {
		t.Errorf("topK=0 should return everything, got %d", len(got))
	}
	if got := r.Rank(context.Background(), "anything", descriptors, 10); len(got) != len(descriptors) {
		t.Errorf("oversized topK should return everything, got %d", len(got))
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors: %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got > 0.001 {
		t.Errorf("orthogonal vectors: %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths should score zero, got %f", got)
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
