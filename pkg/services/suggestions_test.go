package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/llm"
)

func TestSuggestParsesNumberedList(t *testing.T) {
	client := &llm.MockClient{Responses: []string{
		"1. Which tasks are due this week?\n2) Who owns the most tasks?",
	}}
	g := NewSuggestionGenerator(client, zap.NewNop())

	got := g.Suggest(context.Background(), "overdue?", "Two tasks are overdue.", rankerDescriptors())
	want := []string{
		"Which tasks are due this week?",
		"Who owns the most tasks?",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d suggestions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSuggestCapsAtTwo(t *testing.T) {
	client := &llm.MockClient{Responses: []string{
		"1. a\n2. b\n3. c\n4. d\n5. e",
	}}
	g := NewSuggestionGenerator(client, zap.NewNop())

	if got := g.Suggest(context.Background(), "q", "a", nil); len(got) != 2 {
		t.Errorf("got %d suggestions, want 2", len(got))
	}
}

func TestSuggestFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		client *llm.MockClient
	}{
		{"provider error", &llm.MockClient{Err: errors.New("down")}},
		{"no numbered list", &llm.MockClient{Responses: []string{"I have no ideas."}}},
		{"single item", &llm.MockClient{Responses: []string{"1. Only one idea here"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewSuggestionGenerator(tt.client, zap.NewNop())
			got := g.Suggest(context.Background(), "q", "a", nil)
			if len(got) != len(fallbackSuggestions) {
				t.Fatalf("expected fallback suggestions, got %v", got)
			}
			for i := range got {
				if got[i] != fallbackSuggestions[i] {
					t.Errorf("fallback %d = %q, want %q", i, got[i], fallbackSuggestions[i])
				}
			}
		})
	}
}
