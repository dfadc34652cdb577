package llm

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text",
			input: "SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "fenced block with language",
			input: "```json\n{\"a\": 1}\n```",
			want:  "{\"a\": 1}",
		},
		{
			name:  "fenced block bare",
			input: "```\nhello\n```",
			want:  "hello",
		},
		{
			name:  "control characters stripped",
			input: "ok\x00\x07 done",
			want:  "ok done",
		},
		{
			name:  "newlines survive",
			input: "line one\nline two",
			want:  "line one\nline two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"summary": "x", "query": "SELECT 1"}`,
			want:  `{"summary": "x", "query": "SELECT 1"}`,
		},
		{
			name:  "object in prose",
			input: `Here is the result: {"a": 1} hope that helps`,
			want:  `{"a": 1}`,
		},
		{
			name:  "fenced json",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "nested braces in strings",
			input: `{"sql": "SELECT '{' FROM t", "n": {"x": 1}}`,
			want:  `{"sql": "SELECT '{' FROM t", "n": {"x": 1}}`,
		},
		{
			name:  "array",
			input: `The tables: ["a", "b"]`,
			want:  `["a", "b"]`,
		},
		{
			name:    "no json at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"a": 1`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type intent struct {
		Summary string `json:"summary"`
		Query   string `json:"query"`
	}

	got, err := ParseJSONResponse[intent]("```json\n{\"summary\": \"overdue tasks\", \"query\": \"SELECT 1\"}\n```")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got.Summary != "overdue tasks" || got.Query != "SELECT 1" {
		t.Errorf("unexpected result: %+v", got)
	}

	_, err = ParseJSONResponse[intent]("no json here")
	if err == nil || !strings.Contains(err.Error(), "no valid JSON") {
		t.Errorf("expected extraction error, got %v", err)
	}
}
