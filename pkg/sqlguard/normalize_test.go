package sqlguard

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "plain query",
			input: "SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "trailing semicolon",
			input: "SELECT name FROM projects;",
			want:  "SELECT name FROM projects",
		},
		{
			name:  "trailing semicolon and whitespace",
			input: "  SELECT name FROM projects ;  \n",
			want:  "SELECT name FROM projects",
		},
		{
			name:  "semicolon inside string literal",
			input: "SELECT name FROM projects WHERE note = 'a;b'",
			want:  "SELECT name FROM projects WHERE note = 'a;b'",
		},
		{
			name:  "semicolon inside quoted identifier",
			input: `SELECT "odd;name" FROM projects`,
			want:  `SELECT "odd;name" FROM projects`,
		},
		{
			name:    "stacked statements",
			input:   "SELECT 1; DROP TABLE projects",
			wantErr: ErrMultipleStatements,
		},
		{
			name:    "stacked after literal",
			input:   "SELECT name FROM projects WHERE note = 'x'; DELETE FROM tasks",
			wantErr: ErrMultipleStatements,
		},
		{
			name:  "escaped quote does not close literal",
			input: "SELECT 1 WHERE a = 'it''s; fine'",
			want:  "SELECT 1 WHERE a = 'it''s; fine'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
