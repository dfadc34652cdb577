package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain string", `"hello"`, "hello"},
		{"integer", `42`, "42"},
		{"float", `3.5`, "3.5"},
		{"boolean", `true`, "true"},
		{"null", `null`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleStringValue(json.RawMessage(tt.input))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlexibleBoolValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"native true", `true`, true},
		{"native false", `false`, false},
		{"string true", `"true"`, true},
		{"string yes", `"yes"`, true},
		{"string false", `"false"`, false},
		{"string garbage", `"maybe"`, false},
		{"number one", `1`, true},
		{"number zero", `0`, false},
		{"null", `null`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleBoolValue(json.RawMessage(tt.input))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
