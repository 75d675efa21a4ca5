package sanitize

import (
	"errors"
	"testing"
)

func TestSanitizeField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Zero-width space",
			input:    "conver\u200Bsations",
			expected: "conversations",
		},
		{
			name:     "BOM (zero-width no-break space)",
			input:    "\uFEFFevents",
			expected: "events",
		},
		{
			name:     "Soft hyphen",
			input:    "mes\u00ADsages",
			expected: "messages",
		},
		{
			name:     "Trim whitespace",
			input:    "  users  ",
			expected: "users",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeField(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeField(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTableName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "conversations", want: "conversations"},
		{name: "dotted stem", input: "events.v2", want: "events.v2"},
		{name: "invisible chars stripped", input: "users\u200D", want: "users"},
		{name: "empty", input: "", wantErr: true},
		{name: "only whitespace", input: "   ", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "parent", input: "..", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "backslash", input: `a\b`, wantErr: true},
		{name: "traversal", input: "../etc", wantErr: true},
		{name: "nul", input: "a\x00b", wantErr: true},
		{name: "newline", input: "a\nb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TableName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Fatalf("TableName(%q) error = %v, want ErrInvalidName", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TableName(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("TableName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
