package feed

import (
	"testing"
)

func TestCleanValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, ""},
		{"trim", "  Analista  ", "Analista"},
		{"cdata", "<![CDATA[Vaga em Recife]]>", "Vaga em Recife"},
		{"entities", "P&amp;D &lt;Go&gt;", "P&D <Go>"},
		{"slice", []any{"Go", "SQL", 3.0}, "Go SQL 3"},
		{"string slice", []string{"a", "b"}, "a b"},
		{"number", 1500.5, "1500.5"},
		{"integer number", 42.0, "42"},
		{"true", true, "1"},
		{"false", false, ""},
		{"nested object", Item{"name": "Acme"}, ""},
		{"nested object with text", Item{TextKey: " Intro ", "b": "bold"}, "Intro"},
	}

	for _, tt := range tests {
		if result := CleanValue(tt.input); result != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, result)
		}
	}
}

func TestCleanDescription(t *testing.T) {
	input := "<![CDATA[Linha um\n\n   linha   dois\t]]>"

	if result := CleanDescription(input); result != "Linha um linha dois" {
		t.Errorf("Expected collapsed whitespace, got %q", result)
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"<p>Vaga <b>remota</b></p>", "Vaga remota"},
		{"<ul><li>Go</li><li>SQL</li></ul>", "GoSQL"},
	}

	for _, tt := range tests {
		if result := StripTags(tt.input); result != tt.expected {
			t.Errorf("StripTags(%q): expected %q, got %q", tt.input, tt.expected, result)
		}
	}
}
