package sanitize

import (
	"testing"
)

func TestText_RemovesAllHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text untouched", "Conf2025", "Conf2025"},
		{"strips script", "Conf<script>alert(1)</script>2025", "Conf2025"},
		{"strips formatting tags", "<b>Summer</b> Fest", "Summer Fest"},
		{"strips anchors", `<a href="https://evil.example">party</a>`, "party"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHTML_KeepsSafeFormatting(t *testing.T) {
	input := `<p>Doors at <b>7pm</b></p><script>alert(1)</script>`
	got := HTML(input)

	if got != "<p>Doors at <b>7pm</b></p>" {
		t.Errorf("HTML(%q) = %q", input, got)
	}
}
