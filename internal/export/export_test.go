package export

import (
	"strings"
	"testing"

	"scribe/api/internal/store"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderDocument(t *testing.T) {
	document := store.Document{
		ID:               "doc_1",
		Title:            "Release Checklist",
		Text:             "# Steps\n\nShip **carefully**.\n\n```\nmake release\n```",
		LastModifiedByID: "user_1",
	}

	html, err := renderDocument(document)
	if err != nil {
		t.Fatalf("renderDocument() error = %v", err)
	}

	if !strings.Contains(html, "Release Checklist") {
		t.Error("HTML missing title")
	}
	if !strings.Contains(html, "<strong>carefully</strong>") {
		t.Error("markdown content was not converted to HTML")
	}
	if !strings.Contains(html, "<pre><code>") {
		t.Error("HTML missing code block")
	}
	if strings.Contains(html, "&lt;strong&gt;") {
		t.Error("content HTML was escaped, expected raw markup")
	}
}
