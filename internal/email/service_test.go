package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderMentionTemplate(t *testing.T) {
	data := MentionData{
		AppName:       "Scribe",
		UserName:      "Jamie",
		ActorName:     "Avery",
		DocumentTitle: "Launch Plan",
		DocumentURL:   "https://scribe.example.com/doc/doc_1",
	}

	html, err := renderTemplate(mentionEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Scribe") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Jamie") {
		t.Error("template should contain recipient name")
	}
	if !strings.Contains(html, "Avery") {
		t.Error("template should contain actor name")
	}
	if !strings.Contains(html, "https://scribe.example.com/doc/doc_1") {
		t.Error("template should contain document URL")
	}
}
