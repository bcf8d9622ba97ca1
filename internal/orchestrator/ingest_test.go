package orchestrator

import "testing"

func TestRefDisplayName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"s3://bucket/decks/q3-review.pdf", "q3-review.pdf"},
		{"https://example.com/files/deck.pdf?token=abc", "deck.pdf"},
		{"https://example.com/files/deck.pdf#page=2", "deck.pdf"},
		{"file:///tmp/slides.pdf", "slides.pdf"},
		{"/var/data/report.pdf", "report.pdf"},
		{"https://example.com/decks/", "decks"},
		{"", "document.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := refDisplayName(tt.ref); got != tt.want {
				t.Errorf("refDisplayName(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}
