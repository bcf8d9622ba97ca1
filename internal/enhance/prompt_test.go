package enhance

import (
	"strings"
	"testing"
)

func TestBuildEnhancePrompt(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		contains    []string
		notContains []string
	}{
		{
			name:        "plain enhancement",
			req:         Request{},
			contains:    []string{"PRESERVE all content exactly", "ONLY an image quality enhancement task"},
			notContains: []string{"BLANK/SOLID COLOR AREA", "TEMPLATE image"},
		},
		{
			name:        "watermark removal",
			req:         Request{RemoveWatermark: true},
			contains:    []string{"BLANK/SOLID COLOR AREA", "inpainting task"},
			notContains: []string{"ONLY an image quality enhancement task"},
		},
		{
			name:        "custom instruction replaces base prompt",
			req:         Request{Instruction: "make the title blue"},
			contains:    []string{"make the title blue", "based on the following instructions"},
			notContains: []string{"PRESERVE all content exactly"},
		},
		{
			name:     "template attachment note",
			req:      Request{Template: []byte{1}},
			contains: []string{"TEMPLATE image is attached", "preserving the slide's own text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildEnhancePrompt(tt.req, "16:9")
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q:\n%s", want, got)
				}
			}
			for _, not := range tt.notContains {
				if strings.Contains(got, not) {
					t.Errorf("prompt should not contain %q", not)
				}
			}
			if !strings.Contains(got, "Output aspect ratio: 16:9.") {
				t.Error("prompt missing aspect ratio suffix")
			}
		})
	}
}

func TestBuildGeneratePrompt(t *testing.T) {
	got := buildGeneratePrompt(GenerateRequest{Topic: "Q3 results", Index: 2, Count: 5}, "4:3")
	for _, want := range []string{"slide 2 of 5", "Q3 results", "Output aspect ratio: 4:3."} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	noTopic := buildGeneratePrompt(GenerateRequest{Index: 1, Count: 1}, "16:9")
	if strings.Contains(noTopic, "should cover") {
		t.Error("topic line should be omitted when no topic given")
	}
}
