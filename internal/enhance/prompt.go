package enhance

import (
	"fmt"
	"strings"
)

const basePrompt = `Enhance this presentation slide to ultra-high definition quality.

CRITICAL RULES:
1. PRESERVE all content exactly - do not change, add, or remove any text, graphics, charts, or layout
2. SHARPEN all text to be crisp and highly readable with clean edges
3. ENHANCE image quality - reduce blur, noise, and compression artifacts
4. IMPROVE color vibrancy while maintaining the original color scheme
5. OUTPUT at maximum resolution`

const watermarkRule = `6. IMPORTANT: There is a BLANK/SOLID COLOR AREA in the bottom-right corner. Fill this blank area seamlessly by extending the surrounding background pattern or color naturally. Make it look like the blank area was never there.

This is an image quality enhancement and inpainting task.`

const plainSuffix = `This is ONLY an image quality enhancement task - keep all original content exactly as shown.`

// buildEnhancePrompt composes the instruction text for a single-page call.
func buildEnhancePrompt(req Request, aspectRatio string) string {
	var b strings.Builder

	switch {
	case req.Instruction != "":
		fmt.Fprintf(&b, `Enhance this presentation slide based on the following instructions:

%s

Also apply these enhancements:
1. SHARPEN all text to be crisp and highly readable
2. ENHANCE image quality - reduce blur and noise
3. IMPROVE color vibrancy
4. OUTPUT at maximum resolution`, req.Instruction)
	default:
		b.WriteString(basePrompt)
		b.WriteString("\n")
		if req.RemoveWatermark {
			b.WriteString(watermarkRule)
		} else {
			b.WriteString("\n")
			b.WriteString(plainSuffix)
		}
	}

	if len(req.Template) > 0 {
		b.WriteString(`

A TEMPLATE image is attached after the slide. Restyle the slide to match the template's background, color palette and visual style while preserving the slide's own text and content layout exactly.`)
	}

	fmt.Fprintf(&b, "\n\nOutput aspect ratio: %s.", aspectRatio)
	return b.String()
}

// buildGeneratePrompt composes the instruction text for one generated page.
func buildGeneratePrompt(req GenerateRequest, aspectRatio string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Create a NEW presentation slide that continues the attached deck. This is slide %d of %d being added.

RULES:
1. MATCH the attached reference slide's visual style exactly: background, fonts, colors, layout conventions
2. The new slide must contain plausible, coherent content that extends the deck
3. OUTPUT at maximum resolution`, req.Index, req.Count)
	if req.Topic != "" {
		fmt.Fprintf(&b, "\n\nThe new slide should cover: %s", req.Topic)
	}
	fmt.Fprintf(&b, "\n\nOutput aspect ratio: %s.", aspectRatio)
	return b.String()
}
