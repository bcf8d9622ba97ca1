// Package enhance adapts the external image enhancement service. It performs
// exactly one service call per invocation; retry policy belongs to the
// orchestrator so batch bookkeeping stays centralized.
package enhance

import (
	"context"
)

// Request carries one page image to enhance plus optional steering inputs.
type Request struct {
	Image           []byte
	MIME            string // source image MIME, defaults to image/png
	Instruction     string // free-text user instruction, optional
	Template        []byte // reference style image, optional
	RemoveWatermark bool
}

// GenerateRequest asks for one brand-new page in the style of Reference.
type GenerateRequest struct {
	Reference []byte // most recent page image, conditions style and content
	Topic     string
	Index     int // 1-based position within the extension
	Count     int
}

// Result is one produced image.
type Result struct {
	Image []byte
	MIME  string
}

// Service is the enhancement capability the orchestrator depends on.
type Service interface {
	EnhancePage(ctx context.Context, req Request) (Result, error)
	GeneratePage(ctx context.Context, req GenerateRequest) (Result, error)
}
