package enhance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/local/slideforge/internal/config"
	"github.com/local/slideforge/internal/metrics"
)

// Gemini implements Service on the Gemini image generation API.
type Gemini struct {
	client    *genai.Client
	model     string
	imageSize string
}

// NewGemini creates the client. The API key is required.
func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GOOGLE_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, imageSize: cfg.ImageSize}, nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error { return g.client.Close() }

// EnhancePage sends one page image (plus optional template) and returns the
// enhanced image. No retries here.
func (g *Gemini) EnhancePage(ctx context.Context, req Request) (Result, error) {
	aspect := detectAspectRatio(req.Image)
	prompt := buildEnhancePrompt(req, aspect) + g.sizeHint()

	parts := []genai.Part{
		genai.Text(prompt),
		genai.ImageData(imageFormat(req.MIME), req.Image),
	}
	if len(req.Template) > 0 {
		parts = append(parts, genai.ImageData("png", req.Template))
	}

	kind := "enhance"
	if len(req.Template) > 0 {
		kind = "template"
	}
	return g.generate(ctx, kind, parts)
}

// GeneratePage produces one new page conditioned on the reference image.
func (g *Gemini) GeneratePage(ctx context.Context, req GenerateRequest) (Result, error) {
	aspect := detectAspectRatio(req.Reference)
	prompt := buildGeneratePrompt(req, aspect) + g.sizeHint()

	parts := []genai.Part{
		genai.Text(prompt),
		genai.ImageData("png", req.Reference),
	}
	return g.generate(ctx, "generate", parts)
}

func (g *Gemini) generate(ctx context.Context, kind string, parts []genai.Part) (Result, error) {
	model := g.client.GenerativeModel(g.model)

	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	dur := time.Since(start)
	if err != nil {
		metrics.ObserveEnhance(kind, Classify(err).String(), dur)
		return Result{}, &ServiceError{Err: fmt.Errorf("gemini %s: %w", kind, err)}
	}

	res, err := extractImage(resp)
	if err != nil {
		metrics.ObserveEnhance(kind, Classify(err).String(), dur)
		return Result{}, &ServiceError{Err: err}
	}

	metrics.ObserveEnhance(kind, "success", dur)
	log.Debug().Str("kind", kind).Dur("duration", dur).Int("bytes", len(res.Image)).Msg("gemini call succeeded")
	return res, nil
}

// extractImage picks the last inline image part of the first candidate;
// earlier image parts are intermediate results.
func extractImage(resp *genai.GenerateContentResponse) (Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return Result{}, &RejectedError{Reason: fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason)}
		}
		return Result{}, ErrNoImage
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return Result{}, &RejectedError{Reason: "blocked by safety filters"}
	}
	if cand.Content == nil {
		return Result{}, ErrNoImage
	}
	var out Result
	for _, part := range cand.Content.Parts {
		if blob, ok := part.(genai.Blob); ok && strings.HasPrefix(blob.MIMEType, "image/") {
			out = Result{Image: blob.Data, MIME: blob.MIMEType}
		}
	}
	if out.Image == nil {
		return Result{}, ErrNoImage
	}
	return out, nil
}

func (g *Gemini) sizeHint() string {
	if g.imageSize == "" {
		return ""
	}
	return fmt.Sprintf(" Target output resolution: %s.", g.imageSize)
}

func imageFormat(mime string) string {
	if f, ok := strings.CutPrefix(mime, "image/"); ok && f != "" {
		return f
	}
	return "png"
}
