package orchestrator

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/enhance"
	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/progress"
)

// BatchResult summarizes a batch run over a session's pages. A page that
// exhausted its attempts lands in Failed; the run itself still completes.
type BatchResult struct {
	Succeeded int   `json:"succeeded"`
	Skipped   int   `json:"skipped"`
	Failed    []int `json:"failed"`
	Cancelled bool  `json:"cancelled,omitempty"`
}

// EnhanceAll enhances every pending page in ascending page order. Pages
// already Done are skipped, which makes the operation resumable: rerunning
// after a partial failure only touches what is still pending.
func (o *Orchestrator) EnhanceAll(ctx context.Context, sessionID string, opts PageOptions) (BatchResult, error) {
	return o.runBatch(ctx, sessionID, "enhance_all", opts, false, false)
}

// ApplyTemplateAll re-styles pages after the session template. Without force
// only pending pages are processed; with force every page is redone.
func (o *Orchestrator) ApplyTemplateAll(ctx context.Context, sessionID string, force bool) (BatchResult, error) {
	return o.runBatch(ctx, sessionID, "apply_template_all", PageOptions{}, true, force)
}

func (o *Orchestrator) runBatch(ctx context.Context, sessionID, op string, opts PageOptions, useTemplate, force bool) (BatchResult, error) {
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()

	s, err := o.reg.Get(sessionID)
	if err != nil {
		return BatchResult{}, err
	}
	if useTemplate && s.Template == "" {
		return BatchResult{}, ErrTemplateRequired
	}

	targets := s.PendingIDs()
	res := BatchResult{Skipped: len(s.Pages) - len(targets), Failed: []int{}}
	if force {
		targets = s.AllIDs()
		res.Skipped = 0
	}

	_ = o.progress.ClearCancel(ctx, sessionID)
	start := time.Now()
	o.setProgress(ctx, sessionID, progress.Record{
		Op: op, State: "running", Skipped: res.Skipped, Total: len(targets), Start: &start,
	})
	log.Info().Str("session_id", sessionID).Str("op", op).Int("pages", len(targets)).Int("skipped", res.Skipped).Msg("batch started")

	for _, pageID := range targets {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if cancelled, _ := o.progress.IsCancelled(ctx, sessionID); cancelled {
			res.Cancelled = true
			break
		}

		err := o.withRetry(ctx, func() error {
			_, e := o.enhanceOne(ctx, sessionID, pageID, opts, useTemplate)
			return e
		})
		if err != nil {
			res.Failed = append(res.Failed, pageID)
			metrics.IncPage(op, "failed")
			log.Error().Err(err).Str("session_id", sessionID).Int("page", pageID).Str("op", op).Msg("page failed, continuing batch")
		} else {
			res.Succeeded++
			metrics.IncPage(op, "success")
		}
		o.setProgress(ctx, sessionID, progress.Record{
			Op: op, State: "running",
			Done: res.Succeeded, Skipped: res.Skipped, Failed: len(res.Failed), Total: len(targets),
			Start: &start,
		})
	}

	end := time.Now()
	state := "done"
	if res.Cancelled {
		state = "cancelled"
	}
	o.setProgress(ctx, sessionID, progress.Record{
		Op: op, State: state,
		Done: res.Succeeded, Skipped: res.Skipped, Failed: len(res.Failed), Total: len(targets),
		Start: &start, End: &end,
	})
	metrics.IncBatch(op, len(res.Failed) > 0)
	log.Info().Str("session_id", sessionID).Str("op", op).
		Int("succeeded", res.Succeeded).Int("skipped", res.Skipped).Int("failed", len(res.Failed)).
		Bool("cancelled", res.Cancelled).Dur("took", end.Sub(start)).Msg("batch finished")
	return res, nil
}

// Cancel marks the session's running batch for cooperative cancellation. The
// batch stops before its next page; the page in flight finishes normally.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) error {
	if _, err := o.reg.Get(sessionID); err != nil {
		return err
	}
	log.Info().Str("session_id", sessionID).Msg("batch cancellation requested")
	return o.progress.MarkCancel(ctx, sessionID)
}

// Progress returns the most recent batch progress record for the session.
func (o *Orchestrator) Progress(ctx context.Context, sessionID string) (progress.Record, bool, error) {
	if _, err := o.reg.Get(sessionID); err != nil {
		return progress.Record{}, false, err
	}
	return o.progress.Get(ctx, sessionID)
}

// withRetry runs fn, retrying transient failures up to the attempt cap with
// exponential backoff. Rejected and timeout failures are terminal for the
// page: retrying an input the service declined cannot succeed, and a page
// that already burned the wall-clock bound should not burn it again.
func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if enhance.Classify(err) != enhance.FailTransient || attempt >= o.cfg.MaxAttempts {
			return err
		}
		metrics.IncRetry()
		delay := o.retryDelay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("transient failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	d := time.Duration(float64(o.cfg.RetryBaseDelay) * math.Pow(o.cfg.RetryBackoffFactor, float64(attempt-1)))
	if o.cfg.RetryJitter > 0 {
		d += rand.N(o.cfg.RetryJitter)
	}
	return d
}

func (o *Orchestrator) setProgress(ctx context.Context, sessionID string, rec progress.Record) {
	if err := o.progress.Set(ctx, sessionID, rec); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("progress update failed")
	}
}
