package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/enhance"
	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/session"
)

// Extend appends count generated pages continuing the deck. Each generation
// is conditioned on the newest page image, including pages generated earlier
// in the same run, so the extension stays visually coherent. A failed
// generation stops the run; pages already appended stay in the session, and
// the error is returned alongside them.
func (o *Orchestrator) Extend(ctx context.Context, sessionID string, count int, topic string) ([]session.Page, error) {
	if count < 1 || count > 10 {
		return nil, ErrInvalidCount
	}
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := o.reg.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if len(s.Pages) == 0 {
		return nil, ErrNoPages
	}

	ref, err := os.ReadFile(bestImage(s.Pages[len(s.Pages)-1]))
	if err != nil {
		return nil, fmt.Errorf("read reference image: %w", err)
	}

	added := make([]session.Page, 0, count)
	nextID := s.MaxPageID() + 1
	var genErr error
	for i := 1; i <= count; i++ {
		if ctx.Err() != nil {
			genErr = ctx.Err()
			break
		}

		var res enhance.Result
		genErr = o.withRetry(ctx, func() error {
			cctx, cancel := context.WithTimeout(ctx, o.cfg.PageTimeout)
			defer cancel()
			var e error
			res, e = o.enhancer.GeneratePage(cctx, enhance.GenerateRequest{
				Reference: ref, Topic: topic, Index: i, Count: count,
			})
			return e
		})
		if genErr != nil {
			metrics.IncPage("extend", "failed")
			log.Error().Err(genErr).Str("session_id", sessionID).Int("index", i).Msg("page generation failed, stopping extension")
			break
		}

		id := nextID + len(added)
		out := filepath.Join(s.OriginalDir(), fmt.Sprintf("page_%03d.png", id))
		if err := os.WriteFile(out, res.Image, 0o644); err != nil {
			return added, fmt.Errorf("write generated image: %w", err)
		}
		pages, err := o.reg.AppendGenerated(sessionID, []string{out})
		if err != nil {
			return added, err
		}
		added = append(added, pages...)
		metrics.IncPage("extend", "success")
		ref = res.Image
	}

	log.Info().Str("session_id", sessionID).Int("requested", count).Int("generated", len(added)).Msg("extension finished")
	return added, genErr
}
