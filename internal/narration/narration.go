// Package narration synthesizes one narration clip per story paragraph.
package narration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Synthesizer is the subset of the speech client the narrator needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputPath string) error
	HealthCheck(ctx context.Context) error
}

// Narrator produces voz_parrafo_N.mp3 files for a story, pacing requests so
// the synthesis service is not hammered.
type Narrator struct {
	tts     Synthesizer
	spacing time.Duration
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes the narrator.
type Option func(*Narrator)

// WithSleeper overrides how inter-request pauses are performed, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(n *Narrator) {
		if sleep != nil {
			n.sleep = sleep
		}
	}
}

// New constructs a narrator using the configured request spacing.
func New(tts Synthesizer, cfg config.TTS, logger *slog.Logger, opts ...Option) *Narrator {
	narrator := &Narrator{
		tts:     tts,
		spacing: time.Duration(cfg.RequestSpacingSeconds) * time.Second,
		logger:  logging.NewComponentLogger(logger, "narration"),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(narrator)
	}
	return narrator
}

// HealthCheck reports whether the synthesis service is usable.
func (n *Narrator) HealthCheck(ctx context.Context) error {
	return n.tts.HealthCheck(ctx)
}

// EnsureAudio synthesizes every missing paragraph clip for the story. Existing
// non-empty clips are never regenerated.
func (n *Narrator) EnsureAudio(ctx context.Context, layout artifacts.Layout) error {
	paragraphs, err := layout.ReadParagraphs()
	if err != nil {
		return fmt.Errorf("narration: read paragraphs: %w", err)
	}
	if len(paragraphs) == 0 {
		return services.Wrap(services.ErrValidation, "narration", "ensure", "no paragraphs to narrate", nil)
	}

	requested := 0
	for i, paragraph := range paragraphs {
		index := i + 1
		path := layout.AudioFile(index)
		if fileutil.ExistsNonEmpty(path) {
			continue
		}
		if requested > 0 && n.spacing > 0 {
			if err := n.sleep(ctx, n.spacing); err != nil {
				return err
			}
		}
		if err := n.tts.Synthesize(ctx, paragraph, path); err != nil {
			return fmt.Errorf("narration: paragraph %d: %w", index, err)
		}
		requested++
		n.logger.Info("narration clip synthesized",
			logging.Int("paragraph", index),
			logging.Int("total", len(paragraphs)))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
