package video

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/narration"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

type countingTTS struct {
	calls int
}

func (c *countingTTS) HealthCheck(context.Context) error { return nil }

func (c *countingTTS) Synthesize(_ context.Context, text, outputPath string) error {
	c.calls++
	return fileutil.WriteFileAtomic(outputPath, []byte("mp3:"+text), 0o644)
}

func newVideoHandler(t *testing.T, cfg *config.Config, tts *countingTTS) *Handler {
	t.Helper()
	narrator := narration.New(tts, cfg.TTS, logging.NewNop(),
		narration.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	compositor := NewCompositor(cfg.Video, logging.NewNop())
	compositor.runCommand = succeedingRunner(t)
	return NewHandler(cfg, narrator, compositor, logging.NewNop())
}

func seededItem(t *testing.T, cfg *config.Config, title string, paragraphs int, withImages bool) (*queue.Item, artifacts.Layout) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	item, err := store.NewItem(context.Background(), title)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	layout := artifacts.NewLayout(cfg.Paths.BaseDir, item.Slug)

	texts := make([]string, paragraphs)
	prompts := make([]string, paragraphs)
	for i := range texts {
		texts[i] = "paragraph for narration"
		prompts[i] = "prompt"
	}
	if err := layout.WriteParagraphs(texts); err != nil {
		t.Fatalf("WriteParagraphs: %v", err)
	}
	if err := layout.WritePrompts(prompts); err != nil {
		t.Fatalf("WritePrompts: %v", err)
	}
	if withImages {
		for i := 1; i <= paragraphs; i++ {
			if err := fileutil.WriteFileAtomic(layout.ImageFile(i), []byte("png"), 0o644); err != nil {
				t.Fatalf("write image: %v", err)
			}
		}
	}
	return item, layout
}

func TestHandlerRefusesWithoutValidImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tts := &countingTTS{}
	handler := newVideoHandler(t, cfg, tts)
	item, _ := seededItem(t, cfg, "No Images", 3, false)

	err := handler.Execute(context.Background(), item)
	if err == nil || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if tts.calls != 0 {
		t.Fatal("narration must not run before images validate")
	}
}

func TestHandlerSynthesizesAndAssembles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tts := &countingTTS{}
	handler := newVideoHandler(t, cfg, tts)
	item, layout := seededItem(t, cfg, "Full Video", 3, true)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tts.calls != 3 {
		t.Fatalf("tts calls = %d, want 3", tts.calls)
	}
	if !(artifacts.Validator{}).IsValid(layout, artifacts.KindVideo) {
		t.Fatal("final video must validate after Execute")
	}
}

func TestHandlerSkipsExistingVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tts := &countingTTS{}
	handler := newVideoHandler(t, cfg, tts)
	item, layout := seededItem(t, cfg, "Done Video", 2, true)
	testsupport.WriteFile(t, layout.VideoFile(), "mp4")

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tts.calls != 0 {
		t.Fatal("existing video must short-circuit the stage")
	}
}

func TestHandlerCompositorFailureSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	narrator := narration.New(&countingTTS{}, cfg.TTS, logging.NewNop(),
		narration.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	compositor := NewCompositor(cfg.Video, logging.NewNop())
	compositor.runCommand = func(context.Context, string, ...string) error {
		return errors.New("encoder crashed")
	}
	handler := NewHandler(cfg, narrator, compositor, logging.NewNop())
	item, _ := seededItem(t, cfg, "Broken Video", 2, true)

	err := handler.Execute(context.Background(), item)
	if err == nil || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
