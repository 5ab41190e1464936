package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/imagegen"
	"reelsmith/internal/logging"
	"reelsmith/internal/narration"
	"reelsmith/internal/queue"
	"reelsmith/internal/stage"
	"reelsmith/internal/story"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/video"
	"reelsmith/internal/workflow"
)

// scriptedText answers the first Complete call per item with a '|' separated
// story and later calls with one prompt each. Titles listed in failTitles get
// a failing story request.
type scriptedText struct {
	paragraphs int
	failTitles map[string]bool
	storyCalls int
}

func (s *scriptedText) HealthCheck(context.Context) error { return nil }

func (s *scriptedText) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.Contains(systemPrompt, "image-generation prompts") {
		return "scene described from the paragraph", nil
	}
	s.storyCalls++
	for title := range s.failTitles {
		if strings.Contains(userPrompt, title) {
			return "", errors.New("text service rejected the request")
		}
	}
	parts := make([]string, s.paragraphs)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %d with words enough to narrate aloud.", i+1)
	}
	return strings.Join(parts, " | "), nil
}

// indexedProvider writes the prompt as image bytes and fails the listed
// 1-based indices.
type indexedProvider struct {
	failIndices map[int]bool
}

func (p *indexedProvider) Name() string { return "indexed" }

func (p *indexedProvider) HealthCheck(context.Context) error { return nil }

func (p *indexedProvider) Generate(_ context.Context, prompt, outputPath string) error {
	for index := range p.failIndices {
		if strings.HasSuffix(outputPath, fmt.Sprintf("imagen_%d.png", index)) {
			return errors.New("provider refused this index")
		}
	}
	return fileutil.WriteFileAtomic(outputPath, []byte("img:"+prompt+":"+outputPath), 0o644)
}

type fakeTTS struct{}

func (fakeTTS) HealthCheck(context.Context) error { return nil }

func (fakeTTS) Synthesize(_ context.Context, text, outputPath string) error {
	return fileutil.WriteFileAtomic(outputPath, []byte("mp3:"+text), 0o644)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func ffmpegStub(_ context.Context, _ string, args ...string) error {
	return os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
}

func newPipeline(t *testing.T, cfg *config.Config, store *queue.Store, text story.TextService, provider imagegen.Provider) *workflow.Reconciler {
	t.Helper()
	nop := logging.NewNop()
	narrator := narration.New(fakeTTS{}, cfg.TTS, nop, narration.WithSleeper(noSleep))
	compositor := video.NewCompositor(cfg.Video, nop, video.WithRunner(ffmpegStub))
	handlers := []stage.Handler{
		story.NewHandler(cfg, text, nop),
		imagegen.NewHandlerWithProvider(cfg, provider, nop),
		video.NewHandler(cfg, narrator, compositor, nop),
	}
	return workflow.New(store, handlers, cfg, nop, workflow.WithSleeper(noSleep))
}

func TestReconcileFullPipelineWithImageFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewItem(ctx, "Test Story"); err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	text := &scriptedText{paragraphs: 16}
	provider := &indexedProvider{failIndices: map[int]bool{16: true}}
	reconciler := newPipeline(t, cfg, store, text, provider)

	result, err := reconciler.ReconcileOnce(ctx, workflow.ModeFull)
	if err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if result.Examined != 1 || result.Advanced != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	item, err := store.GetByTitle(ctx, "Test Story")
	if err != nil || item == nil {
		t.Fatalf("GetByTitle: %v", err)
	}
	if !item.StoryStatus.IsDone() || !item.ImagesStatus.IsDone() || !item.VideoStatus.IsDone() {
		t.Fatalf("statuses = %s/%s/%s", item.StoryStatus, item.ImagesStatus, item.VideoStatus)
	}
	if item.VideoStatus != queue.StatusDoneVideo {
		t.Fatalf("video column = %q, want %q", item.VideoStatus, queue.StatusDoneVideo)
	}

	layout := artifacts.NewLayout(cfg.Paths.BaseDir, item.Slug)
	for i := 1; i <= 16; i++ {
		if !fileutil.ExistsNonEmpty(layout.ImageFile(i)) {
			t.Fatalf("image %d missing", i)
		}
	}
	img15, _ := os.ReadFile(layout.ImageFile(15))
	img16, _ := os.ReadFile(layout.ImageFile(16))
	if !bytes.Equal(img15, img16) {
		t.Fatal("image 16 must be the duplicated fallback of image 15")
	}
	if !fileutil.ExistsNonEmpty(layout.VideoFile()) {
		t.Fatal("final video missing")
	}
}

func TestItemFailureDoesNotHaltBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewItem(ctx, "Doomed Story"); err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if _, err := store.NewItem(ctx, "Healthy Story"); err != nil {
		t.Fatalf("NewItem: %v", err)
	}

	text := &scriptedText{paragraphs: 16, failTitles: map[string]bool{"Doomed Story": true}}
	reconciler := newPipeline(t, cfg, store, text, &indexedProvider{})

	result, err := reconciler.ReconcileOnce(ctx, workflow.ModeFull)
	if err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if result.Examined != 2 || result.Advanced != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	doomed, _ := store.GetByTitle(ctx, "Doomed Story")
	if doomed.ErrorMessage == "" {
		t.Fatal("failed item must carry an error message")
	}
	if !doomed.StoryStatus.IsPending() {
		t.Fatalf("failed item story status = %q, must stay pending", doomed.StoryStatus)
	}

	healthy, _ := store.GetByTitle(ctx, "Healthy Story")
	if !healthy.Completed() {
		t.Fatalf("healthy item statuses = %s/%s/%s",
			healthy.StoryStatus, healthy.ImagesStatus, healthy.VideoStatus)
	}
}

func TestStoryOnlyModeStopsAfterStory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewItem(ctx, "Story Only"); err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	reconciler := newPipeline(t, cfg, store, &scriptedText{paragraphs: 14}, &indexedProvider{})

	if _, err := reconciler.ReconcileOnce(ctx, workflow.ModeStory); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	item, _ := store.GetByTitle(ctx, "Story Only")
	if !item.StoryStatus.IsDone() {
		t.Fatalf("story status = %q", item.StoryStatus)
	}
	if !item.ImagesStatus.IsPending() || !item.VideoStatus.IsPending() {
		t.Fatalf("later stages must stay pending, got %s/%s", item.ImagesStatus, item.VideoStatus)
	}
}

func TestModeFilteringSelectsStatusColumn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item, err := store.NewItem(ctx, "Video Done")
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if err := store.MarkStageDone(ctx, item.ID, queue.StageVideo); err != nil {
		t.Fatalf("MarkStageDone: %v", err)
	}

	reconciler := newPipeline(t, cfg, store, &scriptedText{paragraphs: 14}, &indexedProvider{})
	result, err := reconciler.ReconcileOnce(ctx, workflow.ModeVideo)
	if err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if result.Examined != 0 {
		t.Fatalf("video-only pass examined %d items, want 0", result.Examined)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewItem(ctx, "Idempotent Story"); err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	text := &scriptedText{paragraphs: 14}
	reconciler := newPipeline(t, cfg, store, text, &indexedProvider{})

	if _, err := reconciler.ReconcileOnce(ctx, workflow.ModeFull); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	firstStoryCalls := text.storyCalls

	result, err := reconciler.ReconcileOnce(ctx, workflow.ModeFull)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if result.Examined != 0 {
		t.Fatalf("completed item re-examined: %+v", result)
	}
	if text.storyCalls != firstStoryCalls {
		t.Fatal("second pass must not regenerate the story")
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    workflow.Mode
		wantErr bool
	}{
		{"full", workflow.ModeFull, false},
		{" Images ", workflow.ModeImages, false},
		{"VIDEO", workflow.ModeVideo, false},
		{"story", workflow.ModeStory, false},
		{"audio", "", true},
	}
	for _, tc := range cases {
		got, err := workflow.ParseMode(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("ParseMode(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	reconciler := newPipeline(t, cfg, store, &scriptedText{paragraphs: 14}, &indexedProvider{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := reconciler.Run(ctx, workflow.ModeFull); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
