// Package story implements the story stage: generate narrative paragraphs and
// per-paragraph image prompts, reconcile them, and persist the artifact files.
package story

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const (
	// minParagraphs is the floor below which a generated story is rejected.
	minParagraphs = 14

	// promptPrefix must open every image prompt so all images share one style.
	promptPrefix = "A cinematic, hyper-realistic, epic scene with dramatic lighting, 9:16 aspect ratio."

	fallbackPrompt = promptPrefix + " Ancient scene with dramatic composition."

	// secondsPerWord estimates narration duration for the control ledger.
	secondsPerWord = 0.3
)

const storySystemPrompt = `You write short emotive stories for narrated vertical video reels.
Structure: an attention hook first, then development, a climax, a closing
reflection, and a call to action inviting viewers to subscribe and share.
Produce 16 to 20 paragraphs of 25 to 30 words each. Do not number or title
the paragraphs. Separate paragraphs with the '|' character instead of
line breaks.`

const promptSystemPrompt = `You write English image-generation prompts for single paragraphs of a story.
Every prompt must begin with: "` + promptPrefix + `"
After the prefix, describe the scene in detail: clothing and appearance,
actions and expressions, the setting, the atmosphere and lighting. Avoid
explicit religious or violent keywords; describe what is seen instead.
Respond with the prompt only, no explanations.`

// TextService is the subset of the text-generation client the stage needs.
type TextService interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Handler drives story generation for one work item.
type Handler struct {
	cfg       *config.Config
	text      TextService
	validator artifacts.Validator
	logger    *slog.Logger

	pickMusic func(dir string) (string, error)
}

// NewHandler constructs the story stage handler.
func NewHandler(cfg *config.Config, text TextService, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		text:      text,
		logger:    logging.NewComponentLogger(logger, "story"),
		pickMusic: randomMusicFile,
	}
}

// Stage identifies the queue stage this handler advances.
func (h *Handler) Stage() queue.Stage { return queue.StageStory }

// Prepare creates the story directory.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	return h.layout(item).EnsureDir()
}

// HealthCheck reports whether the text service is usable.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.text.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("story", err.Error())
	}
	return stage.Healthy("story")
}

// Execute generates paragraphs and prompts for the item and persists them.
// Existing valid story artifacts are left untouched.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := h.layout(item)
	if h.validator.IsValid(layout, artifacts.KindStory) {
		h.logger.Info("story artifacts already valid, skipping generation",
			logging.String(logging.FieldTitle, item.Title))
		return nil
	}

	paragraphs, err := h.generateParagraphs(ctx, item.Title)
	if err != nil {
		return err
	}
	prompts, substituted := h.generatePrompts(ctx, paragraphs)

	paragraphs, prompts, err = reconcile(paragraphs, prompts)
	if err != nil {
		return err
	}

	if err := layout.WriteParagraphs(paragraphs); err != nil {
		return fmt.Errorf("story: write paragraphs: %w", err)
	}
	if err := layout.WritePrompts(prompts); err != nil {
		return fmt.Errorf("story: write prompts: %w", err)
	}
	if err := layout.WriteControl(controlEntries(paragraphs)); err != nil {
		return fmt.Errorf("story: write control file: %w", err)
	}
	h.copyBackgroundMusic(layout, item.Title)

	h.logger.Info("story generated",
		logging.String(logging.FieldTitle, item.Title),
		logging.Int("paragraphs", len(paragraphs)),
		logging.Int("substituted_prompts", substituted))
	return nil
}

func (h *Handler) layout(item *queue.Item) artifacts.Layout {
	return artifacts.NewLayout(h.cfg.Paths.BaseDir, item.Slug)
}

func (h *Handler) generateParagraphs(ctx context.Context, title string) ([]string, error) {
	request := fmt.Sprintf("Write the story for the title: %q", title)
	response, err := h.text.Complete(ctx, storySystemPrompt, request)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "story", "generate", "story generation failed", err)
	}
	paragraphs := splitStory(response)
	if len(paragraphs) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "story", "generate", "story response contained no paragraphs", nil)
	}
	return paragraphs, nil
}

// generatePrompts requests one image prompt per paragraph. A failed request
// substitutes the generic fallback prompt instead of failing the stage.
func (h *Handler) generatePrompts(ctx context.Context, paragraphs []string) ([]string, int) {
	prompts := make([]string, 0, len(paragraphs))
	substituted := 0
	for i, paragraph := range paragraphs {
		request := fmt.Sprintf("PARAGRAPH: %q", paragraph)
		response, err := h.text.Complete(ctx, promptSystemPrompt, request)
		if err != nil || strings.TrimSpace(response) == "" {
			h.logger.Warn("prompt generation failed, substituting generic prompt",
				logging.Int(logging.FieldImageIndex, i+1),
				logging.Error(err))
			prompts = append(prompts, fallbackPrompt)
			substituted++
			continue
		}
		prompts = append(prompts, enforcePrefix(response))
	}
	return prompts, substituted
}

// reconcile truncates both lists to the shorter and rejects stories below the
// paragraph floor. Nothing is persisted when it fails.
func reconcile(paragraphs, prompts []string) ([]string, []string, error) {
	count := min(len(paragraphs), len(prompts))
	if count < minParagraphs {
		return nil, nil, services.Wrap(services.ErrValidation, "story", "reconcile",
			fmt.Sprintf("generated %d paragraph/prompt pairs, need at least %d", count, minParagraphs), nil)
	}
	return paragraphs[:count], prompts[:count], nil
}

func splitStory(response string) []string {
	var paragraphs []string
	for _, part := range strings.Split(response, "|") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

func enforcePrefix(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if strings.HasPrefix(prompt, promptPrefix) {
		return prompt
	}
	return promptPrefix + " " + prompt
}

func controlEntries(paragraphs []string) []artifacts.ControlEntry {
	entries := make([]artifacts.ControlEntry, len(paragraphs))
	for i, paragraph := range paragraphs {
		entries[i] = artifacts.ControlEntry{
			Index:             i + 1,
			Text:              paragraph,
			Image:             fmt.Sprintf("imagen_%d.png", i+1),
			EstimatedDuration: float64(len(strings.Fields(paragraph))) * secondsPerWord,
		}
	}
	return entries
}

// copyBackgroundMusic drops a random track into the story directory. Failures
// only warn: the compositor works without background music.
func (h *Handler) copyBackgroundMusic(layout artifacts.Layout, title string) {
	if h.cfg.Paths.MusicDir == "" {
		return
	}
	source, err := h.pickMusic(h.cfg.Paths.MusicDir)
	if err != nil {
		h.logger.Warn("no background music copied",
			logging.String(logging.FieldTitle, title),
			logging.Error(err))
		return
	}
	dest := filepath.Join(layout.Dir(), filepath.Base(source))
	if err := fileutil.CopyFile(source, dest); err != nil {
		h.logger.Warn("background music copy failed",
			logging.String(logging.FieldTitle, title),
			logging.Error(err))
		return
	}
	h.logger.Info("background music copied",
		logging.String(logging.FieldTitle, title),
		logging.String("track", filepath.Base(source)))
}

func randomMusicFile(dir string) (string, error) {
	var tracks []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".mp3") {
			tracks = append(tracks, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan music directory %s: %w", dir, err)
	}
	if len(tracks) == 0 {
		return "", fmt.Errorf("no .mp3 files in %s", dir)
	}
	return tracks[rand.IntN(len(tracks))], nil
}
