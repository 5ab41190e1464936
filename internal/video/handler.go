package video

import (
	"context"
	"log/slog"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/narration"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// Handler drives narration synthesis and final assembly for one work item.
// Video work only starts once the item's image set validates.
type Handler struct {
	cfg        *config.Config
	narrator   *narration.Narrator
	compositor *Compositor
	validator  artifacts.Validator
	logger     *slog.Logger
}

// NewHandler constructs the video stage handler.
func NewHandler(cfg *config.Config, narrator *narration.Narrator, compositor *Compositor, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		narrator:   narrator,
		compositor: compositor,
		logger:     logging.NewComponentLogger(logger, "video"),
	}
}

// Stage identifies the queue stage this handler advances.
func (h *Handler) Stage() queue.Stage { return queue.StageVideo }

// Prepare creates the story directory.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	return h.layout(item).EnsureDir()
}

// HealthCheck reports whether both collaborators are usable.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.narrator.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("video", err.Error())
	}
	if err := h.compositor.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("video", err.Error())
	}
	return stage.Healthy("video")
}

// Execute synthesizes any missing narration and assembles the final video.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := h.layout(item)
	if h.validator.IsValid(layout, artifacts.KindVideo) {
		h.logger.Info("final video already present, skipping assembly",
			logging.String(logging.FieldTitle, item.Title))
		return nil
	}
	if !h.validator.IsValid(layout, artifacts.KindImages) {
		return services.Wrap(services.ErrValidation, "video", "execute",
			"image set incomplete, refusing to assemble", nil)
	}
	if err := h.narrator.EnsureAudio(ctx, layout); err != nil {
		return err
	}
	if err := h.compositor.Compose(ctx, layout); err != nil {
		return err
	}
	if !h.validator.IsValid(layout, artifacts.KindVideo) {
		return services.Wrap(services.ErrExternalTool, "video", "execute",
			"assembly finished but final video is missing or empty", nil)
	}
	return nil
}

func (h *Handler) layout(item *queue.Item) artifacts.Layout {
	return artifacts.NewLayout(h.cfg.Paths.BaseDir, item.Slug)
}
