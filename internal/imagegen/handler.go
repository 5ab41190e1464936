package imagegen

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// Handler drives the images stage: the story's prompts become one image file
// per index, with fallback substitutions when the provider fails mid-set.
type Handler struct {
	cfg        *config.Config
	provider   Provider
	dispatcher *Dispatcher
	validator  artifacts.Validator
	logger     *slog.Logger
}

// NewHandler selects the configured provider and builds the images handler.
func NewHandler(cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	provider, err := Select(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:        cfg,
		provider:   provider,
		dispatcher: NewDispatcher(provider, cfg.Images.Fallback, cfg.Images.Workers, logger),
		logger:     logging.NewComponentLogger(logger, "images"),
	}, nil
}

// NewHandlerWithProvider builds the handler around an explicit provider.
func NewHandlerWithProvider(cfg *config.Config, provider Provider, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		provider:   provider,
		dispatcher: NewDispatcher(provider, cfg.Images.Fallback, cfg.Images.Workers, logger),
		logger:     logging.NewComponentLogger(logger, "images"),
	}
}

// Stage identifies the queue stage this handler advances.
func (h *Handler) Stage() queue.Stage { return queue.StageImages }

// Prepare creates the story directory.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	return h.layout(item).EnsureDir()
}

// HealthCheck reports provider readiness.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.provider.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("images", err.Error())
	}
	return stage.Healthy("images")
}

// Execute fills the image set from the story's prompts file.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := h.layout(item)
	prompts, err := layout.ReadPrompts()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrValidation, "images", "execute",
				"prompts file missing, story stage incomplete", err)
		}
		return err
	}

	report, err := h.dispatcher.EnsureImages(ctx, layout, prompts)
	if err != nil {
		return err
	}
	if !h.validator.IsValid(layout, artifacts.KindImages) {
		return services.Wrap(services.ErrValidation, "images", "execute",
			"image set incomplete after dispatch", nil)
	}
	h.logger.Info("image set complete",
		logging.String(logging.FieldTitle, item.Title),
		logging.String(logging.FieldProvider, h.provider.Name()),
		logging.Int("generated", report.Generated),
		logging.Int("skipped", report.Skipped),
		logging.Int("fallbacks", report.Fallbacks))
	return nil
}

func (h *Handler) layout(item *queue.Item) artifacts.Layout {
	return artifacts.NewLayout(h.cfg.Paths.BaseDir, item.Slug)
}
