package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// LocalSD is the local-inference provider: a synchronous, compute-bound
// invocation of a stable-diffusion binary. A model that cannot be loaded is
// terminal for every subsequent call until the process restarts.
type LocalSD struct {
	cfg    config.LocalSD
	logger *slog.Logger

	mu            sync.Mutex
	loadErr       error
	adapterWarned bool

	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewLocalSD constructs the provider.
func NewLocalSD(cfg config.LocalSD, logger *slog.Logger) *LocalSD {
	p := &LocalSD{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "localsd"),
	}
	p.runCommand = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w (output: %s)", name, err, truncateOutput(out))
		}
		return nil
	}
	return p
}

func (p *LocalSD) Name() string { return "localsd" }

// HealthCheck verifies the model asset exists before any generation runs.
func (p *LocalSD) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	if !fileutil.ExistsNonEmpty(p.cfg.ModelPath) {
		p.loadErr = services.Wrap(services.ErrTerminal, "images", "load model",
			fmt.Sprintf("model %q missing or empty", p.cfg.ModelPath), nil)
		return p.loadErr
	}
	return nil
}

// Generate invokes the local binary. The optional style adapter degrades
// silently to the base model when its asset is missing.
func (p *LocalSD) Generate(ctx context.Context, prompt, outputPath string) error {
	if err := p.HealthCheck(ctx); err != nil {
		return err
	}

	args := []string{
		"-m", p.cfg.ModelPath,
		"-p", prompt,
		"-W", strconv.Itoa(p.cfg.Width),
		"-H", strconv.Itoa(p.cfg.Height),
		"--steps", strconv.Itoa(p.cfg.Steps),
		"-o", outputPath,
	}
	if adapter := p.cfg.StyleAdapterPath; adapter != "" {
		if fileutil.ExistsNonEmpty(adapter) {
			args = append(args, "--lora", adapter)
		} else {
			p.warnAdapterOnce(adapter)
		}
	}

	runCtx := ctx
	if p.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	if err := p.runCommand(runCtx, p.cfg.Binary, args...); err != nil {
		// A failed run may still have written a partial file, which would
		// otherwise be accepted as a valid image on the next pass.
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrExternalTool, "images", "generate", "local inference failed", err)
	}
	if !fileutil.ExistsNonEmpty(outputPath) {
		return services.Wrap(services.ErrExternalTool, "images", "generate", "binary exited without output", nil)
	}
	return nil
}

func (p *LocalSD) warnAdapterOnce(adapter string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adapterWarned {
		return
	}
	p.adapterWarned = true
	p.logger.Warn("style adapter missing, using base model", logging.String("adapter", adapter))
}

func truncateOutput(out []byte) string {
	const limit = 400
	if len(out) > limit {
		out = out[:limit]
	}
	return string(out)
}
