// Package imagegen contains the pluggable image providers and the dispatcher
// that fills a story's image set from its prompts.
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/ratelimit"
)

// Provider produces one image file for a prompt, or fails. On failure no
// non-empty file may remain at outputPath. Each provider renders at its own
// fixed resolution; callers must not assume a universal size.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt, outputPath string) error
	HealthCheck(ctx context.Context) error
}

// Select constructs the configured provider. The leonardo provider gets its
// own sliding-window limiter, shared by reference with any worker pool.
func Select(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Images.Provider {
	case "leonardo":
		limiter := ratelimit.New(cfg.Images.Leonardo.RequestsPerMinute)
		return NewLeonardo(cfg.Images.Leonardo, limiter, logger), nil
	case "flux":
		return NewFlux(cfg.Images.Flux, logger), nil
	case "localsd":
		return NewLocalSD(cfg.Images.LocalSD, logger), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Images.Provider)
	}
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// sleepFunc lets tests replace retry and poll waits with instant returns.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
