package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Flux is the direct-synchronous provider: one POST to a hosted inference
// endpoint returns the image bytes. It performs no internal retries; retry
// policy, if any, belongs to the caller.
type Flux struct {
	cfg        config.Flux
	logger     *slog.Logger
	httpClient *http.Client
}

// FluxOption customizes the provider, for tests.
type FluxOption func(*Flux)

// WithFluxHTTPClient overrides the HTTP client.
func WithFluxHTTPClient(client *http.Client) FluxOption {
	return func(p *Flux) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewFlux constructs the provider.
func NewFlux(cfg config.Flux, logger *slog.Logger, opts ...FluxOption) *Flux {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	p := &Flux{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "flux"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Flux) Name() string { return "flux" }

// HealthCheck verifies an API token is configured.
func (p *Flux) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "images", "health", "flux api token missing", nil)
	}
	return nil
}

type fluxRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters fluxParameters `json:"parameters"`
}

type fluxParameters struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Generate issues a single request and saves the returned image. Empty or
// malformed responses are failures.
func (p *Flux) Generate(ctx context.Context, prompt, outputPath string) error {
	if err := p.HealthCheck(ctx); err != nil {
		return err
	}

	encoded, err := json.Marshal(fluxRequest{
		Inputs:     strings.TrimSpace(prompt),
		Parameters: fluxParameters{Width: p.cfg.Width, Height: p.cfg.Height},
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "images", "generate", "flux request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "images", "generate", "read flux response", err)
	}
	if isAuthStatus(resp.StatusCode) {
		return services.Wrap(services.ErrTerminal, "images", "generate", "authentication rejected",
			&httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransient, "images", "generate", "flux request rejected",
			&httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}
	if len(body) == 0 {
		return services.Wrap(services.ErrTransient, "images", "generate", "empty flux response", nil)
	}

	normalized, err := encodePNGAtSize(body, p.cfg.Width, p.cfg.Height)
	if err != nil {
		return services.Wrap(services.ErrTransient, "images", "generate", "malformed flux response", err)
	}
	return fileutil.WriteFileAtomic(outputPath, normalized, 0o644)
}
