package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/ratelimit"
	"reelsmith/internal/services"
	"reelsmith/internal/textutil"
)

const (
	leonardoMaxPromptLen = 1000
	leonardoCooldown     = 60 * time.Second

	// Downgrade values applied after a 400 response: lower contrast and no
	// ultra enhancement make oversized payloads acceptable to the API.
	downgradeContrast = 2.0
)

// Leonardo is the cloud-queued provider: submit a generation job, poll until
// it completes, then download and normalize the result.
type Leonardo struct {
	cfg        config.Leonardo
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	httpClient *http.Client
	sleep      sleepFunc
}

// LeonardoOption customizes the provider, for tests.
type LeonardoOption func(*Leonardo)

// WithLeonardoHTTPClient overrides the HTTP client.
func WithLeonardoHTTPClient(client *http.Client) LeonardoOption {
	return func(p *Leonardo) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithLeonardoSleeper overrides poll, cooldown, and backoff waits.
func WithLeonardoSleeper(sleep sleepFunc) LeonardoOption {
	return func(p *Leonardo) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewLeonardo constructs the provider. The limiter is shared by reference
// with every worker submitting through this provider instance.
func NewLeonardo(cfg config.Leonardo, limiter *ratelimit.Limiter, logger *slog.Logger, opts ...LeonardoOption) *Leonardo {
	p := &Leonardo{
		cfg:        cfg,
		limiter:    limiter,
		logger:     logging.NewComponentLogger(logger, "leonardo"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Leonardo) Name() string { return "leonardo" }

// HealthCheck verifies an API key is configured.
func (p *Leonardo) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "images", "health", "leonardo api key missing", nil)
	}
	return nil
}

type leonardoPayload struct {
	Prompt    string  `json:"prompt"`
	ModelID   string  `json:"modelId"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	NumImages int     `json:"num_images"`
	Contrast  float64 `json:"contrast"`
	Ultra     bool    `json:"ultra"`
}

type leonardoSubmitResponse struct {
	Job struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type leonardoPollResponse struct {
	Generation struct {
		Status string `json:"status"`
		Images []struct {
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

// Generate runs the full submit/poll/download sequence for one prompt.
// A 400 response earns one automatic payload downgrade; auth failures are
// terminal; 429 waits a fixed cooldown; transport errors, download and
// normalization failures included, retry with bounded exponential backoff.
func (p *Leonardo) Generate(ctx context.Context, prompt, outputPath string) error {
	if err := p.HealthCheck(ctx); err != nil {
		return err
	}

	payload := leonardoPayload{
		Prompt:    textutil.Truncate(strings.TrimSpace(prompt), leonardoMaxPromptLen),
		ModelID:   p.cfg.ModelID,
		Width:     p.cfg.Width,
		Height:    p.cfg.Height,
		NumImages: 1,
		Contrast:  p.cfg.Contrast,
		Ultra:     p.cfg.Ultra,
	}

	downgraded := false
	transportAttempts := 0
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return services.Wrap(services.ErrTimeout, "images", "rate limit", "wait for admission", err)
		}

		imageURL, err := p.runJob(ctx, payload)
		if err == nil {
			err = p.saveImage(ctx, imageURL, outputPath)
			if err == nil {
				return nil
			}
		}

		var statusErr *httpStatusError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest:
			if downgraded {
				return services.Wrap(services.ErrTerminal, "images", "submit", "request rejected after downgrade", err)
			}
			downgraded = true
			payload.Contrast = downgradeContrast
			payload.Ultra = false
			p.logger.Warn("request rejected, retrying with downgraded payload", logging.Error(err))
		case errors.As(err, &statusErr) && isAuthStatus(statusErr.StatusCode):
			return services.Wrap(services.ErrTerminal, "images", "submit", "authentication rejected", err)
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests:
			p.logger.Warn("provider rate limit hit, cooling down", logging.Duration("cooldown", leonardoCooldown))
			if sleepErr := p.sleep(ctx, leonardoCooldown); sleepErr != nil {
				return sleepErr
			}
		default:
			transportAttempts++
			if transportAttempts >= p.cfg.MaxAttempts {
				return services.Wrap(services.ErrTransient, "images", "generate",
					fmt.Sprintf("gave up after %d attempts", transportAttempts), err)
			}
			delay := time.Duration(1<<(transportAttempts-1)) * time.Second
			p.logger.Warn("generation attempt failed, backing off",
				logging.Int("attempt", transportAttempts),
				logging.Duration("delay", delay),
				logging.Error(err))
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

// runJob submits one generation and polls it to completion, returning the
// download URL of the produced image.
func (p *Leonardo) runJob(ctx context.Context, payload leonardoPayload) (string, error) {
	generationID, err := p.submit(ctx, payload)
	if err != nil {
		return "", err
	}

	pollInterval := time.Duration(p.cfg.PollIntervalSeconds) * time.Second
	for poll := 0; poll < p.cfg.MaxPolls; poll++ {
		if err := p.sleep(ctx, pollInterval); err != nil {
			return "", err
		}
		status, url, err := p.poll(ctx, generationID)
		if err != nil {
			return "", err
		}
		switch status {
		case "COMPLETE":
			if url == "" {
				return "", fmt.Errorf("generation %s completed without images", generationID)
			}
			return url, nil
		case "FAILED":
			return "", fmt.Errorf("generation %s failed remotely", generationID)
		default:
			// PENDING: keep polling.
		}
	}
	return "", services.Wrap(services.ErrTimeout, "images", "poll",
		fmt.Sprintf("generation %s still queued after %d polls", generationID, p.cfg.MaxPolls), nil)
}

func (p *Leonardo) submit(ctx context.Context, payload leonardoPayload) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/generations", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := p.do(req)
	if err != nil {
		return "", err
	}

	var parsed leonardoSubmitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if parsed.Job.GenerationID == "" {
		return "", errors.New("submit response missing generation id")
	}
	return parsed.Job.GenerationID, nil
}

func (p *Leonardo) poll(ctx context.Context, generationID string) (status, url string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/generations/"+generationID, nil)
	if err != nil {
		return "", "", fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	body, err := p.do(req)
	if err != nil {
		return "", "", err
	}

	var parsed leonardoPollResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("decode poll response: %w", err)
	}
	status = strings.ToUpper(strings.TrimSpace(parsed.Generation.Status))
	if len(parsed.Generation.Images) > 0 {
		url = parsed.Generation.Images[0].URL
	}
	return status, url, nil
}

func (p *Leonardo) saveImage(ctx context.Context, imageURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	raw, err := p.do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "images", "download", "fetch generated image", err)
	}
	encoded, err := encodePNGAtSize(raw, p.cfg.Width, p.cfg.Height)
	if err != nil {
		return services.Wrap(services.ErrTransient, "images", "download", "normalize generated image", err)
	}
	return fileutil.WriteFileAtomic(outputPath, encoded, 0o644)
}

func (p *Leonardo) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
