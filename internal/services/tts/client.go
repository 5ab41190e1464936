// Package tts wraps the speech synthesis endpoint used for paragraph narration.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/services"
)

const defaultRequestTimeout = 120 * time.Second

// Client synthesizes narration audio through an ElevenLabs style endpoint.
type Client struct {
	cfg        config.TTS
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a synthesis client.
func NewClient(cfg config.TTS, opts ...Option) *Client {
	timeout := defaultRequestTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// HealthCheck verifies credentials and voice selection are present.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "narration", "health", "tts api key missing", nil)
	}
	if strings.TrimSpace(c.cfg.Voice) == "" {
		return services.Wrap(services.ErrConfiguration, "narration", "health", "tts voice missing", nil)
	}
	return nil
}

type synthesisRequest struct {
	Text string `json:"text"`
}

// Synthesize renders text to MP3 and writes it atomically to outputPath.
func (c *Client) Synthesize(ctx context.Context, text, outputPath string) error {
	if err := c.HealthCheck(ctx); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("tts synthesize: text required")
	}

	payload, err := json.Marshal(synthesisRequest{Text: text})
	if err != nil {
		return fmt.Errorf("tts synthesize: encode body: %w", err)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + c.cfg.Voice
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("tts synthesize: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "narration", "synthesize", "http request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "narration", "synthesize", "read response", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return services.Wrap(services.ErrTerminal, "narration", "synthesize",
			fmt.Sprintf("authentication rejected (http %d)", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransient, "narration", "synthesize",
			fmt.Sprintf("http %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}
	if len(body) == 0 {
		return services.Wrap(services.ErrTransient, "narration", "synthesize", "empty audio response", nil)
	}
	if err := fileutil.WriteFileAtomic(outputPath, body, 0o644); err != nil {
		return fmt.Errorf("tts synthesize: write %s: %w", outputPath, err)
	}
	return nil
}

func truncateBody(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
