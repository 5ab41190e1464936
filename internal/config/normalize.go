package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTextGen()
	c.normalizeTTS()
	if err := c.normalizeImages(); err != nil {
		return err
	}
	c.normalizeVideo()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		c.Paths.BaseDir = defaultBaseDir
	}
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.MusicDir = strings.TrimSpace(c.Paths.MusicDir)
	if c.Paths.MusicDir != "" {
		if c.Paths.MusicDir, err = expandPath(c.Paths.MusicDir); err != nil {
			return fmt.Errorf("paths.music_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTextGen() {
	c.TextGen.APIKey = strings.TrimSpace(c.TextGen.APIKey)
	if c.TextGen.APIKey == "" {
		if value, ok := os.LookupEnv("REELSMITH_TEXTGEN_API_KEY"); ok {
			c.TextGen.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.TextGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.TextGen.BaseURL = strings.TrimSpace(c.TextGen.BaseURL)
	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = defaultTextGenBaseURL
	}
	c.TextGen.Model = strings.TrimSpace(c.TextGen.Model)
	if c.TextGen.Model == "" {
		c.TextGen.Model = defaultTextGenModel
	}
	if c.TextGen.TimeoutSeconds <= 0 {
		c.TextGen.TimeoutSeconds = defaultTextGenTimeoutSeconds
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	if c.TTS.APIKey == "" {
		if value, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok {
			c.TTS.APIKey = strings.TrimSpace(value)
		}
	}
	c.TTS.BaseURL = strings.TrimSpace(c.TTS.BaseURL)
	if c.TTS.BaseURL == "" {
		c.TTS.BaseURL = defaultTTSBaseURL
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
	if c.TTS.RequestSpacingSeconds < 0 {
		c.TTS.RequestSpacingSeconds = defaultTTSRequestSpacingSeconds
	}
}

func (c *Config) normalizeImages() error {
	c.Images.Provider = strings.ToLower(strings.TrimSpace(c.Images.Provider))
	if c.Images.Provider == "" {
		c.Images.Provider = defaultImageProvider
	}
	if c.Images.Workers < 0 {
		c.Images.Workers = 0
	}

	leo := &c.Images.Leonardo
	leo.APIKey = strings.TrimSpace(leo.APIKey)
	if leo.APIKey == "" {
		if value, ok := os.LookupEnv("LEONARDO_API_KEY"); ok {
			leo.APIKey = strings.TrimSpace(value)
		}
	}
	leo.BaseURL = strings.TrimSpace(leo.BaseURL)
	if leo.BaseURL == "" {
		leo.BaseURL = defaultLeonardoBaseURL
	}
	if leo.ModelID == "" {
		leo.ModelID = defaultLeonardoModelID
	}
	if leo.Width <= 0 {
		leo.Width = defaultLeonardoWidth
	}
	if leo.Height <= 0 {
		leo.Height = defaultLeonardoHeight
	}
	if leo.Contrast <= 0 {
		leo.Contrast = defaultLeonardoContrast
	}
	if leo.PollIntervalSeconds <= 0 {
		leo.PollIntervalSeconds = defaultLeonardoPollIntervalSeconds
	}
	if leo.MaxPolls <= 0 {
		leo.MaxPolls = defaultLeonardoMaxPolls
	}
	if leo.RequestsPerMinute <= 0 {
		leo.RequestsPerMinute = defaultLeonardoRequestsPerMinute
	}
	if leo.MaxAttempts <= 0 {
		leo.MaxAttempts = defaultLeonardoMaxAttempts
	}

	flux := &c.Images.Flux
	flux.APIKey = strings.TrimSpace(flux.APIKey)
	if flux.APIKey == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			flux.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			flux.APIKey = strings.TrimSpace(value)
		}
	}
	flux.BaseURL = strings.TrimSpace(flux.BaseURL)
	if flux.BaseURL == "" {
		flux.BaseURL = defaultFluxBaseURL
	}
	if flux.Width <= 0 {
		flux.Width = defaultFluxWidth
	}
	if flux.Height <= 0 {
		flux.Height = defaultFluxHeight
	}
	if flux.TimeoutSeconds <= 0 {
		flux.TimeoutSeconds = defaultFluxTimeoutSeconds
	}

	local := &c.Images.LocalSD
	local.Binary = strings.TrimSpace(local.Binary)
	if local.Binary == "" {
		local.Binary = defaultLocalSDBinary
	}
	var err error
	if strings.TrimSpace(local.ModelPath) != "" {
		if local.ModelPath, err = expandPath(local.ModelPath); err != nil {
			return fmt.Errorf("images.localsd.model_path: %w", err)
		}
	}
	if strings.TrimSpace(local.StyleAdapterPath) != "" {
		if local.StyleAdapterPath, err = expandPath(local.StyleAdapterPath); err != nil {
			return fmt.Errorf("images.localsd.style_adapter_path: %w", err)
		}
	}
	if local.Width <= 0 {
		local.Width = defaultLocalSDWidth
	}
	if local.Height <= 0 {
		local.Height = defaultLocalSDHeight
	}
	if local.Steps <= 0 {
		local.Steps = defaultLocalSDSteps
	}
	if local.TimeoutSeconds <= 0 {
		local.TimeoutSeconds = defaultLocalSDTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeVideo() {
	c.Video.FFmpegBinary = strings.TrimSpace(c.Video.FFmpegBinary)
	c.Video.ImageOrder = strings.ToLower(strings.TrimSpace(c.Video.ImageOrder))
	switch c.Video.ImageOrder {
	case "", "name":
		c.Video.ImageOrder = "name"
	case "mtime":
	default:
		c.Video.ImageOrder = "name"
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
