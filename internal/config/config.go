package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// BaseDir is the root under which each story gets its artifact directory.
	BaseDir  string `toml:"base_dir"`
	MusicDir string `toml:"music_dir"`
	LogDir   string `toml:"log_dir"`
}

// TextGen contains configuration for the story/prompt text-generation service.
type TextGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains configuration for the narration synthesis service.
type TTS struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Voice                 string `toml:"voice"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	RequestSpacingSeconds int    `toml:"request_spacing_seconds"`
}

// Leonardo contains configuration for the cloud-queued image provider.
type Leonardo struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	ModelID             string  `toml:"model_id"`
	Width               int     `toml:"width"`
	Height              int     `toml:"height"`
	Contrast            float64 `toml:"contrast"`
	Ultra               bool    `toml:"ultra"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	MaxPolls            int     `toml:"max_polls"`
	RequestsPerMinute   int     `toml:"requests_per_minute"`
	MaxAttempts         int     `toml:"max_attempts"`
}

// Flux contains configuration for the direct-synchronous hosted provider.
type Flux struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LocalSD contains configuration for the local-inference provider.
type LocalSD struct {
	Binary           string `toml:"binary"`
	ModelPath        string `toml:"model_path"`
	StyleAdapterPath string `toml:"style_adapter_path"`
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	Steps            int    `toml:"steps"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Images contains provider selection and dispatch policy.
type Images struct {
	Provider string   `toml:"provider"`
	Fallback bool     `toml:"fallback"`
	Workers  int      `toml:"workers"`
	Leonardo Leonardo `toml:"leonardo"`
	Flux     Flux     `toml:"flux"`
	LocalSD  LocalSD  `toml:"localsd"`
}

// Video contains configuration for final video assembly.
type Video struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Subtitles    bool   `toml:"subtitles"`
	ImageOrder   string `toml:"image_order"`
}

// Workflow contains reconciler timing configuration.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: artifact root, background music directory, log directory
//   - TextGen: story and prompt generation service connection
//   - TTS: narration synthesis service connection and pacing
//   - Images: provider selection, fallback policy, per-provider settings
//   - Video: ffmpeg assembly options
//   - Workflow: queue polling intervals
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	TextGen  TextGen  `toml:"textgen"`
	TTS      TTS      `toml:"tts"`
	Images   Images   `toml:"images"`
	Video    Video    `toml:"video"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/reelsmith/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// MusicDir is optional and created on a best-effort basis.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.BaseDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.MusicDir) != "" {
		_ = os.MkdirAll(c.Paths.MusicDir, 0o755)
	}
	return nil
}

// QueueDatabasePath returns the SQLite work-queue location.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}

// FFmpegBinary returns the ffmpeg executable used for video assembly.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Video.FFmpegBinary) != "" {
		return c.Video.FFmpegBinary
	}
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
