// Package artifacts defines the on-disk layout of one story's production
// artifacts and the validator that decides whether a stage's output exists.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed filenames inside a story directory. These match the sheets and
// scripts that predate this tool, so directories remain interchangeable.
const (
	ParagraphsFileName = "parrafos.txt"
	PromptsFileName    = "prompts.txt"
	VideoFileName      = "video_final.mp4"
	ControlFileName    = "control_parrafos.json"
)

// Layout resolves artifact paths for one story directory.
type Layout struct {
	dir string
}

// NewLayout returns the layout for a story identified by slug under baseDir.
func NewLayout(baseDir, slug string) Layout {
	return Layout{dir: filepath.Join(baseDir, slug)}
}

// Dir returns the story directory.
func (l Layout) Dir() string { return l.dir }

// EnsureDir creates the story directory if needed.
func (l Layout) EnsureDir() error {
	return os.MkdirAll(l.dir, 0o755)
}

// ParagraphsFile returns the path of the blank-line separated paragraphs file.
func (l Layout) ParagraphsFile() string { return filepath.Join(l.dir, ParagraphsFileName) }

// PromptsFile returns the path of the one-prompt-per-line prompts file.
func (l Layout) PromptsFile() string { return filepath.Join(l.dir, PromptsFileName) }

// ImageFile returns the path of the 1-based index image.
func (l Layout) ImageFile(index int) string {
	return filepath.Join(l.dir, fmt.Sprintf("imagen_%d.png", index))
}

// AudioFile returns the path of the 1-based index narration clip.
func (l Layout) AudioFile(index int) string {
	return filepath.Join(l.dir, fmt.Sprintf("voz_parrafo_%d.mp3", index))
}

// VideoFile returns the path of the final assembled video.
func (l Layout) VideoFile() string { return filepath.Join(l.dir, VideoFileName) }

// ControlFile returns the path of the paragraph control ledger.
func (l Layout) ControlFile() string { return filepath.Join(l.dir, ControlFileName) }

// ParseParagraphs splits file content into paragraphs separated by one or more
// blank lines, trimming surrounding whitespace and dropping empties.
func ParseParagraphs(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var paragraphs []string
	for _, block := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// ParsePrompts splits file content into one prompt per non-empty line.
func ParsePrompts(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var prompts []string
	for _, line := range strings.Split(normalized, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			prompts = append(prompts, trimmed)
		}
	}
	return prompts
}

// ReadParagraphs loads and parses the paragraphs file.
func (l Layout) ReadParagraphs() ([]string, error) {
	data, err := os.ReadFile(l.ParagraphsFile())
	if err != nil {
		return nil, err
	}
	return ParseParagraphs(string(data)), nil
}

// ReadPrompts loads and parses the prompts file.
func (l Layout) ReadPrompts() ([]string, error) {
	data, err := os.ReadFile(l.PromptsFile())
	if err != nil {
		return nil, err
	}
	return ParsePrompts(string(data)), nil
}

// WriteParagraphs persists paragraphs separated by blank lines.
func (l Layout) WriteParagraphs(paragraphs []string) error {
	if err := l.EnsureDir(); err != nil {
		return err
	}
	body := strings.Join(paragraphs, "\n\n") + "\n"
	return os.WriteFile(l.ParagraphsFile(), []byte(body), 0o644)
}

// WritePrompts persists prompts one per line.
func (l Layout) WritePrompts(prompts []string) error {
	if err := l.EnsureDir(); err != nil {
		return err
	}
	body := strings.Join(prompts, "\n") + "\n"
	return os.WriteFile(l.PromptsFile(), []byte(body), 0o644)
}
