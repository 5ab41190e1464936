// Package video assembles images, narration, and music into the final reel.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

const (
	// defaultClipSeconds is used when a paragraph has no recorded duration.
	defaultClipSeconds = 4.5

	videoListFileName = "video_list.txt"
	audioListFileName = "audio_list.txt"
	subtitleFileName  = "subtitulos.srt"
)

// Image ordering policies for the image-to-clip sequence.
const (
	OrderByName  = "name"
	OrderByMtime = "mtime"
)

// Compositor drives ffmpeg to assemble the final video for a story.
type Compositor struct {
	cfg    config.Video
	logger *slog.Logger

	runCommand func(ctx context.Context, name string, args ...string) error
	lookPath   func(name string) (string, error)
}

// CompositorOption customizes the compositor.
type CompositorOption func(*Compositor)

// WithRunner overrides how the ffmpeg process is invoked, for tests.
func WithRunner(run func(ctx context.Context, name string, args ...string) error) CompositorOption {
	return func(c *Compositor) {
		if run != nil {
			c.runCommand = run
		}
	}
}

// WithLookPath overrides binary resolution, for tests.
func WithLookPath(lookPath func(name string) (string, error)) CompositorOption {
	return func(c *Compositor) {
		if lookPath != nil {
			c.lookPath = lookPath
		}
	}
}

// NewCompositor constructs an ffmpeg-backed compositor.
func NewCompositor(cfg config.Video, logger *slog.Logger, opts ...CompositorOption) *Compositor {
	c := &Compositor{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "video"),
		lookPath: exec.LookPath,
	}
	c.runCommand = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w (output: %s)", name, err, truncateOutput(out))
		}
		return nil
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HealthCheck verifies the ffmpeg binary can be resolved.
func (c *Compositor) HealthCheck(ctx context.Context) error {
	if _, err := c.lookPath(c.binary()); err != nil {
		return services.Wrap(services.ErrConfiguration, "video", "health",
			fmt.Sprintf("ffmpeg binary %q not found", c.binary()), err)
	}
	return nil
}

func (c *Compositor) binary() string {
	if c.cfg.FFmpegBinary != "" {
		return c.cfg.FFmpegBinary
	}
	return "ffmpeg"
}

// Compose renders video_final.mp4 from the story's images and narration. The
// output path holds a non-empty file only on success.
func (c *Compositor) Compose(ctx context.Context, layout artifacts.Layout) error {
	entries, err := clipEntries(layout)
	if err != nil {
		return err
	}
	images, err := orderedImages(layout, len(entries), c.cfg.ImageOrder)
	if err != nil {
		return err
	}

	videoList := filepath.Join(layout.Dir(), videoListFileName)
	if err := writeVideoList(videoList, images, entries); err != nil {
		return fmt.Errorf("video: write clip list: %w", err)
	}
	audioList := filepath.Join(layout.Dir(), audioListFileName)
	if err := writeAudioList(audioList, layout, len(entries)); err != nil {
		return fmt.Errorf("video: write audio list: %w", err)
	}

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", videoList,
		"-f", "concat", "-safe", "0", "-i", audioList,
	}

	music := backgroundMusic(layout)
	filters := []string{}
	if music != "" {
		args = append(args, "-i", music)
		filters = append(filters,
			"[2:a]volume=0.18,aloop=loop=-1:size=2e+09[bg]",
			"[1:a][bg]amix=inputs=2:duration=first[aout]")
	}

	if c.cfg.Subtitles {
		subtitlePath := filepath.Join(layout.Dir(), subtitleFileName)
		if err := writeSubtitles(subtitlePath, entries); err != nil {
			return fmt.Errorf("video: write subtitles: %w", err)
		}
		filters = append(filters, fmt.Sprintf("[0:v]subtitles=%s[vout]", subtitlePath))
	}

	switch {
	case len(filters) > 0:
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
		if c.cfg.Subtitles {
			args = append(args, "-map", "[vout]")
		} else {
			args = append(args, "-map", "0:v")
		}
		if music != "" {
			args = append(args, "-map", "[aout]")
		} else {
			args = append(args, "-map", "1:a")
		}
	default:
		args = append(args, "-map", "0:v", "-map", "1:a")
	}

	output := layout.VideoFile()
	partial := output + ".partial.mp4"
	args = append(args,
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-shortest",
		"-f", "mp4", partial)

	if err := c.runCommand(ctx, c.binary(), args...); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrExternalTool, "video", "compose", "ffmpeg failed", err)
	}
	if !fileutil.ExistsNonEmpty(partial) {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrExternalTool, "video", "compose", "ffmpeg exited without output", nil)
	}
	if err := os.Rename(partial, output); err != nil {
		return fmt.Errorf("video: finalize output: %w", err)
	}
	c.logger.Info("video assembled",
		logging.String("output", output),
		logging.Int("clips", len(entries)),
		logging.Bool("music", music != ""),
		logging.Bool("subtitles", c.cfg.Subtitles))
	return nil
}

// clipEntries loads the control ledger, or derives entries from the paragraphs
// file when the ledger is absent.
func clipEntries(layout artifacts.Layout) ([]artifacts.ControlEntry, error) {
	entries, err := layout.ReadControl()
	if err == nil && len(entries) > 0 {
		return entries, nil
	}
	paragraphs, perr := layout.ReadParagraphs()
	if perr != nil || len(paragraphs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "video", "compose", "no paragraphs to compose", perr)
	}
	entries = make([]artifacts.ControlEntry, len(paragraphs))
	for i, paragraph := range paragraphs {
		entries[i] = artifacts.ControlEntry{
			Index: i + 1,
			Text:  paragraph,
			Image: fmt.Sprintf("imagen_%d.png", i+1),
		}
	}
	return entries, nil
}

// orderedImages returns the clip image paths in the configured order.
func orderedImages(layout artifacts.Layout, count int, policy string) ([]string, error) {
	images := make([]string, count)
	for i := range images {
		images[i] = layout.ImageFile(i + 1)
	}
	if policy != OrderByMtime {
		return images, nil
	}
	type stamped struct {
		path  string
		mtime int64
	}
	stampedImages := make([]stamped, 0, count)
	for _, path := range images {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("video: stat %s: %w", path, err)
		}
		stampedImages = append(stampedImages, stamped{path: path, mtime: info.ModTime().UnixNano()})
	}
	sort.SliceStable(stampedImages, func(i, j int) bool {
		return stampedImages[i].mtime < stampedImages[j].mtime
	})
	for i, s := range stampedImages {
		images[i] = s.path
	}
	return images, nil
}

func clipDuration(entry artifacts.ControlEntry) float64 {
	if entry.EstimatedDuration > 0 {
		return entry.EstimatedDuration
	}
	return defaultClipSeconds
}

// writeVideoList writes the ffconcat clip list. The last file is repeated
// without a duration, as the concat demuxer requires.
func writeVideoList(path string, images []string, entries []artifacts.ControlEntry) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for i, image := range images {
		fmt.Fprintf(&b, "file '%s'\n", image)
		fmt.Fprintf(&b, "duration %.2f\n", clipDuration(entries[i]))
	}
	if len(images) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", images[len(images)-1])
	}
	return fileutil.WriteFileAtomic(path, []byte(b.String()), 0o644)
}

func writeAudioList(path string, layout artifacts.Layout, count int) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&b, "file '%s'\n", layout.AudioFile(i))
	}
	return fileutil.WriteFileAtomic(path, []byte(b.String()), 0o644)
}

// writeSubtitles renders an SRT track from the paragraph ledger using the
// estimated durations as cue boundaries.
func writeSubtitles(path string, entries []artifacts.ControlEntry) error {
	var b strings.Builder
	elapsed := 0.0
	for i, entry := range entries {
		start := elapsed
		elapsed += clipDuration(entry)
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(start), srtTimestamp(elapsed), entry.Text)
	}
	return fileutil.WriteFileAtomic(path, []byte(b.String()), 0o644)
}

func srtTimestamp(seconds float64) string {
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// backgroundMusic returns a track copied into the story directory, if any.
// Narration clips and the final video are not candidates.
func backgroundMusic(layout artifacts.Layout) string {
	matches, err := filepath.Glob(filepath.Join(layout.Dir(), "*.mp3"))
	if err != nil {
		return ""
	}
	sort.Strings(matches)
	for _, match := range matches {
		if strings.HasPrefix(filepath.Base(match), "voz_parrafo_") {
			continue
		}
		if fileutil.ExistsNonEmpty(match) {
			return match
		}
	}
	return ""
}

func truncateOutput(out []byte) string {
	const limit = 400
	if len(out) > limit {
		out = out[:limit]
	}
	return string(out)
}
