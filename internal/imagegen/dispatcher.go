package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/artifacts"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Report summarizes one EnsureImages run. Fallback substitutions are counted
// separately from true generations; they unblock the pipeline but are not
// successes.
type Report struct {
	Skipped         int
	Generated       int
	Fallbacks       int
	FallbackIndices []int
}

// Dispatcher fills the image set for one story: it skips indices that already
// validate, routes the rest to the configured provider, and applies the
// fallback policy on failure.
type Dispatcher struct {
	provider Provider
	fallback bool
	workers  int
	logger   *slog.Logger
}

// NewDispatcher constructs a dispatcher. workers <= 1 runs sequentially;
// larger values enable the pooled mode sharing the provider's limiter.
func NewDispatcher(provider Provider, fallback bool, workers int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		fallback: fallback,
		workers:  workers,
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
	}
}

// EnsureImages guarantees one non-empty image per prompt index, or fails.
func (d *Dispatcher) EnsureImages(ctx context.Context, layout artifacts.Layout, prompts []string) (Report, error) {
	if len(prompts) == 0 {
		return Report{}, services.Wrap(services.ErrValidation, "images", "dispatch", "no prompts to render", nil)
	}
	if err := layout.EnsureDir(); err != nil {
		return Report{}, fmt.Errorf("ensure story directory: %w", err)
	}
	if d.workers > 1 {
		return d.ensurePooled(ctx, layout, prompts)
	}
	return d.ensureSequential(ctx, layout, prompts)
}

func (d *Dispatcher) ensureSequential(ctx context.Context, layout artifacts.Layout, prompts []string) (Report, error) {
	var report Report
	lastGood := ""

	for i := 1; i <= len(prompts); i++ {
		path := layout.ImageFile(i)
		if fileutil.ExistsNonEmpty(path) {
			report.Skipped++
			lastGood = path
			continue
		}

		err := d.provider.Generate(ctx, prompts[i-1], path)
		if err == nil {
			report.Generated++
			lastGood = path
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		substituted, fbErr := d.applyFallback(lastGood, path, i, err)
		if fbErr != nil {
			return report, fbErr
		}
		if substituted {
			report.Fallbacks++
			report.FallbackIndices = append(report.FallbackIndices, i)
		}
	}
	return report, nil
}

// ensurePooled distributes pending indices across a fixed worker pool.
// Already-valid indices are resolved in a pre-scan before any worker starts;
// once workers run, the last-known-good reference is only touched under the
// mutex, at completion time, so fallback resolution after the join uses the
// most recently completed image rather than file-index order.
func (d *Dispatcher) ensurePooled(ctx context.Context, layout artifacts.Layout, prompts []string) (Report, error) {
	var (
		mu       sync.Mutex
		report   Report
		lastGood string
		failed   []failedTask
		pending  []pendingTask
	)

	for i := 1; i <= len(prompts); i++ {
		path := layout.ImageFile(i)
		if fileutil.ExistsNonEmpty(path) {
			report.Skipped++
			lastGood = path
			continue
		}
		pending = append(pending, pendingTask{index: i, path: path, prompt: prompts[i-1]})
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.workers)

	for _, task := range pending {
		task := task
		group.Go(func() error {
			err := d.provider.Generate(groupCtx, task.prompt, task.path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, failedTask{index: task.index, path: task.path, err: err})
				return nil
			}
			report.Generated++
			lastGood = task.path
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return report, err
	}
	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	sort.Slice(failed, func(a, b int) bool { return failed[a].index < failed[b].index })
	for _, task := range failed {
		substituted, err := d.applyFallback(lastGood, task.path, task.index, task.err)
		if err != nil {
			return report, err
		}
		if substituted {
			report.Fallbacks++
			report.FallbackIndices = append(report.FallbackIndices, task.index)
		}
	}
	return report, nil
}

type pendingTask struct {
	index  int
	path   string
	prompt string
}

type failedTask struct {
	index int
	path  string
	err   error
}

// applyFallback duplicates the last good image into path when the policy
// allows it. The substitution is reported, not silently upgraded to success.
func (d *Dispatcher) applyFallback(lastGood, path string, index int, cause error) (bool, error) {
	if !d.fallback || lastGood == "" {
		return false, services.Wrap(services.ErrTransient, "images", "dispatch",
			fmt.Sprintf("index %d failed with no fallback source", index), cause)
	}
	if err := fileutil.CopyFile(lastGood, path); err != nil {
		return false, services.Wrap(services.ErrTransient, "images", "fallback",
			fmt.Sprintf("duplicate %s for index %d", lastGood, index), err)
	}
	d.logger.Warn("substituted fallback image",
		logging.Int(logging.FieldImageIndex, index),
		logging.String("source", lastGood),
		logging.Error(cause))
	return true, nil
}
