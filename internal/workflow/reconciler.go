// Package workflow reconciles the pending work queue: each pending item is
// driven through its stages in order, and failures are recorded on the item
// without halting the batch.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// BatchResult summarizes one reconciliation pass.
type BatchResult struct {
	Examined  int
	Advanced  int
	Failed    int
	Completed int
}

// Reconciler drives pending work items through their stage handlers.
type Reconciler struct {
	store    *queue.Store
	handlers map[queue.Stage]stage.Handler
	logger   *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	sleep              func(ctx context.Context, d time.Duration) error
	newCorrelationID   func() string
}

// Option customizes the reconciler.
type Option func(*Reconciler)

// WithSleeper overrides how poll-loop waits are performed, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reconciler) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// New constructs a reconciler over the given stage handlers.
func New(store *queue.Store, handlers []stage.Handler, cfg *config.Config, logger *slog.Logger, opts ...Option) *Reconciler {
	byStage := make(map[queue.Stage]stage.Handler, len(handlers))
	for _, handler := range handlers {
		byStage[handler.Stage()] = handler
	}
	r := &Reconciler{
		store:              store,
		handlers:           byStage,
		logger:             logging.NewComponentLogger(logger, "workflow"),
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		sleep:              sleepContext,
		newCorrelationID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Health collects readiness from every stage handler the mode would run.
func (r *Reconciler) Health(ctx context.Context, mode Mode) []stage.Health {
	var checks []stage.Health
	for _, s := range mode.Stages() {
		if handler, ok := r.handlers[s]; ok {
			checks = append(checks, handler.HealthCheck(ctx))
		}
	}
	return checks
}

// ReconcileOnce processes every currently pending item for the mode. An
// individual item's failure is recorded and logged; it never fails the batch.
func (r *Reconciler) ReconcileOnce(ctx context.Context, mode Mode) (BatchResult, error) {
	var result BatchResult
	items, err := r.store.PendingForStage(ctx, mode.FilterStage())
	if err != nil {
		return result, fmt.Errorf("workflow: list pending items: %w", err)
	}
	result.Examined = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := r.processItem(ctx, mode, item); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			r.logger.Error("work item failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldTitle, item.Title),
				logging.Error(err))
			if setErr := r.store.SetError(ctx, item.ID, err.Error()); setErr != nil {
				r.logger.Error("record item error",
					logging.Int64(logging.FieldItemID, item.ID),
					logging.Error(setErr))
			}
			continue
		}
		result.Advanced++
		if refreshed, getErr := r.store.GetByID(ctx, item.ID); getErr == nil && refreshed != nil && refreshed.Completed() {
			result.Completed++
		}
	}
	return result, nil
}

// processItem runs the mode's stages for one item in order, skipping stages
// already done or marked not applicable. Each stage's status is persisted only
// after its handler returns with valid artifacts.
func (r *Reconciler) processItem(ctx context.Context, mode Mode, item *queue.Item) error {
	correlationID := r.newCorrelationID()
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithRequestID(ctx, correlationID)

	for _, s := range mode.Stages() {
		status := item.StageStatus(s)
		if status.IsDone() || status.IsNotApplicable() {
			continue
		}
		handler, ok := r.handlers[s]
		if !ok {
			return fmt.Errorf("workflow: no handler for stage %s", s)
		}

		stageCtx := services.WithStage(ctx, string(s))
		r.logger.Info("stage starting",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldTitle, item.Title),
			logging.String(logging.FieldStage, string(s)),
			logging.String(logging.FieldCorrelationID, correlationID))

		if err := handler.Prepare(stageCtx, item); err != nil {
			return fmt.Errorf("stage %s prepare: %w", s, err)
		}
		if err := handler.Execute(stageCtx, item); err != nil {
			return fmt.Errorf("stage %s: %w", s, err)
		}
		if err := r.store.MarkStageDone(ctx, item.ID, s); err != nil {
			return fmt.Errorf("stage %s: persist status: %w", s, err)
		}
		item.SetStageStatus(s, s.DoneStatus())
		item.ErrorMessage = ""

		r.logger.Info("stage complete",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldStage, string(s)))
	}
	return nil
}

// Run polls the queue until the context is canceled. A batch error backs off
// for the error retry interval instead of the poll interval.
func (r *Reconciler) Run(ctx context.Context, mode Mode) error {
	for _, check := range r.Health(ctx, mode) {
		if !check.Ready {
			r.logger.Warn("stage reports unhealthy",
				logging.String(logging.FieldStage, check.Name),
				logging.String("detail", check.Detail))
		}
	}

	for {
		result, err := r.ReconcileOnce(ctx, mode)
		wait := r.pollInterval
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.logger.Error("reconciliation pass failed", logging.Error(err))
			if r.errorRetryInterval > 0 {
				wait = r.errorRetryInterval
			}
		case result.Examined > 0:
			r.logger.Info("reconciliation pass finished",
				logging.Int("examined", result.Examined),
				logging.Int("advanced", result.Advanced),
				logging.Int("failed", result.Failed),
				logging.Int("completed", result.Completed))
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Second
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
