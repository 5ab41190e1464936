package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelsmith/internal/imagegen"
	"reelsmith/internal/logging"
	"reelsmith/internal/narration"
	"reelsmith/internal/services/textgen"
	"reelsmith/internal/services/tts"
	"reelsmith/internal/stage"
	"reelsmith/internal/story"
	"reelsmith/internal/video"
	"reelsmith/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile pending work items through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := workflow.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "reelsmith.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire process lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another reelsmith run holds %s", lockPath)
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			imagesHandler, err := imagegen.NewHandler(cfg, logger)
			if err != nil {
				return err
			}
			narrator := narration.New(tts.NewClient(cfg.TTS), cfg.TTS, logger)
			compositor := video.NewCompositor(cfg.Video, logger)
			handlers := []stage.Handler{
				story.NewHandler(cfg, textgen.NewClient(cfg.TextGen), logger),
				imagesHandler,
				video.NewHandler(cfg, narrator, compositor, logger),
			}
			reconciler := workflow.New(store, handlers, cfg, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("reconciler starting",
				logging.String("mode", string(mode)),
				logging.Bool("once", once),
				logging.String("config", ctx.configPath))

			if once {
				result, err := reconciler.ReconcileOnce(runCtx, mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"examined %d, advanced %d, failed %d, completed %d\n",
					result.Examined, result.Advanced, result.Failed, result.Completed)
				return nil
			}
			return reconciler.Run(runCtx, mode)
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(workflow.ModeFull),
		"Pipeline portion to run: full, images, video, or story")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single reconciliation pass and exit")
	return cmd
}
