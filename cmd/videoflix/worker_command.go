package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"videoflix/internal/config"
	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/workflow"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the transcode and cleanup worker pool until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if workers > 0 {
					cfg.Queue.Workers = workers
				}
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("create logger: %w", err)
				}

				p := newPipeline(cfg, logger)
				mgr := workflow.NewManager(cfg, store, logger, workflow.WithPreflight(!skipPreflight))
				mgr.Register(queue.KindTranscode, p.transcode)
				mgr.Register(queue.KindCleanup, p.cleanup)

				runCtx := cmd.Context()
				if err := mgr.Start(runCtx); err != nil {
					return err
				}
				<-runCtx.Done()
				logger.Info("shutdown requested", logging.String(logging.FieldEventType, "worker_shutdown"))
				mgr.Stop()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override queue.workers")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without checking directories and ffmpeg")
	return cmd
}
