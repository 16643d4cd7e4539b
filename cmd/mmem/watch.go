package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/index"
	"github.com/Zuo-Peng/mmem/internal/logging"
	"github.com/Zuo-Peng/mmem/internal/watch"
)

func watchCmd(a *app) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index in sync with the sessions root",
		Long:  `Runs one index pass, then re-indexes whenever transcripts under the root change, until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			logger := logging.NewLogger("watch")
			w := cmd.ErrOrStderr()
			sync := func() error {
				stats, err := index.Sync(db, a.cfg.Root, index.Options{Agent: a.cfg.Agent})
				if err != nil {
					return err
				}
				if stats.Indexed > 0 || stats.Removed > 0 || stats.ParseErrors > 0 {
					fmt.Fprintf(w, "%s %s\n", time.Now().Format(time.TimeOnly), stats)
				}
				return nil
			}
			if err := sync(); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			watcher, err := watch.New(a.cfg.Root, debounce, sync)
			if err != nil {
				return fmt.Errorf("watch %s: %w", a.cfg.Root, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.WithField("root", a.cfg.Root).Info("watching for changes")
			fmt.Fprintf(w, "Watching %s (Ctrl-C to stop)\n", a.cfg.Root)
			return watcher.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-indexing")

	return cmd
}
