package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/index"
	"github.com/Zuo-Peng/mmem/internal/render"
)

func indexCmd(a *app) *cobra.Command {
	var full bool
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index sessions from disk into SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := out.resolve(cmd)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := index.Sync(db, a.cfg.Root, index.Options{Full: full, Agent: a.cfg.Agent})
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			if format.Structured() {
				return render.EmitValue(cmd.OutOrStdout(), format, stats)
			}
			render.WriteIndexStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Full reindex (ignore mtime/size cache)")
	out.register(cmd.Flags(), false)

	return cmd
}
