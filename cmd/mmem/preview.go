package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/render"
)

func previewCmd(a *app) *cobra.Command {
	var turn int
	var context int
	var query string

	cmd := &cobra.Command{
		Use:   "preview <path|session-id>",
		Short: "Preview an indexed conversation around a turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveTarget(cmd, args[0], a.cfg.Root, &turn)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			out, _, err := render.RenderConversation(db, path, render.Options{
				HitTurn: turn,
				Context: context,
				Query:   query,
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&turn, "turn", -1, "Turn to highlight")
	cmd.Flags().IntVar(&context, "context", 10, "Messages before/after the turn to show")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")

	return cmd
}
