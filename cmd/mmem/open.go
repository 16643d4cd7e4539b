package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/open"
)

func openCmd(a *app) *cobra.Command {
	var turn int

	cmd := &cobra.Command{
		Use:   "open <path|session-id>",
		Short: "Open the transcript in $EDITOR at a turn's line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveTarget(cmd, args[0], a.cfg.Root, &turn)
			if err != nil {
				return err
			}
			return open.OpenSession(path, turn)
		},
	}

	cmd.Flags().IntVar(&turn, "turn", -1, "Turn to jump to")

	return cmd
}
