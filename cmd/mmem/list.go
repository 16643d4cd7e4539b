package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/search"
	"github.com/Zuo-Peng/mmem/internal/tui"
)

func listCmd(a *app) *cobra.Command {
	var agent, repo, after string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse sessions sorted by last message time",
		Long:  `Opens a TUI panel showing indexed sessions, newest first. Type to fuzzy-filter by title, agent or path.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return tui.RunList(db, search.Options{
				Agent: agent,
				Repo:  repo,
				After: after,
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Filter by agent name")
	cmd.Flags().StringVar(&repo, "repo", "", "Filter by repo name or path")
	cmd.Flags().StringVar(&after, "after", "", "Only sessions active after date (ISO8601)")

	return cmd
}
