package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/render"
	"github.com/Zuo-Peng/mmem/internal/stats"
)

func statsCmd(a *app) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
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

			s, err := stats.Load(db)
			if err != nil {
				return err
			}
			if format.Structured() {
				return render.EmitValue(cmd.OutOrStdout(), format, s)
			}
			render.WriteStats(cmd.OutOrStdout(), s)
			return nil
		},
	}
	out.register(cmd.Flags(), false)
	return cmd
}

func agentsCmd(a *app) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List unique agents in the index",
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

			agents, err := stats.Agents(db)
			if err != nil {
				return err
			}
			if format.Structured() {
				return render.EmitList(cmd.OutOrStdout(), format, agents)
			}
			render.WriteAgents(cmd.OutOrStdout(), agents)
			return nil
		},
	}
	out.register(cmd.Flags(), true)
	return cmd
}
