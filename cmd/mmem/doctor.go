package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/doctor"
	"github.com/Zuo-Peng/mmem/internal/render"
)

func doctorCmd(a *app) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check index health and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := out.resolve(cmd)
			if err != nil {
				return err
			}
			report := doctor.Run(a.cfg.DBPath, a.cfg.Root)
			if format.Structured() {
				return render.EmitValue(cmd.OutOrStdout(), format, report)
			}
			render.WriteDoctor(cmd.OutOrStdout(), report)
			return nil
		},
	}
	out.register(cmd.Flags(), false)
	return cmd
}
