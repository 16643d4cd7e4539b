package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/config"
	"github.com/Zuo-Peng/mmem/internal/index"
	"github.com/Zuo-Peng/mmem/internal/logging"
)

var version = "dev"

// app carries the resolved configuration to every subcommand.
type app struct {
	cfg *config.Config

	rootFlag  string
	dbFlag    string
	levelFlag string
}

// setup resolves config (defaults < file < env < flags) and configures logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.rootFlag != "" {
		cfg.Root = config.ExpandHome(a.rootFlag)
	}
	if a.dbFlag != "" {
		cfg.DBPath = config.ExpandHome(a.dbFlag)
	}
	if a.levelFlag != "" {
		cfg.LogLevel = a.levelFlag
	}
	logging.Configure(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	a.cfg = cfg
	return nil
}

func (a *app) openDB() (*index.DB, error) {
	db, err := index.OpenDB(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:               "mmem",
		Short:             "Marvin session memory search",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVar(&a.rootFlag, "root", "", "Sessions root directory")
	rootCmd.PersistentFlags().StringVar(&a.dbFlag, "db", "", "Index database path")
	rootCmd.PersistentFlags().StringVar(&a.levelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(indexCmd(a))
	rootCmd.AddCommand(findCmd(a))
	rootCmd.AddCommand(showCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(previewCmd(a))
	rootCmd.AddCommand(openCmd(a))
	rootCmd.AddCommand(statsCmd(a))
	rootCmd.AddCommand(agentsCmd(a))
	rootCmd.AddCommand(doctorCmd(a))
	rootCmd.AddCommand(watchCmd(a))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
