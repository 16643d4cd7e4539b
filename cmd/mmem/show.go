package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/render"
	"github.com/Zuo-Peng/mmem/internal/session"
)

func showCmd(a *app) *cobra.Command {
	var turn, line, limit int
	var tool string
	var extract bool
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "show <path|session-id>",
		Short: "Inspect tool calls in a session JSONL",
		Long: `Show tool calls for a session. Accepts a JSONL path or a session id prefix
(the leading part of the file name). Default tool filter is read.`,
		Example: `  mmem show 1766632198584
  mmem show 1766632198584 --tool write
  mmem show 1766632198584 --json
  mmem show ~/.config/marvin/sessions/path/session.jsonl --extract`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := out.resolve(cmd)
			if err != nil {
				return err
			}
			path, err := resolveTarget(cmd, args[0], a.cfg.Root, &turn)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			filter := tool
			if !flags.Changed("turn") && !flags.Changed("line") && !flags.Changed("tool") {
				filter = "read"
			}
			w := cmd.OutOrStdout()

			var entry *session.Entry
			switch {
			case flags.Changed("turn"):
				entry, err = session.LoadByTurn(path, turn)
			case flags.Changed("line"):
				entry, err = session.LoadByLine(path, line)
			default:
				matches, err := session.ScanToolCalls(path, filter, limit)
				if err != nil {
					return err
				}
				if extract {
					calls := make([]session.ToolCall, 0, len(matches))
					for _, m := range matches {
						calls = append(calls, m.Tool)
					}
					return writeExtracts(w, calls)
				}
				if format.Structured() {
					records := make([]render.Record, 0, len(matches))
					for _, m := range matches {
						records = append(records, render.ToolMatchRecord(m))
					}
					return render.EmitList(w, format, records)
				}
				render.WriteToolMatches(w, matches)
				return nil
			}
			if err != nil {
				return err
			}

			calls := session.FilterTools(session.ExtractToolCalls(entry.Value), filter)
			switch {
			case extract:
				return writeExtracts(w, calls)
			case format.Structured():
				return render.EmitValue(w, format, render.EntryRecord(entry, calls))
			}
			render.WriteEntry(w, entry, calls)
			return nil
		},
	}

	cmd.Flags().IntVar(&turn, "turn", 0, "Show specific turn by index")
	cmd.Flags().IntVar(&line, "line", 0, "Show specific line number")
	cmd.Flags().StringVar(&tool, "tool", "", "Filter by tool name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max tool calls to show (0 = all)")
	cmd.Flags().BoolVar(&extract, "extract", false, "Extract and show file contents from read tool calls")
	out.register(cmd.Flags(), false)
	cmd.MarkFlagsMutuallyExclusive("turn", "line")

	return cmd
}

// writeExtracts prints the file range of every read call that names one.
func writeExtracts(w io.Writer, calls []session.ToolCall) error {
	extracted := false
	for _, c := range calls {
		if !strings.EqualFold(c.Name, "read") {
			continue
		}
		args, ok := session.ParseReadArgs(c.Arguments)
		if !ok {
			continue
		}
		lines, err := session.ExtractRange(args)
		if err != nil {
			return fmt.Errorf("extract %s: %w", args.Path, err)
		}
		render.WriteExtract(w, args, lines)
		extracted = true
	}
	if !extracted {
		fmt.Fprintln(w, "no readable tool calls found")
	}
	return nil
}
