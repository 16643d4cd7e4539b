package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/mmem/internal/render"
	"github.com/Zuo-Peng/mmem/internal/search"
	"github.com/Zuo-Peng/mmem/internal/tui"
)

const findDefaultLimit = 5

type findFlags struct {
	days             int
	before, after    string
	agent, workspace string
	repo, branch     string
	role             string
	includeAssistant bool
	around           int
	scope            scopeFlag
	limit            int
	fts              bool
	fields           []string
	snippet          bool
	plain            bool
	out              outputFlags
}

// roleFilter defaults to user messages unless assistant messages are asked for.
func roleFilter(role string, includeAssistant bool) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if includeAssistant || role != "" {
		return role
	}
	return "user"
}

// options turns flags into a search request. now anchors --days.
func (f *findFlags) options(query string, now time.Time) search.Options {
	mode := search.ModeLiteral
	if f.fts {
		mode = search.ModeFTS
	}
	after := f.after
	if after == "" && f.days > 0 {
		after = now.UTC().AddDate(0, 0, -f.days).Format(time.RFC3339)
	}
	return search.Options{
		Query:     query,
		Scope:     search.Scope(f.scope),
		Mode:      mode,
		Agent:     f.agent,
		Workspace: f.workspace,
		Repo:      f.repo,
		Branch:    f.branch,
		Role:      roleFilter(f.role, f.includeAssistant),
		After:     after,
		Before:    f.before,
		Limit:     f.limit,
		Around:    f.around,
	}
}

func findCmd(a *app) *cobra.Command {
	f := &findFlags{scope: scopeFlag(search.ScopeMessage)}

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Search sessions and messages",
		Long: `Search session content. Default search is literal (safe for dates and punctuation).
Use --fts for raw FTS5 syntax. On a terminal without an output format the
interactive browser opens; pipe the output or pass --plain for text.`,
		Example: `  mmem find "quickdiff 2025-12-27"
  mmem find "quickdiff 2025-12-27" --jsonl --fields path,title,turn_index,text
  mmem find "title:rust AND async" --fts
  mmem find "error handling" --days 7 --repo my-project`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := f.out.resolve(cmd)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			opts := f.options(query, time.Now())

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if !format.Structured() && !f.plain && term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Run(db, query, opts)
			}

			fieldsGiven := len(f.fields) > 0
			fields := render.NewFieldSet(f.fields, opts.Scope)
			withContext := f.around > 0 && (!fieldsGiven || fields["context"])
			if format.Structured() && !withContext {
				opts.Around = 0
			}

			res, err := search.Search(db, opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if res.Scope == search.ScopeSession {
				if !format.Structured() {
					render.WriteSessions(w, res.Sessions, f.snippet)
					return nil
				}
				records := make([]render.Record, 0, len(res.Sessions))
				for _, h := range res.Sessions {
					records = append(records, render.SessionRecord(h, fields))
				}
				return render.EmitList(w, format, records)
			}

			if !format.Structured() {
				render.WriteMessages(w, res.Messages, f.snippet, opts.Around)
				return nil
			}
			if withContext && !fieldsGiven {
				fields["context"] = true
			}
			records := make([]render.Record, 0, len(res.Messages))
			for _, h := range res.Messages {
				records = append(records, render.MessageRecord(h, fields, withContext))
			}
			return render.EmitList(w, format, records)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.days, "days", 0, "Filter to last N days")
	fl.StringVar(&f.before, "before", "", "Filter messages before date (ISO8601)")
	fl.StringVar(&f.after, "after", "", "Filter messages after date (ISO8601)")
	fl.StringVar(&f.agent, "agent", "", "Filter by agent name")
	fl.StringVar(&f.workspace, "workspace", "", "Filter by workspace path")
	fl.StringVar(&f.repo, "repo", "", "Filter by repo name or path")
	fl.StringVar(&f.repo, "project", "", "Alias for --repo")
	fl.StringVar(&f.branch, "branch", "", "Filter by git branch")
	fl.StringVar(&f.role, "role", "", "Filter by message role (user/assistant)")
	fl.BoolVar(&f.includeAssistant, "include-assistant", false, "Include assistant messages (default: user only)")
	fl.IntVar(&f.around, "around", 0, "Context messages around match")
	fl.Var(&f.scope, "scope", "Search scope: session or message")
	fl.IntVar(&f.limit, "limit", findDefaultLimit, "Max results to return")
	fl.BoolVar(&f.fts, "fts", false, "Use raw FTS5 query syntax (advanced)")
	fl.StringSliceVar(&f.fields, "fields", nil, "Output fields (comma-separated)")
	fl.BoolVar(&f.snippet, "snippet", false, "Show text snippet in results")
	fl.BoolVar(&f.plain, "plain", false, "Plain text output even on a terminal")
	f.out.register(fl, true)
	_ = fl.MarkHidden("project")

	return cmd
}

