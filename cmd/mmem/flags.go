package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Zuo-Peng/mmem/internal/render"
	"github.com/Zuo-Peng/mmem/internal/search"
)

// scopeFlag restricts --scope to the two search scopes.
type scopeFlag search.Scope

func (s *scopeFlag) String() string { return string(*s) }

func (s *scopeFlag) Set(v string) error {
	switch search.Scope(v) {
	case search.ScopeSession, search.ScopeMessage:
		*s = scopeFlag(v)
		return nil
	}
	return fmt.Errorf("must be session or message")
}

func (s *scopeFlag) Type() string { return "scope" }

var (
	_ pflag.Value = (*scopeFlag)(nil)
	_ pflag.Value = (*render.Format)(nil)
)

// outputFlags are the --json/--jsonl/--format switches shared by commands
// with structured output.
type outputFlags struct {
	json   bool
	jsonl  bool
	format render.Format
}

func (o *outputFlags) register(fs *pflag.FlagSet, jsonl bool) {
	fs.BoolVar(&o.json, "json", false, "JSON output (machine-friendly)")
	if jsonl {
		fs.BoolVar(&o.jsonl, "jsonl", false, "JSON Lines output (machine-friendly)")
	}
	o.format = render.FormatText
	fs.Var(&o.format, "format", "Output format: text, json, jsonl or yaml")
}

// resolve folds the shorthand switches into one format.
func (o *outputFlags) resolve(cmd *cobra.Command) (render.Format, error) {
	set := 0
	for _, name := range []string{"json", "jsonl", "format"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			set++
		}
	}
	if set > 1 {
		return "", fmt.Errorf("--json, --jsonl and --format are mutually exclusive")
	}
	switch {
	case o.json:
		return render.FormatJSON, nil
	case o.jsonl:
		return render.FormatJSONL, nil
	}
	return o.format, nil
}
