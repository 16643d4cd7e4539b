package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/mmem/internal/session"
)

// splitRef splits the path#turn form that find prints and the browser
// copies. Arguments without a numeric #suffix come back unchanged.
func splitRef(arg string) (string, int, bool) {
	i := strings.LastIndexByte(arg, '#')
	if i <= 0 || i == len(arg)-1 {
		return arg, 0, false
	}
	n, err := strconv.Atoi(arg[i+1:])
	if err != nil || n < 0 {
		return arg, 0, false
	}
	return arg[:i], n, true
}

// resolveTarget resolves a path, session id prefix or path#turn. A turn in
// the argument fills *turn unless the --turn flag was given.
func resolveTarget(cmd *cobra.Command, arg, root string, turn *int) (string, error) {
	if p, n, ok := splitRef(arg); ok {
		arg = p
		f := cmd.Flags().Lookup("turn")
		if f != nil && !f.Changed && !cmd.Flags().Changed("line") {
			*turn = n
			f.Changed = true
		}
	}
	return session.ResolveByPrefix(arg, root)
}
