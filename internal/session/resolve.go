package session

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Zuo-Peng/mmem/internal/config"
)

const maxSuggestions = 3

// ResolveByPrefix maps user input to one transcript file. Input that names an
// existing path is returned as is; otherwise it is matched as a file-name
// prefix against the .jsonl files under root.
func ResolveByPrefix(input, root string) (string, error) {
	expanded := config.ExpandHome(input)
	if _, err := os.Stat(expanded); err == nil {
		return expanded, nil
	}
	if strings.ContainsRune(input, filepath.Separator) || strings.ContainsRune(input, '/') {
		return "", &Error{Kind: ErrNotFound, Input: input}
	}

	candidates := jsonlFiles(root)
	var matches []string
	for _, p := range candidates {
		if strings.HasPrefix(filepath.Base(p), input) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return "", &Error{Kind: ErrNotFound, Input: input, Suggestions: suggest(input, candidates)}
	case 1:
		return matches[0], nil
	default:
		return "", &Error{Kind: ErrAmbiguous, Input: input, Matches: matches}
	}
}

// jsonlFiles lists .jsonl files under root, sorted. An unreadable or
// missing root yields nothing.
func jsonlFiles(root string) []string {
	var files []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() && strings.EqualFold(filepath.Ext(path), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// suggest ranks file names by fuzzy similarity to input.
func suggest(input string, paths []string) []string {
	if input == "" || len(paths) == 0 {
		return nil
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	var out []string
	for _, m := range fuzzy.Find(input, names) {
		out = append(out, names[m.Index])
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
