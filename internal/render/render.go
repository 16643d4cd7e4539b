// Package render turns core results into terminal text and structured
// output.
package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/mmem/internal/index"
)

const (
	colorReset    = "\033[0m"
	colorUser     = "\033[1;34m" // bold blue
	colorAssist   = "\033[1;32m" // bold green
	colorSystem   = "\033[2;35m" // dim magenta for system/developer
	colorDim      = "\033[2m"
	colorHit      = "\033[43m"   // yellow background
	colorBoldRed  = "\033[1;31m" // bold red for keyword highlights
)

type Options struct {
	HitTurn int    // -1 = no hit, render from the start
	Context int    // messages before/after hit to show; 0 = 10, < 0 = all
	Width   int    // wrap width (0 = no wrap)
	Query   string // search query for keyword highlighting
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	terms := strings.Fields(query)
	var filtered []string
	for _, t := range terms {
		if !fts5Operators[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return text
	}
	for _, term := range filtered {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// RenderConversation renders the indexed messages of one session and returns
// the content, the 0-based line number of the hit message header (-1 if no
// hit), and any error.
func RenderConversation(db *index.DB, path string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}

	rec, err := db.GetSession(path)
	if err != nil {
		return "", -1, fmt.Errorf("get session: %w", err)
	}
	if rec == nil {
		return "", -1, fmt.Errorf("session not indexed: %s", path)
	}

	all, err := db.GetMessages(path)
	if err != nil {
		return "", -1, fmt.Errorf("get messages: %w", err)
	}
	if len(all) == 0 {
		return "(empty session)", -1, nil
	}

	start, end := 0, len(all)
	if opts.HitTurn >= 0 && opts.Context > 0 {
		start = max(opts.HitTurn-opts.Context, 0)
		end = min(opts.HitTurn+opts.Context+1, len(all))
		if start >= end {
			start = max(len(all)-opts.Context, 0)
			end = len(all)
		}
	}
	msgs := all[start:end]

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	separator := colorDim + "--------------------------------------------------" + colorReset

	// helper to track line count; wraps long lines if Width is set
	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	// header
	header := path
	if rec.Agent != "" {
		header += " [" + rec.Agent + "]"
	}
	if rec.Workspace != "" {
		header += " " + rec.Workspace
	}
	if rec.LastMessageAt != "" {
		header += " (" + RelativeTime(rec.LastMessageAt) + ")"
	}
	writeLine(fmt.Sprintf("%s--- %s ---%s", colorDim, header, colorReset))

	if start > 0 {
		writeLine(fmt.Sprintf("%s... (%d messages before) ...%s", colorDim, start, colorReset))
	}

	for i, m := range msgs {
		isHit := m.TurnIndex == opts.HitTurn

		if i > 0 {
			writeLine(separator)
		}
		if isHit {
			hitLine = lineCount
		}

		roleColor, roleLabel := roleStyle(m.Role)
		label := fmt.Sprintf("%s #%d", roleLabel, m.TurnIndex)
		if isHit {
			writeLine(fmt.Sprintf("%s>> %s > %s <<%s", colorHit, label, m.Timestamp, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s >%s %s%s%s", roleColor, label, colorReset, colorDim, m.Timestamp, colorReset))
		}

		text := m.Text
		if text == "" {
			text = colorDim + "(tool call)" + colorReset
		}
		text = highlightKeywords(text, opts.Query)
		for _, tl := range strings.Split(indentLines(text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("")
	}

	if after := len(all) - end; after > 0 {
		writeLine(fmt.Sprintf("%s... (%d messages after) ...%s", colorDim, after, colorReset))
	}

	return b.String(), hitLine, nil
}

func roleStyle(role string) (color, label string) {
	switch role {
	case "user":
		return colorUser, "USER"
	case "assistant":
		return colorAssist, "ASST"
	case "system", "developer":
		return colorSystem, strings.ToUpper(role)
	case "":
		return colorDim, "?"
	default:
		return colorDim, strings.ToUpper(role)
	}
}
