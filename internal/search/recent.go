package search

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Zuo-Peng/mmem/internal/index"
)

// ListRecent returns indexed sessions newest first, applying the structured
// filters of opts. Query text, scope, mode and role are ignored.
func ListRecent(db *index.DB, opts Options) ([]SessionHit, error) {
	p := prepared{Options: opts}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}

	var f filters
	f.add("1 = 1")
	f.common(p, "s.last_message_at")

	query := fmt.Sprintf(`
		SELECT s.path, s.title, s.agent, s.workspace, s.repo_root, s.repo_name, s.branch,
		       s.last_message_at, s.snippet
		FROM sessions s
		WHERE %s
		ORDER BY s.last_message_at IS NULL, s.last_message_at DESC, s.path
		LIMIT ?
	`, f.where())

	rows, err := db.Raw().Query(query, append(f.args, p.Limit)...)
	if err != nil {
		return nil, &index.StoreError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var hits []SessionHit
	for rows.Next() {
		var h SessionHit
		var title, agent, ws, root, name, branch, last, snippet sql.NullString
		if err := rows.Scan(&h.Path, &title, &agent, &ws, &root, &name, &branch, &last, &snippet); err != nil {
			return nil, &index.StoreError{Op: "list sessions", Err: err}
		}
		h.Title, h.Agent, h.Workspace = title.String, agent.String, ws.String
		h.RepoRoot, h.RepoName, h.Branch = root.String, name.String, branch.String
		h.LastMessageAt, h.Snippet = last.String, snippet.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &index.StoreError{Op: "list sessions", Err: err}
	}
	return hits, nil
}

// Excerpt cuts text down to the first occurrence of query with contextChars
// runes on either side, marking the match with >>> and <<<. Without a match
// it returns the head of text.
func Excerpt(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(strings.TrimSpace(query))
	idx := -1
	if qLower != "" {
		idx = strings.Index(lower, qLower)
	}
	runes := []rune(text)
	if idx < 0 || len(lower) != len(text) {
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}

	qLen := len([]rune(qLower))
	runePos := len([]rune(text[:idx]))
	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + qLen + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	return prefix + string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+qLen]) + "<<<" +
		string(runes[runePos+qLen:end]) + suffix
}
