package tui

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Zuo-Peng/mmem/internal/search"
)

// item is one row of the results list. Turn is -1 for whole-session rows.
type item struct {
	Path    string
	Turn    int
	Title   string
	Agent   string
	Role    string
	When    string
	Snippet string
}

// Ref is what Enter copies: path#turn for messages, the bare path for sessions.
func (it item) Ref() string {
	if it.Turn < 0 {
		return it.Path
	}
	return fmt.Sprintf("%s#%d", it.Path, it.Turn)
}

func itemsFromResults(res *search.Results, query string) []item {
	if res == nil {
		return nil
	}
	var items []item
	if res.Scope == search.ScopeSession {
		for _, h := range res.Sessions {
			items = append(items, sessionItem(h))
		}
		return items
	}
	for _, h := range res.Messages {
		items = append(items, item{
			Path:    h.Path,
			Turn:    h.TurnIndex,
			Title:   h.Title,
			Agent:   h.Agent,
			Role:    h.Role,
			When:    h.Timestamp,
			Snippet: search.Excerpt(h.Text, query, 60),
		})
	}
	return items
}

func sessionItem(h search.SessionHit) item {
	return item{
		Path:    h.Path,
		Turn:    -1,
		Title:   h.Title,
		Agent:   h.Agent,
		When:    h.LastMessageAt,
		Snippet: h.Snippet,
	}
}

// itemSource lets fuzzy match against title, agent and path together.
type itemSource []item

func (s itemSource) String(i int) string {
	return s[i].Title + " " + s[i].Agent + " " + s[i].Path
}

func (s itemSource) Len() int { return len(s) }

// filterItems keeps the items matching pattern, best match first.
func filterItems(items []item, pattern string) []item {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return items
	}
	matches := fuzzy.FindFrom(pattern, itemSource(items))
	out := make([]item, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}
