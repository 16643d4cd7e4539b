package render

import (
	"strings"

	"github.com/Zuo-Peng/mmem/internal/search"
)

// MaxOutputLen caps every text value printed by find and show.
const MaxOutputLen = 160

var defaultFields = map[search.Scope][]string{
	search.ScopeSession: {"path", "title", "last_message_at", "score"},
	search.ScopeMessage: {"path", "title", "timestamp", "role", "turn_index", "score"},
}

// FieldSet selects which keys structured find output carries.
type FieldSet map[string]bool

// NewFieldSet normalizes the requested fields. With none requested it
// falls back to the scope's defaults.
func NewFieldSet(requested []string, scope search.Scope) FieldSet {
	set := FieldSet{}
	for _, f := range requested {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			set[f] = true
		}
	}
	if len(requested) == 0 {
		for _, f := range defaultFields[scope] {
			set[f] = true
		}
	}
	return set
}

// TrimOutput collapses runs of whitespace and caps text at MaxOutputLen runes.
func TrimOutput(text string) string {
	compact := strings.Join(strings.Fields(text), " ")
	runes := []rune(compact)
	if len(runes) <= MaxOutputLen {
		return compact
	}
	return string(runes[:MaxOutputLen])
}

func (fs FieldSet) addString(r *Record, key, value string) {
	if fs[key] {
		r.addString(key, value)
	}
}

// SessionRecord projects a session hit onto the selected fields.
func SessionRecord(h search.SessionHit, fs FieldSet) Record {
	var r Record
	if fs["path"] {
		r.add("path", h.Path)
	}
	fs.addString(&r, "title", h.Title)
	fs.addString(&r, "agent", h.Agent)
	fs.addString(&r, "workspace", h.Workspace)
	fs.addString(&r, "repo_root", h.RepoRoot)
	fs.addString(&r, "repo_name", h.RepoName)
	fs.addString(&r, "branch", h.Branch)
	fs.addString(&r, "last_message_at", h.LastMessageAt)
	if fs["snippet"] && h.Snippet != "" {
		r.add("snippet", TrimOutput(h.Snippet))
	}
	if fs["score"] {
		r.add("score", h.Score)
	}
	return r
}

// MessageRecord projects a message hit onto the selected fields. Context is
// only included when withContext is set and "context" is selected.
func MessageRecord(h search.MessageHit, fs FieldSet, withContext bool) Record {
	var r Record
	if fs["path"] {
		r.add("path", h.Path)
	}
	fs.addString(&r, "title", h.Title)
	fs.addString(&r, "agent", h.Agent)
	fs.addString(&r, "workspace", h.Workspace)
	fs.addString(&r, "repo_root", h.RepoRoot)
	fs.addString(&r, "repo_name", h.RepoName)
	fs.addString(&r, "branch", h.Branch)
	if fs["turn_index"] {
		r.add("turn_index", h.TurnIndex)
	}
	fs.addString(&r, "role", h.Role)
	fs.addString(&r, "timestamp", h.Timestamp)
	if fs["text"] {
		r.add("text", TrimOutput(h.Text))
	}
	if fs["score"] {
		r.add("score", h.Score)
	}
	if withContext && fs["context"] && h.Context != nil {
		ctx := make([]Record, 0, len(h.Context))
		for _, c := range h.Context {
			ctx = append(ctx, contextRecord(c))
		}
		r.add("context", ctx)
	}
	return r
}

func contextRecord(c search.ContextMessage) Record {
	var r Record
	r.add("turn_index", c.TurnIndex)
	r.addString("role", c.Role)
	r.addString("timestamp", c.Timestamp)
	r.add("text", TrimOutput(c.Text))
	return r
}
