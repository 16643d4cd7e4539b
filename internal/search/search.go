package search

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Zuo-Peng/mmem/internal/index"
)

type Scope string

const (
	ScopeSession Scope = "session"
	ScopeMessage Scope = "message"
)

// Mode selects how query text reaches the full-text engine.
type Mode string

const (
	// ModeLiteral quotes every whitespace-separated token, so dates and
	// punctuation are matched as text.
	ModeLiteral Mode = "literal"
	// ModeFTS passes the query through as raw FTS5 syntax.
	ModeFTS Mode = "fts"
)

const DefaultLimit = 10

type Options struct {
	Query     string
	Scope     Scope // "" = message
	Mode      Mode  // "" = literal
	Agent     string
	Workspace string
	Repo      string // matches repo name or repo root
	Branch    string
	Role      string // message scope only
	After     string // inclusive lower bound on timestamps
	Before    string // inclusive upper bound on timestamps
	Limit     int
	Around    int // context window per message hit
}

type SessionHit struct {
	Path          string
	Title         string
	Agent         string
	Workspace     string
	RepoRoot      string
	RepoName      string
	Branch        string
	LastMessageAt string
	Snippet       string
	Score         float64
}

type MessageHit struct {
	Path      string
	Title     string
	Agent     string
	Workspace string
	RepoRoot  string
	RepoName  string
	Branch    string
	TurnIndex int
	Role      string
	Timestamp string
	Text      string
	Score     float64
	Context   []ContextMessage
}

// ContextMessage is a neighbor of a message hit, for display only.
type ContextMessage struct {
	TurnIndex int
	Role      string
	Timestamp string
	Text      string
}

// Results holds the hits of exactly one scope.
type Results struct {
	Scope    Scope
	Sessions []SessionHit
	Messages []MessageHit
}

func (r *Results) Len() int {
	if r.Scope == ScopeSession {
		return len(r.Sessions)
	}
	return len(r.Messages)
}

var ErrEmptyQuery = errors.New("query is empty")

// FTSSyntaxError reports a raw query the full-text engine rejected.
type FTSSyntaxError struct {
	Query string
	Err   error
}

func (e *FTSSyntaxError) Error() string {
	return fmt.Sprintf("invalid fts query %q: %v", e.Query, e.Err)
}

func (e *FTSSyntaxError) Unwrap() error { return e.Err }

func Search(db *index.DB, opts Options) (*Results, error) {
	switch opts.Scope {
	case ScopeSession:
		hits, err := FindSessions(db, opts)
		if err != nil {
			return nil, err
		}
		return &Results{Scope: ScopeSession, Sessions: hits}, nil
	case ScopeMessage, "":
		hits, err := FindMessages(db, opts)
		if err != nil {
			return nil, err
		}
		return &Results{Scope: ScopeMessage, Messages: hits}, nil
	default:
		return nil, fmt.Errorf("unknown scope %q", opts.Scope)
	}
}

// prepared is the validated form of Options shared by both scopes.
type prepared struct {
	Options
	match string // FTS MATCH argument; empty when like is set
	like  string // LIKE pattern used instead of the full-text engine
}

func prepare(opts Options) (prepared, error) {
	p := prepared{Options: opts}
	q := strings.TrimSpace(opts.Query)
	if q == "" {
		return p, ErrEmptyQuery
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Around < 0 {
		p.Around = 0
	}
	p.Role = strings.ToLower(strings.TrimSpace(p.Role))

	switch opts.Mode {
	case ModeLiteral, "":
		// the default tokenizer does not segment Han text, so substring
		// matching is the only way to find it
		if containsCJK(q) {
			p.like = "%" + likeEscaper.Replace(q) + "%"
		} else {
			p.match = literalQuery(q)
		}
	case ModeFTS:
		p.match = q
	default:
		return p, fmt.Errorf("unknown query mode %q", opts.Mode)
	}
	return p, nil
}

// literalQuery turns free text into an implicit-AND of quoted FTS5 strings.
func literalQuery(q string) string {
	tokens := strings.Fields(q)
	for i, tok := range tokens {
		tokens[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(tokens, " ")
}

// likeEscaper keeps LIKE wildcards in a literal query literal.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// filters collects WHERE conditions and their arguments.
type filters struct {
	conditions []string
	args       []any
}

func (f *filters) add(cond string, args ...any) {
	f.conditions = append(f.conditions, cond)
	f.args = append(f.args, args...)
}

func (f *filters) common(p prepared, timeExpr string) {
	if p.Agent != "" {
		f.add("s.agent = ?", p.Agent)
	}
	if p.Workspace != "" {
		f.add("s.workspace = ?", p.Workspace)
	}
	if p.Repo != "" {
		f.add("(s.repo_name = ? OR s.repo_root = ?)", p.Repo, p.Repo)
	}
	if p.Branch != "" {
		f.add("s.branch = ?", p.Branch)
	}
	if p.After != "" {
		f.add(timeExpr+" >= ?", p.After)
	}
	if p.Before != "" {
		f.add(timeExpr+" <= ?", p.Before)
	}
}

func (f *filters) where() string {
	return strings.Join(f.conditions, " AND ")
}

// FindSessions ranks whole sessions by relevance of their aggregated content.
func FindSessions(db *index.DB, opts Options) ([]SessionHit, error) {
	p, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	var f filters
	from := "sessions_fts JOIN sessions s ON s.path = sessions_fts.path"
	score := "bm25(sessions_fts)"
	if p.like != "" {
		f.add(`sessions_fts.content LIKE ? ESCAPE '\'`, p.like)
		score = "0.0"
	} else {
		f.add("sessions_fts MATCH ?", p.match)
	}
	f.common(p, "s.last_message_at")

	query := fmt.Sprintf(`
		SELECT
			s.path, s.title, s.agent, s.workspace, s.repo_root, s.repo_name, s.branch,
			s.last_message_at, s.snippet,
			%s AS score
		FROM %s
		WHERE %s
		ORDER BY score ASC, s.last_message_at DESC
		LIMIT ?
	`, score, from, f.where())
	args := append(f.args, p.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, queryError(p, err)
	}
	defer rows.Close()

	var hits []SessionHit
	for rows.Next() {
		var h SessionHit
		var title, agent, ws, root, name, branch, last, snippet sql.NullString
		if err := rows.Scan(&h.Path, &title, &agent, &ws, &root, &name, &branch, &last, &snippet, &h.Score); err != nil {
			return nil, queryError(p, err)
		}
		h.Title, h.Agent, h.Workspace = title.String, agent.String, ws.String
		h.RepoRoot, h.RepoName, h.Branch = root.String, name.String, branch.String
		h.LastMessageAt, h.Snippet = last.String, snippet.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(p, err)
	}
	return hits, nil
}

// FindMessages ranks individual messages, breaking score ties by recency.
func FindMessages(db *index.DB, opts Options) ([]MessageHit, error) {
	p, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	var f filters
	var from, score string
	if p.like != "" {
		from = "messages m JOIN sessions s ON s.path = m.session_path"
		score = "0.0"
		f.add(`m.text LIKE ? ESCAPE '\'`, p.like)
	} else {
		from = `messages_fts
			JOIN messages m ON m.id = CAST(messages_fts.message_id AS INTEGER)
			JOIN sessions s ON s.path = m.session_path`
		score = "bm25(messages_fts)"
		f.add("messages_fts MATCH ?", p.match)
	}
	f.common(p, "COALESCE(m.timestamp, s.last_message_at)")
	if p.Role != "" {
		f.add("m.role = ?", p.Role)
	}

	query := fmt.Sprintf(`
		SELECT
			m.session_path, s.title, s.agent, s.workspace, s.repo_root, s.repo_name, s.branch,
			m.turn_index, m.role, m.timestamp, m.text,
			%s AS score
		FROM %s
		WHERE %s
		ORDER BY score ASC, COALESCE(m.timestamp, s.last_message_at) DESC
		LIMIT ?
	`, score, from, f.where())
	args := append(f.args, p.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, queryError(p, err)
	}

	// rows are drained before context lookups reuse the connection pool
	var hits []MessageHit
	for rows.Next() {
		var h MessageHit
		var title, agent, ws, root, name, branch, role, ts, text sql.NullString
		if err := rows.Scan(&h.Path, &title, &agent, &ws, &root, &name, &branch,
			&h.TurnIndex, &role, &ts, &text, &h.Score); err != nil {
			rows.Close()
			return nil, queryError(p, err)
		}
		h.Title, h.Agent, h.Workspace = title.String, agent.String, ws.String
		h.RepoRoot, h.RepoName, h.Branch = root.String, name.String, branch.String
		h.Role, h.Timestamp, h.Text = role.String, ts.String, text.String
		hits = append(hits, h)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, queryError(p, err)
	}

	if p.Around > 0 {
		for i := range hits {
			ctx, err := contextWindow(db, hits[i].Path, hits[i].TurnIndex, p.Around)
			if err != nil {
				return nil, err
			}
			hits[i].Context = ctx
		}
	}
	return hits, nil
}

func contextWindow(db *index.DB, path string, turn, around int) ([]ContextMessage, error) {
	msgs, err := db.MessagesInRange(path, turn-around, turn+around)
	if err != nil {
		return nil, err
	}
	out := make([]ContextMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ContextMessage{
			TurnIndex: m.TurnIndex,
			Role:      m.Role,
			Timestamp: m.Timestamp,
			Text:      m.Text,
		})
	}
	return out, nil
}

func queryError(p prepared, err error) error {
	if p.Mode == ModeFTS && isFTSSyntaxError(err) {
		return &FTSSyntaxError{Query: p.match, Err: err}
	}
	return &index.StoreError{Op: "search", Err: err}
}

func isFTSSyntaxError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"fts5", "syntax error", "no such column", "unterminated string"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
