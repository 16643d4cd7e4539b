package index

import (
	"database/sql"
)

// SessionRecord is the persisted form of one transcript. Empty strings are
// stored as NULL.
type SessionRecord struct {
	Path          string
	Mtime         int64
	Size          int64
	Hash          string
	CreatedAt     string
	LastMessageAt string
	Agent         string
	Workspace     string
	Title         string
	MessageCount  int
	Snippet       string
	Content       string
	RepoRoot      string
	RepoName      string
	Branch        string
}

type MessageRecord struct {
	TurnIndex int
	Role      string
	Timestamp string
	Text      string
}

// IndexedSession is the staleness triple of an indexed file.
type IndexedSession struct {
	Path  string
	Mtime int64
	Size  int64
}

func (d *DB) LoadIndexedSessions() ([]IndexedSession, error) {
	rows, err := d.db.Query("SELECT path, mtime, size FROM sessions")
	if err != nil {
		return nil, storeErr("load indexed sessions", err)
	}
	defer rows.Close()

	var out []IndexedSession
	for rows.Next() {
		var s IndexedSession
		if err := rows.Scan(&s.Path, &s.Mtime, &s.Size); err != nil {
			return nil, storeErr("load indexed sessions", err)
		}
		out = append(out, s)
	}
	return out, storeErr("load indexed sessions", rows.Err())
}

const sessionColumns = `path, mtime, size, hash, created_at, last_message_at, agent, workspace,
	title, message_count, snippet, repo_root, repo_name, branch`

// GetSession returns the stored record for path, or nil when it is not
// indexed. Content is filled from the session's full-text entry.
func (d *DB) GetSession(path string) (*SessionRecord, error) {
	row := d.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE path = ?", path)
	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get session", err)
	}

	var content sql.NullString
	err = d.db.QueryRow("SELECT content FROM sessions_fts WHERE path = ?", path).Scan(&content)
	if err != nil && err != sql.ErrNoRows {
		return nil, storeErr("get session content", err)
	}
	rec.Content = content.String
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var hash, created, last, agent, workspace sql.NullString
	var title, snippet, repoRoot, repoName, br sql.NullString
	var count sql.NullInt64
	err := r.Scan(&rec.Path, &rec.Mtime, &rec.Size, &hash, &created, &last, &agent, &workspace,
		&title, &count, &snippet, &repoRoot, &repoName, &br)
	if err != nil {
		return nil, err
	}
	rec.Hash = hash.String
	rec.CreatedAt = created.String
	rec.LastMessageAt = last.String
	rec.Agent = agent.String
	rec.Workspace = workspace.String
	rec.Title = title.String
	rec.MessageCount = int(count.Int64)
	rec.Snippet = snippet.String
	rec.RepoRoot = repoRoot.String
	rec.RepoName = repoName.String
	rec.Branch = br.String
	return &rec, nil
}

// GetMessages returns every message of a session in turn order.
func (d *DB) GetMessages(sessionPath string) ([]MessageRecord, error) {
	return d.queryMessages(
		"SELECT turn_index, role, timestamp, text FROM messages WHERE session_path = ? ORDER BY turn_index",
		sessionPath,
	)
}

// MessagesInRange returns the messages whose turn index lies in [lo, hi],
// ascending.
func (d *DB) MessagesInRange(sessionPath string, lo, hi int) ([]MessageRecord, error) {
	if lo < 0 {
		lo = 0
	}
	return d.queryMessages(
		`SELECT turn_index, role, timestamp, text FROM messages
		 WHERE session_path = ? AND turn_index BETWEEN ? AND ?
		 ORDER BY turn_index`,
		sessionPath, lo, hi,
	)
}

func (d *DB) queryMessages(query string, args ...any) ([]MessageRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("query messages", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var m MessageRecord
		var role, ts, text sql.NullString
		if err := rows.Scan(&m.TurnIndex, &role, &ts, &text); err != nil {
			return nil, storeErr("query messages", err)
		}
		m.Role = role.String
		m.Timestamp = ts.String
		m.Text = text.String
		out = append(out, m)
	}
	return out, storeErr("query messages", rows.Err())
}

func (d *DB) SessionCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, storeErr("count sessions", err)
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, storeErr("count messages", err)
}
