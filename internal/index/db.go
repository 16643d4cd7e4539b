package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    path            TEXT PRIMARY KEY,
    mtime           INTEGER NOT NULL,
    size            INTEGER NOT NULL,
    hash            TEXT,
    created_at      TEXT,
    last_message_at TEXT,
    agent           TEXT,
    workspace       TEXT,
    title           TEXT,
    message_count   INTEGER,
    snippet         TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
    content,
    path UNINDEXED
);

CREATE TABLE IF NOT EXISTS messages (
    id           INTEGER PRIMARY KEY,
    session_path TEXT NOT NULL,
    turn_index   INTEGER NOT NULL,
    role         TEXT,
    timestamp    TEXT,
    text         TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    message_id UNINDEXED,
    session_path UNINDEXED,
    role UNINDEXED
);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);

CREATE INDEX IF NOT EXISTS idx_sessions_last_message_at ON sessions(last_message_at);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent);
CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace);
CREATE INDEX IF NOT EXISTS idx_messages_session_turn ON messages(session_path, turn_index);
`

// Columns added after the first schema. Older files gain them in place.
var addedColumns = []struct{ table, column, typ string }{
	{"sessions", "repo_root", "TEXT"},
	{"sessions", "repo_name", "TEXT"},
	{"sessions", "branch", "TEXT"},
}

const lateIndexes = `
CREATE INDEX IF NOT EXISTS idx_sessions_repo_name ON sessions(repo_name);
CREATE INDEX IF NOT EXISTS idx_sessions_branch ON sessions(branch);
`

// StoreError is the single failure kind of the index store. It wraps the
// driver error unchanged.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the index file and brings its schema up
// to date. The special path ":memory:" opens a private in-memory index.
func OpenDB(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"
	if !memory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, storeErr("open", err)
	}
	if memory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	d := &DB{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.migrateSchemaVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenExisting opens an index file as it is, without creating or upgrading
// its schema. Health checks use it so they never write to the index.
func OpenExisting(dbPath string) (*DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, storeErr("open", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+readOnlyPragmas)
	if err != nil {
		return nil, storeErr("open", err)
	}
	return &DB{db: db}, nil
}

// connPragmas are applied by the driver to every pooled connection, not
// just the first one.
const connPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// readOnlyPragmas leave the journal mode alone; switching it rewrites the
// file header.
const readOnlyPragmas = "?mode=ro&_pragma=busy_timeout(5000)"

func dsn(dbPath string) string {
	return dbPath + connPragmas
}

func (d *DB) initSchema() error {
	if _, err := d.db.Exec(schema); err != nil {
		return storeErr("init schema", err)
	}
	for _, c := range addedColumns {
		if err := d.ensureColumn(c.table, c.column, c.typ); err != nil {
			return err
		}
	}
	if _, err := d.db.Exec(lateIndexes); err != nil {
		return storeErr("init schema", err)
	}
	return nil
}

func (d *DB) ensureColumn(table, column, typ string) error {
	rows, err := d.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return storeErr("table info", err)
	}
	found := false
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return storeErr("table info", err)
		}
		if name == column {
			found = true
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return storeErr("table info", err)
	}
	if found {
		return nil
	}
	_, err = d.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ))
	return storeErr("add column "+column, err)
}

// parserVersion should be bumped whenever normalization changes the
// messages it produces, forcing the next sync to re-parse every file.
const parserVersion = "1"

func (d *DB) migrateSchemaVersion() error {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'parser_version'").Scan(&ver)
	if err == nil && ver == parserVersion {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return storeErr("read parser version", err)
	}
	if _, err := d.db.Exec("UPDATE sessions SET mtime = 0, size = 0"); err != nil {
		return storeErr("reset staleness", err)
	}
	_, err = d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('parser_version', ?)", parserVersion)
	return storeErr("write parser version", err)
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

// Tx is one write transaction. All session and message writes of a sync run
// go through a single Tx.
type Tx struct {
	tx *sql.Tx
}

func (d *DB) Begin() (*Tx, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, storeErr("begin", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	return storeErr("commit", t.tx.Commit())
}

// Rollback aborts the transaction. Calling it after Commit is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return storeErr("rollback", err)
	}
	return nil
}

// UpsertSession writes the session row, replacing every mutable column on
// conflict, and swaps its full-text entry.
func (t *Tx) UpsertSession(rec *SessionRecord) error {
	_, err := t.tx.Exec(`
		INSERT INTO sessions (
			path, mtime, size, hash, created_at, last_message_at, agent, workspace,
			title, message_count, snippet, repo_root, repo_name, branch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			size = excluded.size,
			hash = excluded.hash,
			created_at = excluded.created_at,
			last_message_at = excluded.last_message_at,
			agent = excluded.agent,
			workspace = excluded.workspace,
			title = excluded.title,
			message_count = excluded.message_count,
			snippet = excluded.snippet,
			repo_root = excluded.repo_root,
			repo_name = excluded.repo_name,
			branch = excluded.branch`,
		rec.Path, rec.Mtime, rec.Size,
		nullable(rec.Hash), nullable(rec.CreatedAt), nullable(rec.LastMessageAt),
		nullable(rec.Agent), nullable(rec.Workspace), nullable(rec.Title),
		rec.MessageCount, nullable(rec.Snippet),
		nullable(rec.RepoRoot), nullable(rec.RepoName), nullable(rec.Branch),
	)
	if err != nil {
		return storeErr("upsert session", err)
	}
	if _, err := t.tx.Exec("DELETE FROM sessions_fts WHERE path = ?", rec.Path); err != nil {
		return storeErr("upsert session fts", err)
	}
	if _, err := t.tx.Exec("INSERT INTO sessions_fts (content, path) VALUES (?, ?)", rec.Content, rec.Path); err != nil {
		return storeErr("upsert session fts", err)
	}
	return nil
}

// ReplaceMessages drops every message of the session and inserts msgs in
// their place, mirroring each row into the message full-text table.
func (t *Tx) ReplaceMessages(sessionPath string, msgs []MessageRecord) error {
	if err := t.deleteMessages(sessionPath); err != nil {
		return err
	}

	insertMsg, err := t.tx.Prepare(
		`INSERT INTO messages (session_path, turn_index, role, timestamp, text)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return storeErr("replace messages", err)
	}
	defer insertMsg.Close()

	insertFTS, err := t.tx.Prepare(
		`INSERT INTO messages_fts (text, message_id, session_path, role)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return storeErr("replace messages", err)
	}
	defer insertFTS.Close()

	for _, m := range msgs {
		res, err := insertMsg.Exec(sessionPath, m.TurnIndex, nullable(m.Role), nullable(m.Timestamp), m.Text)
		if err != nil {
			return storeErr("insert message", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storeErr("insert message", err)
		}
		if _, err := insertFTS.Exec(m.Text, id, sessionPath, nullable(m.Role)); err != nil {
			return storeErr("insert message fts", err)
		}
	}
	return nil
}

func (t *Tx) deleteMessages(sessionPath string) error {
	if _, err := t.tx.Exec("DELETE FROM messages_fts WHERE session_path = ?", sessionPath); err != nil {
		return storeErr("delete messages fts", err)
	}
	if _, err := t.tx.Exec("DELETE FROM messages WHERE session_path = ?", sessionPath); err != nil {
		return storeErr("delete messages", err)
	}
	return nil
}

// RemoveSession deletes shadow entries, messages and the session row.
func (t *Tx) RemoveSession(path string) error {
	if err := t.deleteMessages(path); err != nil {
		return err
	}
	if _, err := t.tx.Exec("DELETE FROM sessions_fts WHERE path = ?", path); err != nil {
		return storeErr("delete session fts", err)
	}
	if _, err := t.tx.Exec("DELETE FROM sessions WHERE path = ?", path); err != nil {
		return storeErr("delete session", err)
	}
	return nil
}

// UpsertSession writes one session and its messages in a transaction of its own.
func (d *DB) UpsertSession(rec *SessionRecord, msgs []MessageRecord) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.UpsertSession(rec); err != nil {
		return err
	}
	if err := tx.ReplaceMessages(rec.Path, msgs); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) RemoveSession(path string) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.RemoveSession(path); err != nil {
		return err
	}
	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
