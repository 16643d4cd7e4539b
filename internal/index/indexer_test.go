package index

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noGit fails every repository query.
type noGit struct{}

func (noGit) Output(string, ...string) (string, error) {
	return "", errors.New("not a git repository")
}

// fixedGit reports every workspace as living in repo on branch main.
type fixedGit struct {
	repo  string
	calls int
}

func (f *fixedGit) Output(dir string, args ...string) (string, error) {
	f.calls++
	if strings.Join(args, " ") == "rev-parse --show-toplevel" {
		return f.repo, nil
	}
	return "main", nil
}

func writeTranscript(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const helloTranscript = `{"role":"user","content":"hello"}
{"role":"assistant","content":"hi there"}
`

func runSync(t *testing.T, db *DB, root string, full bool) Stats {
	t.Helper()
	stats, err := Sync(db, root, Options{Full: full, Git: noGit{}})
	require.NoError(t, err)
	return stats
}

func TestSync_IndexesHelloTranscript(t *testing.T) {
	db := openTestDB(t)
	root := filepath.Join(t.TempDir(), "marvin", "sessions")
	path := filepath.Join(root, "1700000000-abc.jsonl")
	writeTranscript(t, path, helloTranscript)

	stats := runSync(t, db, root, false)
	assert.Equal(t, Stats{Scanned: 1, Indexed: 1}, stats)

	rec, err := db.GetSession(path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.MessageCount)
	assert.Equal(t, "hello", rec.Title)
	assert.Contains(t, rec.Content, "[user] hello")
	assert.Contains(t, rec.Content, "[assistant] hi there")
	assert.Equal(t, "marvin", rec.Agent)

	msgs, err := db.GetMessages(path)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, MessageRecord{TurnIndex: 0, Role: "user", Text: "hello"}, msgs[0])
	assert.Equal(t, MessageRecord{TurnIndex: 1, Role: "assistant", Text: "hi there"}, msgs[1])
}

func TestSync_UnchangedFilesAreSkipped(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	writeTranscript(t, filepath.Join(root, "a.jsonl"), helloTranscript)
	writeTranscript(t, filepath.Join(root, "b.md"), "user: notes\nassistant: ok")

	first := runSync(t, db, root, false)
	assert.Equal(t, 2, first.Indexed)

	second := runSync(t, db, root, false)
	assert.Equal(t, second.Scanned, second.Skipped)
	assert.Zero(t, second.Indexed)
	assert.Zero(t, second.Removed)
}

func TestSync_FullIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	path := filepath.Join(root, "a.jsonl")
	writeTranscript(t, path, helloTranscript)

	dump := func() string {
		var b strings.Builder
		rows, err := db.Raw().Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY path`)
		require.NoError(t, err)
		for rows.Next() {
			rec, err := scanSession(rows)
			require.NoError(t, err)
			b.WriteString(strings.Join([]string{rec.Path, rec.Title, rec.Snippet, rec.Agent, rec.CreatedAt}, "|"))
		}
		require.NoError(t, rows.Close())
		msgs, err := db.GetMessages(path)
		require.NoError(t, err)
		for _, m := range msgs {
			b.WriteString(strings.Join([]string{m.Role, m.Timestamp, m.Text}, "|"))
		}
		return b.String()
	}

	s1 := runSync(t, db, root, true)
	before := dump()
	s2 := runSync(t, db, root, true)
	after := dump()

	assert.Equal(t, 1, s1.Indexed)
	assert.Equal(t, 1, s2.Indexed)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sessions_fts"))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM messages_fts"))
}

func TestSync_ChangedContentReplacesMessages(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	path := filepath.Join(root, "a.jsonl")
	writeTranscript(t, path, `{"role":"user","content":"alpha"}
{"role":"assistant","content":"bravo"}
{"role":"user","content":"charlie"}
`)
	runSync(t, db, root, false)

	writeTranscript(t, path, `{"role":"user","content":"delta only"}`+"\n")
	stats := runSync(t, db, root, false)
	assert.Equal(t, 1, stats.Indexed)

	msgs, err := db.GetMessages(path)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "delta only", msgs[0].Text)

	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'charlie'"))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM sessions_fts WHERE sessions_fts MATCH 'bravo'"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'delta'"))
}

func TestSync_DeletedFileIsRemoved(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	gone := filepath.Join(root, "gone.jsonl")
	writeTranscript(t, gone, helloTranscript)
	writeTranscript(t, filepath.Join(root, "kept.jsonl"), helloTranscript)
	runSync(t, db, root, false)

	require.NoError(t, os.Remove(gone))
	stats := runSync(t, db, root, false)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Skipped)

	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM sessions WHERE path = ?", gone))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM sessions_fts WHERE path = ?", gone))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM messages WHERE session_path = ?", gone))
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM messages_fts WHERE session_path = ?", gone))
}

func TestSync_ParseFailureRemovesStaleRecord(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	path := filepath.Join(root, "a.jsonl")
	writeTranscript(t, path, helloTranscript)
	runSync(t, db, root, false)

	writeTranscript(t, path, "{\"role\":\"user\",\"content\":\"hello\"}\n{broken\n")
	stats := runSync(t, db, root, false)
	assert.Equal(t, Stats{Scanned: 1, Removed: 1, ParseErrors: 1}, stats)

	rec, err := db.GetSession(path)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, count(t, db, "SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'hello'"))
}

func TestSync_ParseFailureOnNewFileOnlyCounts(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	writeTranscript(t, filepath.Join(root, "bad.json"), "{")
	writeTranscript(t, filepath.Join(root, "good.md"), "user: fine")

	stats := runSync(t, db, root, false)
	assert.Equal(t, Stats{Scanned: 2, Indexed: 1, ParseErrors: 1}, stats)
}

func TestSync_ParserVersionBumpForcesReparse(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	writeTranscript(t, filepath.Join(root, "a.jsonl"), helloTranscript)
	runSync(t, db, root, false)

	_, err := db.Raw().Exec("UPDATE meta SET value = 'old' WHERE key = 'parser_version'")
	require.NoError(t, err)
	require.NoError(t, db.migrateSchemaVersion())

	stats := runSync(t, db, root, false)
	assert.Equal(t, 1, stats.Indexed)
}

func TestSync_MissingRoot(t *testing.T) {
	db := openTestDB(t)
	_, err := Sync(db, filepath.Join(t.TempDir(), "nope"), Options{Git: noGit{}})
	require.Error(t, err)
}

func TestSync_RepositoryContextFromWorkspace(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	ws := t.TempDir()
	repo := t.TempDir()

	line := `{"type":"session_meta","workspace":"` + ws + `"}` + "\n" + `{"role":"user","content":"x"}` + "\n"
	writeTranscript(t, filepath.Join(root, "a.jsonl"), line)
	writeTranscript(t, filepath.Join(root, "b.jsonl"), line)

	git := &fixedGit{repo: repo}
	_, err := Sync(db, root, Options{Git: git})
	require.NoError(t, err)
	assert.Equal(t, 2, git.calls, "workspace must be queried once per run")

	rec, err := db.GetSession(filepath.Join(root, "b.jsonl"))
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(repo)
	require.NoError(t, err)
	assert.Equal(t, resolved, rec.RepoRoot)
	assert.Equal(t, filepath.Base(resolved), rec.RepoName)
	assert.Equal(t, "main", rec.Branch)
	assert.Equal(t, ws, rec.Workspace)
}

func TestSync_MissingWorkspaceHasNoRepoContext(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	writeTranscript(t, filepath.Join(root, "a.jsonl"),
		`{"workspace":"/definitely/not/here","role":"user","content":"x"}`+"\n")

	git := &fixedGit{repo: t.TempDir()}
	_, err := Sync(db, root, Options{Git: git})
	require.NoError(t, err)
	assert.Zero(t, git.calls)

	rec, err := db.GetSession(filepath.Join(root, "a.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, rec.RepoRoot)
	assert.Equal(t, "/definitely/not/here", rec.Workspace)
}

func TestSync_StalenessUsesMtimeAndSize(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	path := filepath.Join(root, "a.jsonl")
	writeTranscript(t, path, helloTranscript)
	runSync(t, db, root, false)

	// same size, newer mtime
	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	stats := runSync(t, db, root, false)
	assert.Equal(t, 1, stats.Indexed)
}

func TestInferAgent(t *testing.T) {
	assert.Equal(t, "marvin", inferAgent("/home/u/.config/marvin/sessions"))
	assert.Equal(t, "opencode", inferAgent("/data/opencode/sessions/"))
	assert.Equal(t, "transcripts", inferAgent("/data/transcripts"))
	assert.Equal(t, "", inferAgent("/"))
}

func TestDecodeWorkspace(t *testing.T) {
	dir := t.TempDir()
	encoded := strings.ReplaceAll(strings.TrimPrefix(dir, "/"), "/", "--")
	assert.Equal(t, dir, decodeWorkspace(encoded))
	assert.Equal(t, dir, decodeWorkspace("--"+encoded))
	assert.Equal(t, "", decodeWorkspace("plain-name"))
	assert.Equal(t, "", decodeWorkspace("no--such--dir--here"))
}

func TestSync_ConfiguredAgentWinsOverRootName(t *testing.T) {
	db := openTestDB(t)
	root := filepath.Join(t.TempDir(), "marvin", "sessions")
	declared := filepath.Join(root, "declared.jsonl")
	writeTranscript(t, filepath.Join(root, "plain.jsonl"), helloTranscript)
	writeTranscript(t, declared, `{"type":"session_meta","agent":"gpt-4"}
{"role":"user","content":"hello"}
`)

	_, err := Sync(db, root, Options{Agent: "zaphod", Git: noGit{}})
	require.NoError(t, err)

	rec, err := db.GetSession(filepath.Join(root, "plain.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "zaphod", rec.Agent)

	rec, err = db.GetSession(declared)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", rec.Agent)
}

func TestSync_StoreFailureRollsBackWholeRun(t *testing.T) {
	db := openTestDB(t)
	root := filepath.Join(t.TempDir(), "sessions")
	a := filepath.Join(root, "a.jsonl")
	writeTranscript(t, a, helloTranscript)
	runSync(t, db, root, false)

	_, err := db.Raw().Exec(`CREATE TRIGGER fail_on_boom BEFORE INSERT ON messages
		WHEN NEW.text = 'boom'
		BEGIN SELECT RAISE(ABORT, 'injected'); END`)
	require.NoError(t, err)

	writeTranscript(t, a, `{"role":"user","content":"rewritten and longer"}`+"\n")
	writeTranscript(t, filepath.Join(root, "b.jsonl"), `{"role":"user","content":"boom"}`+"\n")

	_, err = Sync(db, root, Options{Git: noGit{}})
	require.Error(t, err)
	var se *StoreError
	require.True(t, errors.As(err, &se), "got %T: %v", err, err)

	msgs, err := db.GetMessages(a)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "hi there", msgs[1].Text)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sessions"))
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'rewritten'"))
}
