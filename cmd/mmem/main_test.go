package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type env struct {
	root string
	db   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MMEM_ROOT", "")
	t.Setenv("MMEM_DB", "")
	t.Setenv("MMEM_LOG_LEVEL", "")

	root := filepath.Join(home, "marvin", "sessions")
	require.NoError(t, os.MkdirAll(root, 0o755))
	return env{root: root, db: filepath.Join(home, "index.sqlite")}
}

func (e env) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(e.root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--root", e.root, "--db", e.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

const transcript = `{"type":"session_meta","agent":"gpt-4"}
{"role":"user","content":"deploy alpha to staging","timestamp":"2024-01-05T10:00:00Z"}
{"message":{"role":"assistant","content":[{"type":"text","text":"reading config"},{"type":"toolCall","name":"read","arguments":{"path":"CONFIG","offset":2,"limit":2}}]}}
{"role":"user","content":"thanks","timestamp":"2024-01-05T10:05:00Z"}
`

func TestIndexAndFind(t *testing.T) {
	e := newEnv(t)
	e.write(t, "1700000001-a.jsonl", transcript)

	out := e.mustRun(t, "index")
	assert.Equal(t, "scanned: 1\nindexed: 1\nskipped: 0\nremoved: 0\nparse_errors: 0\n", out)

	out = e.mustRun(t, "index", "--json")
	var stats map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats["skipped"])

	out = e.mustRun(t, "find", "alpha", "--plain", "--snippet")
	assert.Contains(t, out, "2024-01-05T10:00:00Z | deploy alpha to staging\n")
	assert.Contains(t, out, "1700000001-a.jsonl#0\n")

	// assistant turns are excluded unless asked for
	out = e.mustRun(t, "find", "reading", "--plain")
	assert.Empty(t, out)
	out = e.mustRun(t, "find", "reading", "--include-assistant", "--jsonl", "--fields", "turn_index,role,agent")
	assert.Equal(t, `{"agent":"gpt-4","turn_index":1,"role":"assistant"}`+"\n", out)

	out = e.mustRun(t, "find", "alpha", "--scope", "session", "--json")
	var sessions []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "deploy alpha to staging", sessions[0]["title"])
	assert.Contains(t, sessions[0], "score")
}

func TestFind_ContextInStructuredOutput(t *testing.T) {
	e := newEnv(t)
	e.write(t, "s.jsonl", transcript)
	e.mustRun(t, "index")

	out := e.mustRun(t, "find", "thanks", "--around", "1", "--jsonl")
	var hit map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &hit))
	ctx, ok := hit["context"].([]any)
	require.True(t, ok, out)
	assert.Len(t, ctx, 2)

	out = e.mustRun(t, "find", "thanks", "--around", "1", "--jsonl", "--fields", "path")
	assert.NotContains(t, out, "context")
}

func TestFind_Errors(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "find", "--plain")
	assert.Error(t, err)

	_, err = e.run(t, "find", "x", "--scope", "everything")
	assert.Error(t, err)

	_, err = e.run(t, "find", "x", "--json", "--jsonl")
	assert.Error(t, err)

	e.write(t, "s.jsonl", transcript)
	e.mustRun(t, "index")
	_, err = e.run(t, "find", "alpha AND (", "--fts", "--plain")
	assert.Error(t, err)
}

func TestShow(t *testing.T) {
	e := newEnv(t)
	cfgFile := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(cfgFile, []byte("a\nb\nc\nd\n"), 0o644))
	p := e.write(t, "1700000001-a.jsonl", strings.ReplaceAll(transcript, "CONFIG", cfgFile))

	out := e.mustRun(t, "show", "1700000001")
	assert.Equal(t, "line 3 (turn 1) tool=read\npath="+cfgFile+" offset=2 limit=2\n\n", out)

	out = e.mustRun(t, "show", p, "--extract")
	assert.Equal(t, ">>> "+cfgFile+":2 (limit 2)\n   2 b\n   3 c\n\n", out)

	out = e.mustRun(t, "show", p+"#1", "--json")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.EqualValues(t, 3, entry["line"])
	assert.EqualValues(t, 1, entry["turn"])

	out = e.mustRun(t, "show", p, "--turn", "0")
	assert.Equal(t, "no tool calls found\n", out)

	_, err := e.run(t, "show", p, "--turn", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "messages: 3")

	_, err = e.run(t, "show", "999")
	assert.Error(t, err)
}

func TestStatsAgentsDoctor(t *testing.T) {
	e := newEnv(t)
	e.write(t, "a.jsonl", transcript)
	e.write(t, "b.jsonl", `{"role":"user","content":"no agent here"}`)
	e.mustRun(t, "index")

	out := e.mustRun(t, "stats")
	assert.Equal(t, "sessions: 2\noldest: 2024-01-05T10:05:00Z\nnewest: 2024-01-05T10:05:00Z\nparse_failures: unknown\n", out)

	out = e.mustRun(t, "stats", "--format", "yaml")
	var summary map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary["session_count"])

	out = e.mustRun(t, "agents")
	assert.Contains(t, out, "gpt-4")
	assert.Contains(t, out, "marvin")

	out = e.mustRun(t, "doctor", "--json")
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, true, report["schema_ok"])
	assert.EqualValues(t, 2, report["indexed_sessions"])
}

func TestSplitRef(t *testing.T) {
	p, n, ok := splitRef("/s/a.jsonl#12")
	assert.True(t, ok)
	assert.Equal(t, "/s/a.jsonl", p)
	assert.Equal(t, 12, n)

	for _, arg := range []string{"/s/a.jsonl", "/s/a#b.jsonl", "#3", "/s/a.jsonl#", "/s/a.jsonl#-1"} {
		_, _, ok := splitRef(arg)
		assert.False(t, ok, arg)
	}
}

func TestRoleFilter(t *testing.T) {
	assert.Equal(t, "user", roleFilter("", false))
	assert.Equal(t, "", roleFilter("", true))
	assert.Equal(t, "assistant", roleFilter(" Assistant ", false))
	assert.Equal(t, "tool", roleFilter("tool", true))
}

func TestFindOptions_DaysBecomesAfter(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	f := &findFlags{days: 7, limit: 5}
	opts := f.options("q", now)
	assert.Equal(t, "2024-03-03T12:00:00Z", opts.After)
	assert.Equal(t, "user", opts.Role)

	f.after = "2024-01-01"
	assert.Equal(t, "2024-01-01", f.options("q", now).After)
}
