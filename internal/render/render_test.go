package render

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/mmem/internal/index"
	"github.com/Zuo-Peng/mmem/internal/search"
	"github.com/Zuo-Peng/mmem/internal/session"
	"github.com/Zuo-Peng/mmem/internal/stats"
)

func TestTrimOutput(t *testing.T) {
	assert.Equal(t, "a b c", TrimOutput("  a\n\tb   c \n"))
	long := strings.Repeat("é", MaxOutputLen+20)
	assert.Equal(t, MaxOutputLen, len([]rune(TrimOutput(long))))
}

func TestNewFieldSet(t *testing.T) {
	fs := NewFieldSet(nil, search.ScopeSession)
	assert.Equal(t, FieldSet{"path": true, "title": true, "last_message_at": true, "score": true}, fs)

	fs = NewFieldSet([]string{" Path ", "TEXT", ""}, search.ScopeMessage)
	assert.Equal(t, FieldSet{"path": true, "text": true}, fs)
}

func TestMessageRecord_JSONKeepsFieldOrder(t *testing.T) {
	hit := search.MessageHit{
		Path:      "/s/a.jsonl",
		Title:     "hello",
		TurnIndex: 3,
		Role:      "user",
		Text:      "  deploy   the thing ",
		Score:     -1.5,
		Context: []search.ContextMessage{
			{TurnIndex: 2, Role: "assistant", Text: "before"},
		},
	}
	fs := NewFieldSet([]string{"path", "turn_index", "role", "text", "score", "context"}, search.ScopeMessage)

	var buf bytes.Buffer
	require.NoError(t, EmitList(&buf, FormatJSONL, []Record{MessageRecord(hit, fs, true)}))
	assert.Equal(t,
		`{"path":"/s/a.jsonl","turn_index":3,"role":"user","text":"deploy the thing","score":-1.5,"context":[{"turn_index":2,"role":"assistant","text":"before"}]}`+"\n",
		buf.String())

	buf.Reset()
	require.NoError(t, EmitList(&buf, FormatJSONL, []Record{MessageRecord(hit, fs, false)}))
	assert.NotContains(t, buf.String(), "context")
}

func TestSessionRecord_OmitsEmptyOptionalFields(t *testing.T) {
	hit := search.SessionHit{Path: "/s/a.jsonl", Score: 0}
	r := SessionRecord(hit, NewFieldSet(nil, search.ScopeSession))
	var buf bytes.Buffer
	require.NoError(t, EmitValue(&buf, FormatJSONL, r))
	assert.Equal(t, `{"path":"/s/a.jsonl","score":0}`+"\n", buf.String())
}

func TestEmitList_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitList[Record](&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestEmitList_YAML(t *testing.T) {
	var r Record
	r.add("path", "/s/a.jsonl")
	r.add("turn_index", 2)
	var buf bytes.Buffer
	require.NoError(t, EmitList(&buf, FormatYAML, []Record{r}))
	assert.Equal(t, "- path: /s/a.jsonl\n  turn_index: 2\n", buf.String())
}

func TestFormatSet(t *testing.T) {
	var f Format
	require.NoError(t, f.Set("YAML"))
	assert.Equal(t, FormatYAML, f)
	assert.True(t, f.Structured())
	assert.Error(t, f.Set("xml"))
	assert.False(t, FormatText.Structured())
}

func TestWriteSessions(t *testing.T) {
	var buf bytes.Buffer
	WriteSessions(&buf, []search.SessionHit{
		{Path: "/s/a.jsonl", Title: "hello", LastMessageAt: "2024-01-01T00:00:00Z", Snippet: "[user]  hello"},
		{Path: "/s/b.jsonl"},
	}, true)
	assert.Equal(t,
		"2024-01-01T00:00:00Z | hello\n/s/a.jsonl\n[user] hello\n\n"+
			"(unknown) | (untitled)\n/s/b.jsonl\n\n",
		buf.String())
}

func TestWriteMessages_WithContext(t *testing.T) {
	var buf bytes.Buffer
	WriteMessages(&buf, []search.MessageHit{{
		Path: "/s/a.jsonl", Title: "t", TurnIndex: 1, Timestamp: "ts", Text: "hit",
		Context: []search.ContextMessage{
			{TurnIndex: 0, Role: "user", Text: "q"},
			{TurnIndex: 1, Text: "hit"},
			{TurnIndex: 2, Role: "assistant", Text: "  "},
		},
	}}, false, 1)
	assert.Equal(t, "ts | t\n/s/a.jsonl#1\n  0:user q\n  1:unknown hit\n\n", buf.String())
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	WriteStats(&buf, stats.Summary{SessionCount: 2, NewestMessageAt: "n"})
	assert.Equal(t, "sessions: 2\noldest: (unknown)\nnewest: n\nparse_failures: unknown\n", buf.String())
}

func TestFormatToolArgs(t *testing.T) {
	assert.Equal(t, "path=/x.go offset=3 limit=200",
		FormatToolArgs(map[string]any{"path": "/x.go", "offset": float64(3)}))
	assert.Equal(t, `{"cmd":"ls"}`, FormatToolArgs(`{"cmd":"ls"}`))
	assert.Equal(t, "(no arguments)", FormatToolArgs(nil))
	assert.Equal(t, "(no arguments)", FormatToolArgs("not json"))
	assert.Equal(t, "(no arguments)", FormatToolArgs([]any{"a"}))
}

func TestWriteToolMatches(t *testing.T) {
	turn := 1
	var buf bytes.Buffer
	WriteToolMatches(&buf, []session.ToolCallMatch{
		{Line: 4, Turn: &turn, Tool: session.ToolCall{Name: "read", Arguments: map[string]any{"path": "/x"}}},
		{Line: 9, Tool: session.ToolCall{Name: "bash"}},
	})
	assert.Equal(t,
		"line 4 (turn 1) tool=read\npath=/x offset=1 limit=200\n\n"+
			"line 9 (turn ?) tool=bash\n(no arguments)\n\n",
		buf.String())

	buf.Reset()
	WriteToolMatches(&buf, nil)
	assert.Equal(t, "no tool calls found\n", buf.String())
}

func TestWriteEntryAndRecord(t *testing.T) {
	turn := 0
	e := &session.Entry{Line: 2, Turn: &turn, Role: "assistant", Timestamp: "ts"}
	calls := []session.ToolCall{{Name: "read", Arguments: map[string]any{"path": "/x"}}}

	var buf bytes.Buffer
	WriteEntry(&buf, e, calls)
	assert.Equal(t, "line 2 (turn 0, role assistant)\ntimestamp ts\ntool=read\npath=/x offset=1 limit=200\n\n", buf.String())

	buf.Reset()
	require.NoError(t, EmitValue(&buf, FormatJSONL, EntryRecord(e, calls)))
	assert.Equal(t, `{"line":2,"turn":0,"role":"assistant","timestamp":"ts","tools":[{"name":"read","arguments":{"path":"/x"}}]}`+"\n", buf.String())
}

func TestWriteExtract(t *testing.T) {
	var buf bytes.Buffer
	WriteExtract(&buf, session.ReadArgs{Path: "/x", Offset: 9, Limit: 2},
		[]session.NumberedLine{{Number: 9, Text: "a"}, {Number: 10, Text: "b"}})
	assert.Equal(t, ">>> /x:9 (limit 2)\n   9 a\n  10 b\n\n", buf.String())
}

func TestHighlightKeywords(t *testing.T) {
	got := highlightKeywords("Deploy and deploy", "deploy AND")
	assert.Equal(t, colorBoldRed+"Deploy"+colorReset+" and "+colorBoldRed+"deploy"+colorReset, got)
}

func TestWrapLine_IgnoresEscapes(t *testing.T) {
	lines := wrapLine(colorDim+"abcdef"+colorReset, 3)
	require.Len(t, lines, 2)
	assert.Equal(t, colorDim+"abc", lines[0])
	assert.Equal(t, "def"+colorReset, lines[1])
}

func TestRenderConversation(t *testing.T) {
	db, err := index.OpenDB(filepath.Join(t.TempDir(), "i.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	var msgs []index.MessageRecord
	for i, text := range []string{"zero", "one", "two", "three", "four"} {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, index.MessageRecord{TurnIndex: i, Role: role, Text: text})
	}
	require.NoError(t, db.UpsertSession(&index.SessionRecord{Path: "/s/a.jsonl", Agent: "marvin"}, msgs))

	out, hitLine, err := RenderConversation(db, "/s/a.jsonl", Options{HitTurn: 2, Context: 1, Query: "two"})
	require.NoError(t, err)
	assert.Contains(t, out, "[marvin]")
	assert.Contains(t, out, "(1 messages before)")
	assert.Contains(t, out, "(1 messages after)")
	assert.NotContains(t, out, "zero")
	assert.Contains(t, out, colorBoldRed+"two"+colorReset)
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), hitLine)
	assert.Contains(t, lines[hitLine], ">> USER #2")

	_, _, err = RenderConversation(db, "/s/missing.jsonl", Options{HitTurn: -1})
	assert.Error(t, err)
}
