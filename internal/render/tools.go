package render

import (
	"fmt"
	"io"

	"github.com/Zuo-Peng/mmem/internal/parse"
	"github.com/Zuo-Peng/mmem/internal/session"
)

const noArguments = "(no arguments)"

// FormatToolArgs summarizes tool-call arguments on one line. Read-style
// arguments are shown as path/offset/limit.
func FormatToolArgs(args any) string {
	var v any
	switch a := args.(type) {
	case map[string]any:
		v = a
	case string:
		decoded, err := parse.DecodeValue([]byte(a))
		if err != nil {
			return noArguments
		}
		v = decoded
	default:
		return noArguments
	}
	if obj, ok := v.(map[string]any); ok {
		if _, hasPath := obj["path"]; hasPath {
			if ra, ok := session.ParseReadArgs(obj); ok {
				return fmt.Sprintf("path=%s offset=%d limit=%d", ra.Path, ra.Offset, ra.Limit)
			}
		}
	}
	b, err := marshalJSON(v)
	if err != nil {
		return noArguments
	}
	return TrimOutput(string(b))
}

func turnLabel(turn *int) string {
	if turn == nil {
		return "turn ?"
	}
	return fmt.Sprintf("turn %d", *turn)
}

func toolRecord(c session.ToolCall) Record {
	var r Record
	r.add("name", c.Name)
	r.add("arguments", c.Arguments)
	return r
}

// ToolMatchRecord is the structured form of one scan_tool_calls match.
func ToolMatchRecord(m session.ToolCallMatch) Record {
	var r Record
	r.add("line", m.Line)
	if m.Turn != nil {
		r.add("turn", *m.Turn)
	}
	r.add("tool", toolRecord(m.Tool))
	return r
}

// EntryRecord is the structured form of a shown entry and its tool calls.
func EntryRecord(e *session.Entry, calls []session.ToolCall) Record {
	var r Record
	r.add("line", e.Line)
	if e.Turn != nil {
		r.add("turn", *e.Turn)
	}
	r.addString("role", e.Role)
	r.addString("timestamp", e.Timestamp)
	tools := make([]Record, 0, len(calls))
	for _, c := range calls {
		tools = append(tools, toolRecord(c))
	}
	r.add("tools", tools)
	return r
}

func WriteToolMatches(w io.Writer, matches []session.ToolCallMatch) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "no tool calls found")
		return
	}
	for _, m := range matches {
		fmt.Fprintf(w, "line %d (%s) tool=%s\n", m.Line, turnLabel(m.Turn), m.Tool.Name)
		fmt.Fprintln(w, FormatToolArgs(m.Tool.Arguments))
		fmt.Fprintln(w)
	}
}

func WriteEntry(w io.Writer, e *session.Entry, calls []session.ToolCall) {
	if len(calls) == 0 {
		fmt.Fprintln(w, "no tool calls found")
		return
	}
	fmt.Fprintln(w, e.String())
	if e.Timestamp != "" {
		fmt.Fprintf(w, "timestamp %s\n", e.Timestamp)
	}
	for _, c := range calls {
		fmt.Fprintf(w, "tool=%s\n", c.Name)
		fmt.Fprintln(w, FormatToolArgs(c.Arguments))
		fmt.Fprintln(w)
	}
}

// WriteExtract prints the file range a read call referred to, one
// right-aligned line number per line.
func WriteExtract(w io.Writer, args session.ReadArgs, lines []session.NumberedLine) {
	fmt.Fprintf(w, ">>> %s:%d (limit %d)\n", args.Path, args.Offset, args.Limit)
	for _, l := range lines {
		fmt.Fprintf(w, "%4d %s\n", l.Number, l.Text)
	}
	fmt.Fprintln(w)
}
