package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Error reports malformed input. Line is 1-based for line-delimited JSON and
// zero for file-level failures.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid jsonl at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid json: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Normalize turns raw transcript bytes of the given format into a Session.
func Normalize(format Format, raw []byte) (*Session, error) {
	switch format {
	case FormatJSONL:
		return parseJSONL(raw)
	case FormatJSON:
		return parseJSON(raw)
	case FormatMarkdown:
		return parseMarkdown(raw), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// DecodeValue decodes exactly one JSON value, keeping numbers as json.Number.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

type meta struct {
	createdAt     string
	lastMessageAt string
	agent         string
	workspace     string
}

// update merges file-level metadata: agent and workspace are first-write-wins,
// created_at fills if absent and last_message_at tracks the latest value seen.
func (m *meta) update(value any) {
	obj, ok := value.(map[string]any)
	if !ok {
		return
	}
	if m.agent == "" {
		m.agent = stringAt(obj, "agent")
	}
	if m.workspace == "" {
		m.workspace = stringAt(obj, "workspace")
	}
	if m.createdAt == "" {
		m.createdAt = scalarString(obj, "created_at")
	}
	if v := scalarString(obj, "last_message_at"); v != "" {
		m.lastMessageAt = v
	}
}

func parseJSONL(raw []byte) (*Session, error) {
	var m meta
	var messages []Message

	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		value, err := DecodeValue([]byte(line))
		if err != nil {
			return nil, &Error{Line: i + 1, Err: err}
		}
		m.update(value)
		if msg, ok := ExtractMessage(value); ok {
			messages = append(messages, msg)
		}
	}

	return buildSession(messages, m), nil
}

func parseJSON(raw []byte) (*Session, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return buildSession(nil, meta{}), nil
	}
	root, err := DecodeValue(raw)
	if err != nil {
		return nil, &Error{Err: err}
	}

	var m meta
	m.update(root)

	var entries []any
	switch v := root.(type) {
	case []any:
		entries = v
	case map[string]any:
		if arr, ok := v["messages"].([]any); ok {
			entries = arr
		} else if arr, ok := v["events"].([]any); ok {
			entries = arr
		} else {
			entries = []any{v}
		}
	}

	var messages []Message
	for _, entry := range entries {
		m.update(entry)
		if msg, ok := ExtractMessage(entry); ok {
			messages = append(messages, msg)
		}
	}

	return buildSession(messages, m), nil
}

var knownRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"developer": true,
	"tool":      true,
}

func parseMarkdown(raw []byte) *Session {
	var messages []Message
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		role, text, ok := splitRolePrefix(line)
		if !ok {
			role, text = "", line
		}
		messages = append(messages, Message{Role: role, Text: text})
	}
	return buildSession(messages, meta{})
}

func splitRolePrefix(line string) (role, text string, ok bool) {
	before, after, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	role = normalizeRole(before)
	text = strings.TrimSpace(after)
	if text == "" || !knownRoles[role] {
		return "", "", false
	}
	return role, text, true
}

func buildSession(messages []Message, m meta) *Session {
	if m.createdAt == "" && len(messages) > 0 {
		m.createdAt = messages[0].Timestamp
	}
	if m.lastMessageAt == "" && len(messages) > 0 {
		m.lastMessageAt = messages[len(messages)-1].Timestamp
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, FormatLine(msg))
	}
	content := strings.Join(lines, "\n")

	return &Session{
		CreatedAt:     m.createdAt,
		LastMessageAt: m.lastMessageAt,
		Agent:         m.agent,
		Workspace:     m.workspace,
		Title:         pickTitle(messages),
		MessageCount:  len(messages),
		Snippet:       makeSnippet(content),
		Content:       content,
		Messages:      messages,
	}
}

// FormatLine renders a message as a "[role] text" content line.
func FormatLine(msg Message) string {
	if msg.Role == "" {
		return msg.Text
	}
	return "[" + msg.Role + "] " + msg.Text
}

// pickTitle prefers the first non-empty user message, then the first message.
func pickTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role == "user" {
			if t := strings.TrimSpace(msg.Text); t != "" {
				return t
			}
		}
	}
	if len(messages) > 0 {
		return strings.TrimSpace(messages[0].Text)
	}
	return ""
}

func makeSnippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > maxSnippetLen {
		runes = runes[:maxSnippetLen]
	}
	return string(runes)
}
