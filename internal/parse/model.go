package parse

import (
	"path/filepath"
	"strings"
)

// Format is the declared shape of a transcript file.
type Format string

const (
	FormatJSONL    Format = "jsonl"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// FormatForPath maps a file extension (case-insensitive) to a Format.
func FormatForPath(path string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch Format(ext) {
	case FormatJSONL, FormatJSON, FormatMarkdown:
		return Format(ext), true
	}
	return "", false
}

// Message is one extracted conversational turn. Empty strings mean absent.
type Message struct {
	Role      string // lowercase: user, assistant, system, developer, tool
	Text      string // empty for tool-call-only turns
	Timestamp string
}

// Session is the normalized summary of one transcript file.
type Session struct {
	CreatedAt     string
	LastMessageAt string
	Agent         string
	Workspace     string
	Title         string
	MessageCount  int
	Snippet       string
	Content       string
	Messages      []Message
}

const maxSnippetLen = 240
