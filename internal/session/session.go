// Package session inspects a single transcript file directly, without going
// through the index. Turn numbers match the index's turn_index exactly.
package session

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/mmem/internal/parse"
)

// Entry is one decoded line of a transcript.
type Entry struct {
	Line      int  // 1-based
	Turn      *int // nil when the line is not a message, or was loaded by line
	Role      string
	Timestamp string
	Value     any
}

type ToolCall struct {
	Name      string `json:"name" yaml:"name"`
	Arguments any    `json:"arguments" yaml:"arguments"`
}

type ToolCallMatch struct {
	Line int
	Turn *int
	Tool ToolCall
}

func ensureJSONL(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return nil
	}
	return &Error{Kind: ErrUnsupportedFormat, Path: path}
}

// eachLine calls fn for every non-blank line, decoded. fn returns true to stop.
func eachLine(path string, fn func(lineNo int, value any) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		raw, readErr := r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if line := bytes.TrimSpace(raw); len(line) > 0 {
			value, err := parse.DecodeValue(line)
			if err != nil {
				return &Error{Kind: ErrInvalidJSON, Line: lineNo, Err: err}
			}
			if fn(lineNo, value) {
				return nil
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// LoadByTurn returns the n-th (0-based) extracted message of the file.
func LoadByTurn(path string, n int) (*Entry, error) {
	if err := ensureJSONL(path); err != nil {
		return nil, err
	}

	var found *Entry
	turn := 0
	err := eachLine(path, func(lineNo int, value any) bool {
		msg, ok := parse.ExtractMessage(value)
		if !ok {
			return false
		}
		if turn == n {
			t := turn
			found = &Entry{Line: lineNo, Turn: &t, Role: msg.Role, Timestamp: msg.Timestamp, Value: value}
			return true
		}
		turn++
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &Error{Kind: ErrTurnOutOfRange, Turn: n, Available: turn}
	}
	return found, nil
}

// LoadByLine returns the raw value on 1-based line n, whether or not it is
// a message.
func LoadByLine(path string, n int) (*Entry, error) {
	if err := ensureJSONL(path); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, &Error{Kind: ErrLineOutOfRange, Line: n}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		raw, readErr := r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if lineNo == n {
			line := bytes.TrimSpace(raw)
			if len(line) == 0 {
				break
			}
			value, err := parse.DecodeValue(line)
			if err != nil {
				return nil, &Error{Kind: ErrInvalidJSON, Line: lineNo, Err: err}
			}
			e := &Entry{Line: lineNo, Value: value}
			if msg, ok := parse.ExtractMessage(value); ok {
				e.Role, e.Timestamp = msg.Role, msg.Timestamp
			}
			return e, nil
		}
		if readErr == io.EOF {
			break
		}
	}
	return nil, &Error{Kind: ErrLineOutOfRange, Line: n}
}

// ScanToolCalls lists embedded tool invocations across the whole file.
// name filters case-insensitively when non-empty; limit <= 0 means no cap.
func ScanToolCalls(path, name string, limit int) ([]ToolCallMatch, error) {
	if err := ensureJSONL(path); err != nil {
		return nil, err
	}

	var matches []ToolCallMatch
	turn := 0
	err := eachLine(path, func(lineNo int, value any) bool {
		var turnPtr *int
		_, isMsg := parse.ExtractMessage(value)
		if isMsg {
			t := turn
			turnPtr = &t
			turn++
		}
		for _, call := range ExtractToolCalls(value) {
			if name != "" && !strings.EqualFold(call.Name, name) {
				continue
			}
			matches = append(matches, ToolCallMatch{Line: lineNo, Turn: turnPtr, Tool: call})
			if limit > 0 && len(matches) >= limit {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ExtractToolCalls returns the toolCall content items of one decoded line.
func ExtractToolCalls(value any) []ToolCall {
	var calls []ToolCall
	for _, item := range parse.ContentItems(value) {
		if !parse.IsToolCall(item) {
			continue
		}
		obj := item.(map[string]any)
		name, _ := obj["name"].(string)
		if name == "" {
			name = "unknown"
		}
		calls = append(calls, ToolCall{Name: name, Arguments: obj["arguments"]})
	}
	return calls
}

// FilterTools keeps the calls named name (case-insensitive). An empty name
// keeps everything.
func FilterTools(calls []ToolCall, name string) []ToolCall {
	if name == "" {
		return calls
	}
	var out []ToolCall
	for _, c := range calls {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Entry) String() string {
	turn := "turn ?"
	if e.Turn != nil {
		turn = fmt.Sprintf("turn %d", *e.Turn)
	}
	role := e.Role
	if role == "" {
		role = "unknown"
	}
	return fmt.Sprintf("line %d (%s, role %s)", e.Line, turn, role)
}
