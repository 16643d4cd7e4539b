package session

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/Zuo-Peng/mmem/internal/parse"
)

// ReadArgs are the file-range arguments of a "read" tool call.
type ReadArgs struct {
	Path   string
	Offset int // 1-based first line
	Limit  int
}

// NumberedLine is one line of an extracted file range.
type NumberedLine struct {
	Number int
	Text   string
}

// NormalizeArguments returns tool-call arguments as an object, decoding them
// when they were recorded as a JSON string.
func NormalizeArguments(args any) (map[string]any, bool) {
	switch v := args.(type) {
	case map[string]any:
		return v, true
	case string:
		decoded, err := parse.DecodeValue([]byte(v))
		if err != nil {
			return nil, false
		}
		obj, ok := decoded.(map[string]any)
		return obj, ok
	}
	return nil, false
}

// ParseReadArgs reads path/offset/limit, defaulting offset to 1 and limit to 200.
func ParseReadArgs(args any) (ReadArgs, bool) {
	obj, ok := NormalizeArguments(args)
	if !ok {
		return ReadArgs{}, false
	}
	path, _ := obj["path"].(string)
	if path == "" {
		return ReadArgs{}, false
	}
	return ReadArgs{
		Path:   path,
		Offset: positiveInt(obj["offset"], 1),
		Limit:  positiveInt(obj["limit"], 200),
	}, true
}

func positiveInt(v any, def int) int {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return def
		}
		n = i
	case float64:
		n = int64(x)
	default:
		return def
	}
	if n < 0 {
		return def
	}
	return int(n)
}

// ExtractRange reads the lines a read call referred to.
func ExtractRange(a ReadArgs) ([]NumberedLine, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	start := a.Offset - 1
	if start < 0 {
		start = 0
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := start + a.Limit
	if end > len(lines) {
		end = len(lines)
	}

	out := make([]NumberedLine, 0, end-start)
	for i, text := range lines[start:end] {
		out = append(out, NumberedLine{Number: start + i + 1, Text: text})
	}
	return out, nil
}
