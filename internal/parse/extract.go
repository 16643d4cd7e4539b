package parse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// extractor tries one envelope shape. The first extractor that yields a
// message wins, so the order of extractors matters.
type extractor func(obj map[string]any) (Message, bool)

var extractors = []extractor{
	fromResponseItem,
	fromMessageObject,
	fromMessageContent,
	fromTopLevel,
}

// ExtractMessage pulls one message out of a decoded JSON value. A value with
// no text but an embedded tool call still yields a message with empty text,
// so turn numbering stays identical between the index and direct file reads.
func ExtractMessage(value any) (Message, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Message{}, false
	}
	if m, ok := sessionEntry(obj); ok {
		return m, true
	}
	if hasToolCall(obj) {
		return Message{
			Role:      extractRole(obj),
			Timestamp: extractTimestamp(obj),
		}, true
	}
	return Message{}, false
}

func sessionEntry(obj map[string]any) (Message, bool) {
	if stringAt(obj, "type") == "session_meta" {
		return Message{}, false
	}
	for _, extract := range extractors {
		if m, ok := extract(obj); ok {
			return m, true
		}
	}
	return Message{}, false
}

// {"type":"response_item","payload":{"type":"message",...}}
func fromResponseItem(obj map[string]any) (Message, bool) {
	if stringAt(obj, "type") != "response_item" {
		return Message{}, false
	}
	payload, ok := obj["payload"].(map[string]any)
	if !ok || stringAt(payload, "type") != "message" {
		return Message{}, false
	}
	m, ok := messageFromObject(payload)
	if !ok {
		return Message{}, false
	}
	if m.Timestamp == "" {
		m.Timestamp = extractTimestamp(obj)
	}
	return m, true
}

// {"message":{"role":...,"content":...}}
func fromMessageObject(obj map[string]any) (Message, bool) {
	inner, ok := obj["message"].(map[string]any)
	if !ok {
		return Message{}, false
	}
	m, ok := messageFromObject(inner)
	if !ok {
		return Message{}, false
	}
	if m.Role == "" {
		m.Role = normalizeRole(stringAt(obj, "role"))
	}
	if m.Timestamp == "" {
		m.Timestamp = extractTimestamp(obj)
	}
	return m, true
}

// {"role":...,"message":"text"} or {"message":[...parts]}
func fromMessageContent(obj map[string]any) (Message, bool) {
	raw, ok := obj["message"]
	if !ok {
		return Message{}, false
	}
	if _, isObj := raw.(map[string]any); isObj {
		return Message{}, false
	}
	text, ok := coerceContent(raw)
	if !ok {
		return Message{}, false
	}
	return Message{
		Role:      normalizeRole(stringAt(obj, "role")),
		Text:      text,
		Timestamp: extractTimestamp(obj),
	}, true
}

// {"role":...,"content"|"text":...}
func fromTopLevel(obj map[string]any) (Message, bool) {
	return messageFromObject(obj)
}

func messageFromObject(obj map[string]any) (Message, bool) {
	var text string
	var ok bool
	for _, key := range []string{"content", "text", "message"} {
		v, present := obj[key]
		if !present {
			continue
		}
		if text, ok = coerceContent(v); ok {
			break
		}
	}
	if !ok {
		return Message{}, false
	}
	return Message{
		Role:      normalizeRole(stringAt(obj, "role")),
		Text:      text,
		Timestamp: extractTimestamp(obj),
	}, true
}

// coerceContent flattens strings, arrays of content parts and nested
// content/text objects into trimmed text. Blank results count as absent.
func coerceContent(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case []any:
		var parts []string
		for _, item := range val {
			if s, ok := coerceContent(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true
	case map[string]any:
		if stringAt(val, "type") == "input_text" {
			if s, ok := val["text"].(string); ok {
				s = strings.TrimSpace(s)
				return s, s != ""
			}
		}
		if content, ok := val["content"]; ok {
			return coerceContent(content)
		}
		if text, ok := val["text"]; ok {
			return coerceContent(text)
		}
	}
	return "", false
}

func extractTimestamp(obj map[string]any) string {
	for _, key := range []string{"created_at", "timestamp", "time", "ts"} {
		if s := scalarString(obj, key); s != "" {
			return s
		}
	}
	return ""
}

func extractRole(obj map[string]any) string {
	if inner, ok := obj["message"].(map[string]any); ok {
		if r, ok := inner["role"].(string); ok {
			return normalizeRole(r)
		}
	}
	if payload, ok := obj["payload"].(map[string]any); ok {
		if r, ok := payload["role"].(string); ok {
			return normalizeRole(r)
		}
	}
	return normalizeRole(stringAt(obj, "role"))
}

// ContentItems returns the content array embedded in a message envelope,
// whichever envelope shape carries it.
func ContentItems(value any) []any {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := obj["message"].(map[string]any); ok {
		if items, ok := inner["content"].([]any); ok {
			return items
		}
	}
	if stringAt(obj, "type") == "response_item" {
		if payload, ok := obj["payload"].(map[string]any); ok && stringAt(payload, "type") == "message" {
			if items, ok := payload["content"].([]any); ok {
				return items
			}
		}
	}
	items, _ := obj["content"].([]any)
	return items
}

// IsToolCall reports whether a content item is an embedded tool invocation.
func IsToolCall(item any) bool {
	obj, ok := item.(map[string]any)
	return ok && stringAt(obj, "type") == "toolCall"
}

func hasToolCall(obj map[string]any) bool {
	for _, item := range ContentItems(obj) {
		if IsToolCall(item) {
			return true
		}
	}
	return false
}

func stringAt(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// scalarString reads a string or numeric field, rendering numbers in
// plain decimal form.
func scalarString(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
