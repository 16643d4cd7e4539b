package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding for command results.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

var formats = []Format{FormatText, FormatJSON, FormatJSONL, FormatYAML}

func (f *Format) String() string { return string(*f) }

func (f *Format) Set(s string) error {
	for _, known := range formats {
		if strings.EqualFold(s, string(known)) {
			*f = known
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want text, json, jsonl or yaml)", s)
}

func (f *Format) Type() string { return "format" }

// Structured reports whether f is a machine-readable encoding.
func (f Format) Structured() bool { return f != FormatText && f != "" }

// Field is one key of a Record.
type Field struct {
	Key   string
	Value any
}

// Record is an object whose keys keep their insertion order in every
// encoding.
type Record []Field

func (r *Record) add(key string, value any) {
	*r = append(*r, Field{Key: key, Value: value})
}

// addString adds key unless value is empty.
func (r *Record) addString(key, value string) {
	if value != "" {
		r.add(key, value)
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := marshalJSON(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r {
		var val yaml.Node
		if err := val.Encode(f.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Key},
			&val,
		)
	}
	return node, nil
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EmitList writes items as a pretty JSON array, one compact JSON object
// per line, or a YAML sequence.
func EmitList[T any](w io.Writer, format Format, items []T) error {
	if items == nil {
		items = []T{}
	}
	switch format {
	case FormatJSONL:
		for _, item := range items {
			b, err := marshalJSON(item)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
				return err
			}
		}
		return nil
	case FormatYAML:
		return emitYAML(w, items)
	default:
		return emitPrettyJSON(w, items)
	}
}

// EmitValue writes a single value in a structured format.
func EmitValue(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSONL:
		b, err := marshalJSON(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case FormatYAML:
		return emitYAML(w, v)
	default:
		return emitPrettyJSON(w, v)
	}
}

func emitPrettyJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func emitYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
