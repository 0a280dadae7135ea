package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one submitted form field.
type Field struct {
	Name  string
	Value string
}

// FormData is an insertion-ordered list of form fields. It marshals to a
// JSON object with keys in field order and unmarshals preserving the
// document's key order, which a plain map cannot do. Order matters when
// echoing a submission back the way it was filled in.
type FormData []Field

// Get returns the value for name, or "" when the field is absent.
func (d FormData) Get(name string) string {
	for _, f := range d {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Set replaces the value for name, appending the field when absent.
func (d *FormData) Set(name, value string) {
	for i, f := range *d {
		if f.Name == name {
			(*d)[i].Value = value
			return
		}
	}
	*d = append(*d, Field{Name: name, Value: value})
}

// Map returns a plain map copy. Field order is lost; later duplicates win.
func (d FormData) Map() map[string]string {
	m := make(map[string]string, len(d))
	for _, f := range d {
		m[f.Name] = f.Value
	}
	return m
}

// MarshalJSON renders the fields as a JSON object in insertion order.
// A nil or empty FormData marshals as {}.
func (d FormData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. Non-string
// values (numbers, booleans) are kept as their literal text so documents
// written by other collectors still load.
func (d *FormData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("form data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("form data: expected object, got %v", tok)
	}

	out := FormData{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("form data: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("form data: non-string key %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("form data: field %q: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: fieldString(val)})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("form data: %w", err)
	}

	*d = out
	return nil
}

func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		// Nested structures are rare; keep their compact JSON text
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
