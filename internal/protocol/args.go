package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tells which of the three argument shapes a Value holds.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindList
	KindFiles
)

// FileBundle holds the files selected in one file input. Names[i] and
// Bytes[i] always describe the same file; Bytes entries are data URLs.
type FileBundle struct {
	Names []string `json:"names"`
	Bytes []string `json:"bytes"`
}

// NewFileBundle allocates a bundle with one slot per file, in selection order.
func NewFileBundle(names []string) *FileBundle {
	b := &FileBundle{
		Names: append([]string(nil), names...),
		Bytes: make([]string, len(names)),
	}
	return b
}

// Value is a single argument: a scalar string, a checkbox list, or a file bundle.
type Value struct {
	Kind   ValueKind
	Scalar string
	List   []string
	Files  *FileBundle
}

// Scalar returns a scalar Value.
func Scalar(s string) Value { return Value{Kind: KindScalar, Scalar: s} }

// List returns a list Value. A nil list is encoded as [] rather than null.
func List(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Kind: KindList, List: items}
}

// Files returns a file bundle Value.
func Files(b *FileBundle) Value { return Value{Kind: KindFiles, Files: b} }

// MarshalJSON encodes the value in its wire shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindFiles:
		if v.Files == nil {
			return json.Marshal(FileBundle{Names: []string{}, Bytes: []string{}})
		}
		return json.Marshal(v.Files)
	default:
		return json.Marshal(v.Scalar)
	}
}

// UnmarshalJSON accepts a string, an array of strings, or a names/bytes object.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty argument value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = List(items...)
	case '{':
		var b FileBundle
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Files(&b)
	default:
		// Numbers and booleans from hand-written payloads are kept verbatim.
		*v = Scalar(string(data))
	}
	return nil
}

// ArgMap is an insertion-ordered mapping from field name to Value.
// Re-assigning an existing name keeps its original position.
type ArgMap struct {
	keys   []string
	values map[string]Value
}

// NewArgMap returns an empty ArgMap.
func NewArgMap() *ArgMap {
	return &ArgMap{values: make(map[string]Value)}
}

func (m *ArgMap) set(name string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = v
}

// Set stores v under name, replacing any previous value.
func (m *ArgMap) Set(name string, v Value) { m.set(name, v) }

// SetScalar stores a scalar; the last writer wins.
func (m *ArgMap) SetScalar(name, value string) { m.set(name, Scalar(value)) }

// EnsureList creates an empty list for name unless a list already exists.
func (m *ArgMap) EnsureList(name string) {
	if cur, ok := m.values[name]; ok && cur.Kind == KindList {
		return
	}
	m.set(name, List())
}

// AppendList appends item to the list stored under name, creating it if needed.
func (m *ArgMap) AppendList(name, item string) {
	cur, ok := m.values[name]
	if !ok || cur.Kind != KindList {
		m.set(name, List(item))
		return
	}
	cur.List = append(cur.List, item)
	m.values[name] = cur
}

// SetFiles stores a file bundle.
func (m *ArgMap) SetFiles(name string, b *FileBundle) { m.set(name, Files(b)) }

// Get returns the value stored under name.
func (m *ArgMap) Get(name string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[name]
	return v, ok
}

// Keys returns the field names in insertion order.
func (m *ArgMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of fields.
func (m *ArgMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Merge copies every field of other into m; other wins on conflicts.
func (m *ArgMap) Merge(other *ArgMap) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.set(k, other.values[k])
	}
}

// MarshalJSON writes the fields as a JSON object in insertion order.
func (m *ArgMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(m.values[k])
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", k, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order.
func (m *ArgMap) UnmarshalJSON(data []byte) error {
	*m = ArgMap{values: make(map[string]Value)}
	return decodeObject(data, func(key string, raw json.RawMessage) error {
		var v Value
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("argument %q: %w", key, err)
		}
		m.set(key, v)
		return nil
	})
}

// decodeObject walks a JSON object in document order.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
