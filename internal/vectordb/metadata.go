package vectordb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the scalar type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

// Value is a scalar metadata value: a string, a number or a boolean.
// Dates are carried as strings.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the value's type.
func (v Value) Kind() Kind { return v.kind }

// String renders the value for display and for exact-match indexes.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// decimalRe accepts plain decimals only. ParseFloat alone would also take
// hex floats, exponents, underscores and "Inf".
var decimalRe = regexp.MustCompile(`^-?(?:\d+(?:\.\d*)?|\.\d+)$`)

// Float returns the value as a number. String values are coerced when they
// hold a plain decimal, optionally with a currency sign or thousands
// separators ("$1,234.50").
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		s := strings.TrimSpace(v.s)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if !decimalRe.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Interface returns the value as a plain Go scalar for JSON responses.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	default:
		return v.s
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	val, ok, err := decodeScalar(data)
	if err != nil {
		return err
	}
	if !ok {
		*v = String("")
		return nil
	}
	*v = val
	return nil
}

// decodeScalar interprets raw JSON as a Value. Null reports ok=false;
// arrays and objects are kept as their JSON text.
func decodeScalar(raw json.RawMessage) (Value, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, false, fmt.Errorf("empty metadata value")
	}
	switch raw[0] {
	case 'n':
		return Value{}, false, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, false, err
		}
		return String(s), true, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, false, err
		}
		return Bool(b), true, nil
	case '{', '[':
		return String(string(raw)), true, nil
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return Value{}, false, fmt.Errorf("metadata value %s: %w", raw, err)
		}
		return Number(f), true, nil
	}
}

// Entry is one key/value pair of Metadata.
type Entry struct {
	Key   string
	Value Value
}

// Metadata is an ordered string-to-scalar mapping. Keys are not a fixed
// schema: receipts, IDs and invoices carry different keys, and callers
// treat a missing key as absence.
type Metadata struct {
	entries []Entry
}

// NewMetadata builds Metadata from entries in order.
func NewMetadata(entries ...Entry) Metadata {
	var m Metadata
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Set adds key or replaces its value, keeping the original position.
func (m *Metadata) Set(key string, v Value) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries[i].Value = v
			return
		}
	}
	m.entries = append(m.entries, Entry{Key: key, Value: v})
}

// SetString is shorthand for Set(key, String(s)).
func (m *Metadata) SetString(key, s string) { m.Set(key, String(s)) }

// Get returns the value for key.
func (m Metadata) Get(key string) (Value, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// GetString returns the display form of key, or "" when absent.
func (m Metadata) GetString(key string) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	return v.String()
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of keys.
func (m Metadata) Len() int { return len(m.entries) }

// Entries returns the pairs in insertion order. The slice is a copy.
func (m Metadata) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	return Metadata{entries: m.Entries()}
}

// Map returns the metadata as a plain map for JSON responses.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.entries))
	for _, e := range m.entries {
		out[e.Key] = e.Value.Interface()
	}
	return out
}

// MarshalJSON writes an object with keys in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, preserving key order. Null values are
// dropped.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = Metadata{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}

	var out Metadata
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("metadata %q: %w", key, err)
		}
		v, ok, err := decodeScalar(raw)
		if err != nil {
			return fmt.Errorf("metadata %q: %w", key, err)
		}
		if ok {
			out.Set(key, v)
		}
	}
	*m = out
	return nil
}

// MetadataFromMap converts a decoded YAML or JSON map into Metadata with
// keys sorted, since Go maps carry no order.
func MetadataFromMap(src map[string]any) Metadata {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var m Metadata
	for _, k := range keys {
		switch v := src[k].(type) {
		case nil:
		case string:
			m.Set(k, String(v))
		case bool:
			m.Set(k, Bool(v))
		case int:
			m.Set(k, Number(float64(v)))
		case int64:
			m.Set(k, Number(float64(v)))
		case float64:
			m.Set(k, Number(v))
		case float32:
			m.Set(k, Number(float64(v)))
		case time.Time:
			m.Set(k, String(v.Format("2006-01-02")))
		default:
			m.Set(k, String(fmt.Sprint(v)))
		}
	}
	return m
}
