// Package manifest loads Python project manifests (pyproject.toml) into an
// insertion-ordered document and provides typed views for the Poetry and
// PEP 621 dialects.
package manifest

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// Value is one of string, int64, float64, bool, Literal, *Table or []Value.
type Value interface{}

// Literal holds a TOML date/time value as written in the source.
type Literal string

// Table is a TOML table that remembers key insertion order.
type Table struct {
	keys   []string
	values map[string]Value
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{values: map[string]Value{}}
}

// Keys returns the keys in source order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Len returns the number of keys.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (Value, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.values[key]
	return v, ok
}

// Table returns the sub-table under key, or nil when absent or not a table.
func (t *Table) Table(key string) *Table {
	v, _ := t.Get(key)
	sub, _ := v.(*Table)
	return sub
}

// String returns the string under key.
func (t *Table) String(key string) (string, bool) {
	v, _ := t.Get(key)
	s, ok := v.(string)
	return s, ok
}

// StringSlice returns the array under key when every element is a string.
func (t *Table) StringSlice(key string) ([]string, bool) {
	v, _ := t.Get(key)
	arr, ok := v.([]Value)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Set stores value under key, appending key on first insertion.
func (t *Table) Set(key string, value Value) {
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Document is a parsed TOML file.
type Document struct {
	Root *Table
}

// Table walks path from the root and returns the table found there, or nil.
func (d *Document) Table(path ...string) *Table {
	if d == nil {
		return nil
	}
	cur := d.Root
	for _, p := range path {
		cur = cur.Table(p)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Get returns the value at path.
func (d *Document) Get(path ...string) (Value, bool) {
	if d == nil || len(path) == 0 {
		return nil, false
	}
	parent := d.Table(path[:len(path)-1]...)
	return parent.Get(path[len(path)-1])
}

// Load reads and parses the file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- caller-supplied manifest path
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes TOML into an insertion-ordered Document.
func Parse(data []byte) (*Document, error) {
	// full decode first for strict syntax and duplicate-key errors with positions
	var probe map[string]interface{}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}

	root := NewTable()
	current := root

	p := unstable.Parser{}
	p.Reset(data)
	for p.NextExpression() {
		expr := p.Expression()
		var err error
		switch expr.Kind {
		case unstable.KeyValue:
			err = setKeyValue(current, expr)
		case unstable.Table:
			current, err = descend(root, keyParts(expr.Key()))
		case unstable.ArrayTable:
			current, err = appendArrayTable(root, keyParts(expr.Key()))
		}
		if err != nil {
			return nil, err
		}
	}
	if err := p.Error(); err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}

	return &Document{Root: root}, nil
}

func keyParts(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

// descend walks parts from t, creating tables as needed. An array of tables
// resolves to its last element.
func descend(t *Table, parts []string) (*Table, error) {
	cur := t
	for _, part := range parts {
		v, ok := cur.Get(part)
		if !ok {
			next := NewTable()
			cur.Set(part, next)
			cur = next
			continue
		}
		switch tv := v.(type) {
		case *Table:
			cur = tv
		case []Value:
			if len(tv) == 0 {
				return nil, fmt.Errorf("key %q is not a table", part)
			}
			last, ok := tv[len(tv)-1].(*Table)
			if !ok {
				return nil, fmt.Errorf("key %q is not a table", part)
			}
			cur = last
		default:
			return nil, fmt.Errorf("key %q is not a table", part)
		}
	}
	return cur, nil
}

func appendArrayTable(root *Table, parts []string) (*Table, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty array table key")
	}
	parent, err := descend(root, parts[:len(parts)-1])
	if err != nil {
		return nil, err
	}
	last := parts[len(parts)-1]
	next := NewTable()
	v, ok := parent.Get(last)
	if !ok {
		parent.Set(last, []Value{next})
		return next, nil
	}
	arr, isArr := v.([]Value)
	if !isArr {
		return nil, fmt.Errorf("key %q is not an array of tables", last)
	}
	parent.Set(last, append(arr, next))
	return next, nil
}

func setKeyValue(t *Table, n *unstable.Node) error {
	parts := keyParts(n.Key())
	if len(parts) == 0 {
		return fmt.Errorf("empty key")
	}
	parent, err := descend(t, parts[:len(parts)-1])
	if err != nil {
		return err
	}
	v, err := convertValue(n.Value())
	if err != nil {
		return fmt.Errorf("key %q: %w", strings.Join(parts, "."), err)
	}
	parent.Set(parts[len(parts)-1], v)
	return nil
}

// convertValue copies a node into a Value; parser nodes are only valid until
// the next expression.
func convertValue(n *unstable.Node) (Value, error) {
	raw := string(n.Data)
	switch n.Kind {
	case unstable.String:
		return raw, nil
	case unstable.Bool:
		return raw == "true", nil
	case unstable.Integer:
		i, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %q: %w", raw, err)
		}
		return i, nil
	case unstable.Float:
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, "_", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("float %q: %w", raw, err)
		}
		return f, nil
	case unstable.LocalDate, unstable.LocalTime, unstable.LocalDateTime, unstable.DateTime:
		return Literal(raw), nil
	case unstable.Array:
		out := []Value{}
		it := n.Children()
		for it.Next() {
			v, err := convertValue(it.Node())
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case unstable.InlineTable:
		t := NewTable()
		it := n.Children()
		for it.Next() {
			if err := setKeyValue(t, it.Node()); err != nil {
				return nil, err
			}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %s", n.Kind)
	}
}
