package field

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a tree shaped identically to a Field, holding actual leaf values.
// Exactly one of the three payloads is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Str  string
	Map  map[string]*Value
	List []*Value

	// order keeps map keys in schema order for stable serialization.
	order []string
}

// NewString builds a leaf value.
func NewString(s string) *Value {
	return &Value{Kind: KindString, Str: s}
}

// EmptyValue builds a value shaped like the field with empty string leaves.
// List nodes start with zero items.
func EmptyValue(f *Field) *Value {
	switch f.Type {
	case KindMap:
		v := &Value{Kind: KindMap, Map: make(map[string]*Value, len(f.Children))}
		for _, c := range f.Children {
			v.Map[c.Name] = EmptyValue(c)
			v.order = append(v.order, c.Name)
		}
		return v
	case KindList:
		return &Value{Kind: KindList}
	default:
		return NewString("")
	}
}

// EmptyValueTree builds the whole-document empty value for a schema.
func EmptyValueTree(s *Schema) *Value {
	root := &Value{Kind: KindMap, Map: make(map[string]*Value, len(s.Fields))}
	for _, f := range s.Fields {
		root.Map[f.Name] = EmptyValue(f)
		root.order = append(root.order, f.Name)
	}
	return root
}

// Clone deep-copies the value tree.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Kind: v.Kind, Str: v.Str}
	if v.Map != nil {
		out.Map = make(map[string]*Value, len(v.Map))
		for k, c := range v.Map {
			out.Map[k] = c.Clone()
		}
		out.order = append([]string(nil), v.order...)
	}
	if v.List != nil {
		out.List = make([]*Value, len(v.List))
		for i, c := range v.List {
			out.List[i] = c.Clone()
		}
	}
	return out
}

// CopyFrom overwrites v in place with a deep copy of o. Pointer identity of
// v is preserved, so holders of the tree observe the restored state.
func (v *Value) CopyFrom(o *Value) {
	c := o.Clone()
	v.Kind = c.Kind
	v.Str = c.Str
	v.Map = c.Map
	v.List = c.List
	v.order = c.order
}

// Equal reports deep equality of two value trees.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, c := range v.Map {
			if !c.Equal(o.Map[k]) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i, c := range v.List {
			if !c.Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Resolve walks the value tree. Map nodes take child names, list nodes take
// decimal row indices.
func (v *Value) Resolve(path []string) (*Value, error) {
	cur := v
	for _, seg := range path {
		switch cur.Kind {
		case KindMap:
			next, ok := cur.Map[seg]
			if !ok {
				return nil, fmt.Errorf("no value at %q", seg)
			}
			cur = next
		case KindList:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("list index %q is not a number", seg)
			}
			if i < 0 || i >= len(cur.List) {
				return nil, fmt.Errorf("list index %d out of range (%d rows)", i, len(cur.List))
			}
			cur = cur.List[i]
		default:
			return nil, fmt.Errorf("cannot descend into leaf at %q", seg)
		}
	}
	return cur, nil
}

// SetString sets the leaf at path to s.
func (v *Value) SetString(path []string, s string) error {
	leaf, err := v.Resolve(path)
	if err != nil {
		return err
	}
	if leaf.Kind != KindString {
		return fmt.Errorf("value at %v is not a leaf", path)
	}
	leaf.Str = s
	return nil
}

// AppendRow appends a template-shaped empty item to the list at path and
// returns the new row index.
func (v *Value) AppendRow(path []string, item *Field) (int, error) {
	node, err := v.Resolve(path)
	if err != nil {
		return 0, err
	}
	if node.Kind != KindList {
		return 0, fmt.Errorf("value at %v is not a list", path)
	}
	if item == nil {
		item = &Field{Type: KindString}
	}
	node.List = append(node.List, EmptyValue(item))
	return len(node.List) - 1, nil
}

// RemoveRow splices row i out of the list at path. Mapping rows are
// deliberately left alone; see Mapping.MarkRowsStale.
func (v *Value) RemoveRow(path []string, i int) error {
	node, err := v.Resolve(path)
	if err != nil {
		return err
	}
	if node.Kind != KindList {
		return fmt.Errorf("value at %v is not a list", path)
	}
	if i < 0 || i >= len(node.List) {
		return fmt.Errorf("row %d out of range (%d rows)", i, len(node.List))
	}
	node.List = append(node.List[:i], node.List[i+1:]...)
	return nil
}

// MarshalJSON writes the plain JSON shape: leaves as strings, maps as
// objects, lists as arrays.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		keys := v.order
		if len(keys) != len(v.Map) {
			keys = keys[:0]
			for k := range v.Map {
				keys = append(keys, k)
			}
		}
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			vb, err := json.Marshal(v.Map[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	}
	return []byte("null"), nil
}

// ValueFromJSON coerces decoded backend JSON into a value tree shaped by the
// schema. Missing entries become empty leaves; non-string scalars are
// stringified the way the review surface displays them.
func ValueFromJSON(s *Schema, raw any) *Value {
	root := &Value{Kind: KindMap, Map: make(map[string]*Value, len(s.Fields))}
	m, _ := raw.(map[string]any)
	for _, f := range s.Fields {
		root.Map[f.Name] = valueFromJSON(f, m[f.Name])
		root.order = append(root.order, f.Name)
	}
	return root
}

func valueFromJSON(f *Field, raw any) *Value {
	switch f.Type {
	case KindMap:
		v := &Value{Kind: KindMap, Map: make(map[string]*Value, len(f.Children))}
		m, _ := raw.(map[string]any)
		for _, c := range f.Children {
			v.Map[c.Name] = valueFromJSON(c, m[c.Name])
			v.order = append(v.order, c.Name)
		}
		return v
	case KindList:
		v := &Value{Kind: KindList}
		items, _ := raw.([]any)
		item := f.Item
		if item == nil {
			item = &Field{Type: KindString}
		}
		for _, it := range items {
			v.List = append(v.List, valueFromJSON(item, it))
		}
		return v
	default:
		return NewString(stringify(raw))
	}
}

func stringify(raw any) string {
	switch x := raw.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
