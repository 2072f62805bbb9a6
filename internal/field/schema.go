package field

import (
	"encoding/json"
	"fmt"
)

// Kind is the type of a schema node.
type Kind string

const (
	KindString Kind = "string"
	KindMap    Kind = "map"
	KindList   Kind = "list"

	// KindTable is a legacy schema shape for tabular data: a flat node whose
	// children are the columns. Normalize rewrites it to a list of maps so
	// the rest of the engine only ever sees the two modern container kinds.
	KindTable Kind = "table"
)

// Field is one node of the extraction schema: a finite, acyclic tree with
// ordered children.
type Field struct {
	Name        string   `json:"name"`
	Type        Kind     `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Children    []*Field `json:"fields,omitempty"` // map (and legacy table) children
	Item        *Field   `json:"items,omitempty"`  // list item template
}

// Schema is the root field list of a document type.
type Schema struct {
	Name   string   `json:"name,omitempty"`
	Fields []*Field `json:"fields"`
}

// UnmarshalJSON accepts both the modern shape and the legacy table shape
// (columns under "columns" instead of "fields").
func (f *Field) UnmarshalJSON(data []byte) error {
	type alias Field
	aux := struct {
		*alias
		Columns []*Field `json:"columns,omitempty"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Columns) > 0 && len(f.Children) == 0 {
		f.Children = aux.Columns
	}
	if f.Type == "" {
		f.Type = KindString
	}
	return nil
}

// Normalize rewrites legacy table nodes as list-of-map nodes, recursively.
// Returns the field itself for chaining.
func (f *Field) Normalize() *Field {
	if f == nil {
		return nil
	}
	if f.Type == KindTable {
		f.Type = KindList
		f.Item = &Field{Name: f.Name, Type: KindMap, Children: f.Children}
		f.Children = nil
	}
	for _, c := range f.Children {
		c.Normalize()
	}
	if f.Item != nil {
		f.Item.Normalize()
	}
	return f
}

// Normalize rewrites every legacy node in the schema.
func (s *Schema) Normalize() *Schema {
	for _, f := range s.Fields {
		f.Normalize()
	}
	return s
}

// Child returns the named child of a map node.
func (f *Field) Child(name string) *Field {
	for _, c := range f.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Field returns the named top-level field of the schema.
func (s *Schema) Field(name string) *Field {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Resolve walks the schema along a path of map-child names. List row
// indices are not part of schema paths; descending into a list continues
// through its item template.
func (s *Schema) Resolve(path []string) (*Field, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty field path")
	}
	cur := s.Field(path[0])
	if cur == nil {
		return nil, fmt.Errorf("unknown field %q", path[0])
	}
	for _, seg := range path[1:] {
		switch cur.Type {
		case KindMap:
			next := cur.Child(seg)
			if next == nil {
				return nil, fmt.Errorf("field %q has no child %q", cur.Name, seg)
			}
			cur = next
		case KindList:
			if cur.Item == nil || cur.Item.Type != KindMap {
				return nil, fmt.Errorf("field %q is not a list of maps", cur.Name)
			}
			next := cur.Item.Child(seg)
			if next == nil {
				return nil, fmt.Errorf("list %q has no column %q", cur.Name, seg)
			}
			cur = next
		default:
			return nil, fmt.Errorf("field %q is a leaf, cannot descend into %q", cur.Name, seg)
		}
	}
	return cur, nil
}

// LeafPath is the location of one string leaf in the schema.
type LeafPath struct {
	Path  []string
	Field *Field
}

// Leaves returns every string leaf of the schema with its path. List
// leaves are reported once, through the item template.
func (s *Schema) Leaves() []LeafPath {
	var out []LeafPath
	var walk func(f *Field, path []string)
	walk = func(f *Field, path []string) {
		p := append(append([]string(nil), path...), f.Name)
		switch f.Type {
		case KindString:
			out = append(out, LeafPath{Path: p, Field: f})
		case KindMap:
			for _, c := range f.Children {
				walk(c, p)
			}
		case KindList:
			if f.Item == nil {
				return
			}
			if f.Item.Type == KindMap {
				for _, c := range f.Item.Children {
					walk(c, p)
				}
			} else {
				out = append(out, LeafPath{Path: p, Field: f.Item})
			}
		}
	}
	for _, f := range s.Fields {
		walk(f, nil)
	}
	return out
}
