package field

import (
	"fmt"
	"strconv"
	"strings"
)

// Provenance records where a mapping came from. Heuristic mappings are
// client-computed best-effort matches and must never be presented as
// authoritative.
type Provenance string

const (
	ProvenanceServer    Provenance = "server"
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceNone      Provenance = "none"
)

// Mapping is a tree shaped identically to a Field whose leaves hold ordered
// sets of token indices instead of values. List nodes hold one mapping per
// row.
type Mapping struct {
	Kind    Kind
	Indices []int
	Map     map[string]*Mapping
	Rows    []*Mapping

	// Provenance and stale-row bookkeeping are only meaningful on the root.
	Provenance Provenance
	stale      map[string]bool
}

// EmptyMapping builds a mapping tree shaped by the schema with empty
// leaf index-sets and zero-row lists, tagged ProvenanceNone.
func EmptyMapping(s *Schema) *Mapping {
	root := &Mapping{Kind: KindMap, Map: make(map[string]*Mapping, len(s.Fields)), Provenance: ProvenanceNone}
	for _, f := range s.Fields {
		root.Map[f.Name] = emptyMapping(f)
	}
	return root
}

func emptyMapping(f *Field) *Mapping {
	switch f.Type {
	case KindMap:
		m := &Mapping{Kind: KindMap, Map: make(map[string]*Mapping, len(f.Children))}
		for _, c := range f.Children {
			m.Map[c.Name] = emptyMapping(c)
		}
		return m
	case KindList:
		return &Mapping{Kind: KindList}
	default:
		return &Mapping{Kind: KindString}
	}
}

// MappingFromJSON coerces decoded backend JSON into a mapping tree shaped by
// the schema. Two tabular shapes are accepted: row-major (a JSON array of
// per-row column objects, the list-of-map shape) and the legacy table shape
// (a column object holding one index array per row, column-major). Both
// normalize to Rows.
func MappingFromJSON(s *Schema, raw any, prov Provenance) *Mapping {
	root := EmptyMapping(s)
	root.Provenance = prov
	m, _ := raw.(map[string]any)
	if m == nil {
		root.Provenance = ProvenanceNone
		return root
	}
	for _, f := range s.Fields {
		if entry, ok := m[f.Name]; ok {
			root.Map[f.Name] = mappingFromJSON(f, entry)
		}
	}
	return root
}

func mappingFromJSON(f *Field, raw any) *Mapping {
	switch f.Type {
	case KindMap:
		out := emptyMapping(f)
		m, _ := raw.(map[string]any)
		for _, c := range f.Children {
			if entry, ok := m[c.Name]; ok {
				out.Map[c.Name] = mappingFromJSON(c, entry)
			}
		}
		return out
	case KindList:
		out := &Mapping{Kind: KindList}
		item := f.Item
		if item == nil {
			item = &Field{Type: KindString}
		}
		switch rows := raw.(type) {
		case []any:
			for _, r := range rows {
				out.Rows = append(out.Rows, mappingFromJSON(item, r))
			}
		case map[string]any:
			// Legacy table shape: {column: [[...], [...]]}, column-major.
			if item.Type == KindMap {
				out.Rows = transposeTable(item, rows)
			}
		}
		return out
	default:
		return &Mapping{Kind: KindString, Indices: indexSet(raw)}
	}
}

func transposeTable(item *Field, cols map[string]any) []*Mapping {
	nRows := 0
	byCol := make(map[string][]any, len(cols))
	for name, raw := range cols {
		list, _ := raw.([]any)
		byCol[name] = list
		if len(list) > nRows {
			nRows = len(list)
		}
	}
	rows := make([]*Mapping, nRows)
	for i := range rows {
		row := emptyMapping(item)
		for _, c := range item.Children {
			if col := byCol[c.Name]; i < len(col) {
				row.Map[c.Name] = &Mapping{Kind: KindString, Indices: indexSet(col[i])}
			}
		}
		rows[i] = row
	}
	return rows
}

// indexSet coerces a JSON entry into an ordered index set. Accepts an array
// of numbers or a single number.
func indexSet(raw any) []int {
	switch x := raw.(type) {
	case []any:
		var out []int
		for _, e := range x {
			if n, ok := e.(float64); ok {
				out = append(out, int(n))
			}
		}
		return out
	case float64:
		return []int{int(x)}
	}
	return nil
}

// Resolve walks the mapping tree. Map nodes take child names, list nodes
// take decimal row indices.
func (m *Mapping) Resolve(path []string) (*Mapping, error) {
	cur := m
	for _, seg := range path {
		switch cur.Kind {
		case KindMap:
			next, ok := cur.Map[seg]
			if !ok {
				return nil, fmt.Errorf("no mapping at %q", seg)
			}
			cur = next
		case KindList:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("mapping row %q is not a number", seg)
			}
			if i < 0 || i >= len(cur.Rows) {
				return nil, fmt.Errorf("mapping row %d out of range (%d rows)", i, len(cur.Rows))
			}
			cur = cur.Rows[i]
		default:
			return nil, fmt.Errorf("cannot descend into mapping leaf at %q", seg)
		}
	}
	return cur, nil
}

// IndicesAt returns the index-set at a leaf path, or nil when the path does
// not resolve. A miss is not an error; the caller treats it as a no-op.
func (m *Mapping) IndicesAt(path []string) []int {
	node, err := m.Resolve(path)
	if err != nil || node.Kind != KindString {
		return nil
	}
	return node.Indices
}

// CellIndices resolves the index-set for one table cell, regardless of
// which historical schema shape the mapping arrived in.
func (m *Mapping) CellIndices(fieldName string, row int, column string) []int {
	return m.IndicesAt([]string{fieldName, strconv.Itoa(row), column})
}

// MarkRowsStale records that the value rows under path were re-indexed by a
// row removal while the mapping rows were not. Highlights against those rows
// may misattribute tokens until the backend regenerates the mapping.
func (m *Mapping) MarkRowsStale(path []string) {
	if m.stale == nil {
		m.stale = make(map[string]bool)
	}
	m.stale[pathKey(path)] = true
}

// RowsStale reports whether the mapping rows under path are out of step
// with the value rows.
func (m *Mapping) RowsStale(path []string) bool {
	return m.stale[pathKey(path)]
}

func pathKey(path []string) string {
	return strings.Join(path, "/")
}
