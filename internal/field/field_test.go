package field

import (
	"encoding/json"
	"testing"
)

func invoiceSchema() *Schema {
	s := &Schema{
		Name: "invoice",
		Fields: []*Field{
			{Name: "invoice_number", Type: KindString},
			{Name: "issuer", Type: KindMap, Children: []*Field{
				{Name: "name", Type: KindString},
				{Name: "address", Type: KindString},
			}},
			{Name: "line_items", Type: KindList, Item: &Field{
				Name: "line_items", Type: KindMap, Children: []*Field{
					{Name: "description", Type: KindString},
					{Name: "amount", Type: KindString},
				},
			}},
		},
	}
	return s.Normalize()
}

func TestSchema_Resolve(t *testing.T) {
	s := invoiceSchema()

	f, err := s.Resolve([]string{"issuer", "name"})
	if err != nil || f.Name != "name" {
		t.Fatalf("Resolve(issuer/name) = %v, %v", f, err)
	}

	// Descending through a list continues through the item template.
	f, err = s.Resolve([]string{"line_items", "amount"})
	if err != nil || f.Name != "amount" {
		t.Fatalf("Resolve(line_items/amount) = %v, %v", f, err)
	}

	if _, err := s.Resolve([]string{"invoice_number", "oops"}); err == nil {
		t.Error("expected error descending into a leaf")
	}
	if _, err := s.Resolve([]string{"missing"}); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestSchema_NormalizeLegacyTable(t *testing.T) {
	raw := []byte(`{
		"name": "items",
		"type": "table",
		"columns": [
			{"name": "description", "type": "string"},
			{"name": "amount", "type": "string"}
		]
	}`)
	var f Field
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatal(err)
	}
	f.Normalize()

	if f.Type != KindList {
		t.Fatalf("expected table to normalize to list, got %q", f.Type)
	}
	if f.Item == nil || f.Item.Type != KindMap {
		t.Fatal("expected list item template to be a map")
	}
	if f.Item.Child("amount") == nil {
		t.Error("expected column to survive as item child")
	}
}

func TestSchema_Leaves(t *testing.T) {
	leaves := invoiceSchema().Leaves()
	want := map[string]bool{
		"invoice_number":         true,
		"issuer/name":            true,
		"issuer/address":         true,
		"line_items/description": true,
		"line_items/amount":      true,
	}
	if len(leaves) != len(want) {
		t.Fatalf("expected %d leaves, got %d", len(want), len(leaves))
	}
	for _, l := range leaves {
		if !want[pathKey(l.Path)] {
			t.Errorf("unexpected leaf path %v", l.Path)
		}
	}
}

func TestValue_FromJSONAndRoundTrip(t *testing.T) {
	s := invoiceSchema()
	raw := map[string]any{
		"invoice_number": "INV-001",
		"issuer":         map[string]any{"name": "ACME Corp", "address": "1 Main St"},
		"line_items": []any{
			map[string]any{"description": "widgets", "amount": float64(120)},
			map[string]any{"description": "gadgets", "amount": "45.50"},
		},
	}
	v := ValueFromJSON(s, raw)

	got, err := v.Resolve([]string{"line_items", "1", "amount"})
	if err != nil || got.Str != "45.50" {
		t.Fatalf("Resolve row value = %v, %v", got, err)
	}
	got, _ = v.Resolve([]string{"line_items", "0", "amount"})
	if got.Str != "120" {
		t.Errorf("expected numeric leaf stringified to 120, got %q", got.Str)
	}

	// Marshal and re-coerce: the trees must be equal (save/read round trip).
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var back any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !v.Equal(ValueFromJSON(s, back)) {
		t.Error("value tree not equal after marshal/coerce round trip")
	}
}

func TestValue_RowOps(t *testing.T) {
	s := invoiceSchema()
	v := EmptyValueTree(s)

	itemTemplate := s.Field("line_items").Item
	i, err := v.AppendRow([]string{"line_items"}, itemTemplate)
	if err != nil || i != 0 {
		t.Fatalf("AppendRow = %d, %v", i, err)
	}
	if _, err := v.AppendRow([]string{"line_items"}, itemTemplate); err != nil {
		t.Fatal(err)
	}
	if err := v.SetString([]string{"line_items", "1", "description"}, "second"); err != nil {
		t.Fatal(err)
	}

	if err := v.RemoveRow([]string{"line_items"}, 0); err != nil {
		t.Fatal(err)
	}
	got, err := v.Resolve([]string{"line_items", "0", "description"})
	if err != nil || got.Str != "second" {
		t.Errorf("expected surviving row to shift to index 0, got %v, %v", got, err)
	}

	if err := v.RemoveRow([]string{"line_items"}, 5); err == nil {
		t.Error("expected out-of-range row removal to fail")
	}
}

func TestValue_SnapshotClone(t *testing.T) {
	s := invoiceSchema()
	v := EmptyValueTree(s)
	v.SetString([]string{"invoice_number"}, "INV-9")

	snap := v.Clone()
	v.SetString([]string{"invoice_number"}, "INV-10")

	got, _ := snap.Resolve([]string{"invoice_number"})
	if got.Str != "INV-9" {
		t.Errorf("snapshot mutated by later edit: %q", got.Str)
	}
}

func TestMapping_RowMajorAndLegacyShapesNormalize(t *testing.T) {
	s := invoiceSchema()

	rowMajor := map[string]any{
		"line_items": []any{
			map[string]any{"description": []any{float64(1)}, "amount": []any{float64(2)}},
			map[string]any{"description": []any{float64(3)}, "amount": []any{float64(4), float64(5)}},
		},
	}
	legacy := map[string]any{
		"line_items": map[string]any{
			"description": []any{[]any{float64(1)}, []any{float64(3)}},
			"amount":      []any{[]any{float64(2)}, []any{float64(4), float64(5)}},
		},
	}

	for name, raw := range map[string]any{"row_major": rowMajor, "legacy_table": legacy} {
		m := MappingFromJSON(s, raw, ProvenanceServer)
		if got := m.CellIndices("line_items", 1, "amount"); len(got) != 2 || got[0] != 4 || got[1] != 5 {
			t.Errorf("%s: CellIndices(1, amount) = %v, want [4 5]", name, got)
		}
		if got := m.CellIndices("line_items", 0, "description"); len(got) != 1 || got[0] != 1 {
			t.Errorf("%s: CellIndices(0, description) = %v, want [1]", name, got)
		}
	}
}

func TestMapping_MissesAreNil(t *testing.T) {
	s := invoiceSchema()
	m := MappingFromJSON(s, map[string]any{"invoice_number": []any{float64(6)}}, ProvenanceServer)

	if got := m.IndicesAt([]string{"invoice_number"}); len(got) != 1 || got[0] != 6 {
		t.Fatalf("IndicesAt = %v, want [6]", got)
	}
	if got := m.IndicesAt([]string{"issuer", "name"}); got != nil {
		t.Errorf("expected empty mapping leaf to yield nil, got %v", got)
	}
	if got := m.CellIndices("line_items", 3, "amount"); got != nil {
		t.Errorf("expected out-of-range cell to yield nil, got %v", got)
	}
}

func TestMapping_StaleRows(t *testing.T) {
	s := invoiceSchema()
	m := EmptyMapping(s)

	path := []string{"line_items"}
	if m.RowsStale(path) {
		t.Fatal("fresh mapping reported stale")
	}
	m.MarkRowsStale(path)
	if !m.RowsStale(path) {
		t.Error("expected rows to be flagged stale after removal marker")
	}
}
