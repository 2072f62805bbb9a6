package highlight

import (
	"testing"

	"github.com/paperglass/docreview/internal/field"
	"github.com/paperglass/docreview/internal/token"
)

// recorderView captures coordinator-driven view calls. AfterSettle runs
// callbacks synchronously, standing in for a settled layout.
type recorderView struct {
	page          int
	shown         []int
	tokenScrolls  []int
	fieldScrolls  [][]string
	settledImmeds int
}

func (v *recorderView) ActivePage() int { return v.page }
func (v *recorderView) ShowPage(p int) {
	v.page = p
	v.shown = append(v.shown, p)
}
func (v *recorderView) AfterSettle(fn func()) {
	v.settledImmeds++
	fn()
}
func (v *recorderView) ScrollTokenIntoView(rel int)      { v.tokenScrolls = append(v.tokenScrolls, rel) }
func (v *recorderView) ScrollFieldIntoView(path []string) { v.fieldScrolls = append(v.fieldScrolls, path) }

func reviewSchema() *field.Schema {
	s := &field.Schema{Fields: []*field.Field{
		{Name: "invoice_number", Type: field.KindString},
		{Name: "vendor", Type: field.KindString},
		{Name: "line_items", Type: field.KindList, Item: &field.Field{
			Name: "line_items", Type: field.KindMap, Children: []*field.Field{
				{Name: "description", Type: field.KindString},
				{Name: "amount", Type: field.KindString},
			},
		}},
	}}
	return s.Normalize()
}

// twoPageStore: page 1 holds indices 0-4, page 2 holds 5-7.
func twoPageStore() *token.Store {
	var tokens []token.Token
	for i := 0; i < 5; i++ {
		tokens = append(tokens, token.Token{Index: i, Page: 1, Content: "w"})
	}
	for i := 5; i < 8; i++ {
		tokens = append(tokens, token.Token{Index: i, Page: 2, Content: "w"})
	}
	return token.NewStore(tokens)
}

func TestHighlightField_EmptyMappingIsNoOp(t *testing.T) {
	s := reviewSchema()
	store := twoPageStore()
	mapping := field.MappingFromJSON(s, map[string]any{}, field.ProvenanceServer)
	value := field.EmptyValueTree(s)
	view := &recorderView{page: 1}

	c := New(store, mapping, value, view, nil)
	c.HighlightField([]string{"invoice_number"})

	if _, ok := c.Selection(); ok {
		t.Error("empty mapping changed the selection")
	}
	if view.page != 1 || len(view.shown) != 0 {
		t.Error("empty mapping changed the active page")
	}
}

func TestHighlightField_SwitchesPageAndSelectsPageRelative(t *testing.T) {
	s := reviewSchema()
	store := twoPageStore()
	mapping := field.MappingFromJSON(s,
		map[string]any{"invoice_number": []any{float64(6)}}, field.ProvenanceServer)
	value := field.EmptyValueTree(s)
	view := &recorderView{page: 1}

	c := New(store, mapping, value, view, nil)
	c.HighlightField([]string{"invoice_number"})

	if view.page != 2 {
		t.Fatalf("active page = %d, want 2", view.page)
	}
	if view.settledImmeds != 1 {
		t.Error("selection after a page switch must wait for layout settle")
	}
	// Global index 6 is the second token of page 2: page-relative 1.
	if len(view.tokenScrolls) != 1 || view.tokenScrolls[0] != 1 {
		t.Errorf("token scrolls = %v, want [1]", view.tokenScrolls)
	}

	sel, ok := c.Selection()
	if !ok {
		t.Fatal("no selection after highlight")
	}
	if sel.Page != 2 || len(sel.Indices) != 1 || sel.Indices[0] != 6 {
		t.Errorf("selection = %+v", sel)
	}
	if sel.Provenance != field.ProvenanceServer {
		t.Errorf("provenance = %q, want server", sel.Provenance)
	}
}

func TestHighlightField_SamePageSelectsImmediately(t *testing.T) {
	s := reviewSchema()
	store := twoPageStore()
	mapping := field.MappingFromJSON(s,
		map[string]any{"invoice_number": []any{float64(2)}}, field.ProvenanceServer)
	view := &recorderView{page: 1}

	c := New(store, mapping, field.EmptyValueTree(s), view, nil)
	c.HighlightField([]string{"invoice_number"})

	if len(view.shown) != 0 {
		t.Error("same-page highlight should not swap the page image")
	}
	if view.settledImmeds != 0 {
		t.Error("same-page highlight should not wait for settle")
	}
	if len(view.fieldScrolls) != 1 {
		t.Error("editor pane was not scrolled into view")
	}
}

func TestHighlightField_HeuristicFallback(t *testing.T) {
	s := reviewSchema()
	store := token.NewStore([]token.Token{
		{Index: 0, Page: 1, Content: "Invoice"},
		{Index: 1, Page: 1, Content: "Acme Corp."},
		{Index: 2, Page: 1, Content: "Total"},
	})
	mapping := field.EmptyMapping(s) // provenance none
	value := field.EmptyValueTree(s)
	value.SetString([]string{"vendor"}, "ACME Corp")
	view := &recorderView{page: 1}

	c := New(store, mapping, value, view, nil)
	c.HighlightField([]string{"vendor"})

	sel, ok := c.Selection()
	if !ok {
		t.Fatal("heuristic fallback selected nothing")
	}
	if len(sel.Indices) != 1 || sel.Indices[0] != 1 {
		t.Errorf("heuristic indices = %v, want [1]", sel.Indices)
	}
	if sel.Provenance != field.ProvenanceHeuristic {
		t.Errorf("provenance = %q, want heuristic", sel.Provenance)
	}
}

func TestHighlightCell_BothTableShapes(t *testing.T) {
	s := reviewSchema()
	store := twoPageStore()

	rowMajor := map[string]any{"line_items": []any{
		map[string]any{"description": []any{float64(0)}, "amount": []any{float64(3)}},
		map[string]any{"description": []any{float64(1)}, "amount": []any{float64(7)}},
	}}
	legacy := map[string]any{"line_items": map[string]any{
		"description": []any{[]any{float64(0)}, []any{float64(1)}},
		"amount":      []any{[]any{float64(3)}, []any{float64(7)}},
	}}

	for name, raw := range map[string]any{"list_of_map": rowMajor, "legacy_table": legacy} {
		mapping := field.MappingFromJSON(s, raw, field.ProvenanceServer)
		view := &recorderView{page: 1}
		c := New(store, mapping, field.EmptyValueTree(s), view, nil)

		c.HighlightCell("line_items", 1, "amount")

		sel, ok := c.Selection()
		if !ok {
			t.Fatalf("%s: no selection", name)
		}
		if sel.Indices[0] != 7 || sel.Page != 2 {
			t.Errorf("%s: selection = %+v, want index 7 on page 2", name, sel)
		}
	}
}

func TestHighlightCell_OutOfRangeRowIsNoOp(t *testing.T) {
	s := reviewSchema()
	mapping := field.MappingFromJSON(s, map[string]any{"line_items": []any{}}, field.ProvenanceServer)
	view := &recorderView{page: 1}
	c := New(twoPageStore(), mapping, field.EmptyValueTree(s), view, nil)

	c.HighlightCell("line_items", 4, "amount")
	if _, ok := c.Selection(); ok {
		t.Error("out-of-range cell changed the selection")
	}
}

func TestUpdate_DropsSelection(t *testing.T) {
	s := reviewSchema()
	store := twoPageStore()
	mapping := field.MappingFromJSON(s,
		map[string]any{"invoice_number": []any{float64(0)}}, field.ProvenanceServer)
	view := &recorderView{page: 1}
	c := New(store, mapping, field.EmptyValueTree(s), view, nil)

	c.HighlightField([]string{"invoice_number"})
	if _, ok := c.Selection(); !ok {
		t.Fatal("expected a selection")
	}

	c.Update(token.NewStore(nil), field.EmptyMapping(s), field.EmptyValueTree(s))
	if _, ok := c.Selection(); ok {
		t.Error("selection survived a wholesale state replacement")
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ACME Corp", "acmecorp"},
		{"  Acme\tCorp. ", "acmecorp."},
		{"Straße", "strasse"}, // full case folding, not just lowercasing
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Errorf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
