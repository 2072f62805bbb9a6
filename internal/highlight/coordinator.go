// Package highlight resolves field paths and table cells to tokens and
// drives the selection across the image and editor panes.
package highlight

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/paperglass/docreview/internal/field"
	"github.com/paperglass/docreview/internal/token"
)

// View is the rendering surface the coordinator drives. Implementations
// decide how pages are swapped and how scrolling behaves; a scroll must be
// smooth (non-jumping) when the target is already visible, and both panes
// are brought into view on every selection.
type View interface {
	// ActivePage returns the page currently displayed.
	ActivePage() int
	// ShowPage swaps the displayed page image. The coordinator clears the
	// selection before calling it.
	ShowPage(page int)
	// AfterSettle runs fn once layout has settled on the current page.
	// Selection after a page switch must wait for this, since boxes cannot
	// be projected until the new image has laid out.
	AfterSettle(fn func())
	// ScrollTokenIntoView centers the token at the given page-relative
	// position in the image pane.
	ScrollTokenIntoView(pageRel int)
	// ScrollFieldIntoView brings the field's row in the editor pane into view.
	ScrollFieldIntoView(path []string)
}

// Selection is the current highlight state.
type Selection struct {
	FieldPath  []string         `json:"field_path"`
	Indices    []int            `json:"indices"`
	TokenIDs   []string         `json:"token_ids"`
	Page       int              `json:"page"`
	Provenance field.Provenance `json:"provenance"`
}

// Coordinator resolves highlight requests against the current token store
// and mapping. It owns the selection.
type Coordinator struct {
	mu      sync.Mutex
	store   *token.Store
	mapping *field.Mapping
	value   *field.Value
	view    View
	sel     *Selection
	log     *slog.Logger
}

// New builds a coordinator over the session's current state.
func New(store *token.Store, mapping *field.Mapping, value *field.Value, view View, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: store, mapping: mapping, value: value, view: view, log: log}
}

// Update swaps in fresh state after a refetch. The selection is dropped:
// old indices are meaningless against a replaced token set.
func (c *Coordinator) Update(store *token.Store, mapping *field.Mapping, value *field.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
	c.mapping = mapping
	c.value = value
	c.sel = nil
}

// Selection returns the current selection, if any.
func (c *Coordinator) Selection() (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sel == nil {
		return Selection{}, false
	}
	return *c.sel, true
}

// ClearSelection drops the selection without touching the view.
func (c *Coordinator) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel = nil
}

// HighlightField resolves the mapping at path and selects the referenced
// tokens. An empty index-set is a non-fatal no-op: the selection and the
// active page stay exactly as they were.
func (c *Coordinator) HighlightField(path []string) {
	c.mu.Lock()
	mapping, store, value := c.mapping, c.store, c.value
	c.mu.Unlock()

	indices := mapping.IndicesAt(path)
	prov := mapping.Provenance

	if mapping.Provenance == field.ProvenanceNone {
		indices = c.heuristicIndices(store, value, path)
		prov = field.ProvenanceHeuristic
	}
	if len(indices) == 0 {
		return
	}
	c.selectIndices(path, indices, prov)
}

// HighlightCell resolves the mapping for one table cell. Both the
// list-of-map shape and the legacy table shape arrive here through the same
// normalized lookup.
func (c *Coordinator) HighlightCell(fieldName string, row int, column string) {
	c.mu.Lock()
	mapping, store, value := c.mapping, c.store, c.value
	c.mu.Unlock()

	path := []string{fieldName, strconv.Itoa(row), column}
	indices := mapping.CellIndices(fieldName, row, column)
	prov := mapping.Provenance

	if mapping.Provenance == field.ProvenanceNone {
		indices = c.heuristicIndices(store, value, path)
		prov = field.ProvenanceHeuristic
	}
	if len(indices) == 0 {
		return
	}
	c.selectIndices(path, indices, prov)
}

// heuristicIndices matches the field's current text against token content.
func (c *Coordinator) heuristicIndices(store *token.Store, value *field.Value, path []string) []int {
	leaf, err := value.Resolve(path)
	if err != nil || leaf.Kind != field.KindString || leaf.Str == "" {
		return nil
	}
	matched := matchTokens(store.All(), leaf.Str)
	indices := make([]int, len(matched))
	for i, t := range matched {
		indices[i] = t.Index
	}
	return indices
}

// selectIndices switches the page if the first token lives elsewhere, then
// selects and scrolls. Selection after a page switch waits for layout to
// settle.
func (c *Coordinator) selectIndices(path []string, indices []int, prov field.Provenance) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()

	first, ok := store.ByIndex(indices[0])
	if !ok {
		c.log.Warn("mapping references unknown token index", "index", indices[0], "path", path)
		return
	}

	ids := make([]string, 0, len(indices))
	for _, idx := range indices {
		if t, ok := store.ByIndex(idx); ok {
			ids = append(ids, t.ID)
		}
	}

	apply := func() {
		c.mu.Lock()
		c.sel = &Selection{
			FieldPath:  append([]string(nil), path...),
			Indices:    append([]int(nil), indices...),
			TokenIDs:   ids,
			Page:       first.Page,
			Provenance: prov,
		}
		c.mu.Unlock()

		if _, rel, ok := store.PageRelative(first.Index); ok {
			c.view.ScrollTokenIntoView(rel)
		}
		c.view.ScrollFieldIntoView(path)
	}

	if c.view.ActivePage() != first.Page {
		c.ClearSelection()
		c.view.ShowPage(first.Page)
		c.view.AfterSettle(apply)
		return
	}
	apply()
}
