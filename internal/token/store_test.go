package token

import "testing"

func twoPageTokens() []Token {
	// Page 1 holds indices 0-4, page 2 holds 5-7.
	var tokens []Token
	for i := 0; i < 5; i++ {
		tokens = append(tokens, Token{Index: i, Page: 1, Content: "p1"})
	}
	for i := 5; i < 8; i++ {
		tokens = append(tokens, Token{Index: i, Page: 2, Content: "p2"})
	}
	return tokens
}

func TestStore_OnPage(t *testing.T) {
	s := NewStore(twoPageTokens())

	p1 := s.OnPage(1)
	if len(p1) != 5 {
		t.Fatalf("expected 5 tokens on page 1, got %d", len(p1))
	}
	for i, tok := range p1 {
		if tok.Index != i {
			t.Errorf("page 1 position %d: expected index %d, got %d", i, i, tok.Index)
		}
	}

	p2 := s.OnPage(2)
	if len(p2) != 3 {
		t.Fatalf("expected 3 tokens on page 2, got %d", len(p2))
	}
	if s.OnPage(3) != nil {
		t.Error("expected no tokens on page 3")
	}
}

func TestStore_PageRelative(t *testing.T) {
	s := NewStore(twoPageTokens())

	page, rel, ok := s.PageRelative(6)
	if !ok {
		t.Fatal("expected index 6 to resolve")
	}
	if page != 2 || rel != 1 {
		t.Errorf("expected page 2 rel 1, got page %d rel %d", page, rel)
	}

	tok, ok := s.FromPageRelative(2, 1)
	if !ok || tok.Index != 6 {
		t.Errorf("expected round-trip to index 6, got %v ok=%v", tok.Index, ok)
	}
}

func TestStore_StableIDsSurviveDuplicates(t *testing.T) {
	// Two tokens with identical content and geometry on the same page
	// must remain distinguishable.
	poly := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	s := NewStore([]Token{
		{Index: 0, Page: 1, Content: "dup", Polygon: poly},
		{Index: 1, Page: 1, Content: "dup", Polygon: poly},
	})

	a, _ := s.ByIndex(0)
	b, _ := s.ByIndex(1)
	if a.ID == b.ID {
		t.Fatalf("duplicate tokens share ID %q", a.ID)
	}
	got, ok := s.ByID(b.ID)
	if !ok || got.Index != 1 {
		t.Errorf("ByID(%q) = index %d, ok=%v; want index 1", b.ID, got.Index, ok)
	}
}

func TestStore_Replace(t *testing.T) {
	s := NewStore(twoPageTokens())
	s.Replace([]Token{{Index: 0, Page: 1, Content: "fresh"}})

	if s.Len() != 1 {
		t.Fatalf("expected 1 token after replace, got %d", s.Len())
	}
	if _, ok := s.ByIndex(7); ok {
		t.Error("old index survived a replace")
	}
}

func TestStore_SetContent(t *testing.T) {
	s := NewStore(twoPageTokens())
	if !s.SetContent(3, "edited") {
		t.Fatal("SetContent on existing index returned false")
	}
	tok, _ := s.ByIndex(3)
	if tok.Content != "edited" {
		t.Errorf("expected edited content, got %q", tok.Content)
	}
	if tok.Page != 1 || tok.Index != 3 {
		t.Error("SetContent changed page or index")
	}
	if s.SetContent(99, "x") {
		t.Error("SetContent on missing index returned true")
	}
}

func TestToken_Bounds(t *testing.T) {
	tok := Token{Polygon: []Point{{10, 20}, {110, 20}, {110, 50}, {10, 50}}}
	top, left, w, h := tok.Bounds()
	if top != 20 || left != 10 || w != 100 || h != 30 {
		t.Errorf("bounds = (%v,%v,%v,%v), want (20,10,100,30)", top, left, w, h)
	}
}

func TestToken_BoundsDegenerate(t *testing.T) {
	for _, tok := range []Token{
		{},
		{Polygon: []Point{{1, 1}}},
		{Polygon: []Point{{1, 1}, {2, 2}, {3, 3}}},
	} {
		top, left, w, h := tok.Bounds()
		if top != 0 || left != 0 || w != 0 || h != 0 {
			t.Errorf("degenerate polygon %v produced non-zero bounds", tok.Polygon)
		}
		if tok.HasGeometry() {
			t.Errorf("polygon %v reported as having geometry", tok.Polygon)
		}
	}
}
