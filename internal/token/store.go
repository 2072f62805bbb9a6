package token

import (
	"fmt"
	"sync"
)

// Store holds the ordered, per-page-tagged tokens of one document.
//
// Every token gets a stable opaque ID at store construction so that a token
// seen in a filtered per-page view can be traced back to its global identity
// without relying on content+geometry equality, which is ambiguous when a
// page contains duplicates.
type Store struct {
	mu      sync.RWMutex
	tokens  []Token
	byIndex map[int]int    // global index -> position in tokens
	byID    map[string]int // stable ID -> position in tokens
}

// NewStore builds a store over the given tokens, assigning stable IDs to any
// token that arrived without one. Token order is preserved.
func NewStore(tokens []Token) *Store {
	s := &Store{}
	s.init(tokens)
	return s
}

func (s *Store) init(tokens []Token) {
	s.tokens = make([]Token, len(tokens))
	copy(s.tokens, tokens)
	s.byIndex = make(map[int]int, len(tokens))
	s.byID = make(map[string]int, len(tokens))
	for i := range s.tokens {
		if s.tokens[i].ID == "" {
			s.tokens[i].ID = fmt.Sprintf("tok-%d", s.tokens[i].Index)
		}
		s.byIndex[s.tokens[i].Index] = i
		s.byID[s.tokens[i].ID] = i
	}
}

// Replace swaps in a whole new token set. Used after a completed OCR job,
// when every previous index has become meaningless.
func (s *Store) Replace(tokens []Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init(tokens)
}

// Len returns the number of tokens in the document.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// All returns a copy of every token in document order.
func (s *Store) All() []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// OnPage returns the tokens of page p in stable document order.
func (s *Store) OnPage(p int) []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Token
	for _, t := range s.tokens {
		if t.Page == p {
			out = append(out, t)
		}
	}
	return out
}

// ByIndex looks a token up by its global index.
func (s *Store) ByIndex(idx int) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byIndex[idx]
	if !ok {
		return Token{}, false
	}
	return s.tokens[pos], true
}

// ByID looks a token up by its stable identifier.
func (s *Store) ByID(id string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[id]
	if !ok {
		return Token{}, false
	}
	return s.tokens[pos], true
}

// PageOf returns the page a global index lives on.
func (s *Store) PageOf(idx int) (int, bool) {
	t, ok := s.ByIndex(idx)
	if !ok {
		return 0, false
	}
	return t.Page, true
}

// PageRelative returns the position of the token with global index idx
// within the subset of tokens belonging to its page.
func (s *Store) PageRelative(idx int) (page, rel int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, found := s.byIndex[idx]
	if !found {
		return 0, 0, false
	}
	page = s.tokens[pos].Page
	rel = 0
	for _, t := range s.tokens[:pos] {
		if t.Page == page {
			rel++
		}
	}
	return page, rel, true
}

// FromPageRelative resolves a page-relative position back to the token.
func (s *Store) FromPageRelative(page, rel int) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tokens {
		if t.Page != page {
			continue
		}
		if n == rel {
			return t, true
		}
		n++
	}
	return Token{}, false
}

// SetContent updates the text of the token with global index idx.
// Index, page and geometry never change.
func (s *Store) SetContent(idx int, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.byIndex[idx]
	if !ok {
		return false
	}
	s.tokens[pos].Content = content
	return true
}

// Pages returns the highest page number present, or 0 for an empty store.
func (s *Store) Pages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, t := range s.tokens {
		if t.Page > max {
			max = t.Page
		}
	}
	return max
}
