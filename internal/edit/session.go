// Package edit holds the transient edit buffers of a review session: token
// text edits and field value edits, with snapshot/commit/cancel semantics.
package edit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paperglass/docreview/internal/field"
	"github.com/paperglass/docreview/internal/token"
)

// Saver pushes committed edits to the backend. *backend.Client satisfies it.
type Saver interface {
	SaveTokens(ctx context.Context, docID string, tokens []token.Token) error
	SaveReview(ctx context.Context, docID string, value *field.Value, mapping json.RawMessage) error
}

// Session is the edit state of one document review. Value changes propagate
// to the live tree immediately so other consumers (highlight-on-focus, the
// editor pane) observe in-progress values; the network save is deferred
// until commit.
type Session struct {
	mu sync.Mutex

	docID   string
	store   *token.Store
	schema  *field.Schema
	value   *field.Value
	mapping *field.Mapping
	saver   Saver
	log     *slog.Logger

	editing   bool
	valueSnap *field.Value
	// tokenSnap records the original content of each token touched during
	// the edit, lazily, so cancel can roll back exactly what changed.
	tokenSnap  map[int]string
	tokenEdits map[int]string
}

// New builds an edit session over the live review state.
func New(docID string, store *token.Store, schema *field.Schema, value *field.Value, mapping *field.Mapping, saver Saver, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		docID:   docID,
		store:   store,
		schema:  schema,
		value:   value,
		mapping: mapping,
		saver:   saver,
		log:     log,
	}
}

// Begin enters edit mode, snapshotting current values as the rollback
// target. Re-entering while already editing keeps the original snapshot.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing {
		return
	}
	s.editing = true
	s.valueSnap = s.value.Clone()
	s.tokenSnap = make(map[int]string)
	s.tokenEdits = make(map[int]string)
}

// Editing reports whether an edit is in progress.
func (s *Session) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// SetValue writes a leaf edit into the buffer and the live tree at once.
func (s *Session) SetValue(path []string, v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return fmt.Errorf("not in edit mode")
	}
	return s.value.SetString(path, v)
}

// SetTokenText edits one token's recognized text in place.
func (s *Session) SetTokenText(idx int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return fmt.Errorf("not in edit mode")
	}
	orig, ok := s.store.ByIndex(idx)
	if !ok {
		return fmt.Errorf("no token with index %d", idx)
	}
	if _, seen := s.tokenSnap[idx]; !seen {
		s.tokenSnap[idx] = orig.Content
	}
	s.tokenEdits[idx] = text
	s.store.SetContent(idx, text)
	return nil
}

// AddRow appends a template-shaped empty item to the list field at path and
// returns the new row index.
func (s *Session) AddRow(path []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return 0, fmt.Errorf("not in edit mode")
	}
	f, err := s.schema.Resolve(path)
	if err != nil {
		return 0, err
	}
	if f.Type != field.KindList {
		return 0, fmt.Errorf("field %q is not a list", f.Name)
	}
	return s.value.AppendRow(path, f.Item)
}

// RemoveRow splices row i out of the list field's value sequence. The
// mapping rows for that list are deliberately not re-indexed; they are
// flagged stale instead, so highlights against later rows are known to be
// unreliable until the backend regenerates the mapping.
func (s *Session) RemoveRow(path []string, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return fmt.Errorf("not in edit mode")
	}
	if err := s.value.RemoveRow(path, i); err != nil {
		return err
	}
	s.mapping.MarkRowsStale(path)
	return nil
}

// Save commits the buffers as the new baseline and pushes them to the
// backend. On failure the edit stays open so nothing is silently lost.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.editing {
		s.mu.Unlock()
		return fmt.Errorf("not in edit mode")
	}
	hadTokenEdits := len(s.tokenEdits) > 0
	s.mu.Unlock()

	if hadTokenEdits {
		if err := s.saver.SaveTokens(ctx, s.docID, s.store.All()); err != nil {
			return fmt.Errorf("save tokens: %w", err)
		}
	}
	if err := s.saver.SaveReview(ctx, s.docID, s.value, nil); err != nil {
		return fmt.Errorf("save review: %w", err)
	}

	s.mu.Lock()
	s.editing = false
	s.valueSnap = nil
	s.tokenSnap = nil
	s.tokenEdits = nil
	s.mu.Unlock()
	s.log.Info("edit committed", "doc_id", s.docID, "token_edits", hadTokenEdits)
	return nil
}

// Cancel restores the snapshot and discards the buffers.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return
	}
	s.value.CopyFrom(s.valueSnap)
	for idx, orig := range s.tokenSnap {
		s.store.SetContent(idx, orig)
	}
	s.editing = false
	s.valueSnap = nil
	s.tokenSnap = nil
	s.tokenEdits = nil
}
