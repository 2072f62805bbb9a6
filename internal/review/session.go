// Package review owns the live state of one document-review session: the
// token store, the field trees, the job pollers, and the edit buffers. All
// state is session-scoped and destroyed on Close with no implicit
// persistence.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paperglass/docreview/internal/backend"
	"github.com/paperglass/docreview/internal/edit"
	"github.com/paperglass/docreview/internal/field"
	"github.com/paperglass/docreview/internal/geometry"
	"github.com/paperglass/docreview/internal/highlight"
	"github.com/paperglass/docreview/internal/jobpoll"
	"github.com/paperglass/docreview/internal/notify"
	"github.com/paperglass/docreview/internal/token"
	"github.com/paperglass/docreview/internal/ulid"
)

// Backend is the slice of the document-processing API a session consumes.
// *backend.Client satisfies it.
type Backend interface {
	FetchTokens(ctx context.Context, docID string, page int) ([]token.Token, error)
	FetchReview(ctx context.Context, docID string) (*backend.Review, error)
	StartJob(ctx context.Context, docID string, kind jobpoll.Kind) (string, error)
	JobStatus(ctx context.Context, jobID string) (jobpoll.Report, error)
	SaveTokens(ctx context.Context, docID string, tokens []token.Token) error
	SaveReview(ctx context.Context, docID string, value *field.Value, mapping json.RawMessage) error
	PageImageURLs(ctx context.Context, docID string) ([]backend.PageImage, error)
}

// Config tunes a session.
type Config struct {
	PollInterval     time.Duration
	PollMaxAttempts  int
	RefetchTimeout   time.Duration
	MaxNotifications int
	Clock            jobpoll.Clock
}

func (c *Config) defaults() {
	if c.RefetchTimeout <= 0 {
		c.RefetchTimeout = 30 * time.Second
	}
}

// Session is one user's review of one document.
type Session struct {
	ID    string
	DocID string

	backend Backend
	log     *slog.Logger
	notices *notify.Center
	cfg     Config

	mu      sync.Mutex
	closed  bool
	loaded  bool
	store   *token.Store
	schema  *field.Schema
	value   *field.Value
	mapping *field.Mapping
	editor  *edit.Session
	coord   *highlight.Coordinator
	view    *pageView

	pollers map[jobpoll.Kind]*jobpoll.Poller
}

// NewSession creates an unloaded session for a document.
func NewSession(docID string, be Backend, cfg Config, log *slog.Logger) *Session {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		ID:      ulid.New(),
		DocID:   docID,
		backend: be,
		cfg:     cfg,
		notices: notify.NewCenter(cfg.MaxNotifications),
		pollers: make(map[jobpoll.Kind]*jobpoll.Poller),
		view:    newPageView(),
	}
	s.log = log.With("session_id", s.ID, "doc_id", docID)

	pollCfg := jobpoll.Config{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
		Clock:       cfg.Clock,
	}
	for _, kind := range []jobpoll.Kind{jobpoll.KindOCR, jobpoll.KindExtraction, jobpoll.KindDatacheck} {
		kind := kind
		s.pollers[kind] = jobpoll.New(be, jobpoll.Hooks{
			OnCompleted: func(snap jobpoll.Snapshot) { s.onJobCompleted(kind, snap) },
			OnFailed:    func(snap jobpoll.Snapshot) { s.onJobFailed(kind, snap) },
			OnExhausted: func(snap jobpoll.Snapshot) { s.onJobExhausted(kind, snap) },
		}, pollCfg, s.log)
	}
	return s
}

// Load fetches the token store and the field trees together. Transient
// backend failures are retried with backoff; a final failure is terminal
// for the caller, who may retry the whole load.
func (s *Session) Load(ctx context.Context) error {
	tokens, err := s.fetchTokensRetry(ctx)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	rev, err := s.fetchReviewRetry(ctx)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.install(tokens, rev)
	s.loaded = true
	s.log.Info("review state loaded", "tokens", len(tokens), "fields", len(rev.Schema.Fields),
		"mapping_provenance", rev.Mapping.Provenance)
	return nil
}

// install wires fresh state into the session. Caller holds s.mu.
func (s *Session) install(tokens []token.Token, rev *backend.Review) {
	s.store = token.NewStore(tokens)
	s.schema = rev.Schema
	s.value = rev.Value
	s.mapping = rev.Mapping
	s.editor = edit.New(s.DocID, s.store, s.schema, s.value, s.mapping, s.backend, s.log)
	if s.coord == nil {
		s.coord = highlight.New(s.store, s.mapping, s.value, s.view, s.log)
	} else {
		s.coord.Update(s.store, s.mapping, s.value)
	}
}

func (s *Session) fetchTokensRetry(ctx context.Context) ([]token.Token, error) {
	var tokens []token.Token
	var err error
	for attempt := 0; attempt < backend.MaxRetries; attempt++ {
		tokens, err = s.backend.FetchTokens(ctx, s.DocID, 0)
		if err == nil || !backend.IsRetryable(err) {
			break
		}
		s.log.Warn("retryable token fetch error", "attempt", attempt, "error", err)
		select {
		case <-time.After(backend.Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return tokens, err
}

func (s *Session) fetchReviewRetry(ctx context.Context) (*backend.Review, error) {
	var rev *backend.Review
	var err error
	for attempt := 0; attempt < backend.MaxRetries; attempt++ {
		rev, err = s.backend.FetchReview(ctx, s.DocID)
		if err == nil || !backend.IsRetryable(err) {
			break
		}
		s.log.Warn("retryable review fetch error", "attempt", attempt, "error", err)
		select {
		case <-time.After(backend.Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rev, err
}

// RunJob starts a background job of the given kind and begins polling its
// slot. Starting a job on a busy slot cancels the previous poll timer; both
// writers converge on the next server-reported truth.
func (s *Session) RunJob(ctx context.Context, kind jobpoll.Kind) (string, error) {
	poller, ok := s.pollers[kind]
	if !ok {
		return "", fmt.Errorf("unknown job kind %q", kind)
	}
	s.mu.Lock()
	closed, loaded := s.closed, s.loaded
	s.mu.Unlock()
	if closed {
		return "", fmt.Errorf("session closed")
	}
	if !loaded {
		return "", fmt.Errorf("session not loaded")
	}
	jobID, err := s.backend.StartJob(ctx, s.DocID, kind)
	if err != nil {
		s.notices.Publish(notify.LevelError, fmt.Sprintf("failed to start %s: %v", kind, err))
		return "", err
	}
	s.log.Info("job started", "kind", kind, "job_id", jobID)
	poller.Start(context.Background(), kind, jobID)
	return jobID, nil
}

// RunOCR re-runs text recognition. Completion replaces the token store and
// the field trees wholesale.
func (s *Session) RunOCR(ctx context.Context) (string, error) {
	return s.RunJob(ctx, jobpoll.KindOCR)
}

// RunExtraction re-runs field extraction. Completion replaces the value and
// mapping trees; the token store is untouched.
func (s *Session) RunExtraction(ctx context.Context) (string, error) {
	return s.RunJob(ctx, jobpoll.KindExtraction)
}

// RunDatacheck runs the reference-data comparison. Completion semantics
// match extraction.
func (s *Session) RunDatacheck(ctx context.Context) (string, error) {
	return s.RunJob(ctx, jobpoll.KindDatacheck)
}

// ResumePolling restarts a stopped poll slot with a fresh attempt budget.
func (s *Session) ResumePolling(kind jobpoll.Kind) {
	if poller, ok := s.pollers[kind]; ok {
		poller.Resume(context.Background())
	}
}

// JobSnapshot reports the state of one job slot.
func (s *Session) JobSnapshot(kind jobpoll.Kind) (jobpoll.Snapshot, bool) {
	poller, ok := s.pollers[kind]
	if !ok {
		return jobpoll.Snapshot{}, false
	}
	return poller.Job()
}

// onJobCompleted refetches state: a finished OCR run invalidates the token
// store and therefore the whole field state; extraction and datacheck runs
// replace the value and mapping trees only.
func (s *Session) onJobCompleted(kind jobpoll.Kind, snap jobpoll.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefetchTimeout)
	defer cancel()

	switch kind {
	case jobpoll.KindOCR:
		tokens, err := s.backend.FetchTokens(ctx, s.DocID, 0)
		if err != nil {
			s.notices.Publish(notify.LevelError, fmt.Sprintf("ocr finished but token refetch failed: %v", err))
			return
		}
		rev, err := s.backend.FetchReview(ctx, s.DocID)
		if err != nil {
			s.notices.Publish(notify.LevelError, fmt.Sprintf("ocr finished but review refetch failed: %v", err))
			return
		}
		s.replaceAll(tokens, rev)
		s.notices.Publish(notify.LevelInfo, "text recognition finished")
	default:
		rev, err := s.backend.FetchReview(ctx, s.DocID)
		if err != nil {
			s.notices.Publish(notify.LevelError, fmt.Sprintf("%s finished but refetch failed: %v", kind, err))
			return
		}
		s.replaceReview(rev)
		s.notices.Publish(notify.LevelInfo, fmt.Sprintf("%s finished", kind))
	}
	s.log.Info("job completed and state refetched", "kind", kind, "job_id", snap.ID)
}

func (s *Session) onJobFailed(kind jobpoll.Kind, snap jobpoll.Snapshot) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.notices.Publish(notify.LevelError, fmt.Sprintf("%s failed: %s", kind, snap.Err))
}

func (s *Session) onJobExhausted(kind jobpoll.Kind, snap jobpoll.Snapshot) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.notices.Publish(notify.LevelWarn,
		fmt.Sprintf("%s is taking longer than expected and continues in the background", kind))
}

// replaceAll swaps in the new token set and field state. Any edit in
// progress is discarded: its buffers reference indices that no longer mean
// anything.
func (s *Session) replaceAll(tokens []token.Token, rev *backend.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.store.Replace(tokens)
	s.schema = rev.Schema
	s.value = rev.Value
	s.mapping = rev.Mapping
	s.editor = edit.New(s.DocID, s.store, s.schema, s.value, s.mapping, s.backend, s.log)
	s.coord.Update(s.store, s.mapping, s.value)
}

// replaceReview swaps the value and mapping trees, keeping the token store.
func (s *Session) replaceReview(rev *backend.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.schema = rev.Schema
	s.value = rev.Value
	s.mapping = rev.Mapping
	s.editor = edit.New(s.DocID, s.store, s.schema, s.value, s.mapping, s.backend, s.log)
	s.coord.Update(s.store, s.mapping, s.value)
}

// Editor returns the edit session. Nil before Load.
func (s *Session) Editor() *edit.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// Highlighter returns the highlight coordinator. Nil before Load.
func (s *Session) Highlighter() *highlight.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord
}

// ActivePage returns the page the view currently displays.
func (s *Session) ActivePage() int {
	return s.view.ActivePage()
}

// ShowPage switches the displayed page directly (user paging, not a
// highlight-driven switch).
func (s *Session) ShowPage(p int) {
	s.mu.Lock()
	coord := s.coord
	s.mu.Unlock()
	if coord != nil {
		coord.ClearSelection()
	}
	s.view.ShowPage(p)
}

// ScrollState reports the pending scroll targets recorded by the last
// highlight. tokenRel is -1 when none is pending.
func (s *Session) ScrollState() (tokenRel int, fieldPath []string) {
	return s.view.ScrollState()
}

// Boxes projects the tokens of one page through the given viewport.
func (s *Session) Boxes(page int, vp geometry.Viewport) []geometry.TokenBox {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	if store == nil {
		return nil
	}
	return vp.ProjectAll(store.OnPage(page))
}

// Tokens returns the tokens of one page, or all tokens for page <= 0.
func (s *Session) Tokens(page int) []token.Token {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	if store == nil {
		return nil
	}
	if page <= 0 {
		return store.All()
	}
	return store.OnPage(page)
}

// Schema returns the field schema. Nil before Load.
func (s *Session) Schema() *field.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// Value returns the live value tree. Nil before Load.
func (s *Session) Value() *field.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// MappingProvenance reports where the current mapping came from.
func (s *Session) MappingProvenance() field.Provenance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		return field.ProvenanceNone
	}
	return s.mapping.Provenance
}

// PageImageURLs fetches time-limited direct-access URLs for each page.
func (s *Session) PageImageURLs(ctx context.Context) ([]backend.PageImage, error) {
	urls, err := s.backend.PageImageURLs(ctx, s.DocID)
	if err != nil {
		s.notices.Publish(notify.LevelError, fmt.Sprintf("page images unavailable: %v", err))
		return nil, err
	}
	return urls, nil
}

// Notifications exposes the session's notification center.
func (s *Session) Notifications() *notify.Center {
	return s.notices
}

// Close tears the session down: every poll timer is cleared and late job
// callbacks become no-ops. In-flight HTTP requests are not aborted.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, p := range s.pollers {
		p.Stop()
	}
	s.log.Info("session closed")
}
