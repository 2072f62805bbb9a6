// Package backend is the HTTP client for the external document-processing
// service: token and review-state fetches, job start/poll, saves, and page
// image URL grants. Any backend satisfying these operation contracts is
// compatible.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/paperglass/docreview/internal/field"
	"github.com/paperglass/docreview/internal/jobpoll"
	"github.com/paperglass/docreview/internal/token"
)

// Client communicates with the document-processing backend API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client. HTTP/2 is enabled on the transport; the
// connection to the backend is long-lived and multiplexed across polls.
func NewClient(baseURL, apiKey string) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	// Ignore the error: it only fires when the transport was already
	// configured, and a fresh transport never is.
	http2.ConfigureTransport(transport)

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// RetryableError indicates a transient backend failure worth retrying.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable backend error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// wireToken is the backend JSON shape for one recognized word.
type wireToken struct {
	ID        string      `json:"id,omitempty"`
	Index     int         `json:"index"`
	Page      int         `json:"page"`
	Content   string      `json:"content"`
	Points    [][]float64 `json:"points,omitempty"`
	RecScore  float64     `json:"rec_score,omitempty"`
	Direction string      `json:"direction,omitempty"`
}

func (w wireToken) token() token.Token {
	t := token.Token{
		ID:        w.ID,
		Index:     w.Index,
		Page:      w.Page,
		Content:   w.Content,
		RecScore:  w.RecScore,
		Direction: w.Direction,
	}
	if w.Page == 0 {
		t.Page = 1
	}
	for _, p := range w.Points {
		if len(p) >= 2 {
			t.Polygon = append(t.Polygon, token.Point{X: p[0], Y: p[1]})
		}
	}
	return t
}

func toWire(t token.Token) wireToken {
	w := wireToken{
		ID:        t.ID,
		Index:     t.Index,
		Page:      t.Page,
		Content:   t.Content,
		RecScore:  t.RecScore,
		Direction: t.Direction,
	}
	for _, p := range t.Polygon {
		w.Points = append(w.Points, []float64{p.X, p.Y})
	}
	return w
}

// FetchTokens returns the recognized tokens of a document, optionally for
// one page only (page <= 0 fetches all pages).
func (c *Client) FetchTokens(ctx context.Context, docID string, page int) ([]token.Token, error) {
	path := fmt.Sprintf("/documents/%s/tokens", docID)
	if page > 0 {
		path += fmt.Sprintf("?page=%d", page)
	}
	var payload struct {
		Words []wireToken `json:"words"`
	}
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch tokens: %w", err)
	}
	tokens := make([]token.Token, len(payload.Words))
	for i, w := range payload.Words {
		tokens[i] = w.token()
	}
	return tokens, nil
}

// Review bundles the three trees that are always fetched together.
type Review struct {
	Schema  *field.Schema
	Value   *field.Value
	Mapping *field.Mapping
}

// FetchReview returns the field schema with the current values and
// server-supplied token mapping. When the backend sends no mapping the
// Mapping comes back with ProvenanceNone so the interaction layer knows to
// fall back to heuristic matching.
func (c *Client) FetchReview(ctx context.Context, docID string) (*Review, error) {
	var payload struct {
		Schema        *field.Schema  `json:"schema"`
		ExtractedData map[string]any `json:"extracted_data"`
		Mapping       map[string]any `json:"mapping"`
	}
	if err := c.get(ctx, fmt.Sprintf("/documents/%s/review", docID), &payload); err != nil {
		return nil, fmt.Errorf("fetch review: %w", err)
	}
	if payload.Schema == nil {
		return nil, fmt.Errorf("fetch review: backend sent no schema")
	}
	payload.Schema.Normalize()

	prov := field.ProvenanceServer
	if payload.Mapping == nil {
		prov = field.ProvenanceNone
	}
	return &Review{
		Schema:  payload.Schema,
		Value:   field.ValueFromJSON(payload.Schema, anyMap(payload.ExtractedData)),
		Mapping: field.MappingFromJSON(payload.Schema, anyMap(payload.Mapping), prov),
	}, nil
}

func anyMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

// StartJob kicks off a background run of the given kind and returns the
// job id to poll.
func (c *Client) StartJob(ctx context.Context, docID string, kind jobpoll.Kind) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	path := fmt.Sprintf("/documents/%s/%s", docID, kind)
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return "", fmt.Errorf("start %s job: %w", kind, err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("start %s job: backend sent no job id", kind)
	}
	return resp.JobID, nil
}

// JobStatus polls one job. Implements jobpoll.Source.
func (c *Client) JobStatus(ctx context.Context, jobID string) (jobpoll.Report, error) {
	var payload struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result,omitempty"`
		Err    string          `json:"error,omitempty"`
	}
	if err := c.get(ctx, "/jobs/"+jobID, &payload); err != nil {
		return jobpoll.Report{}, fmt.Errorf("job status: %w", err)
	}
	return jobpoll.Report{
		Status: jobpoll.Status(payload.Status),
		Result: payload.Result,
		Err:    payload.Err,
	}, nil
}

// SaveTokens persists edited token text. Indices, pages and geometry are
// immutable; only the content travels back changed.
func (c *Client) SaveTokens(ctx context.Context, docID string, tokens []token.Token) error {
	words := make([]wireToken, len(tokens))
	for i, t := range tokens {
		words[i] = toWire(t)
	}
	body := map[string]any{"words": words}
	if err := c.put(ctx, fmt.Sprintf("/documents/%s/tokens", docID), body, nil); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

// SaveReview persists an edited value tree together with its mapping.
func (c *Client) SaveReview(ctx context.Context, docID string, value *field.Value, mapping json.RawMessage) error {
	body := map[string]any{"extracted_data": value}
	if len(mapping) > 0 {
		body["mapping"] = mapping
	}
	if err := c.put(ctx, fmt.Sprintf("/documents/%s/review", docID), body, nil); err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

// PageImage is a time-limited direct-access URL for one page's source image.
type PageImage struct {
	Page      int    `json:"page"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// PageImageURLs returns one grant per page, ordered by page number.
func (c *Client) PageImageURLs(ctx context.Context, docID string) ([]PageImage, error) {
	var payload struct {
		Pages []PageImage `json:"pages"`
	}
	if err := c.get(ctx, fmt.Sprintf("/documents/%s/pages", docID), &payload); err != nil {
		return nil, fmt.Errorf("page image urls: %w", err)
	}
	return payload.Pages, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
