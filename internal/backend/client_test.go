package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paperglass/docreview/internal/field"
	"github.com/paperglass/docreview/internal/jobpoll"
)

func TestClient_FetchTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/doc-1/tokens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"words": []map[string]any{
				{"index": 0, "page": 1, "content": "Invoice", "points": [][]float64{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
				{"index": 1, "content": "no page, no geometry"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	defer c.Close()

	tokens, err := c.FetchTokens(context.Background(), "doc-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if !tokens[0].HasGeometry() {
		t.Error("first token lost its polygon")
	}
	if tokens[1].Page != 1 {
		t.Errorf("pageless token should default to page 1, got %d", tokens[1].Page)
	}
	if tokens[1].HasGeometry() {
		t.Error("second token invented geometry")
	}
}

func TestClient_FetchReviewProvenance(t *testing.T) {
	schema := map[string]any{
		"fields": []map[string]any{{"name": "invoice_number", "type": "string"}},
	}

	cases := []struct {
		name string
		body map[string]any
		want field.Provenance
	}{
		{
			name: "server mapping",
			body: map[string]any{
				"schema":         schema,
				"extracted_data": map[string]any{"invoice_number": "INV-1"},
				"mapping":        map[string]any{"invoice_number": []int{6}},
			},
			want: field.ProvenanceServer,
		},
		{
			name: "no mapping",
			body: map[string]any{
				"schema":         schema,
				"extracted_data": map[string]any{"invoice_number": "INV-1"},
			},
			want: field.ProvenanceNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "")
			defer c.Close()

			rev, err := c.FetchReview(context.Background(), "doc-1")
			if err != nil {
				t.Fatal(err)
			}
			if rev.Mapping.Provenance != tc.want {
				t.Errorf("provenance = %q, want %q", rev.Mapping.Provenance, tc.want)
			}
			v, err := rev.Value.Resolve([]string{"invoice_number"})
			if err != nil || v.Str != "INV-1" {
				t.Errorf("value = %v, %v", v, err)
			}
		})
	}
}

func TestClient_StartJobAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/documents/doc-1/ocr":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"job_id": "job-9"})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-9":
			json.NewEncoder(w).Encode(map[string]any{"status": "completed", "result": map[string]int{"word_count": 3}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	defer c.Close()

	jobID, err := c.StartJob(context.Background(), "doc-1", jobpoll.KindOCR)
	if err != nil || jobID != "job-9" {
		t.Fatalf("StartJob = %q, %v", jobID, err)
	}

	report, err := c.JobStatus(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != jobpoll.StatusCompleted || len(report.Result) == 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestClient_ServerErrorsAreRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend melting", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	defer c.Close()

	_, err := c.FetchTokens(context.Background(), "doc-1", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("5xx should classify as retryable, got %v", err)
	}

	_, err = c.FetchReview(context.Background(), "doc-1")
	if !IsRetryable(err) {
		t.Errorf("wrapped 5xx should stay retryable through %%w, got %v", err)
	}
}

func TestClient_ClientErrorsAreNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	defer c.Close()

	_, err := c.FetchTokens(context.Background(), "missing", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("404 should not be retryable: %v", err)
	}
}
