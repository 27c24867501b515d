package docindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/infrastructure/resilience"
)

func testCfg() resilience.Config {
	return resilience.Config{RetryMaxAttempts: 1, BreakerEnabled: false}
}

func TestSearchPassagesMapsProvenance(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/indexes/research-main/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"passages":[{"text":"GST collections rose","score":0.91,"document_id":"doc-1","document_title":"Budget Review","document_uri":"s3://docs/budget.pdf","page_number":4,"chunk_index":7,"chunk_hash":"abc"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, testCfg())
	chunks, err := client.SearchPassages(context.Background(), "gst collections", "research-main", 12)
	if err != nil {
		t.Fatalf("SearchPassages() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0]
	if got.DocumentID != "doc-1" || got.PageNumber != 4 || got.ChunkHash != "abc" || got.RelevanceScore != 0.91 {
		t.Fatalf("unexpected chunk: %+v", got)
	}
	if captured["limit"] != float64(12) {
		t.Fatalf("expected limit forwarded, got %v", captured["limit"])
	}
}

func TestSearchPassagesWrapsRetryableStatusAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, testCfg())
	_, err := client.SearchPassages(context.Background(), "query", "idx", 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
}

func TestSearchPassagesEmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"passages":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, testCfg())
	chunks, err := client.SearchPassages(context.Background(), "query", "idx", 5)
	if err != nil {
		t.Fatalf("SearchPassages() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected empty result, got %d", len(chunks))
	}
}
