package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

func TestRetrieveMergesAndTagsResults(t *testing.T) {
	index := &fakeIndex{
		results: map[string][]domain.RetrievedChunk{
			"q1": {{Text: "alpha", DocumentID: "doc-1", RelevanceScore: 0.9}},
			"q2": {{Text: "beta", DocumentID: "doc-2", RelevanceScore: 0.8, ChunkHash: "pre"}},
		},
	}
	retriever := NewMultiQueryRetriever(index, 2, 5, time.Second)

	chunks, err := retriever.Retrieve(context.Background(), []string{"q1", "q2"}, "idx")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	bySubquery := make(map[int]domain.RetrievedChunk, len(chunks))
	for _, c := range chunks {
		bySubquery[c.SourceSubquery] = c
	}
	if bySubquery[0].Text != "alpha" || bySubquery[1].Text != "beta" {
		t.Fatalf("chunks not tagged with their source subquery: %+v", chunks)
	}
	if bySubquery[0].ChunkHash == "" {
		t.Fatalf("expected chunk hash backfill for untagged chunk")
	}
	if bySubquery[1].ChunkHash != "pre" {
		t.Fatalf("existing chunk hash must be kept, got %q", bySubquery[1].ChunkHash)
	}
}

func TestRetrieveToleratesPartialFailure(t *testing.T) {
	index := &fakeIndex{
		results: map[string][]domain.RetrievedChunk{
			"good": {{Text: "survivor", DocumentID: "doc-1"}},
		},
		errs: map[string]error{
			"bad": fmt.Errorf("index timeout"),
		},
	}
	retriever := NewMultiQueryRetriever(index, 4, 5, time.Second)

	chunks, err := retriever.Retrieve(context.Background(), []string{"good", "bad"}, "idx")
	if err != nil {
		t.Fatalf("one failing subquery must not fail retrieval: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "survivor" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestRetrieveFailsWhenAllSubqueriesFail(t *testing.T) {
	index := &fakeIndex{
		errs: map[string]error{
			"a": fmt.Errorf("down"),
			"b": fmt.Errorf("down"),
		},
	}
	retriever := NewMultiQueryRetriever(index, 4, 5, time.Second)

	_, err := retriever.Retrieve(context.Background(), []string{"a", "b"}, "idx")
	if !domain.IsKind(err, domain.ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestRetrieveFailsOnEmptyUnion(t *testing.T) {
	index := &fakeIndex{results: map[string][]domain.RetrievedChunk{}}
	retriever := NewMultiQueryRetriever(index, 4, 5, time.Second)

	_, err := retriever.Retrieve(context.Background(), []string{"nothing"}, "idx")
	if !domain.IsKind(err, domain.ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks for empty union, got %v", err)
	}
}

func TestRetrieveCallsEverySubquery(t *testing.T) {
	index := &fakeIndex{
		results: map[string][]domain.RetrievedChunk{
			"a": {{Text: "x"}}, "b": {{Text: "y"}}, "c": {{Text: "z"}},
		},
	}
	retriever := NewMultiQueryRetriever(index, 1, 5, time.Second)

	chunks, err := retriever.Retrieve(context.Background(), []string{"a", "b", "c"}, "idx")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if index.calls != 3 {
		t.Fatalf("expected 3 index calls, got %d", index.calls)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
}
