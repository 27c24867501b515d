package usecase

import (
	"reflect"
	"testing"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

func TestDedupeKeepsHighestScorePerHash(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkHash: "h1", Text: "first", RelevanceScore: 0.4, SourceSubquery: 0},
		{ChunkHash: "h2", Text: "other", RelevanceScore: 0.5, SourceSubquery: 0},
		{ChunkHash: "h1", Text: "first again", RelevanceScore: 0.9, SourceSubquery: 1},
	}

	out := dedupeChunks(chunks)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique chunks, got %d", len(out))
	}
	if out[0].ChunkHash != "h1" || out[0].RelevanceScore != 0.9 {
		t.Fatalf("duplicate must keep the max score in first-appearance position: %+v", out[0])
	}
	if out[1].ChunkHash != "h2" {
		t.Fatalf("unexpected second chunk: %+v", out[1])
	}
}

func TestDedupeFallsBackToContentHash(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{DocumentID: "doc-1", Text: "same text", RelevanceScore: 0.3},
		{DocumentID: "doc-1", Text: "same text", RelevanceScore: 0.7},
	}

	out := dedupeChunks(chunks)
	if len(out) != 1 {
		t.Fatalf("identical doc+text must collapse, got %d chunks", len(out))
	}
	if out[0].RelevanceScore != 0.7 {
		t.Fatalf("expected max score kept, got %v", out[0].RelevanceScore)
	}
}

func TestHeuristicBoostScoresSections(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"plain prose", "the company is based in mumbai", 0},
		{"currency", "revenue reached ₹1,200 crore in fy24", 3}, // numeric +2, keyword +1
		{"percentage", "volume fell 12% year on year", 2},
		{"tabular", "region | fy23 | fy24\nnorth | ten | twelve", 2},
		{"keyword only", "the regulatory outlook remains stable", 1},
		{"tabular with numbers and keyword", "margin | 45% | 48%\nebitda | 1 | 2", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := heuristicBoost(tc.text); got != tc.want {
				t.Fatalf("heuristicBoost(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestBoostChunksOrdersDeterministically(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkHash: "a", Text: "plain text", RelevanceScore: 1.0, SourceSubquery: 2},
		{ChunkHash: "b", Text: "plain text", RelevanceScore: 1.0, SourceSubquery: 1},
		{ChunkHash: "c", Text: "revenue of $5mn", RelevanceScore: 0.5, SourceSubquery: 0},
	}

	first := boostChunks(chunks, 0)
	second := boostChunks(chunks, 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("boosting must be deterministic")
	}

	// c: 0.5 + 2 numeric + 1 keyword = 3.5, beats the plain 1.0 pair;
	// the tie between a and b breaks on subquery index.
	if first[0].ChunkHash != "c" {
		t.Fatalf("expected boosted chunk first, got %q", first[0].ChunkHash)
	}
	if first[1].ChunkHash != "b" || first[2].ChunkHash != "a" {
		t.Fatalf("tie must break on source subquery: %+v", first)
	}
}

func TestBoostChunksTruncatesToPool(t *testing.T) {
	chunks := make([]domain.RetrievedChunk, 6)
	for i := range chunks {
		chunks[i] = domain.RetrievedChunk{ChunkHash: string(rune('a' + i)), RelevanceScore: float64(i)}
	}

	out := boostChunks(chunks, 3)
	if len(out) != 3 {
		t.Fatalf("expected pool of 3, got %d", len(out))
	}
	if out[0].RelevanceScore < out[1].RelevanceScore || out[1].RelevanceScore < out[2].RelevanceScore {
		t.Fatalf("pool not ordered by score: %+v", out)
	}
}
