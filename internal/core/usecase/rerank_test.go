package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

func rerankCandidates(n int) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, n)
	for i := range out {
		out[i] = domain.RetrievedChunk{
			ChunkHash:      fmt.Sprintf("h%d", i),
			Text:           fmt.Sprintf("passage %d", i),
			RelevanceScore: float64(n - i),
		}
	}
	return out
}

func TestRerankOrdersByJudgeScore(t *testing.T) {
	gen := &fakeGenerator{jsonOutputs: []string{
		`[{"id":1,"score":2,"rationale":"weak"},{"id":2,"score":9,"rationale":"direct"},{"id":3,"score":5,"rationale":"partial"}]`,
	}}
	reranker := NewReranker(gen, 10)

	ranked, applied := reranker.Rerank(context.Background(), "question", rerankCandidates(3))
	if !applied {
		t.Fatalf("expected judge to apply")
	}
	if ranked[0].ChunkHash != "h1" || ranked[1].ChunkHash != "h2" || ranked[2].ChunkHash != "h0" {
		t.Fatalf("unexpected order: %+v", ranked)
	}
	if ranked[0].RerankRationale != "direct" {
		t.Fatalf("expected judge rationale carried, got %q", ranked[0].RerankRationale)
	}
}

func TestRerankFallsBackOnJudgeFailure(t *testing.T) {
	gen := &fakeGenerator{jsonErr: fmt.Errorf("judge offline")}
	reranker := NewReranker(gen, 10)

	candidates := rerankCandidates(4)
	ranked, applied := reranker.Rerank(context.Background(), "question", candidates)
	if applied {
		t.Fatalf("expected fallback, judge must not count as applied")
	}
	if len(ranked) != 4 {
		t.Fatalf("expected all candidates kept, got %d", len(ranked))
	}
	for i, rc := range ranked {
		if rc.ChunkHash != candidates[i].ChunkHash {
			t.Fatalf("fallback must preserve boosted order at %d: %+v", i, ranked)
		}
		if rc.RerankRationale != "fallback" {
			t.Fatalf("expected fallback rationale, got %q", rc.RerankRationale)
		}
		if rc.RerankScore != candidates[i].RelevanceScore {
			t.Fatalf("fallback score must mirror relevance at %d", i)
		}
	}
}

func TestRerankFallsBackOnMalformedVerdicts(t *testing.T) {
	gen := &fakeGenerator{jsonOutputs: []string{"no verdicts today"}}
	reranker := NewReranker(gen, 10)

	candidates := rerankCandidates(2)
	ranked, applied := reranker.Rerank(context.Background(), "question", candidates)
	if applied {
		t.Fatalf("expected fallback on malformed judge output")
	}
	if ranked[0].ChunkHash != "h0" || ranked[1].ChunkHash != "h1" {
		t.Fatalf("fallback must preserve incoming order: %+v", ranked)
	}
}

func TestRerankMergesPartialVerdicts(t *testing.T) {
	// Judge only scores passage 2; the rest keep their relevance score
	// and the fallback rationale.
	gen := &fakeGenerator{jsonOutputs: []string{`[{"id":2,"score":10,"rationale":"spot on"}]`}}
	reranker := NewReranker(gen, 10)

	ranked, applied := reranker.Rerank(context.Background(), "question", rerankCandidates(3))
	if !applied {
		t.Fatalf("partial verdicts still count as applied")
	}
	if ranked[0].ChunkHash != "h1" || ranked[0].RerankRationale != "spot on" {
		t.Fatalf("scored passage must lead: %+v", ranked[0])
	}
	if ranked[1].RerankRationale != "fallback" || ranked[2].RerankRationale != "fallback" {
		t.Fatalf("unscored passages must carry fallback rationale: %+v", ranked[1:])
	}
}

func TestRerankClampsScoresAndTruncatesTopK(t *testing.T) {
	gen := &fakeGenerator{jsonOutputs: []string{
		`[{"id":1,"score":42,"rationale":"overflow"},{"id":2,"score":-3,"rationale":"underflow"},{"id":3,"score":5,"rationale":"mid"}]`,
	}}
	reranker := NewReranker(gen, 2)

	ranked, applied := reranker.Rerank(context.Background(), "question", rerankCandidates(3))
	if !applied {
		t.Fatalf("expected judge to apply")
	}
	if len(ranked) != 2 {
		t.Fatalf("expected top-2 truncation, got %d", len(ranked))
	}
	if ranked[0].RerankScore != 10 {
		t.Fatalf("expected clamp to 10, got %v", ranked[0].RerankScore)
	}
}

func TestRerankIgnoresOutOfRangeVerdictIDs(t *testing.T) {
	gen := &fakeGenerator{jsonOutputs: []string{`[{"id":99,"score":10,"rationale":"ghost"},{"id":1,"score":6,"rationale":"real"}]`}}
	reranker := NewReranker(gen, 10)

	ranked, applied := reranker.Rerank(context.Background(), "question", rerankCandidates(2))
	if !applied {
		t.Fatalf("expected judge to apply")
	}
	if ranked[0].RerankRationale != "real" {
		t.Fatalf("out-of-range verdict must be ignored: %+v", ranked)
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	reranker := NewReranker(&fakeGenerator{}, 10)
	ranked, applied := reranker.Rerank(context.Background(), "question", nil)
	if ranked != nil || applied {
		t.Fatalf("expected nil result for empty candidates")
	}
}
