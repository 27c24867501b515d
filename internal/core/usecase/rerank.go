package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
)

const rerankFallbackRationale = "fallback"

// Reranker scores candidate chunks against the original question with an
// external judge. Any judge failure degrades to the heuristic-boosted
// ordering, never to an error.
type Reranker struct {
	generator ports.Generator
	topK      int
}

func NewReranker(generator ports.Generator, topK int) *Reranker {
	if topK <= 0 {
		topK = 10
	}
	return &Reranker{
		generator: generator,
		topK:      topK,
	}
}

type judgeVerdict struct {
	ID        int     `json:"id"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Rerank returns the top-K candidates by judge score, stable on the
// incoming (boosted) order for ties. applied reports whether the external
// judge contributed, for observability.
func (r *Reranker) Rerank(ctx context.Context, question string, candidates []domain.RetrievedChunk) (ranked []domain.RankedChunk, applied bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	verdicts, err := r.judge(ctx, question, candidates)
	if err != nil {
		slog.Warn("rerank_fallback", "reason", err.Error(), "candidates", len(candidates))
		return r.fallbackOrder(candidates), false
	}

	scored := make(map[int]judgeVerdict, len(verdicts))
	for _, v := range verdicts {
		if v.ID < 1 || v.ID > len(candidates) {
			continue
		}
		scored[v.ID-1] = v
	}

	ranked = make([]domain.RankedChunk, 0, len(candidates))
	for i, candidate := range candidates {
		rc := domain.RankedChunk{RetrievedChunk: candidate}
		if v, ok := scored[i]; ok {
			rc.RerankScore = clampScore(v.Score, 0, 10)
			rc.RerankRationale = v.Rationale
		} else {
			rc.RerankScore = candidate.RelevanceScore
			rc.RerankRationale = rerankFallbackRationale
		}
		ranked = append(ranked, rc)
	}

	// Stable sort preserves pre-rerank order on equal final scores, and
	// relevance breaks the first tie level.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RerankScore != ranked[j].RerankScore {
			return ranked[i].RerankScore > ranked[j].RerankScore
		}
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}
	return ranked, true
}

// fallbackOrder keeps the boosted-heuristic ordering exactly, mirroring
// each chunk's relevance score into the rerank score.
func (r *Reranker) fallbackOrder(candidates []domain.RetrievedChunk) []domain.RankedChunk {
	limit := len(candidates)
	if limit > r.topK {
		limit = r.topK
	}
	out := make([]domain.RankedChunk, 0, limit)
	for _, candidate := range candidates[:limit] {
		out = append(out, domain.RankedChunk{
			RetrievedChunk:  candidate,
			RerankScore:     candidate.RelevanceScore,
			RerankRationale: rerankFallbackRationale,
		})
	}
	return out
}

func (r *Reranker) judge(ctx context.Context, question string, candidates []domain.RetrievedChunk) ([]judgeVerdict, error) {
	raw, err := r.generator.GenerateJSON(ctx, buildRerankPrompt(question, candidates))
	if err != nil {
		return nil, fmt.Errorf("judge generation: %w", err)
	}

	repaired := repairJSONArray(raw)
	if repaired == "" {
		return nil, fmt.Errorf("no json array in judge response")
	}

	var verdicts []judgeVerdict
	if err := json.Unmarshal([]byte(repaired), &verdicts); err != nil {
		return nil, fmt.Errorf("unmarshal judge verdicts: %w", err)
	}
	if len(verdicts) == 0 {
		return nil, fmt.Errorf("judge returned no verdicts")
	}
	return verdicts, nil
}

func repairJSONArray(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func clampScore(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func buildRerankPrompt(question string, candidates []domain.RetrievedChunk) string {
	var b strings.Builder
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, truncateText(candidate.Text, 500))
	}

	return fmt.Sprintf(`You are a relevance judge for an equity research system.
Score each numbered passage for how well it answers the question, 0 to 10:
- directness of answer: 0-4
- concrete detail and numbers: 0-3
- contextual relevance of entities: 0-2
- section appropriateness: 0-1
Return a strict JSON array only, one element per passage:
[{"id":1,"score":7.5,"rationale":"..."}]

Question:
%s

Passages:
%s`, question, b.String())
}

func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
