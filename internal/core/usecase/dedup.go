package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

var (
	numericPattern = regexp.MustCompile(`(?i)(?:[$€£₹]\s?\d[\d,]*(?:\.\d+)?)|(?:\d[\d,]*(?:\.\d+)?\s?(?:%|percent|bps|crore|lakh|bn|mn|billion|million))`)

	financeKeywords = []string{
		"risk", "outlook", "guidance", "revenue", "margin", "forecast",
		"rating", "regulatory", "compliance", "segment", "ebitda",
		"capex", "dividend", "valuation", "earnings", "growth",
	}
)

// dedupeChunks collapses chunks sharing a deduplication key, keeping the
// instance with the highest relevance score. Output order is the first
// appearance of each key, so the result is deterministic for a given
// input order.
func dedupeChunks(chunks []domain.RetrievedChunk) []domain.RetrievedChunk {
	best := make(map[string]int, len(chunks))
	out := make([]domain.RetrievedChunk, 0, len(chunks))

	for _, chunk := range chunks {
		key := chunk.ChunkKey()
		idx, seen := best[key]
		if !seen {
			best[key] = len(out)
			out = append(out, chunk)
			continue
		}
		if chunk.RelevanceScore > out[idx].RelevanceScore {
			out[idx] = chunk
		}
	}
	return out
}

// boostChunks applies the section-aware heuristics on top of the raw
// relevance score: +2 for numeric/currency/percentage content, +2 for
// tabular text, +1 for finance-domain keywords. The boosted ordering is
// the candidate pool handed to the reranker.
func boostChunks(chunks []domain.RetrievedChunk, poolSize int) []domain.RetrievedChunk {
	boosted := make([]domain.RetrievedChunk, len(chunks))
	copy(boosted, chunks)

	for i := range boosted {
		boosted[i].RelevanceScore += heuristicBoost(boosted[i].Text)
	}

	sort.SliceStable(boosted, func(i, j int) bool {
		if boosted[i].RelevanceScore != boosted[j].RelevanceScore {
			return boosted[i].RelevanceScore > boosted[j].RelevanceScore
		}
		if boosted[i].SourceSubquery != boosted[j].SourceSubquery {
			return boosted[i].SourceSubquery < boosted[j].SourceSubquery
		}
		return boosted[i].ChunkHash < boosted[j].ChunkHash
	})

	if poolSize > 0 && len(boosted) > poolSize {
		boosted = boosted[:poolSize]
	}
	return boosted
}

func heuristicBoost(text string) float64 {
	boost := 0.0
	if numericPattern.MatchString(text) {
		boost += 2
	}
	if looksTabular(text) {
		boost += 2
	}
	lower := strings.ToLower(text)
	for _, keyword := range financeKeywords {
		if strings.Contains(lower, keyword) {
			boost += 1
			break
		}
	}
	return boost
}

// looksTabular reports whether any line resembles a delimited table row
// with at least three columns.
func looksTabular(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "|") >= 2 || strings.Count(line, "\t") >= 2 {
			return true
		}
	}
	return false
}
