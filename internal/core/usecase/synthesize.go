package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
)

// AnswerSynthesizer produces the structured, evidence-first answer from
// the ranked chunks. The answer must be grounded only in the supplied
// context; anything the question asks for that the context lacks belongs
// in missing_info.
type AnswerSynthesizer struct {
	generator      ports.Generator
	minAnswerChars int
}

func NewAnswerSynthesizer(generator ports.Generator, minAnswerChars int) *AnswerSynthesizer {
	if minAnswerChars <= 0 {
		minAnswerChars = 200
	}
	return &AnswerSynthesizer{
		generator:      generator,
		minAnswerChars: minAnswerChars,
	}
}

type synthesisResult struct {
	domain.EnhancedAnswer
	Citations []domain.Citation `json:"citations"`
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, plan *domain.QueryPlan, ranked []domain.RankedChunk) (*domain.EnhancedAnswer, []domain.Citation, error) {
	raw, err := s.generator.GenerateJSON(ctx, buildSynthesisPrompt(question, plan, ranked))
	if err != nil {
		return nil, nil, fmt.Errorf("synthesis generation: %w", err)
	}

	repaired := repairJSONObject(raw)
	if repaired == "" {
		return nil, nil, fmt.Errorf("no json object in synthesis response")
	}

	var result synthesisResult
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, nil, fmt.Errorf("unmarshal synthesis response: %w", err)
	}

	answer := result.EnhancedAnswer
	if strings.TrimSpace(answer.DirectAnswer) == "" {
		return nil, nil, fmt.Errorf("synthesis produced empty direct answer")
	}
	normalizeAnswerArrays(&answer)

	citations, idMap := normalizeCitations(result.Citations, ranked)
	renumberMarkers(&answer, idMap)
	if err := checkCitationDensity(answer, citations); err != nil {
		return nil, nil, fmt.Errorf("citation check: %w", err)
	}

	if len(answer.DirectAnswer) < s.minAnswerChars {
		slog.Warn("synthesis_short_answer",
			"answer_chars", len(answer.DirectAnswer),
			"min_chars", s.minAnswerChars,
		)
	}
	return &answer, citations, nil
}

// normalizeAnswerArrays guarantees the array contract: citations,
// evidence and missing_info style fields are empty slices, never nil.
func normalizeAnswerArrays(answer *domain.EnhancedAnswer) {
	if answer.DetailedBreakdown == nil {
		answer.DetailedBreakdown = []domain.BreakdownSection{}
	}
	for i := range answer.DetailedBreakdown {
		if answer.DetailedBreakdown[i].SupportingPoints == nil {
			answer.DetailedBreakdown[i].SupportingPoints = []string{}
		}
		if answer.DetailedBreakdown[i].CitationIDs == nil {
			answer.DetailedBreakdown[i].CitationIDs = []int{}
		}
	}
	if answer.Numbers == nil {
		answer.Numbers = []domain.NumericExtract{}
	}
	if answer.Assumptions == nil {
		answer.Assumptions = []string{}
	}
	if answer.Risks == nil {
		answer.Risks = []string{}
	}
	if answer.MissingInfo == nil {
		answer.MissingInfo = []string{}
	}
}

// normalizeCitations re-numbers citations densely from 1 and backfills
// provenance from the ranked chunk each citation points at. The returned
// map carries old id to new id so markers in the text can be rewritten.
func normalizeCitations(citations []domain.Citation, ranked []domain.RankedChunk) ([]domain.Citation, map[int]int) {
	out := make([]domain.Citation, 0, len(citations))
	idMap := make(map[int]int, len(citations))
	for _, citation := range citations {
		// Synthesizer citation ids reference context block numbers.
		if citation.DocumentRef == "" && citation.ID >= 1 && citation.ID <= len(ranked) {
			chunk := ranked[citation.ID-1]
			if chunk.DocumentURI != "" {
				citation.DocumentRef = chunk.DocumentURI
			} else {
				citation.DocumentRef = chunk.DocumentTitle
			}
			if citation.PageRef == "" && chunk.PageNumber > 0 {
				citation.PageRef = fmt.Sprintf("p.%d", chunk.PageNumber)
			}
		}
		citation.Excerpt = clampWords(citation.Excerpt, 50)
		oldID := citation.ID
		citation.ID = len(out) + 1
		if oldID > 0 {
			idMap[oldID] = citation.ID
		}
		out = append(out, citation)
	}
	return out, idMap
}

// renumberMarkers rewrites bracketed [n] markers to the dense id space.
func renumberMarkers(answer *domain.EnhancedAnswer, idMap map[int]int) {
	identity := true
	for old, renumbered := range idMap {
		if old != renumbered {
			identity = false
			break
		}
	}
	if identity {
		return
	}

	answer.DirectAnswer = rewriteMarkers(answer.DirectAnswer, idMap)
	for i := range answer.DetailedBreakdown {
		section := &answer.DetailedBreakdown[i]
		section.Details = rewriteMarkers(section.Details, idMap)
		for j := range section.SupportingPoints {
			section.SupportingPoints[j] = rewriteMarkers(section.SupportingPoints[j], idMap)
		}
		for j, id := range section.CitationIDs {
			if renumbered, ok := idMap[id]; ok {
				section.CitationIDs[j] = renumbered
			}
		}
	}
}

func rewriteMarkers(text string, idMap map[int]int) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			b.WriteByte(text[i])
			continue
		}
		j := i + 1
		n := 0
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			n = n*10 + int(text[j]-'0')
			j++
		}
		renumbered, ok := idMap[n]
		if j > i+1 && j < len(text) && text[j] == ']' && ok {
			fmt.Fprintf(&b, "[%d]", renumbered)
			i = j
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// checkCitationDensity verifies every bracketed [n] marker in the answer
// text has a matching citation entry.
func checkCitationDensity(answer domain.EnhancedAnswer, citations []domain.Citation) error {
	known := make(map[int]struct{}, len(citations))
	for _, c := range citations {
		known[c.ID] = struct{}{}
	}

	texts := []string{answer.DirectAnswer}
	for _, section := range answer.DetailedBreakdown {
		texts = append(texts, section.Details)
	}
	for _, id := range citationMarkers(strings.Join(texts, "\n")) {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("marker [%d] has no citation entry", id)
		}
	}
	return nil
}

func citationMarkers(text string) []int {
	ids := make([]int, 0, 8)
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		j := i + 1
		n := 0
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			n = n*10 + int(text[j]-'0')
			j++
		}
		if j > i+1 && j < len(text) && text[j] == ']' {
			ids = append(ids, n)
			i = j
		}
	}
	return ids
}

func clampWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}

func buildSynthesisPrompt(question string, plan *domain.QueryPlan, ranked []domain.RankedChunk) string {
	var contextBlocks strings.Builder
	for i, chunk := range ranked {
		fmt.Fprintf(&contextBlocks, "[%d] source=%s page=%d\n%s\n\n",
			i+1,
			firstNonEmpty(chunk.DocumentURI, chunk.DocumentTitle, chunk.DocumentID),
			chunk.PageNumber,
			truncateText(chunk.Text, 500),
		)
	}

	sections := "direct answer, detailed breakdown, key numbers, assumptions, risks"
	if plan != nil && len(plan.RequiredSections) > 0 {
		sections = strings.Join(plan.RequiredSections, ", ")
	}

	return fmt.Sprintf(`You are an equity research analyst. Answer the question using ONLY the
numbered context passages below. Never use outside knowledge. If the
question asks for something the context does not contain, list it under
missing_info instead of inventing it. Every numeric claim or assertion in
direct_answer and detailed_breakdown must carry a bracketed citation
marker like [1] referencing a context passage.
Required sections: %s.
Return strict JSON only:
{"direct_answer":"...","detailed_breakdown":[{"heading":"...","details":"...","supporting_points":["..."],"citation_ids":[1]}],
"numbers":[{"metric":"...","value":"...","context":"...","source_ref":"[1]"}],
"assumptions":["..."],"risks":["..."],"missing_info":["..."],
"citations":[{"id":1,"excerpt":"...","relevance_note":"..."}]}

Question:
%s

Context:
%s`, sections, question, contextBlocks.String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
