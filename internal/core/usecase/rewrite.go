package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
)

// QueryRewriter turns a raw analyst question into a structured QueryPlan
// with focused sub-queries via a single low-temperature generation call.
type QueryRewriter struct {
	generator     ports.Generator
	maxSubqueries int
}

func NewQueryRewriter(generator ports.Generator, maxSubqueries int) *QueryRewriter {
	if maxSubqueries <= 0 {
		maxSubqueries = 8
	}
	return &QueryRewriter{
		generator:     generator,
		maxSubqueries: maxSubqueries,
	}
}

func (r *QueryRewriter) Rewrite(ctx context.Context, question string, filters domain.QueryFilters) (*domain.QueryPlan, error) {
	raw, err := r.generator.GenerateJSON(ctx, buildRewritePrompt(question, filters))
	if err != nil {
		return nil, fmt.Errorf("rewrite generation: %w", err)
	}

	plan, err := parseQueryPlan(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidPlan, "rewrite", err)
	}

	plan.Subqueries = compactStrings(plan.Subqueries)
	if len(plan.Subqueries) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidPlan, "rewrite", fmt.Errorf("plan has no subqueries"))
	}
	if len(plan.Subqueries) > r.maxSubqueries {
		plan.Subqueries = plan.Subqueries[:r.maxSubqueries]
	}

	plan.Entities = compactStrings(plan.Entities)
	plan.Synonyms = compactStrings(plan.Synonyms)
	plan.RequiredSections = compactStrings(plan.RequiredSections)
	return plan, nil
}

func parseQueryPlan(raw string) (*domain.QueryPlan, error) {
	repaired := repairJSONObject(raw)
	if repaired == "" {
		return nil, fmt.Errorf("no json object in rewriter response")
	}

	var plan domain.QueryPlan
	if err := json.Unmarshal([]byte(repaired), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal query plan: %w", err)
	}
	return &plan, nil
}

// repairJSONObject applies the best-effort repair strategies for dynamic
// generation output: strip code fences, then extract the substring
// between the first '{' and the last '}'.
func repairJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func buildRewritePrompt(question string, filters domain.QueryFilters) string {
	var constraints strings.Builder
	if filters.Sector != "" {
		fmt.Fprintf(&constraints, "Sector: %s\n", filters.Sector)
	}
	if len(filters.Tickers) > 0 {
		fmt.Fprintf(&constraints, "Tickers: %s\n", strings.Join(filters.Tickers, ", "))
	}
	if filters.DateFrom != "" || filters.DateTo != "" {
		fmt.Fprintf(&constraints, "Date range: %s .. %s\n", filters.DateFrom, filters.DateTo)
	}
	if constraints.Len() == 0 {
		constraints.WriteString("(none)\n")
	}

	return fmt.Sprintf(`You are a query planner for an equity research retrieval system.
Return strict JSON only, with keys:
intent (string), entities (array of strings), constraints (object with
time_range, sectors, tickers, must_include_numbers, must_include_forecasts),
synonyms (array of strings), subqueries (array of 4 to 8 short focused
search queries), required_sections (array of strings), expected_output (string).
Sub-queries must each target one narrow aspect of the question and
include synonyms or entity names where useful.
No markdown, no extra keys.

Analyst filters:
%s
Question:
%s`, constraints.String(), question)
}
