package domain

// QueryFilters narrows retrieval scope. All fields optional.
type QueryFilters struct {
	Sector      string   `json:"sector,omitempty"`
	Tickers     []string `json:"tickers,omitempty"`
	DateFrom    string   `json:"date_from,omitempty"`
	DateTo      string   `json:"date_to,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// QueryRequest is the public entrypoint payload.
type QueryRequest struct {
	TenantID    string       `json:"-"`
	Question    string       `json:"question"`
	Filters     QueryFilters `json:"filters,omitempty"`
	DocumentIDs []string     `json:"document_ids,omitempty"`
}

type PlanConstraints struct {
	TimeRange           string   `json:"time_range,omitempty"`
	Sectors             []string `json:"sectors,omitempty"`
	Tickers             []string `json:"tickers,omitempty"`
	MustIncludeNumbers  bool     `json:"must_include_numbers"`
	MustIncludeForecast bool     `json:"must_include_forecasts"`
}

// QueryPlan is produced once per question by the rewriter and consumed
// read-only by the retriever and synthesizer.
type QueryPlan struct {
	Intent           string          `json:"intent"`
	Entities         []string        `json:"entities"`
	Constraints      PlanConstraints `json:"constraints"`
	Synonyms         []string        `json:"synonyms"`
	Subqueries       []string        `json:"subqueries"`
	RequiredSections []string        `json:"required_sections"`
	ExpectedOutput   string          `json:"expected_output"`
}
