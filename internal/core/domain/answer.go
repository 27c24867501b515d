package domain

import "time"

// BreakdownSection is one heading of the detailed answer breakdown.
type BreakdownSection struct {
	Heading          string   `json:"heading"`
	Details          string   `json:"details"`
	SupportingPoints []string `json:"supporting_points"`
	CitationIDs      []int    `json:"citation_ids"`
}

// NumericExtract is a single number pulled out of the evidence.
type NumericExtract struct {
	Metric    string `json:"metric"`
	Value     string `json:"value"`
	Context   string `json:"context"`
	SourceRef string `json:"source_ref"`
}

// EnhancedAnswer is the structured, evidence-first answer produced by the
// synthesizer. Slice fields are always non-nil in a validated answer.
type EnhancedAnswer struct {
	DirectAnswer      string             `json:"direct_answer"`
	DetailedBreakdown []BreakdownSection `json:"detailed_breakdown"`
	Numbers           []NumericExtract   `json:"numbers"`
	Assumptions       []string           `json:"assumptions"`
	Risks             []string           `json:"risks"`
	MissingInfo       []string           `json:"missing_info"`
}

// Citation ids are dense and 1-based, matching the bracketed markers in
// the answer text. ResolvedDocumentID stays nil when reconciliation
// cannot map the raw source token to a catalog document.
type Citation struct {
	ID                 int     `json:"id"`
	DocumentRef        string  `json:"document_ref"`
	PageRef            string  `json:"page_ref,omitempty"`
	Excerpt            string  `json:"excerpt"`
	RelevanceNote      string  `json:"relevance_note,omitempty"`
	ResolvedDocumentID *string `json:"resolved_document_id"`
	ResolvedTitle      *string `json:"resolved_title,omitempty"`
}

// RelevantDocument is one catalog document surfaced to the caller as
// provenance for the answer.
type RelevantDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename,omitempty"`
}

// EvidenceItem is the caller-visible projection of a ranked chunk.
type EvidenceItem struct {
	DocumentID    string  `json:"document_id,omitempty"`
	DocumentTitle string  `json:"document_title,omitempty"`
	PageNumber    int     `json:"page_number,omitempty"`
	Excerpt       string  `json:"excerpt"`
	RerankScore   float64 `json:"rerank_score"`
}

// RetrievalDebug carries pipeline diagnostics for the caller.
type RetrievalDebug struct {
	Tier             string   `json:"tier"`
	Subqueries       []string `json:"subqueries,omitempty"`
	ChunksRetrieved  int      `json:"chunks_retrieved"`
	ChunksAfterDedup int      `json:"chunks_after_dedup"`
	RerankApplied    bool     `json:"rerank_applied"`
	CacheHit         bool     `json:"cache_hit"`
}

// FinalResponse is the legacy-compatible answer envelope. It is
// constructed only by the pipeline orchestrator.
type FinalResponse struct {
	Answer                 string             `json:"answer"`
	Citations              []Citation         `json:"citations"`
	RelevantDocuments      []RelevantDocument `json:"relevant_documents"`
	EnhancedAnswer         *EnhancedAnswer    `json:"enhanced_answer,omitempty"`
	Evidence               []EvidenceItem     `json:"evidence"`
	MissingInfo            []string           `json:"missing_info"`
	Error                  string             `json:"error,omitempty"`
	QueryTimeMS            int64              `json:"query_time_ms"`
	TotalDocumentsSearched int                `json:"total_documents_searched"`
	RetrievalDebug         *RetrievalDebug    `json:"retrieval_debug,omitempty"`
}

// LegacyAnswer is the simplified fallback-tier result: free text plus the
// provenance annotations the generation service attached to it.
type LegacyAnswer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// SourceRef is a raw provenance token attached by the generation or
// retrieval service before reconciliation.
type SourceRef struct {
	URI     string `json:"uri,omitempty"`
	Label   string `json:"label,omitempty"`
	PageRef string `json:"page_ref,omitempty"`
	Quote   string `json:"quote,omitempty"`
}

// CatalogDocument is the persisted metadata record for an indexed source
// document, distinct from its representation inside the index service.
type CatalogDocument struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Title       string    `json:"title"`
	Filename    string    `json:"filename"`
	ExternalRef string    `json:"external_ref"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheEntry is a cached full response keyed by tenant + question hash.
// An entry past its expiry is logically absent.
type CacheEntry struct {
	TenantID     string
	QuestionHash string
	Payload      []byte
	ExpiresAt    time.Time
}

func (e CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// QueryAuditEvent records one answered request for the audit stream.
type QueryAuditEvent struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	QuestionHash string    `json:"question_hash"`
	Tier         string    `json:"tier"`
	CacheHit     bool      `json:"cache_hit"`
	DurationMS   int64     `json:"duration_ms"`
	AnsweredAt   time.Time `json:"answered_at"`
}
