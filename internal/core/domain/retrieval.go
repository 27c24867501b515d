package domain

// RetrievedChunk is one provenance-tagged passage returned by the
// document index for a single sub-query.
type RetrievedChunk struct {
	Text           string  `json:"text"`
	DocumentID     string  `json:"document_id,omitempty"`
	DocumentTitle  string  `json:"document_title,omitempty"`
	DocumentURI    string  `json:"document_uri,omitempty"`
	PageNumber     int     `json:"page_number,omitempty"`
	ChunkIndex     int     `json:"chunk_index,omitempty"`
	SourceSubquery int     `json:"source_subquery"`
	RelevanceScore float64 `json:"relevance_score"`
	ChunkHash      string  `json:"chunk_hash"`
}

// RankedChunk is a deduplicated chunk after the rerank pass.
type RankedChunk struct {
	RetrievedChunk
	RerankScore     float64 `json:"rerank_score"`
	RerankRationale string  `json:"rerank_rationale"`
}

// ChunkKey returns the deduplication key for a chunk: the same passage
// surfaced by different sub-queries collapses to one entry.
func (c RetrievedChunk) ChunkKey() string {
	if c.ChunkHash != "" {
		return c.ChunkHash
	}
	return HashChunk(c.DocumentID, c.Text)
}
