package domain

import "time"

// PipelineLimits bounds each stage of the query pipeline. Zero values are
// replaced with defaults by the orchestrator constructor.
type PipelineLimits struct {
	RewriteTimeout   time.Duration
	RetrievalTimeout time.Duration
	SubqueryTimeout  time.Duration
	RerankTimeout    time.Duration
	SynthesisTimeout time.Duration

	FanOutConcurrency int
	PerSubqueryLimit  int
	RerankPoolSize    int
	TopK              int

	CacheTTL       time.Duration
	MinAnswerChars int
	MaxSubqueries  int
}
