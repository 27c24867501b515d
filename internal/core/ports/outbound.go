package ports

import (
	"context"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

// Generator is the generation-service collaborator. GenerateJSON runs in
// the low-temperature structured-output mode; AnswerFromIndex asks the
// service to answer directly against a whole index (the legacy tier).
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
	AnswerFromIndex(ctx context.Context, question, indexID string) (*domain.LegacyAnswer, error)
}

// DocumentIndex is the retrieval collaborator: one text query against an
// index returns provenance-tagged passages.
type DocumentIndex interface {
	SearchPassages(ctx context.Context, query, indexID string, limit int) ([]domain.RetrievedChunk, error)
}

// CatalogStore reads document metadata for a tenant. Passing document ids
// narrows the set; an empty slice returns every active document.
type CatalogStore interface {
	ListDocuments(ctx context.Context, tenantID string, documentIDs []string) ([]domain.CatalogDocument, error)
}

// AnswerCache persists full responses keyed by (tenant, question hash).
// Get returns (nil, nil) on a miss; expired entries are misses.
type AnswerCache interface {
	Get(ctx context.Context, tenantID, questionHash string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// AuditPublisher emits query-audit events. Publishing is best-effort:
// callers must never fail a request on a publish error.
type AuditPublisher interface {
	PublishQueryAnswered(ctx context.Context, event domain.QueryAuditEvent) error
}

// AuditSubscriber consumes query-audit events until ctx is cancelled.
type AuditSubscriber interface {
	SubscribeQueryAnswered(ctx context.Context, handler func(context.Context, domain.QueryAuditEvent) error) error
}
