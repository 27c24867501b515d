package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
)

const (
	tierEnhanced = "enhanced"
	tierLegacy   = "legacy"
	tierDegraded = "degraded"
	tierCached   = "cached"
)

// pipelineState is one node of the fallback chain. Each state has a
// single exit transition; the chain never revisits a state.
type pipelineState int

const (
	stateEnhancedAttempt pipelineState = iota
	stateLegacyAttempt
	stateDegradedResponse
	stateDone
)

// ResearchQueryUseCase orchestrates the enhanced retrieval-augmented
// pipeline: cache lookup, rewrite, multi-query retrieval, dedup/boost,
// rerank, synthesis, citation reconciliation and cache write.
type ResearchQueryUseCase struct {
	rewriter    *QueryRewriter
	retriever   *MultiQueryRetriever
	reranker    *Reranker
	synthesizer *AnswerSynthesizer
	reconciler  *CitationReconciler

	generator ports.Generator
	catalog   ports.CatalogStore
	cache     ports.AnswerCache
	audit     ports.AuditPublisher

	indexID string
	limits  domain.PipelineLimits
}

func NewResearchQueryUseCase(
	rewriter *QueryRewriter,
	retriever *MultiQueryRetriever,
	reranker *Reranker,
	synthesizer *AnswerSynthesizer,
	reconciler *CitationReconciler,
	generator ports.Generator,
	catalog ports.CatalogStore,
	cache ports.AnswerCache,
	audit ports.AuditPublisher,
	indexID string,
	limits domain.PipelineLimits,
) *ResearchQueryUseCase {
	if limits.RewriteTimeout <= 0 {
		limits.RewriteTimeout = 10 * time.Second
	}
	if limits.RetrievalTimeout <= 0 {
		limits.RetrievalTimeout = 30 * time.Second
	}
	if limits.RerankTimeout <= 0 {
		limits.RerankTimeout = 15 * time.Second
	}
	if limits.SynthesisTimeout <= 0 {
		limits.SynthesisTimeout = 60 * time.Second
	}
	if limits.RerankPoolSize <= 0 {
		limits.RerankPoolSize = 50
	}
	if limits.CacheTTL <= 0 {
		limits.CacheTTL = 10 * time.Minute
	}

	return &ResearchQueryUseCase{
		rewriter:    rewriter,
		retriever:   retriever,
		reranker:    reranker,
		synthesizer: synthesizer,
		reconciler:  reconciler,
		generator:   generator,
		catalog:     catalog,
		cache:       cache,
		audit:       audit,
		indexID:     indexID,
		limits:      limits,
	}
}

func (uc *ResearchQueryUseCase) Ask(ctx context.Context, req domain.QueryRequest) (*domain.FinalResponse, error) {
	started := time.Now()

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "ask", fmt.Errorf("tenant is required"))
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is required"))
	}

	questionHash := domain.HashQuestion(question)
	if cached := uc.lookupCache(ctx, tenantID, questionHash); cached != nil {
		uc.publishAudit(tenantID, questionHash, tierCached, true, time.Since(started))
		return cached, nil
	}

	searched, err := uc.catalog.ListDocuments(ctx, tenantID, requestedDocumentIDs(req))
	if err != nil {
		// The catalog only feeds reconciliation and provenance; an empty
		// set still allows both fallback tiers to answer.
		slog.Warn("catalog_unavailable", "tenant", tenantID, "error", err)
		searched = nil
	}

	var (
		response    *domain.FinalResponse
		enhancedErr error
		legacyErr   error
		tier        string
	)

	for state := stateEnhancedAttempt; state != stateDone; {
		switch state {
		case stateEnhancedAttempt:
			response, enhancedErr = uc.runEnhanced(ctx, question, req.Filters, searched)
			if enhancedErr == nil {
				tier = tierEnhanced
				state = stateDone
				break
			}
			slog.Warn("enhanced_tier_failed", "tenant", tenantID, "error", enhancedErr)
			state = stateLegacyAttempt

		case stateLegacyAttempt:
			response, legacyErr = uc.runLegacy(ctx, question, searched)
			if legacyErr == nil {
				tier = tierLegacy
				state = stateDone
				break
			}
			slog.Warn("legacy_tier_failed", "tenant", tenantID, "error", legacyErr)
			state = stateDegradedResponse

		case stateDegradedResponse:
			response = uc.degradedResponse(enhancedErr, legacyErr)
			tier = tierDegraded
			state = stateDone
		}
	}

	response.QueryTimeMS = time.Since(started).Milliseconds()
	response.TotalDocumentsSearched = len(searched)

	if tier != tierDegraded {
		uc.writeCache(ctx, tenantID, questionHash, response)
	}
	uc.publishAudit(tenantID, questionHash, tier, false, time.Since(started))
	return response, nil
}

// runEnhanced executes the full pipeline in strict sequence. Any stage
// error aborts the tier; the caller advances the fallback chain.
func (uc *ResearchQueryUseCase) runEnhanced(
	ctx context.Context,
	question string,
	filters domain.QueryFilters,
	searched []domain.CatalogDocument,
) (*domain.FinalResponse, error) {
	rewriteCtx, cancel := context.WithTimeout(ctx, uc.limits.RewriteTimeout)
	plan, err := uc.rewriter.Rewrite(rewriteCtx, question, filters)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("rewrite stage: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	retrieveCtx, cancel := context.WithTimeout(ctx, uc.limits.RetrievalTimeout)
	chunks, err := uc.retriever.Retrieve(retrieveCtx, plan.Subqueries, uc.indexID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("retrieval stage: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deduped := dedupeChunks(chunks)
	candidates := boostChunks(deduped, uc.limits.RerankPoolSize)

	rerankCtx, cancel := context.WithTimeout(ctx, uc.limits.RerankTimeout)
	ranked, rerankApplied := uc.reranker.Rerank(rerankCtx, question, candidates)
	cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	synthesisCtx, cancel := context.WithTimeout(ctx, uc.limits.SynthesisTimeout)
	enhanced, citations, err := uc.synthesizer.Synthesize(synthesisCtx, question, plan, ranked)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("synthesis stage: %w", err)
	}

	citations, relevant := uc.reconciler.Reconcile(citations, ranked, searched)

	return &domain.FinalResponse{
		Answer:            enhanced.DirectAnswer,
		Citations:         citations,
		RelevantDocuments: relevant,
		EnhancedAnswer:    enhanced,
		Evidence:          evidenceFromRanked(ranked),
		MissingInfo:       enhanced.MissingInfo,
		RetrievalDebug: &domain.RetrievalDebug{
			Tier:             tierEnhanced,
			Subqueries:       plan.Subqueries,
			ChunksRetrieved:  len(chunks),
			ChunksAfterDedup: len(deduped),
			RerankApplied:    rerankApplied,
		},
	}, nil
}

// runLegacy is the single simplified call: the generation service
// answers directly against the whole index, no rewrite, no rerank.
func (uc *ResearchQueryUseCase) runLegacy(
	ctx context.Context,
	question string,
	searched []domain.CatalogDocument,
) (*domain.FinalResponse, error) {
	legacyCtx, cancel := context.WithTimeout(ctx, uc.limits.SynthesisTimeout)
	defer cancel()

	answer, err := uc.generator.AnswerFromIndex(legacyCtx, question, uc.indexID)
	if err != nil {
		return nil, fmt.Errorf("legacy answer: %w", err)
	}
	if strings.TrimSpace(answer.Answer) == "" {
		return nil, fmt.Errorf("legacy answer is empty")
	}

	citations := make([]domain.Citation, 0, len(answer.Sources))
	for i, source := range answer.Sources {
		citations = append(citations, domain.Citation{
			ID:          i + 1,
			DocumentRef: firstNonEmpty(source.URI, source.Label),
			PageRef:     source.PageRef,
			Excerpt:     clampWords(source.Quote, 50),
		})
	}
	citations, relevant := uc.reconciler.Reconcile(citations, nil, searched)

	return &domain.FinalResponse{
		Answer:            answer.Answer,
		Citations:         citations,
		RelevantDocuments: relevant,
		Evidence:          []domain.EvidenceItem{},
		MissingInfo:       []string{},
		RetrievalDebug:    &domain.RetrievalDebug{Tier: tierLegacy},
	}, nil
}

// degradedResponse is the terminal tier: a 200 response whose answer
// explains the failure, with the cause chain in the error field.
func (uc *ResearchQueryUseCase) degradedResponse(enhancedErr, legacyErr error) *domain.FinalResponse {
	return &domain.FinalResponse{
		Answer: "We could not answer this question right now because the " +
			"research services are unavailable. Please try again shortly.",
		Citations:         []domain.Citation{},
		RelevantDocuments: []domain.RelevantDocument{},
		Evidence:          []domain.EvidenceItem{},
		MissingInfo:       []string{},
		Error:             fmt.Sprintf("enhanced pipeline: %v; fallback: %v", enhancedErr, legacyErr),
		RetrievalDebug:    &domain.RetrievalDebug{Tier: tierDegraded},
	}
}

func (uc *ResearchQueryUseCase) lookupCache(ctx context.Context, tenantID, questionHash string) *domain.FinalResponse {
	entry, err := uc.cache.Get(ctx, tenantID, questionHash)
	if err != nil {
		slog.Warn("cache_get_failed", "tenant", tenantID, "error", err)
		return nil
	}
	if entry == nil || entry.Expired(time.Now().UTC()) {
		return nil
	}

	var response domain.FinalResponse
	if err := json.Unmarshal(entry.Payload, &response); err != nil {
		slog.Warn("cache_payload_corrupt", "tenant", tenantID, "error", err)
		return nil
	}
	if response.RetrievalDebug != nil {
		response.RetrievalDebug.CacheHit = true
	}
	return &response
}

// writeCache is best-effort: a failed write never fails the request.
func (uc *ResearchQueryUseCase) writeCache(ctx context.Context, tenantID, questionHash string, response *domain.FinalResponse) {
	payload, err := json.Marshal(response)
	if err != nil {
		slog.Warn("cache_marshal_failed", "tenant", tenantID, "error", err)
		return
	}
	entry := domain.CacheEntry{
		TenantID:     tenantID,
		QuestionHash: questionHash,
		Payload:      payload,
		ExpiresAt:    time.Now().UTC().Add(uc.limits.CacheTTL),
	}
	if err := uc.cache.Put(ctx, entry); err != nil {
		slog.Warn("cache_put_failed", "tenant", tenantID, "error", err)
	}
}

func (uc *ResearchQueryUseCase) publishAudit(tenantID, questionHash, tier string, cacheHit bool, elapsed time.Duration) {
	if uc.audit == nil {
		return
	}
	event := domain.QueryAuditEvent{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		QuestionHash: questionHash,
		Tier:         tier,
		CacheHit:     cacheHit,
		DurationMS:   elapsed.Milliseconds(),
		AnsweredAt:   time.Now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := uc.audit.PublishQueryAnswered(publishCtx, event); err != nil {
		slog.Warn("audit_publish_failed", "tenant", tenantID, "error", err)
	}
}

func requestedDocumentIDs(req domain.QueryRequest) []string {
	if len(req.DocumentIDs) > 0 {
		return req.DocumentIDs
	}
	return req.Filters.DocumentIDs
}

func evidenceFromRanked(ranked []domain.RankedChunk) []domain.EvidenceItem {
	out := make([]domain.EvidenceItem, 0, len(ranked))
	for _, chunk := range ranked {
		out = append(out, domain.EvidenceItem{
			DocumentID:    chunk.DocumentID,
			DocumentTitle: chunk.DocumentTitle,
			PageNumber:    chunk.PageNumber,
			Excerpt:       truncateText(chunk.Text, 300),
			RerankScore:   chunk.RerankScore,
		})
	}
	return out
}
