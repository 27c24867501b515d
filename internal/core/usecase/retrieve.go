package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
)

// MultiQueryRetriever dispatches every sub-query of a plan concurrently
// against the document index. Sub-queries are isolated: one failing or
// timing out contributes zero chunks without cancelling the others.
type MultiQueryRetriever struct {
	index ports.DocumentIndex

	concurrency     int
	perQueryLimit   int
	subqueryTimeout time.Duration
}

func NewMultiQueryRetriever(index ports.DocumentIndex, concurrency, perQueryLimit int, subqueryTimeout time.Duration) *MultiQueryRetriever {
	if concurrency <= 0 {
		concurrency = 4
	}
	if perQueryLimit <= 0 {
		perQueryLimit = 12
	}
	if subqueryTimeout <= 0 {
		subqueryTimeout = 30 * time.Second
	}
	return &MultiQueryRetriever{
		index:           index,
		concurrency:     concurrency,
		perQueryLimit:   perQueryLimit,
		subqueryTimeout: subqueryTimeout,
	}
}

type subqueryResult struct {
	chunks []domain.RetrievedChunk
	err    error
}

// Retrieve fans the sub-queries out with bounded parallelism and joins on
// all of them. Each result lands in its own write-once slot; merging
// happens only after every call has settled. It fails only when every
// sub-query failed or the union of hits is empty.
func (r *MultiQueryRetriever) Retrieve(ctx context.Context, subqueries []string, indexID string) ([]domain.RetrievedChunk, error) {
	if len(subqueries) == 0 {
		return nil, domain.WrapError(domain.ErrNoChunks, "retrieve", fmt.Errorf("empty subquery list"))
	}

	slots := make([]subqueryResult, len(subqueries))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i, subquery := range subqueries {
		wg.Add(1)
		go func(slot int, query string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, r.subqueryTimeout)
			defer cancel()

			chunks, err := r.index.SearchPassages(callCtx, query, indexID, r.perQueryLimit)
			if err != nil {
				slots[slot] = subqueryResult{err: err}
				return
			}
			for j := range chunks {
				chunks[j].SourceSubquery = slot
				if chunks[j].ChunkHash == "" {
					chunks[j].ChunkHash = chunks[j].ChunkKey()
				}
			}
			slots[slot] = subqueryResult{chunks: chunks}
		}(i, subquery)
	}
	wg.Wait()

	merged := make([]domain.RetrievedChunk, 0, len(subqueries)*r.perQueryLimit)
	var firstErr error
	failures := 0
	for _, slot := range slots {
		if slot.err != nil {
			failures++
			if firstErr == nil {
				firstErr = slot.err
			}
			continue
		}
		merged = append(merged, slot.chunks...)
	}

	if failures == len(subqueries) {
		return nil, domain.WrapError(domain.ErrNoChunks, "retrieve", fmt.Errorf("all %d subqueries failed: %w", failures, firstErr))
	}
	if len(merged) == 0 {
		return nil, domain.WrapError(domain.ErrNoChunks, "retrieve", fmt.Errorf("no passages matched any subquery"))
	}
	return merged, nil
}
