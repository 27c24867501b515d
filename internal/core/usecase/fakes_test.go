package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

type fakeGenerator struct {
	mu          sync.Mutex
	jsonOutputs []string
	jsonErr     error
	jsonCalls   int
	prompts     []string

	textOutput string
	textErr    error

	legacy      *domain.LegacyAnswer
	legacyErr   error
	legacyCalls int
}

func (g *fakeGenerator) GenerateJSON(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.jsonCalls++
	g.prompts = append(g.prompts, prompt)
	if g.jsonErr != nil {
		return "", g.jsonErr
	}
	if len(g.jsonOutputs) == 0 {
		return "", fmt.Errorf("no scripted json output")
	}
	out := g.jsonOutputs[0]
	g.jsonOutputs = g.jsonOutputs[1:]
	return out, nil
}

func (g *fakeGenerator) GenerateText(context.Context, string) (string, error) {
	if g.textErr != nil {
		return "", g.textErr
	}
	return g.textOutput, nil
}

func (g *fakeGenerator) AnswerFromIndex(context.Context, string, string) (*domain.LegacyAnswer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.legacyCalls++
	if g.legacyErr != nil {
		return nil, g.legacyErr
	}
	return g.legacy, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	results map[string][]domain.RetrievedChunk
	errs    map[string]error
	calls   int
}

func (f *fakeIndex) SearchPassages(_ context.Context, query, _ string, _ int) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

type fakeCatalog struct {
	docs []domain.CatalogDocument
	err  error
}

func (f *fakeCatalog) ListDocuments(context.Context, string, []string) ([]domain.CatalogDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string]domain.CacheEntry
	getErr   error
	putErr   error
	getCalls int
	putCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.CacheEntry)}
}

func (f *fakeCache) Get(_ context.Context, tenantID, questionHash string) (*domain.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[tenantID+"|"+questionHash]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeCache) Put(_ context.Context, entry domain.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[entry.TenantID+"|"+entry.QuestionHash] = entry
	return nil
}

func (f *fakeCache) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []domain.QueryAuditEvent
	err    error
}

func (f *fakeAudit) PublishQueryAnswered(_ context.Context, event domain.QueryAuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
