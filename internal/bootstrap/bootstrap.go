package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/alphaboard/research-qa/internal/config"
	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
	"github.com/alphaboard/research-qa/internal/core/usecase"
	"github.com/alphaboard/research-qa/internal/infrastructure/docindex"
	"github.com/alphaboard/research-qa/internal/infrastructure/genai"
	"github.com/alphaboard/research-qa/internal/infrastructure/queue/nats"
	"github.com/alphaboard/research-qa/internal/infrastructure/repository/postgres"
	"github.com/alphaboard/research-qa/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Cache    ports.AnswerCache
	Answerer ports.QuestionAnswerer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	catalog := postgres.NewCatalogRepository(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure catalog schema: %w", err)
	}
	cache := postgres.NewAnswerCacheRepository(db)
	if err := cache.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init audit queue: %w", err)
	}

	resilienceCfg := resilience.DefaultConfig()
	generator := genai.New(cfg.GenAIURL, cfg.GenAIModel, resilienceCfg)
	index := docindex.New(cfg.DocIndexURL, resilienceCfg)

	limits := domain.PipelineLimits{
		RewriteTimeout:    time.Duration(cfg.RewriteTimeoutSeconds) * time.Second,
		RetrievalTimeout:  time.Duration(cfg.RetrievalTimeoutSeconds) * time.Second,
		SubqueryTimeout:   time.Duration(cfg.SubqueryTimeoutSeconds) * time.Second,
		RerankTimeout:     time.Duration(cfg.RerankTimeoutSeconds) * time.Second,
		SynthesisTimeout:  time.Duration(cfg.SynthesisTimeoutSeconds) * time.Second,
		FanOutConcurrency: cfg.FanOutConcurrency,
		PerSubqueryLimit:  cfg.PerSubqueryLimit,
		RerankPoolSize:    cfg.RerankPoolSize,
		TopK:              cfg.TopK,
		CacheTTL:          time.Duration(cfg.CacheTTLSeconds) * time.Second,
		MinAnswerChars:    cfg.MinAnswerChars,
		MaxSubqueries:     cfg.MaxSubqueries,
	}

	var audit ports.AuditPublisher
	if cfg.AuditPublishEnabled {
		audit = queue
	}

	answerer := usecase.NewResearchQueryUseCase(
		usecase.NewQueryRewriter(generator, limits.MaxSubqueries),
		usecase.NewMultiQueryRetriever(index, limits.FanOutConcurrency, limits.PerSubqueryLimit, limits.SubqueryTimeout),
		usecase.NewReranker(generator, limits.TopK),
		usecase.NewAnswerSynthesizer(generator, limits.MinAnswerChars),
		usecase.NewCitationReconciler(),
		generator,
		catalog,
		cache,
		audit,
		cfg.IndexID,
		limits,
	)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Cache:    cache,
		Answerer: answerer,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
