// Package app wires configuration, storage, providers and services into a
// runnable process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/api"
	"github.com/liliang-cn/askdesk/internal/cache"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/guardrail"
	"github.com/liliang-cn/askdesk/internal/provider"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/retrieval"
	"github.com/liliang-cn/askdesk/internal/service"
)

// Semantic backends
const (
	BackendRago   = "rago"
	BackendMilvus = "milvus"
	BackendNone   = "none"
)

// App holds the long lived components of the process
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *repository.DB
	Pool  *provider.Pool
	cache *cache.ResolvedCache

	Conversations   *repository.ConversationRepository
	ResolvedAnswers *repository.ResolvedAnswerRepository

	Orchestrator        *service.OrchestratorService
	ChatService         *service.ChatService
	ConversationService *service.ConversationService
	TicketService       *service.TicketService
	ResolvedService     *service.ResolvedAnswerService
	IngestService       *service.IngestService
	AdminService        *service.AdminService
}

// New builds the application. External clients connect lazily on first use.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:          cfg,
		Logger:          logger,
		DB:              db,
		Pool:            provider.NewPool(cfg, logger),
		Conversations:   repository.NewConversationRepository(db),
		ResolvedAnswers: repository.NewResolvedAnswerRepository(db),
	}
	tickets := repository.NewTicketRepository(db)
	logs := repository.NewLogRepository(db)

	var answerCache service.AnswerCache
	if cfg.Cache.Enabled {
		a.cache = cache.NewResolvedCache(cache.NewRedisClient(cfg.Cache), cfg.Cache, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := a.cache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("resolved answer cache unavailable, continuing without it", zap.Error(err))
		} else {
			answerCache = a.cache
		}
	}

	keyword := retrieval.NewKeywordIndex(db)
	semantic, vectors, err := a.semanticBackend()
	if err != nil {
		db.Close()
		return nil, err
	}
	hybrid := retrieval.NewHybrid(semantic, keyword,
		retrieval.NewFusion(cfg.Retrieval.RRFK, cfg.Retrieval.SemanticWeight, cfg.Retrieval.KeywordWeight, cfg.Retrieval.KeywordScoreDivisor),
		retrieval.HybridOptions{
			MaxDocs:         cfg.Retrieval.MaxDocs,
			SemanticTimeout: cfg.Retrieval.SemanticTimeout,
			KeywordTimeout:  cfg.Retrieval.KeywordTimeout,
		}, logger)

	var secondary provider.LLM
	if cfg.Fallback.Enabled {
		secondary = provider.NewOpenAILLM(a.Pool, cfg.Fallback, cfg.LLM)
	}
	router := provider.NewRouter(provider.NewRagoLLM(a.Pool, cfg.LLM), secondary, provider.RouterOptions{
		Attempts:   cfg.LLM.Attempts,
		Timeout:    cfg.LLM.Timeout,
		Preference: cfg.LLM.Preference,
		Sentinel:   cfg.Guardrail.RefusalSentinel,
	}, logger)

	a.ResolvedService = service.NewResolvedAnswerService(a.ResolvedAnswers, answerCache, cfg.Resolved, logger)
	a.TicketService = service.NewTicketService(db, tickets, a.ResolvedService, cfg.HITL, logger)
	a.Orchestrator = service.NewOrchestratorService(service.OrchestratorDeps{
		Input:         guardrail.NewInputGuard(cfg.Guardrail, router, logger),
		Output:        guardrail.NewOutputGuard(cfg.Guardrail, logger),
		Retriever:     hybrid,
		Generator:     router,
		Resolved:      a.ResolvedService,
		Tickets:       a.TicketService,
		Logs:          logs,
		Conversations: a.Conversations,
	}, service.OrchestratorOptions{
		ConfidenceThreshold: cfg.Retrieval.ConfidenceThreshold,
		FollowUpMaxLength:   cfg.HITL.FollowUpMaxLength,
	}, logger)
	a.ChatService = service.NewChatService(a.Conversations, a.Orchestrator, cfg.HITL, logger)
	a.ConversationService = service.NewConversationService(a.Conversations)
	a.IngestService = service.NewIngestService(keyword, vectors, cfg, logger)
	a.AdminService = service.NewAdminService(logs, tickets, a.ResolvedAnswers, keyword)

	logger.Info("application ready",
		zap.String("semantic_backend", cfg.Retrieval.SemanticBackend),
		zap.Bool("fallback", cfg.Fallback.Enabled),
		zap.Bool("cache", answerCache != nil))
	return a, nil
}

func (a *App) semanticBackend() (retrieval.Searcher, service.VectorIndexer, error) {
	switch strings.ToLower(a.Config.Retrieval.SemanticBackend) {
	case "", BackendRago:
		return provider.NewRagoSearcher(a.Pool), provider.NewRagoIndexer(a.Pool, a.Config.RAG), nil
	case BackendMilvus:
		store := provider.NewMilvusStore(a.Pool, a.Config.Milvus)
		return store, store, nil
	case BackendNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown semantic backend %q", a.Config.Retrieval.SemanticBackend)
	}
}

// Services returns the dependencies of the HTTP handlers
func (a *App) Services() api.Services {
	return api.Services{
		Chat:          a.ChatService,
		Conversations: a.ConversationService,
		Tickets:       a.TicketService,
		Resolved:      a.ResolvedService,
		Ingest:        a.IngestService,
		Admin:         a.AdminService,
	}
}

// Close releases external clients and the database
func (a *App) Close(ctx context.Context) error {
	var errs *multierror.Error
	if err := a.Pool.Close(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("database: %w", err))
	}
	return errs.ErrorOrNil()
}
