package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	ragoconfig "github.com/liliang-cn/rago/v2/pkg/config"
	ragodomain "github.com/liliang-cn/rago/v2/pkg/domain"
	"github.com/liliang-cn/rago/v2/pkg/providers"
	"github.com/liliang-cn/rago/v2/pkg/rag"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// RagoClients are the rago components shared by search, ingestion and generation
type RagoClients struct {
	Embedder  ragodomain.EmbedderProvider
	Generator ragodomain.Generator
	RAG       *rag.Client
}

// lazy holds a value created on first successful get
type lazy[T any] struct {
	mu  sync.Mutex
	val T
	ok  bool
}

func (l *lazy[T]) get(create func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ok {
		return l.val, nil
	}
	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	l.val, l.ok = v, true
	return v, nil
}

func (l *lazy[T]) peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.val, l.ok
}

// Pool owns the external clients of the process. Each client is created on
// first successful use and released by Close; failed creations are retried
// on the next call.
type Pool struct {
	cfg    *config.Config
	logger *zap.Logger

	rago   lazy[*RagoClients]
	openai lazy[*openai.Client]
	milvus lazy[*milvusclient.Client]

	mu     sync.Mutex
	closed bool
}

// NewPool creates an empty pool
func NewPool(cfg *config.Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{cfg: cfg, logger: logger}
}

var errPoolClosed = errors.New("provider pool closed")

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Rago returns the rago clients, creating them on first call
func (p *Pool) Rago(ctx context.Context) (*RagoClients, error) {
	if p.isClosed() {
		return nil, errPoolClosed
	}
	return p.rago.get(func() (*RagoClients, error) {
		clients, err := p.newRago(ctx)
		if err != nil {
			return nil, err
		}
		p.logger.Info("rago clients ready",
			zap.String("base_url", p.cfg.LLM.BaseURL),
			zap.String("llm_model", p.cfg.LLM.LLMModel))
		return clients, nil
	})
}

func (p *Pool) newRago(ctx context.Context) (*RagoClients, error) {
	ragoCfg := &ragoconfig.Config{
		Sqvect: ragoconfig.SqvectConfig{
			DBPath:    p.cfg.RAG.DBPath,
			IndexType: p.cfg.RAG.IndexType,
		},
		Chunker: ragoconfig.ChunkerConfig{
			ChunkSize: p.cfg.RAG.ChunkSize,
			Overlap:   p.cfg.RAG.ChunkOverlap,
		},
		Ingest: ragoconfig.IngestConfig{
			MetadataExtraction: ragoconfig.MetadataExtractionConfig{
				Enable: false,
			},
		},
	}

	factory := providers.NewFactory()
	providerCfg := &ragodomain.OpenAIProviderConfig{
		BaseURL:        p.cfg.LLM.BaseURL,
		APIKey:         p.cfg.LLM.APIKey,
		EmbeddingModel: p.cfg.LLM.EmbeddingModel,
		LLMModel:       p.cfg.LLM.LLMModel,
	}

	embedder, err := factory.CreateEmbedderProvider(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	llmProvider, err := factory.CreateLLMProvider(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	ragClient, err := rag.NewClient(ragoCfg, embedder, llmProvider, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create RAG client: %w", err)
	}

	return &RagoClients{Embedder: embedder, Generator: llmProvider, RAG: ragClient}, nil
}

// OpenAI returns the OpenAI-compatible client of the secondary provider
func (p *Pool) OpenAI() (*openai.Client, error) {
	if p.isClosed() {
		return nil, errPoolClosed
	}
	return p.openai.get(func() (*openai.Client, error) {
		if !p.cfg.Fallback.Enabled || p.cfg.Fallback.APIKey == "" {
			return nil, fmt.Errorf("%w: secondary provider not configured", domain.ErrUnavailable)
		}
		clientConfig := openai.DefaultConfig(p.cfg.Fallback.APIKey)
		if p.cfg.Fallback.BaseURL != "" {
			clientConfig.BaseURL = p.cfg.Fallback.BaseURL
		}
		return openai.NewClientWithConfig(clientConfig), nil
	})
}

// Milvus returns the milvus client, connecting on first call
func (p *Pool) Milvus(ctx context.Context) (*milvusclient.Client, error) {
	if p.isClosed() {
		return nil, errPoolClosed
	}
	return p.milvus.get(func() (*milvusclient.Client, error) {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
			Address:  p.cfg.Milvus.Address,
			Username: p.cfg.Milvus.Username,
			Password: p.cfg.Milvus.Password,
			DBName:   p.cfg.Milvus.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to milvus: %w", err)
		}
		return c, nil
	})
}

// Close releases every client created so far. Later calls to the pool fail.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs *multierror.Error
	if client, ok := p.milvus.peek(); ok {
		if err := client.Close(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("milvus: %w", err))
		}
	}
	if clients, ok := p.rago.peek(); ok {
		if closer, ok := any(clients.RAG).(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("rago: %w", err))
			}
		}
	}
	return errs.ErrorOrNil()
}
