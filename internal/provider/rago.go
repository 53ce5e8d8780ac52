package provider

import (
	"context"
	"fmt"

	ragodomain "github.com/liliang-cn/rago/v2/pkg/domain"
	"github.com/liliang-cn/rago/v2/pkg/rag"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// RagoLLM generates with the rago LLM provider
type RagoLLM struct {
	pool *Pool
	cfg  config.LLMConfig
}

// NewRagoLLM creates the primary generation backend
func NewRagoLLM(pool *Pool, cfg config.LLMConfig) *RagoLLM {
	return &RagoLLM{pool: pool, cfg: cfg}
}

// Name identifies the provider
func (l *RagoLLM) Name() string {
	if l.cfg.Provider != "" {
		return l.cfg.Provider
	}
	return PreferencePrimary
}

// Complete sends the prompt pair as a single prompt
func (l *RagoLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	clients, err := l.pool.Rago(ctx)
	if err != nil {
		return "", err
	}
	return clients.Generator.Generate(ctx, systemPrompt+"\n\n"+userPrompt, &ragodomain.GenerationOptions{
		Temperature: l.cfg.Temperature,
		MaxTokens:   l.cfg.MaxTokens,
	})
}

// RagoSearcher runs semantic search against the rago vector store
type RagoSearcher struct {
	pool *Pool
}

// NewRagoSearcher creates a rago semantic searcher
func NewRagoSearcher(pool *Pool) *RagoSearcher {
	return &RagoSearcher{pool: pool}
}

// Name identifies the source
func (s *RagoSearcher) Name() string {
	return domain.SourceSemantic
}

// Search performs a pure vector search without generation
func (s *RagoSearcher) Search(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	clients, err := s.pool.Rago(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := clients.RAG.Query(ctx, query, &rag.QueryOptions{
		TopK:        topK,
		Temperature: 0,
		MaxTokens:   0,
		ShowSources: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rago query failed: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		chunk := domain.Chunk{Text: src.Content, SourceID: src.DocumentID}
		if src.Metadata != nil {
			if name, ok := src.Metadata[domain.MetadataKeySourceFile].(string); ok && name != "" {
				chunk.SourceID = name
			}
			chunk.Page = pageFromMetadata(src.Metadata[domain.MetadataKeyPage])
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: src.Score, Source: domain.SourceSemantic})
	}
	return results, nil
}

// RagoIndexer writes chunks into the rago vector store
type RagoIndexer struct {
	pool *Pool
	cfg  config.RAGConfig
}

// NewRagoIndexer creates a rago vector indexer
func NewRagoIndexer(pool *Pool, cfg config.RAGConfig) *RagoIndexer {
	return &RagoIndexer{pool: pool, cfg: cfg}
}

// IndexBatch ingests each chunk as its own document
func (x *RagoIndexer) IndexBatch(ctx context.Context, chunks []domain.Chunk) error {
	clients, err := x.pool.Rago(ctx)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		metadata := map[string]any{domain.MetadataKeySourceFile: c.SourceID}
		if c.Page != nil {
			metadata[domain.MetadataKeyPage] = *c.Page
		}
		if _, err := clients.RAG.IngestText(ctx, c.Text, c.SourceID, &rag.IngestOptions{
			ChunkSize: x.cfg.ChunkSize,
			Overlap:   x.cfg.ChunkOverlap,
			Metadata:  metadata,
		}); err != nil {
			return fmt.Errorf("failed to ingest chunk from %s: %w", c.SourceID, err)
		}
	}
	return nil
}

// Reset clears the vector store so a re-ingest replaces the corpus
func (x *RagoIndexer) Reset(ctx context.Context) error {
	clients, err := x.pool.Rago(ctx)
	if err != nil {
		return err
	}
	if err := clients.RAG.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset rago store: %w", err)
	}
	return nil
}

func pageFromMetadata(v any) *int {
	var page int
	switch p := v.(type) {
	case int:
		page = p
	case int64:
		page = int(p)
	case float64:
		page = int(p)
	default:
		return nil
	}
	return &page
}
