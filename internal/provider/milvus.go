package provider

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
)

const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
	fieldSource    = "source_id"
	fieldPage      = "page"

	// stored page for chunks without one
	noPage = -1
)

// MilvusStore is a semantic search backend on a milvus collection.
// Embeddings come from the rago embedder.
type MilvusStore struct {
	pool *Pool
	cfg  config.MilvusConfig
}

// NewMilvusStore creates a milvus-backed searcher and indexer
func NewMilvusStore(pool *Pool, cfg config.MilvusConfig) *MilvusStore {
	return &MilvusStore{pool: pool, cfg: cfg}
}

// Name identifies the source
func (s *MilvusStore) Name() string {
	return domain.SourceSemantic
}

// EnsureCollection creates, indexes and loads the collection when missing
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	client, err := s.pool.Milvus(ctx)
	if err != nil {
		return err
	}

	exists, err := client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.cfg.Collection))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(s.cfg.Collection).
		WithDescription("askdesk document chunks").
		WithAutoID(true).
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.cfg.Dimension))).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName(fieldSource).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(1024)).
		WithField(entity.NewField().
			WithName(fieldPage).
			WithDataType(entity.FieldTypeInt64))

	if err := client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.cfg.Collection, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	idxTask, err := client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.cfg.Collection, fieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.cfg.Collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Reset drops and recreates the collection
func (s *MilvusStore) Reset(ctx context.Context) error {
	client, err := s.pool.Milvus(ctx)
	if err != nil {
		return err
	}
	if err := client.DropCollection(ctx, milvusclient.NewDropCollectionOption(s.cfg.Collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// IndexBatch embeds and inserts chunks, then flushes the collection
func (s *MilvusStore) IndexBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	client, err := s.pool.Milvus(ctx)
	if err != nil {
		return err
	}

	vectors := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	pages := make([]int64, len(chunks))
	for i, c := range chunks {
		vec, err := s.embed(ctx, c.Text)
		if err != nil {
			return err
		}
		vectors[i] = vec
		texts[i] = c.Text
		sources[i] = c.SourceID
		pages[i] = noPage
		if c.Page != nil {
			pages[i] = int64(*c.Page)
		}
	}

	if _, err := client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(s.cfg.Collection,
		column.NewColumnFloatVector(fieldEmbedding, len(vectors[0]), vectors),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnInt64(fieldPage, pages),
	)); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	flushTask, err := client.Flush(ctx, milvusclient.NewFlushOption(s.cfg.Collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Search returns the topK nearest chunks by cosine similarity
func (s *MilvusStore) Search(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	client, err := s.pool.Milvus(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := client.Search(ctx, milvusclient.NewSearchOption(
		s.cfg.Collection,
		topK,
		[]entity.Vector{entity.FloatVector(vec)},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(fieldText, fieldSource, fieldPage))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	rs := results[0]
	out := make([]domain.ScoredChunk, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		sc := domain.ScoredChunk{Score: float64(rs.Scores[i]), Source: domain.SourceSemantic}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				switch col.Name() {
				case fieldText:
					sc.Text = col.Data()[i]
				case fieldSource:
					sc.SourceID = col.Data()[i]
				}
			case *column.ColumnInt64:
				if col.Name() == fieldPage && col.Data()[i] != noPage {
					page := int(col.Data()[i])
					sc.Page = &page
				}
			}
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *MilvusStore) embed(ctx context.Context, text string) ([]float32, error) {
	clients, err := s.pool.Rago(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := clients.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}
