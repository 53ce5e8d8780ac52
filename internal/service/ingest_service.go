package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// FileType constants
const (
	FileTypeMD  = "md"
	FileTypeTXT = "txt"
)

const vectorBatchSize = 32

// KeywordRebuilder replaces the keyword index contents
type KeywordRebuilder interface {
	Rebuild(ctx context.Context, chunks []domain.Chunk) (int, error)
}

// VectorIndexer embeds and stores chunks in the semantic backend
type VectorIndexer interface {
	IndexBatch(ctx context.Context, chunks []domain.Chunk) error
}

// vectorResetter is implemented by vector backends that can drop their contents
type vectorResetter interface {
	Reset(ctx context.Context) error
}

// IngestService loads documents, chunks them and feeds both indexes
type IngestService struct {
	keyword KeywordRebuilder
	vectors VectorIndexer
	rag     config.RAGConfig
	storage config.StorageConfig
	workers int
	logger  *zap.Logger
}

// NewIngestService creates a new ingest service. vectors may be nil.
func NewIngestService(
	keyword KeywordRebuilder,
	vectors VectorIndexer,
	cfg *config.Config,
	logger *zap.Logger,
) *IngestService {
	workers := cfg.Ingest.Workers
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		keyword: keyword,
		vectors: vectors,
		rag:     cfg.RAG,
		storage: cfg.Storage,
		workers: workers,
		logger:  logger,
	}
}

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return FileTypeMD
	case ".txt":
		return FileTypeTXT
	case "":
		return ""
	default:
		return ext[1:]
	}
}

// IsSupported checks if file type is supported
func IsSupported(fileType string) bool {
	return fileType == FileTypeMD || fileType == FileTypeTXT
}

// SaveUpload stores an uploaded document in the documents directory
func (s *IngestService) SaveUpload(file *multipart.FileHeader) (string, error) {
	name := filepath.Base(file.Filename)
	if fileType := DetectFileType(name); !IsSupported(fileType) {
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidRequest, fileType)
	}
	if err := os.MkdirAll(s.storage.Documents, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	path := filepath.Join(s.storage.Documents, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create storage file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

// Ingest indexes the posted chunks, or every supported file of the
// requested directory (the documents directory by default). The keyword
// index is rebuilt from scratch; vector failures are counted, not fatal.
func (s *IngestService) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResult, error) {
	result := &domain.IngestResult{}

	chunks := make([]domain.Chunk, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		if strings.TrimSpace(c.Text) != "" {
			chunks = append(chunks, c)
		}
	}
	if len(req.Chunks) == 0 {
		dir := req.Directory
		if dir == "" {
			dir = s.storage.Documents
		}
		loaded, files, err := s.loadDirectory(dir)
		if err != nil {
			return nil, err
		}
		chunks = loaded
		result.Files = files
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no documents to ingest", domain.ErrNotFound)
	}
	result.Chunks = len(chunks)

	indexed, err := s.keyword.Rebuild(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild keyword index: %w", err)
	}
	result.KeywordIndexed = indexed

	if s.vectors != nil {
		if r, ok := s.vectors.(vectorResetter); ok {
			if err := r.Reset(ctx); err != nil {
				return nil, fmt.Errorf("failed to reset vector index: %w", err)
			}
		}
		result.VectorIndexed, result.VectorFailed = s.indexVectors(ctx, chunks)
	}

	s.logger.Info("ingestion completed",
		zap.Int("files", result.Files),
		zap.Int("chunks", result.Chunks),
		zap.Int("keyword_indexed", result.KeywordIndexed),
		zap.Int("vector_indexed", result.VectorIndexed),
		zap.Int("vector_failed", result.VectorFailed))
	return result, nil
}

func (s *IngestService) loadDirectory(dir string) ([]domain.Chunk, int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSupported(DetectFileType(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: directory %s", domain.ErrNotFound, dir)
		}
		return nil, 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	var chunks []domain.Chunk
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
		}
		source := filepath.Base(path)
		for _, text := range textutil.SplitIntoChunks(string(data), s.rag.ChunkSize, s.rag.ChunkOverlap) {
			chunks = append(chunks, domain.Chunk{Text: text, SourceID: source})
		}
	}
	return chunks, len(paths), nil
}

// indexVectors upserts chunks in batches on a bounded worker pool
func (s *IngestService) indexVectors(ctx context.Context, chunks []domain.Chunk) (int, int) {
	var indexed, failed atomic.Int64

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		s.logger.Error("failed to create ingest pool", zap.Error(err))
		return 0, len(chunks)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for start := 0; start < len(chunks); start += vectorBatchSize {
		end := min(start+vectorBatchSize, len(chunks))
		batch := chunks[start:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := s.vectors.IndexBatch(ctx, batch); err != nil {
				failed.Add(int64(len(batch)))
				s.logger.Warn("vector batch failed", zap.Int("size", len(batch)), zap.Error(err))
				return
			}
			indexed.Add(int64(len(batch)))
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			failed.Add(int64(len(batch)))
			s.logger.Warn("vector batch rejected", zap.Error(err))
		}
	}
	wg.Wait()

	return int(indexed.Load()), int(failed.Load())
}
