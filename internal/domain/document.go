package domain

import "unicode/utf8"

// Chunk metadata keys stored alongside vectors
const (
	MetadataKeySourceFile = "source_file"
	MetadataKeyPage       = "page"
)

// Retrieval source tags
const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
	SourceHybrid   = "hybrid"
)

// ChunkKeyLength is the number of leading runes identifying a chunk across sources
const ChunkKeyLength = 200

// Chunk is a unit of indexed text
type Chunk struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
	Page     *int   `json:"page,omitempty"`
}

// Key returns the deduplication key of the chunk
func (c Chunk) Key() string {
	if utf8.RuneCountInString(c.Text) <= ChunkKeyLength {
		return c.Text
	}
	return string([]rune(c.Text)[:ChunkKeyLength])
}

// ScoredChunk is a retrieval result. Score semantics depend on Source.
type ScoredChunk struct {
	Chunk
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// Citation identifies a document used for an answer
type Citation struct {
	DocumentTitle string `json:"document_title"`
	PageNumber    *int   `json:"page_number,omitempty"`
}

// IngestRequest posts chunks for indexing
type IngestRequest struct {
	Chunks    []Chunk `json:"chunks"`
	Directory string  `json:"directory,omitempty"`
}

// IngestResult reports an ingestion run
type IngestResult struct {
	Files          int `json:"files"`
	Chunks         int `json:"chunks"`
	KeywordIndexed int `json:"keyword_indexed"`
	VectorIndexed  int `json:"vector_indexed"`
	VectorFailed   int `json:"vector_failed"`
}
