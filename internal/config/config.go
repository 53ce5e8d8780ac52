package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for AskDesk
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RAG       RAGConfig       `mapstructure:"rag"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	Guardrail GuardrailConfig `mapstructure:"guardrail"`
	HITL      HITLConfig      `mapstructure:"hitl"`
	Resolved  ResolvedConfig  `mapstructure:"resolved"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	Documents string `mapstructure:"documents"`
}

// RAGConfig holds configuration of the rago vector store
type RAGConfig struct {
	DBPath       string `mapstructure:"db_path"`
	IndexType    string `mapstructure:"index_type"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// LLMConfig holds the primary LLM provider configuration
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	LLMModel       string        `mapstructure:"llm_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Attempts       uint          `mapstructure:"attempts"`
	Preference     string        `mapstructure:"preference"`
}

// FallbackConfig holds the secondary OpenAI-compatible provider
type FallbackConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// RetrievalConfig holds hybrid retrieval configuration
type RetrievalConfig struct {
	SemanticBackend     string        `mapstructure:"semantic_backend"`
	MaxDocs             int           `mapstructure:"max_docs"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	RRFK                int           `mapstructure:"rrf_k"`
	SemanticWeight      float64       `mapstructure:"semantic_weight"`
	KeywordWeight       float64       `mapstructure:"keyword_weight"`
	KeywordScoreDivisor float64       `mapstructure:"keyword_score_divisor"`
	SemanticTimeout     time.Duration `mapstructure:"semantic_timeout"`
	KeywordTimeout      time.Duration `mapstructure:"keyword_timeout"`
}

// MilvusConfig holds the milvus vector backend configuration
type MilvusConfig struct {
	Address    string `mapstructure:"address"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

// GuardrailConfig holds input and output guardrail rules
type GuardrailConfig struct {
	MinQueryLength    int           `mapstructure:"min_query_length"`
	MaxQueryLength    int           `mapstructure:"max_query_length"`
	BlockedTerms      []string      `mapstructure:"blocked_terms"`
	DomainKeywords    []string      `mapstructure:"domain_keywords"`
	DomainDescription string        `mapstructure:"domain_description"`
	ClassifierTimeout time.Duration `mapstructure:"classifier_timeout"`
	RefusalSentinel   string        `mapstructure:"refusal_sentinel"`
	MinAnswerLength   int           `mapstructure:"min_answer_length"`
	SafetyTerms       []string      `mapstructure:"safety_terms"`
	RequireSources    bool          `mapstructure:"require_sources"`
}

// HITLConfig holds escalation and conversation window settings
type HITLConfig struct {
	DedupeWindow         int `mapstructure:"dedupe_window"`
	ResolveWindow        int `mapstructure:"resolve_window"`
	ResolvedTicketWindow int `mapstructure:"resolved_ticket_window"`
	HistoryWindow        int `mapstructure:"history_window"`
	FollowUpMaxLength    int `mapstructure:"follow_up_max_length"`
}

// ResolvedConfig holds resolved-answer matching thresholds
type ResolvedConfig struct {
	FuzzyRatio   float64 `mapstructure:"fuzzy_ratio"`
	KeywordFloor float64 `mapstructure:"keyword_floor"`
}

// CacheConfig holds the optional redis hot cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// IngestConfig holds ingestion settings
type IngestConfig struct {
	Workers int `mapstructure:"workers"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file, environment and flags. Flags named
// after config keys, such as "server.port", take precedence when set.
func Load(configPath string, flags ...*pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	for _, fs := range flags {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// ASKDESK_LLM_API_KEY overrides llm.api_key
	v.SetEnvPrefix("ASKDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/askdesk.db")
	v.SetDefault("storage.documents", "./data/documents")

	v.SetDefault("rag.db_path", "./data/rag.db")
	v.SetDefault("rag.index_type", "hnsw")
	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.llm_model", "qwen2.5:7b")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.attempts", 2)
	v.SetDefault("llm.preference", "auto")

	v.SetDefault("fallback.enabled", false)
	v.SetDefault("fallback.name", "groq")
	v.SetDefault("fallback.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("fallback.api_key", "")
	v.SetDefault("fallback.model", "llama-3.3-70b-versatile")

	v.SetDefault("retrieval.semantic_backend", "rago")
	v.SetDefault("retrieval.max_docs", 5)
	v.SetDefault("retrieval.confidence_threshold", 0.60)
	v.SetDefault("retrieval.rrf_k", 60)
	v.SetDefault("retrieval.semantic_weight", 0.6)
	v.SetDefault("retrieval.keyword_weight", 0.4)
	v.SetDefault("retrieval.keyword_score_divisor", 10.0)
	v.SetDefault("retrieval.semantic_timeout", 15*time.Second)
	v.SetDefault("retrieval.keyword_timeout", 5*time.Second)

	v.SetDefault("milvus.address", "localhost:19530")
	v.SetDefault("milvus.database", "default")
	v.SetDefault("milvus.collection", "askdesk_chunks")
	v.SetDefault("milvus.dimension", 768)

	v.SetDefault("guardrail.min_query_length", 3)
	v.SetDefault("guardrail.max_query_length", 1000)
	v.SetDefault("guardrail.blocked_terms", DefaultBlockedTerms)
	v.SetDefault("guardrail.domain_keywords", DefaultDomainKeywords)
	v.SetDefault("guardrail.domain_description", "Jordan's economic vision, national development plans, economic sectors, public policy and investment")
	v.SetDefault("guardrail.classifier_timeout", 10*time.Second)
	v.SetDefault("guardrail.refusal_sentinel", "HITL_ESCALATION_REQUIRED")
	v.SetDefault("guardrail.min_answer_length", 30)
	v.SetDefault("guardrail.safety_terms", DefaultSafetyTerms)
	v.SetDefault("guardrail.require_sources", false)

	v.SetDefault("hitl.dedupe_window", 200)
	v.SetDefault("hitl.resolve_window", 500)
	v.SetDefault("hitl.resolved_ticket_window", 200)
	v.SetDefault("hitl.history_window", 10)
	v.SetDefault("hitl.follow_up_max_length", 120)

	v.SetDefault("resolved.fuzzy_ratio", 0.92)
	v.SetDefault("resolved.keyword_floor", 5.0)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.key_prefix", "askdesk:resolved:")

	v.SetDefault("ingest.workers", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
