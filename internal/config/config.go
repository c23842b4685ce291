// Package config loads bridge server configuration from YAML files and
// environment variables.
//
// Precedence, lowest to highest:
//  1. Hardcoded defaults
//  2. Project config (.crawlbridge.yaml in the working directory)
//  3. Environment variables (including those loaded from .env)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete bridge server configuration.
type Config struct {
	Server    Server    `yaml:"server" json:"server"`
	Crawl     Crawl     `yaml:"crawl" json:"crawl"`
	Search    Search    `yaml:"search" json:"search"`
	WebSearch WebSearch `yaml:"websearch" json:"websearch"`
	Store     Store     `yaml:"store" json:"store"`
	Graph     Graph     `yaml:"graph" json:"graph"`
	Cache     Cache     `yaml:"cache" json:"cache"`
}

// Server configures the transports.
type Server struct {
	// Transport selects how the MCP server speaks. Only "stdio" is
	// supported.
	Transport string `yaml:"transport" json:"transport"`
	// Host and Port bind the HTTP API.
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	// RateLimitPerMinute caps HTTP requests per client IP.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	// AllowedOrigins lists CORS origins for the HTTP API. Empty allows any.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// Crawl configures crawling behavior.
type Crawl struct {
	// CrawlerURL is the endpoint of the headless crawler service.
	CrawlerURL string `yaml:"crawler_url" json:"crawler_url"`
	// MaxDepth bounds recursive crawls of regular webpages.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// MaxConcurrent bounds parallel browser sessions during a crawl.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`
	// ChunkSize is the maximum characters per stored chunk.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// RAGWorkers bounds concurrent document processing pipelines.
	RAGWorkers int `yaml:"rag_workers" json:"rag_workers"`
	// RequestTimeout bounds a single page fetch.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// Search configures retrieval behavior and feature flags.
type Search struct {
	// UseHybrid enables keyword search fused with vector results.
	UseHybrid bool `yaml:"use_hybrid" json:"use_hybrid"`
	// UseReranking enables cross-encoder reranking of fused results.
	UseReranking bool `yaml:"use_reranking" json:"use_reranking"`
	// UseAgenticRAG enables code example extraction and search.
	UseAgenticRAG bool `yaml:"use_agentic_rag" json:"use_agentic_rag"`
	// DefaultMatchCount is used when a query does not specify one.
	DefaultMatchCount int `yaml:"default_match_count" json:"default_match_count"`
	// MaxMatchCount caps match_count after clamping.
	MaxMatchCount int `yaml:"max_match_count" json:"max_match_count"`
	// RerankerURL is the endpoint of the reranking service.
	RerankerURL string `yaml:"reranker_url" json:"reranker_url"`
	// RerankerModel names the cross-encoder model.
	RerankerModel string `yaml:"reranker_model" json:"reranker_model"`
	// EmbeddingURL is the endpoint of the embedding service.
	EmbeddingURL string `yaml:"embedding_url" json:"embedding_url"`
	// EmbeddingModel names the embedding model.
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	// EmbeddingDimensions is the vector width produced by the model.
	EmbeddingDimensions int `yaml:"embedding_dimensions" json:"embedding_dimensions"`
}

// WebSearch configures the SearXNG integration behind the
// search-and-scrape workflow. An empty URL disables it.
type WebSearch struct {
	// URL is the base URL of the SearXNG instance.
	URL string `yaml:"url" json:"url"`
	// UserAgent identifies the bridge to the instance.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// Engines optionally restricts which engines SearXNG queries.
	Engines string `yaml:"engines" json:"engines"`
	// Timeout bounds one search request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Store configures the document store.
type Store struct {
	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `yaml:"database_url" json:"database_url"`
	// MaxConns bounds the connection pool.
	MaxConns int `yaml:"max_conns" json:"max_conns"`
	// InsertBatchSize is rows per batched insert.
	InsertBatchSize int `yaml:"insert_batch_size" json:"insert_batch_size"`
}

// Graph configures the Neo4j knowledge graph.
type Graph struct {
	// Enabled gates all knowledge graph functionality.
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	URI      string `yaml:"uri" json:"uri"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
}

// Cache configures the in-process query cache.
type Cache struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Size    int           `yaml:"size" json:"size"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Server: Server{
			Transport:          "stdio",
			Host:               "0.0.0.0",
			Port:               8051,
			LogLevel:           "info",
			RateLimitPerMinute: 60,
		},
		Crawl: Crawl{
			CrawlerURL:     "http://localhost:11235",
			MaxDepth:       3,
			MaxConcurrent:  10,
			ChunkSize:      5000,
			RAGWorkers:     5,
			RequestTimeout: 30 * time.Second,
		},
		Search: Search{
			UseHybrid:           false,
			UseReranking:        false,
			UseAgenticRAG:       false,
			DefaultMatchCount:   5,
			MaxMatchCount:       50,
			RerankerURL:         "",
			RerankerModel:       "cross-encoder/ms-marco-MiniLM-L-6-v2",
			EmbeddingURL:        "",
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
		},
		WebSearch: WebSearch{
			Timeout: 30 * time.Second,
		},
		Store: Store{
			DatabaseURL:     "",
			MaxConns:        10,
			InsertBatchSize: 20,
		},
		Graph: Graph{
			Enabled: false,
			URI:     "bolt://localhost:7687",
			User:    "neo4j",
		},
		Cache: Cache{
			Enabled: true,
			Size:    1000,
			TTL:     5 * time.Minute,
		},
	}
}

// Load loads configuration from the specified directory.
// A .env file in the directory is loaded into the process environment
// first, so its values participate in the env override step.
func Load(dir string) (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .crawlbridge.yaml or .crawlbridge.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".crawlbridge.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".crawlbridge.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.RateLimitPerMinute != 0 {
		c.Server.RateLimitPerMinute = other.Server.RateLimitPerMinute
	}
	if len(other.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = other.Server.AllowedOrigins
	}

	if other.Crawl.CrawlerURL != "" {
		c.Crawl.CrawlerURL = other.Crawl.CrawlerURL
	}
	if other.Crawl.MaxDepth != 0 {
		c.Crawl.MaxDepth = other.Crawl.MaxDepth
	}
	if other.Crawl.MaxConcurrent != 0 {
		c.Crawl.MaxConcurrent = other.Crawl.MaxConcurrent
	}
	if other.Crawl.ChunkSize != 0 {
		c.Crawl.ChunkSize = other.Crawl.ChunkSize
	}
	if other.Crawl.RAGWorkers != 0 {
		c.Crawl.RAGWorkers = other.Crawl.RAGWorkers
	}
	if other.Crawl.RequestTimeout != 0 {
		c.Crawl.RequestTimeout = other.Crawl.RequestTimeout
	}

	// Booleans merge only when true: YAML false is indistinguishable
	// from unset, and env overrides can still force them off.
	if other.Search.UseHybrid {
		c.Search.UseHybrid = true
	}
	if other.Search.UseReranking {
		c.Search.UseReranking = true
	}
	if other.Search.UseAgenticRAG {
		c.Search.UseAgenticRAG = true
	}
	if other.Search.DefaultMatchCount != 0 {
		c.Search.DefaultMatchCount = other.Search.DefaultMatchCount
	}
	if other.Search.MaxMatchCount != 0 {
		c.Search.MaxMatchCount = other.Search.MaxMatchCount
	}
	if other.Search.RerankerURL != "" {
		c.Search.RerankerURL = other.Search.RerankerURL
	}
	if other.Search.RerankerModel != "" {
		c.Search.RerankerModel = other.Search.RerankerModel
	}
	if other.Search.EmbeddingURL != "" {
		c.Search.EmbeddingURL = other.Search.EmbeddingURL
	}
	if other.Search.EmbeddingModel != "" {
		c.Search.EmbeddingModel = other.Search.EmbeddingModel
	}
	if other.Search.EmbeddingDimensions != 0 {
		c.Search.EmbeddingDimensions = other.Search.EmbeddingDimensions
	}

	if other.WebSearch.URL != "" {
		c.WebSearch.URL = other.WebSearch.URL
	}
	if other.WebSearch.UserAgent != "" {
		c.WebSearch.UserAgent = other.WebSearch.UserAgent
	}
	if other.WebSearch.Engines != "" {
		c.WebSearch.Engines = other.WebSearch.Engines
	}
	if other.WebSearch.Timeout != 0 {
		c.WebSearch.Timeout = other.WebSearch.Timeout
	}

	if other.Store.DatabaseURL != "" {
		c.Store.DatabaseURL = other.Store.DatabaseURL
	}
	if other.Store.MaxConns != 0 {
		c.Store.MaxConns = other.Store.MaxConns
	}
	if other.Store.InsertBatchSize != 0 {
		c.Store.InsertBatchSize = other.Store.InsertBatchSize
	}

	if other.Graph.Enabled {
		c.Graph.Enabled = true
	}
	if other.Graph.URI != "" {
		c.Graph.URI = other.Graph.URI
	}
	if other.Graph.User != "" {
		c.Graph.User = other.Graph.User
	}
	if other.Graph.Password != "" {
		c.Graph.Password = other.Graph.Password
	}

	if other.Cache.Size != 0 {
		c.Cache.Size = other.Cache.Size
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}
}

// applyEnvOverrides applies environment variable overrides.
// Names follow the original deployment conventions so existing .env
// files keep working.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitAndTrim(v)
	}

	if v := os.Getenv("CRAWLER_URL"); v != "" {
		c.Crawl.CrawlerURL = v
	}
	if v := os.Getenv("MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxDepth = n
		}
	}
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxConcurrent = n
		}
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.ChunkSize = n
		}
	}
	if v := os.Getenv("MAX_RAG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.RAGWorkers = n
		}
	}

	if v := os.Getenv("USE_HYBRID_SEARCH"); v != "" {
		c.Search.UseHybrid = parseBool(v)
	}
	if v := os.Getenv("USE_RERANKING"); v != "" {
		c.Search.UseReranking = parseBool(v)
	}
	if v := os.Getenv("USE_AGENTIC_RAG"); v != "" {
		c.Search.UseAgenticRAG = parseBool(v)
	}
	if v := os.Getenv("RERANKER_URL"); v != "" {
		c.Search.RerankerURL = v
	}
	if v := os.Getenv("RERANKER_MODEL"); v != "" {
		c.Search.RerankerModel = v
	}
	if v := os.Getenv("EMBEDDING_URL"); v != "" {
		c.Search.EmbeddingURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Search.EmbeddingModel = v
	}

	if v := os.Getenv("SEARXNG_URL"); v != "" {
		c.WebSearch.URL = v
	}
	if v := os.Getenv("SEARXNG_USER_AGENT"); v != "" {
		c.WebSearch.UserAgent = v
	}
	if v := os.Getenv("SEARXNG_DEFAULT_ENGINES"); v != "" {
		c.WebSearch.Engines = v
	}
	if v := os.Getenv("SEARXNG_TIMEOUT"); v != "" {
		// The original deployments set this in whole seconds.
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebSearch.Timeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}

	if v := os.Getenv("USE_KNOWLEDGE_GRAPH"); v != "" {
		c.Graph.Enabled = parseBool(v)
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Graph.Password = v
	}

	if v := os.Getenv("QUERY_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("QUERY_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = d
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Only stdio is served; rejecting other transports here fails fast
	// instead of after the store and graph connections are up.
	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Crawl.MaxDepth < 1 {
		return fmt.Errorf("crawl.max_depth must be at least 1, got %d", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxConcurrent < 1 {
		return fmt.Errorf("crawl.max_concurrent must be at least 1, got %d", c.Crawl.MaxConcurrent)
	}
	if c.Crawl.ChunkSize < 1 {
		return fmt.Errorf("crawl.chunk_size must be at least 1, got %d", c.Crawl.ChunkSize)
	}
	if c.Crawl.RAGWorkers < 1 {
		return fmt.Errorf("crawl.rag_workers must be at least 1, got %d", c.Crawl.RAGWorkers)
	}

	if c.Search.DefaultMatchCount < 1 || c.Search.DefaultMatchCount > c.Search.MaxMatchCount {
		return fmt.Errorf("search.default_match_count must be between 1 and %d, got %d",
			c.Search.MaxMatchCount, c.Search.DefaultMatchCount)
	}

	if c.Graph.Enabled && c.Graph.URI == "" {
		return fmt.Errorf("graph.uri is required when the knowledge graph is enabled")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
