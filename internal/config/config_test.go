package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 8051, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Crawl.MaxDepth)
	assert.Equal(t, 10, cfg.Crawl.MaxConcurrent)
	assert.Equal(t, 5000, cfg.Crawl.ChunkSize)
	assert.Equal(t, 5, cfg.Crawl.RAGWorkers)
	assert.Equal(t, 5, cfg.Search.DefaultMatchCount)
	assert.Equal(t, 50, cfg.Search.MaxMatchCount)
	assert.False(t, cfg.Search.UseHybrid)
	assert.False(t, cfg.Search.UseReranking)
	assert.False(t, cfg.Graph.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Server.Port, cfg.Server.Port)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
  log_level: debug
crawl:
  max_depth: 5
search:
  use_hybrid: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".crawlbridge.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 5, cfg.Crawl.MaxDepth)
	assert.True(t, cfg.Search.UseHybrid)
	// Untouched fields keep defaults
	assert.Equal(t, 10, cfg.Crawl.MaxConcurrent)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 9000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".crawlbridge.yaml"), []byte(yaml), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("USE_RERANKING", "true")
	t.Setenv("USE_KNOWLEDGE_GRAPH", "true")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("SEARXNG_URL", "http://searx:8888")
	t.Setenv("SEARXNG_TIMEOUT", "10")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Search.UseReranking)
	assert.True(t, cfg.Graph.Enabled)
	assert.Equal(t, "bolt://graph:7687", cfg.Graph.URI)
	assert.Equal(t, "secret", cfg.Graph.Password)
	assert.Equal(t, "http://searx:8888", cfg.WebSearch.URL)
	assert.Equal(t, 10*time.Second, cfg.WebSearch.Timeout)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := "MAX_RAG_WORKERS=8\nUSE_HYBRID_SEARCH=true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))

	// godotenv does not override existing vars, so clear them first
	t.Setenv("MAX_RAG_WORKERS", "")
	os.Unsetenv("MAX_RAG_WORKERS")
	t.Setenv("USE_HYBRID_SEARCH", "")
	os.Unsetenv("USE_HYBRID_SEARCH")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Crawl.RAGWorkers)
	assert.True(t, cfg.Search.UseHybrid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad transport", func(c *Config) { c.Server.Transport = "http" }},
		{"unimplemented sse transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero depth", func(c *Config) { c.Crawl.MaxDepth = 0 }},
		{"zero workers", func(c *Config) { c.Crawl.RAGWorkers = 0 }},
		{"match count too high", func(c *Config) { c.Search.DefaultMatchCount = 100 }},
		{"graph without uri", func(c *Config) { c.Graph.Enabled = true; c.Graph.URI = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true"))
	assert.True(t, parseBool("TRUE"))
	assert.True(t, parseBool("1"))
	assert.True(t, parseBool(" yes "))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool("0"))
	assert.False(t, parseBool(""))
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim("http://a.test, http://b.test ,")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, got)
}
