package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  port: 9090
  max_upload_mb: 10

llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  vector_dim: 768
  batch_size: 50

extractor:
  url: "http://extractor:8000"
  timeout: 2m
  rate_limit: 0.5

processor:
  file_timeout: 8m
  chunk_size: 500
  chunk_overlap: 100

share:
  secret: "s3cret"
  ttl: 72h
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 10, config.Server.MaxUploadMB)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	require.NotNil(t, config.LLM.Temperature)
	assert.Equal(t, 0.5, *config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "http://extractor:8000", config.Extractor.URL)
	assert.Equal(t, 2*time.Minute, config.Extractor.Timeout)
	assert.Equal(t, 8*time.Minute, config.Processor.FileTimeout)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 72*time.Hour, config.Share.TTL)

	// defaults fill the rest
	assert.Equal(t, "quote_chunks", config.Database.TableName)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, "http://localhost:9090", config.Server.PublicURL)
}

func TestDefaultConfigIsValid(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Empty(t, config.Validate())
	assert.Equal(t, 8*time.Minute, config.Processor.FileTimeout)
	assert.Equal(t, 8*time.Minute, config.Extractor.Timeout)
}

func TestConfigValidation(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	config.LLM.BaseURL = "invalid-url"
	config.LLM.MaxTokens = 50000
	tooHot := 1.5
	config.LLM.Temperature = &tooHot
	config.Database.URL = "::not a url"
	config.Database.VectorDim = -1

	errors := config.Validate()
	require.Len(t, errors, 5)

	expected := []string{
		"database.url: invalid database URL",
		"database.vector_dim: vector_dim must be positive",
		"llm.base_url: Ollama base URL is required",
		"llm.max_tokens: max_tokens must be between 1 and 32768",
		"llm.temperature: temperature must be between 0 and 1",
	}
	for i, msg := range expected {
		assert.Contains(t, errors[i].Error(), msg)
	}
}

func TestZeroTemperatureIsKept(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  temperature: 0\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config.LLM.Temperature)
	assert.Equal(t, 0.0, *config.LLM.Temperature)
	assert.Empty(t, config.Validate())

	defaults, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, *defaults.LLM.Temperature)
}

func TestChunkOverlapValidation(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	config.Processor.ChunkOverlap = config.Processor.ChunkSize

	errors := config.Validate()
	assert.True(t, errors.Has("processor.chunk_overlap"))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("EXTRACTOR_URL", "http://env-extractor:8000")
	t.Setenv("SHARE_SECRET", "from-env")
	t.Setenv("PORT", "3000")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "http://env-extractor:8000", config.Extractor.URL)
	assert.Equal(t, "from-env", config.Share.Secret)
	assert.Equal(t, 3000, config.Server.Port)
}
