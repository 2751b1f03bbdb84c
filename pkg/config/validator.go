package config

import (
	"net/url"
	"time"

	"github.com/xhad/quotes/internal/validation"
)

func (c *Config) Validate() validation.Errors {
	var errors validation.Errors

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors.Add("server.port", "port must be between 1 and 65535")
	}
	if c.Server.MaxUploadMB < 1 {
		errors.Add("server.max_upload_mb", "max_upload_mb must be positive")
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors.Add("database.url", "invalid database URL")
		}
	}
	if c.Database.VectorDim < 1 {
		errors.Add("database.vector_dim", "vector_dim must be positive")
	}
	if c.Database.BatchSize < 1 {
		errors.Add("database.batch_size", "batch_size must be positive")
	}

	// Validate Extractor config
	if !isHTTPURL(c.Extractor.URL) {
		errors.Add("extractor.url", "extractor URL must be an absolute http(s) URL")
	}
	if c.Extractor.RateLimit <= 0 {
		errors.Add("extractor.rate_limit", "rate_limit must be positive")
	}

	// Validate LLM config
	if !isHTTPURL(c.LLM.BaseURL) {
		errors.Add("llm.base_url", "Ollama base URL is required")
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 32768 {
		errors.Add("llm.max_tokens", "max_tokens must be between 1 and 32768")
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 1) {
		errors.Add("llm.temperature", "temperature must be between 0 and 1")
	}

	// Validate Processor config
	if c.Processor.FileTimeout < time.Second {
		errors.Add("processor.file_timeout", "file_timeout must be at least 1s")
	}
	if c.Processor.ChunkSize < 1 {
		errors.Add("processor.chunk_size", "chunk_size must be positive")
	}
	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors.Add("processor.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size")
	}

	if c.Share.TTL < time.Minute {
		errors.Add("share.ttl", "ttl must be at least 1m")
	}

	return errors
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
