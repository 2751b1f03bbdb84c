package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultTemperature = 0.1

type Config struct {
	Server struct {
		Port        int    `yaml:"port"`
		PublicURL   string `yaml:"public_url"`
		MaxUploadMB int    `yaml:"max_upload_mb"`
	} `yaml:"server"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Extractor struct {
		URL       string        `yaml:"url"`
		APIKey    string        `yaml:"api_key"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"`
	} `yaml:"extractor"`

	LLM struct {
		BaseURL        string   `yaml:"base_url"`
		Model          string   `yaml:"model"`
		EmbeddingModel string   `yaml:"embedding_model"`
		MaxTokens      int      `yaml:"max_tokens"`
		Temperature    *float64 `yaml:"temperature"` // nil until set; 0 is a valid setting
	} `yaml:"llm"`

	Processor struct {
		FileTimeout  time.Duration `yaml:"file_timeout"`
		ChunkSize    int           `yaml:"chunk_size"`
		ChunkOverlap int           `yaml:"chunk_overlap"`
		IndexChunks  bool          `yaml:"index_chunks"`
	} `yaml:"processor"`

	Share struct {
		Secret string        `yaml:"secret"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"share"`

	State struct {
		Path string `yaml:"path"`
	} `yaml:"state"`

	API struct {
		URL    string `yaml:"url"`
		UserID string `yaml:"user_id"`
	} `yaml:"api"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"quotes.yaml",
			"quotes.yml",
			filepath.Join(os.Getenv("HOME"), ".config/quotes/config.yaml"),
			"/etc/quotes/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 25
	}
	if config.Server.PublicURL == "" {
		config.Server.PublicURL = fmt.Sprintf("http://localhost:%d", config.Server.Port)
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "quote_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Extractor.URL == "" {
		config.Extractor.URL = "http://localhost:8000"
	}
	if config.Extractor.Timeout == 0 {
		config.Extractor.Timeout = 8 * time.Minute
	}
	if config.Extractor.RateLimit == 0 {
		config.Extractor.RateLimit = 1.0
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 4096
	}
	if config.LLM.Temperature == nil {
		temperature := DefaultTemperature
		config.LLM.Temperature = &temperature
	}

	if config.Processor.FileTimeout == 0 {
		config.Processor.FileTimeout = 8 * time.Minute
	}
	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Share.TTL == 0 {
		config.Share.TTL = 30 * 24 * time.Hour
	}

	if config.State.Path == "" {
		config.State.Path = filepath.Join(os.Getenv("HOME"), ".config/quotes/state.json")
	}

	if config.API.URL == "" {
		config.API.URL = fmt.Sprintf("http://localhost:%d", config.Server.Port)
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if extractorURL := os.Getenv("EXTRACTOR_URL"); extractorURL != "" {
		config.Extractor.URL = extractorURL
	}
	if apiKey := os.Getenv("EXTRACTOR_API_KEY"); apiKey != "" {
		config.Extractor.APIKey = apiKey
	}
	if secret := os.Getenv("SHARE_SECRET"); secret != "" {
		config.Share.Secret = secret
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if apiURL := os.Getenv("QUOTES_API_URL"); apiURL != "" {
		config.API.URL = apiURL
	}
	if userID := os.Getenv("QUOTES_USER_ID"); userID != "" {
		config.API.UserID = userID
	}
}
