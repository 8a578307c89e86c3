// Package config loads the YAML configuration for the service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Storage     StorageConfig     `yaml:"storage"`
	LLM         LLMConfig         `yaml:"llm"`
	Models      ModelsConfig      `yaml:"models"`
	RAG         RAGConfig         `yaml:"rag"`
	Prompts     PromptsConfig     `yaml:"prompts"`
	Lexicons    LexiconsConfig    `yaml:"lexicons"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Tracking    TrackingConfig    `yaml:"tracking"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// VectorStoreConfig configures the vector database connection.
type VectorStoreConfig struct {
	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string `yaml:"dsn"`

	// Collection is the shared logical collection all records live in.
	// Per-tenant scoping happens through the payload "index" field.
	Collection string `yaml:"collection"`

	// Dimension is the embedding dimension; 0 means use the embedder's.
	Dimension int `yaml:"dimension"`

	RunMigrations bool `yaml:"run_migrations"`
}

// StorageConfig configures the object storage used to archive raw uploads.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LLMConfig configures the completion/embedding API client.
// Provider "openai" talks to the public API; "custom" points BaseURL at a
// self-hosted OpenAI-compatible deployment. The choice is made once at
// startup and injected into every component that needs a client.
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ModelsConfig names the models used by each stage of the pipeline.
type ModelsConfig struct {
	Embedding      string `yaml:"embedding"`
	Generation     string `yaml:"generation"`
	Judge          string `yaml:"judge"`
	Correction     string `yaml:"correction"`
	EvalGeneration string `yaml:"eval_generation"`
}

// RAGConfig holds retrieval and chunking parameters.
type RAGConfig struct {
	// Precision is the number of chunks retrieved per query.
	Precision int `yaml:"precision"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// BatchSize bounds the number of chunks per embedding/upsert request.
	BatchSize int `yaml:"batch_size"`

	// QualityThreshold is the minimum lexicon match ratio below which a
	// chunk is sent through the correction pass.
	QualityThreshold float64 `yaml:"quality_threshold"`
}

type PromptsConfig struct {
	Path string `yaml:"path"`
}

// LexiconsConfig points at the word lists backing the text quality gate.
type LexiconsConfig struct {
	Primary          string   `yaml:"primary"`
	Secondary        string   `yaml:"secondary"`
	CustomVocabulary []string `yaml:"custom_vocabulary"`
}

// ClassifierConfig points at the serialized response classifier artifact.
type ClassifierConfig struct {
	Path string `yaml:"path"`
}

// TrackingConfig configures the experiment tracking server.
type TrackingConfig struct {
	URI        string `yaml:"uri"`
	Experiment string `yaml:"experiment"`
}

// Load reads and parses the configuration file.
// Environment variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Models.Embedding == "" {
		cfg.Models.Embedding = "text-embedding-3-small"
	}
	if cfg.Models.Generation == "" {
		cfg.Models.Generation = "gpt-3.5-turbo"
	}
	if cfg.Models.Judge == "" {
		cfg.Models.Judge = cfg.Models.Generation
	}
	if cfg.Models.Correction == "" {
		cfg.Models.Correction = cfg.Models.Generation
	}
	if cfg.Models.EvalGeneration == "" {
		cfg.Models.EvalGeneration = cfg.Models.Generation
	}
	if cfg.RAG.Precision == 0 {
		cfg.RAG.Precision = 5
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1024
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 128
	}
	if cfg.RAG.BatchSize == 0 {
		cfg.RAG.BatchSize = 100
	}
	if cfg.RAG.QualityThreshold == 0 {
		cfg.RAG.QualityThreshold = 0.8
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "documents"
	}
	if cfg.Tracking.Experiment == "" {
		cfg.Tracking.Experiment = "rag_eval"
	}
}
