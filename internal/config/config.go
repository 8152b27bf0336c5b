package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds the relational store connection settings.
type DatabaseConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Name             string `yaml:"name"`
	ConnectAttempts  int    `yaml:"connect_attempts"`
	ConnectDelaySecs int    `yaml:"connect_delay_secs"`
	Debug            bool   `yaml:"debug"`
}

// ConnectDelay is the pause between connection attempts.
func (c *DatabaseConfig) ConnectDelay() time.Duration {
	return time.Duration(c.ConnectDelaySecs) * time.Second
}

// LLMConfig configures one hosted model endpoint, for generation or embedding.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Key         string  `yaml:"key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// RAGConfig configures chunking, retrieval and the vector index location.
type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	HistoryLimit int    `yaml:"history_limit"`
	VectorDir    string `yaml:"vector_dir"`
	Collection   string `yaml:"collection"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embedding"`
	LLM      LLMConfig      `yaml:"llm"`
	RAG      RAGConfig      `yaml:"rag"`
}

// LoadConfig reads the config file at path. A missing file is not an error:
// defaults plus environment overrides are returned instead.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "rag_user"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "rag_db"
	}
	if cfg.Database.ConnectAttempts == 0 {
		cfg.Database.ConnectAttempts = 5
	}
	if cfg.Database.ConnectDelaySecs == 0 {
		cfg.Database.ConnectDelaySecs = 5
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "googleai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == "ollama" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.HistoryLimit == 0 {
		cfg.RAG.HistoryLimit = 10
	}
	if cfg.RAG.VectorDir == "" {
		cfg.RAG.VectorDir = "./chromemdb"
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = "documents"
	}
}

// applyEnvOverrides lets the environment win over the config file for the
// settings that change per deployment.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.LLM.Key, "GEMINI_API_KEY")
	setString(&cfg.EmbedLLM.Key, "EMBEDDING_API_KEY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
