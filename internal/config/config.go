// Package config loads the application configuration from a YAML file,
// filling in defaults for anything the file leaves out.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mlewan/docquery/internal/answer"
	"github.com/mlewan/docquery/internal/chunker"
	"github.com/mlewan/docquery/internal/completion"
	"github.com/mlewan/docquery/internal/embedding"
	"github.com/mlewan/docquery/internal/insights"
)

// ChunkerConfig configures how page text is split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// QdrantConfig contains connection details for a Qdrant index backend.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IndexConfig selects and configures the index backend.
type IndexConfig struct {
	// Backend is "file" or "qdrant".
	Backend string       `yaml:"backend"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// CompletionConfig configures the chat completion model.
type CompletionConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// RouterConfig overrides the table-question vocabulary.
type RouterConfig struct {
	Keywords []string `yaml:"keywords"`
}

// AnswerConfig configures answer synthesis.
type AnswerConfig struct {
	TableBudget int `yaml:"table_budget"`
}

// InsightsConfig configures insight generation.
type InsightsConfig struct {
	SummaryBudget int `yaml:"summary_budget"`
	MaxQuestions  int `yaml:"max_questions"`
}

// Config is the root application configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Router     RouterConfig     `yaml:"router"`
	Answer     AnswerConfig     `yaml:"answer"`
	Insights   InsightsConfig   `yaml:"insights"`
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = chunker.DefaultChunkSize
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = chunker.DefaultOverlap
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "file"
	}
	if cfg.Index.Qdrant.Host == "" {
		cfg.Index.Qdrant.Host = "localhost"
	}
	if cfg.Index.Qdrant.Port == 0 {
		cfg.Index.Qdrant.Port = 6334
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = embedding.DefaultModel
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = embedding.DefaultBatchSize
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = completion.DefaultModel
	}
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = answer.DefaultTemperature
	}
	if cfg.Answer.TableBudget == 0 {
		cfg.Answer.TableBudget = answer.DefaultTableBudget
	}
	if cfg.Insights.SummaryBudget == 0 {
		cfg.Insights.SummaryBudget = insights.DefaultSummaryBudget
	}
	if cfg.Insights.MaxQuestions == 0 {
		cfg.Insights.MaxQuestions = insights.DefaultMaxQuestions
	}
}

func validate(cfg *Config) error {
	switch cfg.Index.Backend {
	case "file", "qdrant":
	default:
		return fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	if cfg.Chunker.Overlap >= cfg.Chunker.Size {
		return fmt.Errorf("chunker overlap %d must be smaller than size %d",
			cfg.Chunker.Overlap, cfg.Chunker.Size)
	}
	return nil
}
