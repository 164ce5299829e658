package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted in storage.backend
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config represents hamlet configuration
type Config struct {
	// Token store settings
	Storage StorageConfig `yaml:"storage"`

	// Text tokenization settings
	Tokenizer TokenizerConfig `yaml:"tokenizer"`

	// Fuzzy fallback matching settings
	Degenerator DegeneratorConfig `yaml:"degenerator"`

	// Probability combination settings
	Classifier ClassifierConfig `yaml:"classifier"`
}

// StorageConfig selects and configures the token store backend
type StorageConfig struct {
	// Backend selection: "memory", "redis" or "sqlite"
	Backend string `yaml:"backend"`

	// Redis backend settings
	Redis RedisConfig `yaml:"redis"`

	// SQLite backend settings
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig contains Redis backend settings
type RedisConfig struct {
	URL         string `yaml:"url"`
	KeyPrefix   string `yaml:"key_prefix"`
	DatabaseNum int    `yaml:"database_num"`
}

// SQLiteConfig contains SQLite backend settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// TokenizerConfig contains tokenization parameters
type TokenizerConfig struct {
	// Token length bounds, in runes
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`

	// Keep pure-numeric tokens
	AllowNumbers bool `yaml:"allow_numbers"`

	// Extract URI-like substrings as whole tokens
	GetURIs bool `yaml:"get_uris"`

	// Extract HTML tags and bbcode spans as single tokens
	GetMarkup bool `yaml:"get_markup"`

	// Largest multi-word token size; 1 disables n-grams
	MaxNgram int `yaml:"max_ngram"`
}

// DegeneratorConfig contains fuzzy-variant generation settings
type DegeneratorConfig struct {
	// Generate variants for multi-word tokens too
	Multiword bool `yaml:"multiword"`
}

// ClassifierConfig contains probability combination parameters
type ClassifierConfig struct {
	// Robinson parameters: belief strength and unknown-token probability
	RobS float64 `yaml:"rob_s"`
	RobX float64 `yaml:"rob_x"`

	// Evidence selection
	UseRelevant int     `yaml:"use_relevant"`
	MinDev      float64 `yaml:"min_dev"`

	// Re-rank token importance by TF-IDF weight
	UseTFIDF bool `yaml:"use_tfidf"`

	// Verdict boundary: probability >= threshold is reported as spam
	SpamThreshold float64 `yaml:"spam_threshold"`
}

// DefaultConfig returns hamlet default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Redis: RedisConfig{
				URL:         "redis://localhost:6379",
				KeyPrefix:   "hamlet:tokens",
				DatabaseNum: 0,
			},
			SQLite: SQLiteConfig{
				Path: "hamlet.db",
			},
		},
		Tokenizer: TokenizerConfig{
			MinSize:      3,
			MaxSize:      30,
			AllowNumbers: false,
			GetURIs:      true,
			GetMarkup:    true,
			MaxNgram:     1,
		},
		Degenerator: DegeneratorConfig{
			Multiword: true,
		},
		Classifier: ClassifierConfig{
			RobS:          0.3,
			RobX:          0.5,
			UseRelevant:   15,
			MinDev:        0.2,
			UseTFIDF:      false,
			SpamThreshold: 0.8,
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// If no config file specified, return defaults
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unknown options are a fatal configuration error, never ignored
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Storage.Backend == BackendRedis && c.Storage.Redis.URL == "" {
		return fmt.Errorf("storage.redis.url cannot be empty")
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path cannot be empty")
	}

	if c.Tokenizer.MinSize < 1 {
		return fmt.Errorf("tokenizer min_size must be >= 1")
	}
	if c.Tokenizer.MaxSize < c.Tokenizer.MinSize {
		return fmt.Errorf("tokenizer max_size must be >= min_size")
	}
	if c.Tokenizer.MaxNgram < 1 {
		return fmt.Errorf("tokenizer max_ngram must be >= 1")
	}

	if c.Classifier.RobS < 0 {
		return fmt.Errorf("classifier rob_s must be >= 0")
	}
	if c.Classifier.RobX < 0 || c.Classifier.RobX > 1 {
		return fmt.Errorf("classifier rob_x must be between 0 and 1")
	}
	if c.Classifier.UseRelevant < 1 {
		return fmt.Errorf("classifier use_relevant must be >= 1")
	}
	if c.Classifier.MinDev < 0 || c.Classifier.MinDev >= 0.5 {
		return fmt.Errorf("classifier min_dev must be in [0, 0.5)")
	}
	if c.Classifier.SpamThreshold <= 0 || c.Classifier.SpamThreshold >= 1 {
		return fmt.Errorf("classifier spam_threshold must be between 0 and 1")
	}

	return nil
}
