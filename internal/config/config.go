// Package config provides configuration loading and structs for the kinorec server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Storage   StorageConfig   `yaml:"storage"`
	Recommend RecommendConfig `yaml:"recommend"`
	Metadata  MetadataConfig  `yaml:"metadata"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArtifactConfig locates the precomputed catalog and similarity matrix.
type ArtifactConfig struct {
	Path string `yaml:"path"`
	// Format is one of json, xlsx, sqlite. Empty means detect from the file extension.
	Format string `yaml:"format"`
	// Watch reloads the catalog when the artifact file changes.
	Watch *bool `yaml:"watch"`
}

// WatchOrDefault returns whether to watch the artifact; defaults to true when unset.
func (a *ArtifactConfig) WatchOrDefault() bool {
	if a.Watch != nil {
		return *a.Watch
	}
	return true
}

// StorageConfig holds paths for the poster cache database and the title index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"` // empty keeps the title index in memory
}

// RecommendConfig holds recommendation limits.
type RecommendConfig struct {
	DefaultK         int `yaml:"default_k"`
	MaxK             int `yaml:"max_k"`
	SuggestionsLimit int `yaml:"suggestions_limit"`
}

// MetadataConfig holds settings for the movie-metadata (poster) service.
type MetadataConfig struct {
	Enabled           *bool         `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	ImageBaseURL      string        `yaml:"image_base_url"`
	APIKey            string        `yaml:"api_key"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Language          string        `yaml:"language"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CacheSize         int           `yaml:"cache_size"`
	Concurrency       int           `yaml:"concurrency"`
}

// EnabledOrDefault returns whether posters are fetched; defaults to true when unset.
func (m *MetadataConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// ResolveAPIKey returns the API key from the environment variable named by APIKeyEnv,
// falling back to APIKey from the file.
func (m *MetadataConfig) ResolveAPIKey() string {
	if m.APIKeyEnv != "" {
		if v := os.Getenv(m.APIKeyEnv); v != "" {
			return v
		}
	}
	return m.APIKey
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Artifact.Path = expandPath(cfg.Artifact.Path, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Storage.BleveIndexPath != "" {
		cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Recommend.DefaultK <= 0 {
		return fmt.Errorf("recommend.default_k must be positive, got %d", c.Recommend.DefaultK)
	}
	if c.Recommend.MaxK <= 0 {
		return fmt.Errorf("recommend.max_k must be positive, got %d", c.Recommend.MaxK)
	}
	if c.Recommend.DefaultK > c.Recommend.MaxK {
		return fmt.Errorf("recommend.default_k (%d) exceeds max_k (%d)", c.Recommend.DefaultK, c.Recommend.MaxK)
	}
	switch c.Artifact.Format {
	case "", FormatJSON, FormatXLSX, FormatSQLite:
	default:
		return fmt.Errorf("unknown artifact format %q (supported: json, xlsx, sqlite)", c.Artifact.Format)
	}
	if c.Metadata.Concurrency < 0 {
		return fmt.Errorf("metadata.concurrency must not be negative")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
