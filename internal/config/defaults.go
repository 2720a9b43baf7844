package config

import "time"

// Artifact formats.
const (
	FormatJSON   = "json"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Artifact.Path == "" {
		cfg.Artifact.Path = "/usr/local/var/kinorec/data/catalog.json"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kinorec/data/db/posters.db"
	}
	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = 5
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = 50
	}
	if cfg.Recommend.SuggestionsLimit == 0 {
		cfg.Recommend.SuggestionsLimit = 5
	}
	if cfg.Metadata.BaseURL == "" {
		cfg.Metadata.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.Metadata.ImageBaseURL == "" {
		cfg.Metadata.ImageBaseURL = "http://image.tmdb.org/t/p/w500/"
	}
	if cfg.Metadata.APIKeyEnv == "" {
		cfg.Metadata.APIKeyEnv = "TMDB_API_KEY"
	}
	if cfg.Metadata.Language == "" {
		cfg.Metadata.Language = "en-US"
	}
	if cfg.Metadata.Timeout == 0 {
		cfg.Metadata.Timeout = 5 * time.Second
	}
	if cfg.Metadata.RequestsPerSecond == 0 {
		cfg.Metadata.RequestsPerSecond = 20
	}
	if cfg.Metadata.Burst == 0 {
		cfg.Metadata.Burst = 10
	}
	if cfg.Metadata.CacheSize == 0 {
		cfg.Metadata.CacheSize = 10000
	}
	if cfg.Metadata.Concurrency == 0 {
		cfg.Metadata.Concurrency = 5
	}
}
