package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/artifact"
	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/keyword"
	"github.com/hyperjump/kinorec/internal/metrics"
	"github.com/hyperjump/kinorec/internal/poster"
	"github.com/hyperjump/kinorec/internal/recommend"
	"github.com/hyperjump/kinorec/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Service      *recommend.Service
	Storage      storage.Storage
	TitleIndex   *keyword.BleveIndex
	PosterClient *poster.Client
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.TitleIndex != nil {
		_ = c.TitleIndex.Close()
	}
}

// componentOptions selects what initializeComponents builds beyond the catalog.
type componentOptions struct {
	posters bool
	// persistentIndex opens storage.bleve_index_path; otherwise the title index is in memory.
	persistentIndex bool
}

// initializeComponents loads the catalog artifact and wires the recommendation service.
// A missing or malformed artifact is an error: there is nothing to serve without it.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	c, err := artifact.Load(ctx, cfg.Artifact.Path, cfg.Artifact.Format)
	if err != nil {
		metrics.RecordCatalogLoad(err, 0)
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.String("artifact", cfg.Artifact.Path),
		zap.Int("items", c.Size()),
		zap.String("fingerprint", c.Fingerprint()),
	)

	components := &Components{}
	indexPath := ""
	if opts.persistentIndex {
		indexPath = cfg.Storage.BleveIndexPath
	}
	titleIndex, err := keyword.NewBleveIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize title index: %w", err)
	}
	components.TitleIndex = titleIndex

	svcOpts := []recommend.ServiceOption{
		recommend.WithLogger(logger),
		recommend.WithTitleIndex(titleIndex, keyword.NewSpellChecker(titleIndex)),
	}
	if opts.posters {
		resolver, err := newPosterResolver(cfg, logger, components)
		if err != nil {
			components.Close()
			return nil, err
		}
		if resolver != nil {
			svcOpts = append(svcOpts, recommend.WithPosterResolver(resolver))
		}
	}

	components.Service = recommend.NewService(catalog.NewHolder(nil), &cfg.Recommend, svcOpts...)
	if err := components.Service.Reload(ctx, c); err != nil {
		components.Close()
		return nil, err
	}
	return components, nil
}

// newPosterResolver builds the poster pipeline: LRU cache, SQLite store, rate-limited client.
// It returns nil (posters disabled) when metadata lookup is off or no API key is configured.
func newPosterResolver(cfg *config.Config, logger *zap.Logger, components *Components) (*poster.Resolver, error) {
	if !cfg.Metadata.EnabledOrDefault() {
		logger.Info("poster lookup disabled by config")
		return nil, nil
	}
	if cfg.Metadata.ResolveAPIKey() == "" {
		logger.Warn("poster lookup disabled: no API key",
			zap.String("api_key_env", cfg.Metadata.APIKeyEnv))
		return nil, nil
	}

	client := poster.NewClient(&cfg.Metadata, poster.WithLogger(logger))
	components.PosterClient = client

	resolverOpts := []poster.ResolverOption{poster.WithResolverLogger(logger)}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize poster store: %w", err)
		}
		components.Storage = store
		resolverOpts = append(resolverOpts, poster.WithStore(store))
	}
	return poster.NewResolver(client, poster.NewCache(cfg.Metadata.CacheSize), cfg.Metadata.Concurrency, resolverOpts...), nil
}
