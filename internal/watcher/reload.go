package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/artifact"
	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/metrics"
)

// Publisher makes a freshly loaded catalog current.
type Publisher interface {
	Reload(ctx context.Context, c *catalog.Catalog) error
}

// CatalogReloader returns a ReloadFunc that loads the artifact at path and hands it to pub.
// A load failure is recorded and returned without calling pub, so the previous catalog stays.
func CatalogReloader(path, format string, pub Publisher, logger *zap.Logger) ReloadFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		c, err := artifact.Load(ctx, path, format)
		if err != nil {
			metrics.RecordCatalogLoad(err, 0)
			return err
		}
		if err := pub.Reload(ctx, c); err != nil {
			return err
		}
		logger.Info("catalog reloaded",
			zap.String("artifact", path),
			zap.Int("items", c.Size()),
			zap.String("fingerprint", c.Fingerprint()),
		)
		return nil
	}
}
