// Package artifact loads the precomputed catalog (item table plus similarity matrix) from disk.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/models"
)

// DetectFormat returns the artifact format for path from its extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return config.FormatJSON, nil
	case ".xlsx":
		return config.FormatXLSX, nil
	case ".db", ".sqlite", ".sqlite3":
		return config.FormatSQLite, nil
	default:
		return "", fmt.Errorf("cannot detect artifact format from %q (use json, xlsx, or sqlite)", path)
	}
}

// Read decodes the artifact at path into items and similarity rows without validating shape.
// An empty format is detected from the extension.
func Read(ctx context.Context, path, format string) ([]models.Item, [][]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, nil, err
		}
		format = f
	}
	switch format {
	case config.FormatJSON:
		return readJSON(path)
	case config.FormatXLSX:
		return readXLSX(path)
	case config.FormatSQLite:
		return readSQLite(ctx, path)
	default:
		return nil, nil, fmt.Errorf("unknown artifact format %q", format)
	}
}

// Load reads the artifact at path and returns a validated catalog. Any missing file, decode
// failure, or non-square matrix is an error: a malformed artifact never yields a catalog.
func Load(ctx context.Context, path, format string) (*catalog.Catalog, error) {
	items, rows, err := Read(ctx, path, format)
	if err != nil {
		return nil, err
	}
	c := catalog.New(items, rows)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	return c, nil
}
