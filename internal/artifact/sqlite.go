package artifact

import (
	"context"
	"fmt"

	"github.com/hyperjump/kinorec/internal/models"
	"github.com/hyperjump/kinorec/internal/storage"
)

func readSQLite(ctx context.Context, path string) ([]models.Item, [][]float64, error) {
	store, err := storage.OpenSQLiteReadOnly(path)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	items, rows, err := store.LoadCatalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog from %s: %w", path, err)
	}
	return items, rows, nil
}
