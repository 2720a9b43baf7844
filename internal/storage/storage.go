// Package storage defines persistence for catalog artifacts and resolved poster URLs.
package storage

import (
	"context"

	"github.com/hyperjump/kinorec/internal/models"
)

// Storage defines catalog and poster persistence operations.
type Storage interface {
	// Catalog artifact operations
	SaveCatalog(ctx context.Context, items []models.Item, rows [][]float64) error
	LoadCatalog(ctx context.Context) ([]models.Item, [][]float64, error)
	CountItems(ctx context.Context) (int64, error)

	// Poster cache operations
	GetPoster(ctx context.Context, externalID string) (string, bool, error)
	PutPoster(ctx context.Context, externalID, posterURL string) error
	CountPosters(ctx context.Context) (int64, error)

	Close() error
}
