// Package keyword provides full-text search and spelling suggestions over catalog titles.
package keyword

import (
	"context"

	"github.com/hyperjump/kinorec/internal/catalog"
)

// SearchOptions optional parameters for title search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// TitleIndex defines title search operations.
type TitleIndex interface {
	// IndexCatalog replaces the indexed titles with the titles of c.
	IndexCatalog(ctx context.Context, c *catalog.Catalog) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*TitleHit, error)
	DocCount() (uint64, error)
	Close() error
}

// TitleHit is a single title search hit. Index is the item's catalog position.
type TitleHit struct {
	Index int
	Score float64
}

// TermDictionary provides access to the term dictionary for spell checking.
type TermDictionary interface {
	// GetAllTerms returns all unique terms in the index.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
}
