// Package models defines core data structures for catalog items, recommendation queries, and results.
package models

// Item is a catalog entry loaded from the precomputed artifact.
// Index is the item's position in the catalog and in the similarity matrix.
type Item struct {
	Index      int    `json:"index"`
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ExternalID string `json:"external_id"`
}

// TitleMatch is a single hit from a title search.
type TitleMatch struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}
