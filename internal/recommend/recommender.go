// Package recommend ranks catalog items by precomputed similarity to a query item.
package recommend

import (
	"math"
	"sort"

	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/models"
)

// Scored is one (position, score) pair from a similarity row.
type Scored struct {
	Index int
	Score float64
}

// Recommender answers similarity queries over one catalog snapshot.
// It holds no mutable state; one Recommender may serve concurrent callers.
type Recommender struct {
	catalog *catalog.Catalog
}

// New returns a recommender over c.
func New(c *catalog.Catalog) *Recommender {
	return &Recommender{catalog: c}
}

// Catalog returns the snapshot this recommender ranks over.
func (r *Recommender) Catalog() *catalog.Catalog {
	return r.catalog
}

// Recommend returns up to k items most similar to the item titled title, best first.
// An unknown title yields catalog.ErrNotFound; a row of the wrong length yields
// catalog.ErrDataIntegrity. A non-positive k yields an empty result.
func (r *Recommender) Recommend(title string, k int) ([]models.Recommendation, error) {
	idx, err := r.catalog.FindIndexByTitle(title)
	if err != nil {
		return nil, err
	}
	row, err := r.catalog.Row(idx)
	if err != nil {
		return nil, err
	}
	ranked := RankRow(row, idx, k)
	recs := make([]models.Recommendation, 0, len(ranked))
	for i, s := range ranked {
		item, err := r.catalog.GetItem(s.Index)
		if err != nil {
			return nil, err
		}
		recs = append(recs, models.Recommendation{Item: item, Score: s.Score, Rank: i + 1})
	}
	return recs, nil
}

// RankRow sorts the positions of row by score, highest first, and returns the first k
// positions other than self. Equal scores keep ascending position order (stable sort).
// NaN scores rank below every number.
func RankRow(row []float64, self, k int) []Scored {
	if k <= 0 {
		return []Scored{}
	}
	pairs := make([]Scored, len(row))
	for i, v := range row {
		pairs[i] = Scored{Index: i, Score: v}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return higher(pairs[i].Score, pairs[j].Score)
	})
	out := make([]Scored, 0, min(k, len(pairs)))
	for _, p := range pairs {
		if p.Index == self {
			continue
		}
		if len(out) == k {
			break
		}
		out = append(out, p)
	}
	return out
}

func higher(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}
